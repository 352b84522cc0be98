// Package exchange defines the exchange collaborator contract consumed by
// the sync engine and the implementations selected by configuration key.
package exchange

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
)

// ErrInvalidSymbol marks a trading pair the provider rejects (illegal
// character, unknown pair). The caller skips the pair and continues with the
// rest of the batch.
var ErrInvalidSymbol = errors.New("invalid trading pair symbol")

// CatalogEntry is one tradable pair from the exchange's catalog, carrying
// the provider's raw base/quote fields.
type CatalogEntry struct {
	Base   string
	Quote  string
	Status string
}

// Tradable reports whether the pair is currently open for trading.
func (e CatalogEntry) Tradable() bool {
	return e.Status == "TRADING"
}

// Client is the abstract exchange account the sync engine pulls records
// from. Implementations surface maintenance outages as domain.ErrMaintenance
// and rejected symbols as ErrInvalidSymbol; other provider errors propagate
// opaquely. Timestamps are milliseconds since epoch.
type Client interface {
	// Name returns the platform name used in ledger descriptions and tags.
	Name() string
	// Ping verifies account access. Run before the first pass.
	Ping(ctx context.Context) error
	// TradablePairs returns the exchange's pair catalog.
	TradablePairs(ctx context.Context) ([]CatalogEntry, error)
	// Trades returns normalized trades for one pair within [from, to].
	Trades(ctx context.Context, pair domain.Pair, from, to int64) ([]domain.Trade, error)
	// Withdrawals returns normalized withdrawals within [from, to].
	Withdrawals(ctx context.Context, from, to int64) ([]domain.Transfer, error)
	// Deposits returns normalized deposits within [from, to].
	Deposits(ctx context.Context, from, to int64) ([]domain.Transfer, error)
	// LendingInterest returns interest payouts of all cadences within [from, to].
	LendingInterest(ctx context.Context, from, to int64) ([]domain.Interest, error)
}

// Credentials are the API credentials of one exchange account.
type Credentials struct {
	Key    string
	Secret string
}

// Enabled reports whether the account is configured.
func (c Credentials) Enabled() bool {
	return c.Key != "" && c.Secret != ""
}

// builders is the static table of supported platforms. No runtime discovery:
// adding an exchange means adding a constructor here.
var builders = map[string]func(creds Credentials, logger *zap.Logger) (Client, error){
	"binance": func(creds Credentials, logger *zap.Logger) (Client, error) {
		return NewBinance(creds, logger), nil
	},
}

// Platforms returns the platform keys known to the registry.
func Platforms() []string {
	keys := make([]string, 0, len(builders))
	for k := range builders {
		keys = append(keys, k)
	}
	return keys
}

// Build constructs the client registered for the platform key.
func Build(platform string, creds Credentials, logger *zap.Logger) (Client, error) {
	builder, ok := builders[platform]
	if !ok {
		return nil, errors.Errorf("unsupported platform %q", platform)
	}
	return builder(creds, logger)
}
