// Package explorer provides per-blockchain collaborators used to resolve the
// true counterparty of unclassified ledger transactions.
package explorer

import (
	"context"
	"regexp"

	"go.uber.org/zap"
)

// ChainTransaction is an on-chain transaction reduced to the address sets
// the reconciler needs.
type ChainTransaction struct {
	Inputs  []string
	Outputs []string
}

// Client is one supported blockchain. Implementations derive receive
// addresses from the key material kept in ledger account notes and look up
// transactions by the ledger's external id.
type Client interface {
	// CurrencyCode is the ledger currency this chain settles.
	CurrencyCode() string
	// AccountTag is the notes marker identifying accounts on this chain.
	AccountTag() string
	// KeyPattern extracts the account's key material from its notes.
	KeyPattern() *regexp.Regexp
	// DeriveAddresses expands key material into receive addresses.
	DeriveAddresses(ctx context.Context, key string) ([]string, error)
	// Transaction fetches an on-chain transaction by id.
	Transaction(ctx context.Context, id string) (ChainTransaction, error)
}

// Config carries the explorer endpoints. An empty endpoint disables the
// chain.
type Config struct {
	BitcoinBlockbookURL string
	EthereumRPCURL      string
}

// Supported builds the explorer set enumerated at startup, keyed by chain
// name. No runtime discovery: adding a chain means extending this table.
func Supported(cfg Config, logger *zap.Logger) (map[string]Client, error) {
	chains := make(map[string]Client)

	if cfg.BitcoinBlockbookURL != "" {
		chains["bitcoin"] = NewBitcoin(cfg.BitcoinBlockbookURL, logger)
	}
	if cfg.EthereumRPCURL != "" {
		eth, err := NewEthereum(cfg.EthereumRPCURL, logger)
		if err != nil {
			return nil, err
		}
		chains["ethereum"] = eth
	}

	return chains, nil
}
