// Package resolver maps traded currencies to ledger account triples and
// on-chain addresses to ledger accounts.
package resolver

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
)

// ServiceTag marks ledger accounts and transactions managed by this
// importer. Accounts must be provisioned with it out-of-band before the
// first run.
const ServiceTag = "crypto-trades-firefly-iii"

const (
	accountTypeAsset   = "asset"
	accountTypeExpense = "expense"
	accountTypeRevenue = "revenue"
)

// Resolver resolves ledger accounts for one trading platform. Account
// triples are cached for the duration of one sync interval only; callers
// reset the cache at the start of each pass.
type Resolver struct {
	platform string
	ledger   ledger.Client
	log      *zap.Logger

	triples  map[string]domain.AccountTriple
	accounts map[string][]ledger.Account
}

// New constructs a Resolver for the platform.
func New(platform string, ledgerClient ledger.Client, logger *zap.Logger) *Resolver {
	r := &Resolver{
		platform: platform,
		ledger:   ledgerClient,
		log:      logger.With(zap.String("component", "resolver"), zap.String("platform", platform)),
	}
	r.Reset()
	return r
}

// ServiceKey is the notes marker of accounts managed for this platform.
func (r *Resolver) ServiceKey() string {
	return ServiceTag + ":" + strings.ToLower(r.platform)
}

// UnclassifiedKey is the notes marker of transactions posted without a
// resolved on-chain counterparty.
func (r *Resolver) UnclassifiedKey() string {
	return ServiceTag + ":unclassified-transaction:" + strings.ToLower(r.platform)
}

// Reset drops the per-interval caches.
func (r *Resolver) Reset() {
	r.triples = make(map[string]domain.AccountTriple)
	r.accounts = make(map[string][]ledger.Account)
}

// SymbolsAndCodes returns the distinct normalized currency codes and symbols
// of the platform's tagged asset accounts.
func (r *Resolver) SymbolsAndCodes(ctx context.Context) ([]string, error) {
	accounts, err := r.taggedAccounts(ctx, accountTypeAsset)
	if err != nil {
		return nil, err
	}

	r.log.Info("relevant ledger accounts found", zap.Int("count", len(accounts)))
	for _, account := range accounts {
		r.log.Info("relevant account", zap.String("name", account.Name))
	}

	seen := make(map[string]struct{})
	var symbols []string
	add := func(symbol string) {
		symbol = domain.NormalizeSymbol(symbol)
		if symbol == "" {
			return
		}
		if _, ok := seen[symbol]; ok {
			return
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	for _, account := range accounts {
		add(account.CurrencyCode)
		add(account.CurrencySymbol)
	}
	return symbols, nil
}

// TradingPairs forms the cartesian product of the symbols (excluding
// self-pairs) and keeps the candidates present and tradable in the
// exchange's catalog. Discarded candidates are logged, not errors.
func (r *Resolver) TradingPairs(symbols []string, catalog []exchange.CatalogEntry) []domain.Pair {
	var candidates []domain.Pair
	for _, security := range symbols {
		for _, currency := range symbols {
			if security == currency {
				continue
			}
			candidates = append(candidates, domain.NewPair(security, currency))
		}
	}

	kept := make(map[domain.Pair]struct{})
	var pairs []domain.Pair
	for _, entry := range catalog {
		if !entry.Tradable() {
			continue
		}
		for _, candidate := range candidates {
			if entry.Base == candidate.Security && entry.Quote == candidate.Currency {
				if _, ok := kept[candidate]; !ok {
					kept[candidate] = struct{}{}
					pairs = append(pairs, candidate)
				}
			}
		}
	}

	for _, candidate := range candidates {
		if _, ok := kept[candidate]; !ok {
			r.log.Debug("discarding trading pair candidate", zap.String("pair", candidate.String()))
		}
	}
	return pairs
}

// AccountTriple resolves the asset, expense and revenue accounts for one
// security. A missing account is a configuration-integrity failure: the
// required accounts are provisioned out-of-band before the first run, so
// the error is fatal rather than recoverable.
func (r *Resolver) AccountTriple(ctx context.Context, security string) (domain.AccountTriple, error) {
	triple, ok, err := r.TryAccountTriple(ctx, security)
	if err != nil {
		return domain.AccountTriple{}, err
	}
	if !ok {
		return domain.AccountTriple{}, domain.Fatalf("no asset account with tag %s for security %s, create one before proceeding", r.ServiceKey(), domain.NormalizeSymbol(security))
	}
	return triple, nil
}

// TryAccountTriple resolves the triple for an asset that may not be tracked
// in the ledger at all. A missing asset account reports ok=false so the
// caller can skip the record; the shared expense and revenue accounts are
// still required and their absence is fatal.
func (r *Resolver) TryAccountTriple(ctx context.Context, security string) (domain.AccountTriple, bool, error) {
	security = domain.NormalizeSymbol(security)
	if triple, ok := r.triples[security]; ok {
		return triple, true, nil
	}

	asset, err := r.findAccount(ctx, accountTypeAsset, security)
	if err != nil {
		return domain.AccountTriple{}, false, err
	}
	if asset == nil {
		return domain.AccountTriple{}, false, nil
	}

	expense, err := r.findAccount(ctx, accountTypeExpense, "")
	if err != nil {
		return domain.AccountTriple{}, false, err
	}
	if expense == nil {
		return domain.AccountTriple{}, false, domain.Fatalf("no expense account with tag %s, create one before proceeding", r.ServiceKey())
	}

	revenue, err := r.findAccount(ctx, accountTypeRevenue, "")
	if err != nil {
		return domain.AccountTriple{}, false, err
	}
	if revenue == nil {
		return domain.AccountTriple{}, false, domain.Fatalf("no revenue account with tag %s, create one before proceeding", r.ServiceKey())
	}

	triple := domain.AccountTriple{
		Security: security,
		Asset:    *asset,
		Expense:  *expense,
		Revenue:  *revenue,
	}
	r.triples[security] = triple
	return triple, true, nil
}

// TriplesForPairs resolves account triples for every distinct security and
// currency occurring in the pairs.
func (r *Resolver) TriplesForPairs(ctx context.Context, pairs []domain.Pair) ([]domain.AccountTriple, error) {
	seen := make(map[string]struct{})
	var securities []string
	for _, pair := range pairs {
		for _, symbol := range []string{pair.Security, pair.Currency} {
			if _, ok := seen[symbol]; !ok {
				seen[symbol] = struct{}{}
				securities = append(securities, symbol)
			}
		}
	}

	triples := make([]domain.AccountTriple, 0, len(securities))
	for _, security := range securities {
		triple, err := r.AccountTriple(ctx, security)
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

// AddressOwnership maps account names to the receive addresses of the
// chain's tagged asset accounts. Used only by the reconciler.
func (r *Resolver) AddressOwnership(ctx context.Context, chain explorer.Client) (map[string]domain.AddressOwnership, error) {
	accounts, err := r.accountsOfType(ctx, accountTypeAsset)
	if err != nil {
		return nil, err
	}

	ownership := make(map[string]domain.AddressOwnership)
	for _, account := range accounts {
		if !strings.Contains(account.Notes, chain.AccountTag()) {
			continue
		}
		if !account.MatchesCurrency(chain.CurrencyCode()) {
			continue
		}

		key := chain.KeyPattern().FindString(account.Notes)
		if key == "" {
			r.log.Warn("chain-tagged account without key material in notes", zap.String("account", account.Name))
			continue
		}

		addresses, err := chain.DeriveAddresses(ctx, key)
		if err != nil {
			return nil, err
		}

		ownership[account.Name] = domain.AddressOwnership{
			Addresses:    addresses,
			Account:      account,
			CurrencyCode: chain.CurrencyCode(),
		}
	}
	return ownership, nil
}

func (r *Resolver) findAccount(ctx context.Context, accountType, security string) (*ledger.Account, error) {
	accounts, err := r.accountsOfType(ctx, accountType)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		if !strings.Contains(account.Notes, r.ServiceKey()) {
			continue
		}
		if security == "" || account.MatchesCurrency(security) {
			found := account
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Resolver) taggedAccounts(ctx context.Context, accountType string) ([]ledger.Account, error) {
	accounts, err := r.accountsOfType(ctx, accountType)
	if err != nil {
		return nil, err
	}

	var tagged []ledger.Account
	for _, account := range accounts {
		if strings.Contains(account.Notes, r.ServiceKey()) {
			tagged = append(tagged, account)
		}
	}
	return tagged, nil
}

func (r *Resolver) accountsOfType(ctx context.Context, accountType string) ([]ledger.Account, error) {
	if cached, ok := r.accounts[accountType]; ok {
		return cached, nil
	}
	accounts, err := r.ledger.Accounts(ctx, accountType)
	if err != nil {
		return nil, err
	}
	r.accounts[accountType] = accounts
	return accounts, nil
}
