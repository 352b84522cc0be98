package resolver

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
)

// ledgerStub serves canned accounts per type and counts listing calls.
type ledgerStub struct {
	accounts map[string][]ledger.Account
	calls    int
}

func (l *ledgerStub) Connect(ctx context.Context) error { return nil }

func (l *ledgerStub) Accounts(ctx context.Context, accountType string) ([]ledger.Account, error) {
	l.calls++
	return l.accounts[accountType], nil
}

func (l *ledgerStub) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	return nil, nil
}

func (l *ledgerStub) Store(ctx context.Context, split ledger.Split) error { return nil }

func (l *ledgerStub) Delete(ctx context.Context, id string) error { return nil }

func taggedLedger() *ledgerStub {
	tag := ServiceTag + ":binance"
	return &ledgerStub{accounts: map[string][]ledger.Account{
		"asset": {
			{ID: "1", Name: "Binance BTC", Type: "asset", CurrencyCode: "BTC", CurrencySymbol: "₿", Notes: tag},
			{ID: "2", Name: "Binance USDT", Type: "asset", CurrencyCode: "USDT", CurrencySymbol: "$", Notes: tag},
			{ID: "3", Name: "Checking", Type: "asset", CurrencyCode: "EUR", CurrencySymbol: "€"},
		},
		"expense": {
			{ID: "4", Name: "Crypto expenses", Type: "expense", CurrencyCode: "EUR", Notes: tag},
		},
		"revenue": {
			{ID: "5", Name: "Crypto revenues", Type: "revenue", CurrencyCode: "EUR", Notes: tag},
		},
	}}
}

func TestSymbolsAndCodes(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())

	symbols, err := r.SymbolsAndCodes(context.Background())
	require.NoError(t, err)

	// untagged Checking account excluded, codes and symbols deduplicated
	require.ElementsMatch(t, []string{"BTC", "₿", "USDT", "$"}, symbols)
}

func TestTradingPairsIntersectsCatalog(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())

	catalog := []exchange.CatalogEntry{
		{Base: "BTC", Quote: "USDT", Status: "TRADING"},
		{Base: "USDT", Quote: "BTC", Status: "BREAK"},
		{Base: "ETH", Quote: "USDT", Status: "TRADING"},
	}

	pairs := r.TradingPairs([]string{"BTC", "USDT"}, catalog)
	require.Equal(t, []domain.Pair{domain.NewPair("BTC", "USDT")}, pairs)
}

func TestAccountTripleResolvesAndCaches(t *testing.T) {
	stub := taggedLedger()
	r := New("Binance", stub, zap.NewNop())

	triple, err := r.AccountTriple(context.Background(), "BTC")
	require.NoError(t, err)
	require.Equal(t, "Binance BTC", triple.Asset.Name)
	require.Equal(t, "Crypto expenses", triple.Expense.Name)
	require.Equal(t, "Crypto revenues", triple.Revenue.Name)

	calls := stub.calls
	_, err = r.AccountTriple(context.Background(), "BTC")
	require.NoError(t, err)
	require.Equal(t, calls, stub.calls, "second resolution must be served from cache")

	r.Reset()
	_, err = r.AccountTriple(context.Background(), "BTC")
	require.NoError(t, err)
	require.Greater(t, stub.calls, calls, "reset must drop the interval cache")
}

func TestTryAccountTripleUntrackedAsset(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())

	// an asset the ledger does not track is reported, not fatal: transfers
	// and interest in it are skipped by the caller
	_, ok, err := r.TryAccountTriple(context.Background(), "DOGE")
	require.NoError(t, err)
	require.False(t, ok)

	triple, ok, err := r.TryAccountTriple(context.Background(), "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Binance BTC", triple.Asset.Name)
}

func TestAccountTripleMissingAssetIsFatal(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())

	_, err := r.AccountTriple(context.Background(), "DOGE")
	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
}

func TestAccountTripleMissingExpenseIsFatal(t *testing.T) {
	stub := taggedLedger()
	stub.accounts["expense"] = nil
	r := New("Binance", stub, zap.NewNop())

	_, err := r.AccountTriple(context.Background(), "BTC")
	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
}

func TestTriplesForPairs(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())

	triples, err := r.TriplesForPairs(context.Background(), []domain.Pair{domain.NewPair("BTC", "USDT")})
	require.NoError(t, err)
	require.Len(t, triples, 2)
	require.Equal(t, "BTC", triples[0].Security)
	require.Equal(t, "USDT", triples[1].Security)
}

// chainStub is a minimal blockchain collaborator deriving a fixed address
// per key.
type chainStub struct{}

func (chainStub) CurrencyCode() string { return "BTC" }

func (chainStub) AccountTag() string { return "btc-blockchain" }

func (chainStub) KeyPattern() *regexp.Regexp {
	return regexp.MustCompile(`xpub[0-9A-Za-z]+`)
}

func (chainStub) DeriveAddresses(ctx context.Context, key string) ([]string, error) {
	return []string{"bc1q-" + key}, nil
}

func (chainStub) Transaction(ctx context.Context, id string) (explorer.ChainTransaction, error) {
	return explorer.ChainTransaction{}, nil
}

func TestAddressOwnership(t *testing.T) {
	tag := ServiceTag + ":binance"
	stub := &ledgerStub{accounts: map[string][]ledger.Account{
		"asset": {
			{Name: "Cold wallet", Type: "asset", CurrencyCode: "BTC", Notes: tag + " btc-blockchain xpub661abc"},
			{Name: "Binance BTC", Type: "asset", CurrencyCode: "BTC", Notes: tag},
			{Name: "ETH wallet", Type: "asset", CurrencyCode: "ETH", Notes: tag + " btc-blockchain xpub661def"},
			{Name: "No key", Type: "asset", CurrencyCode: "BTC", Notes: tag + " btc-blockchain"},
		},
	}}
	r := New("Binance", stub, zap.NewNop())

	ownership, err := r.AddressOwnership(context.Background(), chainStub{})
	require.NoError(t, err)

	// only the chain-tagged BTC account with key material qualifies: the
	// exchange account lacks the chain tag, the ETH wallet settles another
	// currency and the keyless account is skipped with a warning
	require.Len(t, ownership, 1)
	require.Equal(t, []string{"bc1q-xpub661abc"}, ownership["Cold wallet"].Addresses)
	require.Equal(t, "BTC", ownership["Cold wallet"].CurrencyCode)
}

func TestServiceKeys(t *testing.T) {
	r := New("Binance", taggedLedger(), zap.NewNop())
	require.Equal(t, "crypto-trades-firefly-iii:binance", r.ServiceKey())
	require.Equal(t, "crypto-trades-firefly-iii:unclassified-transaction:binance", r.UnclassifiedKey())
}
