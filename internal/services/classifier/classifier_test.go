package classifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fireflysync/fireflysync/internal/domain"
)

func triple(security string) domain.AccountTriple {
	return domain.AccountTriple{
		Security: security,
		Asset: domain.LedgerAccount{
			Name:         "Binance " + security + " Wallet",
			Type:         "asset",
			CurrencyCode: security,
		},
		Expense: domain.LedgerAccount{Name: "Binance Expenses (" + security + ")", Type: "expense"},
		Revenue: domain.LedgerAccount{Name: "Binance Revenue (" + security + ")", Type: "revenue"},
	}
}

func buyTrade() domain.Trade {
	return domain.Trade{
		Platform:         "Binance",
		Pair:             domain.NewPair("BTC", "USDT"),
		Side:             domain.SideBuy,
		CommissionAsset:  "BNB",
		CommissionAmount: decimal.RequireFromString("0.001"),
		SecurityAmount:   decimal.NewFromInt(500),
		CurrencyAmount:   decimal.RequireFromString("0.01"),
		ID:               123,
	}
}

func TestClassifyBuyDirectsValueFromCurrencyToSecurity(t *testing.T) {
	triples := []domain.AccountTriple{triple("BTC"), triple("USDT"), triple("BNB")}

	classified, err := Classify(buyTrade(), triples)
	require.NoError(t, err)

	require.Equal(t, "Binance USDT Wallet", classified.From.Name)
	require.Equal(t, "Binance BTC Wallet", classified.To.Name)
	require.Equal(t, "Binance Expenses (BNB)", classified.Commission.Name)
	require.Equal(t, "Binance BNB Wallet", classified.CommissionSource.Name)
}

func TestClassifySellReversesDirection(t *testing.T) {
	trade := buyTrade()
	trade.Side = domain.SideSell
	triples := []domain.AccountTriple{triple("BTC"), triple("USDT"), triple("BNB")}

	classified, err := Classify(trade, triples)
	require.NoError(t, err)

	require.Equal(t, "Binance BTC Wallet", classified.From.Name)
	require.Equal(t, "Binance USDT Wallet", classified.To.Name)
}

func TestClassifyUnresolvedCommissionAccountIsFatal(t *testing.T) {
	// no BNB triple: the commission source cannot be resolved
	triples := []domain.AccountTriple{triple("BTC"), triple("USDT")}

	_, err := Classify(buyTrade(), triples)
	require.Error(t, err)
	require.True(t, domain.IsFatal(err), "missing commission account must abort the run")
	require.Contains(t, err.Error(), "BNB")
}

func TestClassifyCommissionInTradedCurrency(t *testing.T) {
	trade := buyTrade()
	trade.CommissionAsset = "USDT"
	triples := []domain.AccountTriple{triple("BTC"), triple("USDT")}

	classified, err := Classify(trade, triples)
	require.NoError(t, err)
	require.Equal(t, "Binance Expenses (USDT)", classified.Commission.Name)
	require.Equal(t, "Binance USDT Wallet", classified.CommissionSource.Name)
}

func TestClassifyMissingPairAccountsIsFatal(t *testing.T) {
	_, err := Classify(buyTrade(), []domain.AccountTriple{triple("BNB")})
	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
}
