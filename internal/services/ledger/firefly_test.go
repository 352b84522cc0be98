package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/pkg/retrier"
)

func newTestFirefly(t *testing.T, handler http.HandlerFunc) *Firefly {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFirefly(srv.URL, "test-token", true, zap.NewNop())
}

func TestFireflyConnect(t *testing.T) {
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/about", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Trace-Id"))
		_, _ = w.Write([]byte(`{"data":{"version":"6.1.0"}}`))
	})

	require.NoError(t, f.Connect(context.Background()))
}

func TestFireflyAccountsPaginates(t *testing.T) {
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "asset", r.URL.Query().Get("type"))
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{
				"data":[{"id":"1","attributes":{"name":"Binance BTC Wallet","type":"asset","currency_code":"BTC","currency_symbol":"₿","notes":"crypto-trades-firefly-iii:binance"}}],
				"meta":{"pagination":{"current_page":1,"total_pages":2}}}`))
		case "2":
			_, _ = w.Write([]byte(`{
				"data":[{"id":"2","attributes":{"name":"Binance USDT Wallet","type":"asset","currency_code":"USDT","currency_symbol":"USDT","notes":"crypto-trades-firefly-iii:binance"}}],
				"meta":{"pagination":{"current_page":2,"total_pages":2}}}`))
		default:
			t.Fatalf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	accounts, err := f.Accounts(context.Background(), "asset")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "Binance BTC Wallet", accounts[0].Name)
	require.Equal(t, "USDT", accounts[1].CurrencyCode)
}

func TestFireflyStoreDuplicate(t *testing.T) {
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req fireflyStoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.ErrorIfDuplicateHash)
		require.False(t, req.ApplyRules)
		require.Len(t, req.Transactions, 1)

		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Duplicate of transaction #42."}`))
	})

	err := f.Store(context.Background(), Split{
		Type:        "transfer",
		Date:        time.Now(),
		Amount:      "500",
		Description: "Binance | BUY | Security: BTC | Currency: USDT | Ticker BTCUSDT",
		ExternalID:  "123",
	})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestFireflyStoreServerErrorIsRetriedThenSucceeds(t *testing.T) {
	calls := 0
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"7"}}`))
	})
	f.retrier = retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Millisecond))

	require.NoError(t, f.Store(context.Background(), Split{Type: "deposit", Amount: "1"}))
	require.Equal(t, 2, calls)
}

func TestFireflyDelete(t *testing.T) {
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/transactions/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.Delete(context.Background(), "42"))
}

func TestFireflyTransactionsListsSplits(t *testing.T) {
	f := newTestFirefly(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/transactions", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"data":[{"id":"42","attributes":{"transactions":[
				{"type":"deposit","amount":"0.5","description":"Binance | DEPOSIT (unclassified) | Security: BTC",
				 "currency_code":"BTC","external_id":"abcd","notes":"crypto-trades-firefly-iii:unclassified-transaction:binance"}
			]}}],
			"meta":{"pagination":{"current_page":1,"total_pages":1}}}`))
	})

	txs, err := f.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "42", txs[0].ID)
	require.Len(t, txs[0].Splits, 1)
	require.Equal(t, "abcd", txs[0].Splits[0].ExternalID)
}
