package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
	"github.com/fireflysync/fireflysync/internal/services/reconciler"
	"github.com/fireflysync/fireflysync/internal/services/resolver"
	"github.com/fireflysync/fireflysync/internal/services/writer"
)

type ledgerFake struct {
	accounts map[string][]ledger.Account
	stored   []ledger.Split
}

func (l *ledgerFake) Connect(ctx context.Context) error { return nil }

func (l *ledgerFake) Accounts(ctx context.Context, accountType string) ([]ledger.Account, error) {
	return l.accounts[accountType], nil
}

func (l *ledgerFake) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	return nil, nil
}

func (l *ledgerFake) Store(ctx context.Context, split ledger.Split) error {
	l.stored = append(l.stored, split)
	return nil
}

func (l *ledgerFake) Delete(ctx context.Context, id string) error { return nil }

type exchangeFake struct {
	trades        []domain.Trade
	tradesErr     error
	withdrawals   []domain.Transfer
	err           error
	calls         int
	withdrawCalls int
}

func (e *exchangeFake) Name() string { return "Binance" }

func (e *exchangeFake) Ping(ctx context.Context) error { return nil }

func (e *exchangeFake) TradablePairs(ctx context.Context) ([]exchange.CatalogEntry, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []exchange.CatalogEntry{{Base: "BTC", Quote: "USDT", Status: "TRADING"}}, nil
}

func (e *exchangeFake) Trades(ctx context.Context, pair domain.Pair, from, to int64) ([]domain.Trade, error) {
	if e.tradesErr != nil {
		return nil, e.tradesErr
	}
	return e.trades, nil
}

func (e *exchangeFake) Withdrawals(ctx context.Context, from, to int64) ([]domain.Transfer, error) {
	e.withdrawCalls++
	return e.withdrawals, nil
}

func (e *exchangeFake) Deposits(ctx context.Context, from, to int64) ([]domain.Transfer, error) {
	return nil, nil
}

func (e *exchangeFake) LendingInterest(ctx context.Context, from, to int64) ([]domain.Interest, error) {
	return nil, nil
}

func taggedAccounts() map[string][]ledger.Account {
	tag := resolver.ServiceTag + ":binance"
	return map[string][]ledger.Account{
		"asset": {
			{Name: "Binance BTC", Type: "asset", CurrencyCode: "BTC", Notes: tag},
			{Name: "Binance USDT", Type: "asset", CurrencyCode: "USDT", Notes: tag},
		},
		"expense": {{Name: "Crypto expenses", Type: "expense", CurrencyCode: "EUR", Notes: tag}},
		"revenue": {{Name: "Crypto revenues", Type: "revenue", CurrencyCode: "EUR", Notes: tag}},
	}
}

func buyTrade(commissionAsset string) domain.Trade {
	return domain.Trade{
		Platform:         "Binance",
		ID:               1,
		Pair:             domain.NewPair("BTC", "USDT"),
		Side:             domain.SideBuy,
		SecurityAmount:   decimal.RequireFromString("500"),
		CurrencyAmount:   decimal.RequireFromString("0.01"),
		CommissionAmount: decimal.RequireFromString("0.5"),
		CommissionAsset:  commissionAsset,
		Time:             1000,
	}
}

func newOrchestrator(ex *exchangeFake, lf *ledgerFake, start int64) *Orchestrator {
	log := zap.NewNop()
	res := resolver.New("Binance", lf, log)
	w := writer.New("Binance", lf, res.ServiceKey(), res.UnclassifiedKey(), false, log)
	rec := reconciler.New("Binance", lf, res, map[string]explorer.Client{}, log)
	return NewOrchestrator(ex, res, w, rec, nil, start, IntervalDebug, log)
}

func TestTickBackfillAdvancesCursor(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{trades: []domain.Trade{buyTrade("USDT")}}
	o := newOrchestrator(ex, lf, 0)

	require.Equal(t, StateInitializing, o.State())

	now := time.Unix(1000, 0)
	require.NoError(t, o.Tick(context.Background(), now))

	require.Equal(t, StateSteady, o.State())
	require.Equal(t, IntervalDebug.Boundary(now), o.Cursor())
	// one trade plus its commission
	require.Len(t, lf.stored, 2)
}

func TestTickMaintenanceDuringBackfillResetsCursor(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{err: domain.ErrMaintenance}
	o := newOrchestrator(ex, lf, 500)

	require.NoError(t, o.Tick(context.Background(), time.Unix(1000, 0)))

	require.Equal(t, StateMaintenanceWait, o.State())
	require.Equal(t, int64(500), o.Cursor())

	// next tick re-attempts the backfill once maintenance is over
	ex.err = nil
	ex.trades = nil
	require.NoError(t, o.Tick(context.Background(), time.Unix(1010, 0)))
	require.Equal(t, StateSteady, o.State())
}

func TestCursorMonotonicityAcrossTicks(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{}
	o := newOrchestrator(ex, lf, 0)

	require.NoError(t, o.Tick(context.Background(), time.Unix(1000, 0)))
	require.Equal(t, int64(1000_000), o.Cursor())

	require.NoError(t, o.Tick(context.Background(), time.Unix(1010, 0)))
	require.Equal(t, int64(1010_000), o.Cursor())

	// maintenance in steady state leaves the cursor where it was
	ex.err = domain.ErrMaintenance
	require.NoError(t, o.Tick(context.Background(), time.Unix(1020, 0)))
	require.Equal(t, StateSteady, o.State())
	require.Equal(t, int64(1010_000), o.Cursor())

	ex.err = nil
	require.NoError(t, o.Tick(context.Background(), time.Unix(1020, 0)))
	require.Equal(t, int64(1020_000), o.Cursor())
}

func TestTickSkipsUnelapsedBoundary(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{}
	o := newOrchestrator(ex, lf, 0)

	now := time.Unix(1000, 0)
	require.NoError(t, o.Tick(context.Background(), now))

	calls := ex.calls
	require.NoError(t, o.Tick(context.Background(), now))
	require.Equal(t, calls, ex.calls, "no pass must run before the boundary advances")
}

func TestTickUnknownTradeErrorSkipsPairOnly(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{tradesErr: errors.New("Too many requests")}
	o := newOrchestrator(ex, lf, 0)

	now := time.Unix(1000, 0)
	require.NoError(t, o.Tick(context.Background(), now))

	// one pair is lost, the rest of the pass still runs and completes
	require.NotZero(t, ex.withdrawCalls)
	require.Equal(t, StateSteady, o.State())
	require.Equal(t, IntervalDebug.Boundary(now), o.Cursor())
}

func TestTickMaintenanceFetchingTradesAbortsPass(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{tradesErr: domain.ErrMaintenance}
	o := newOrchestrator(ex, lf, 0)

	require.NoError(t, o.Tick(context.Background(), time.Unix(1000, 0)))

	require.Zero(t, ex.withdrawCalls)
	require.Equal(t, StateMaintenanceWait, o.State())
	require.Equal(t, int64(0), o.Cursor())
}

func TestTickSkipsTransfersWithoutLedgerAccount(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{withdrawals: []domain.Transfer{
		{Platform: "Binance", Kind: domain.TransferWithdrawal, Asset: "DOGE",
			Amount: decimal.RequireFromString("5"), TransactionID: "doge-tx"},
		{Platform: "Binance", Kind: domain.TransferWithdrawal, Asset: "BTC",
			Amount: decimal.RequireFromString("0.1"), TransactionID: "btc-tx"},
	}}
	o := newOrchestrator(ex, lf, 0)

	now := time.Unix(1000, 0)
	require.NoError(t, o.Tick(context.Background(), now))

	// the untracked DOGE withdrawal is skipped, the BTC one is posted and
	// the pass still completes
	require.Len(t, lf.stored, 1)
	require.Equal(t, "btc-tx", lf.stored[0].ExternalID)
	require.Equal(t, IntervalDebug.Boundary(now), o.Cursor())
}

func TestTickUnresolvedCommissionIsFatal(t *testing.T) {
	lf := &ledgerFake{accounts: taggedAccounts()}
	ex := &exchangeFake{trades: []domain.Trade{buyTrade("BNB")}}
	o := newOrchestrator(ex, lf, 0)

	err := o.Tick(context.Background(), time.Unix(1000, 0))
	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
	require.Equal(t, int64(0), o.Cursor())
}
