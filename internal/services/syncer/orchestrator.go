// Package syncer drives the periodic import of exchange history into the
// ledger.
package syncer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/classifier"
	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/reconciler"
	"github.com/fireflysync/fireflysync/internal/services/resolver"
	"github.com/fireflysync/fireflysync/internal/services/writer"
	"github.com/fireflysync/fireflysync/internal/storage/synclog"
)

// State of the orchestrator's lifecycle.
type State string

const (
	StateInitializing    State = "INITIALIZING"
	StateBackfilling     State = "BACKFILLING"
	StateSteady          State = "STEADY_STATE"
	StateMaintenanceWait State = "MAINTENANCE_WAIT"
)

// Journal receives a record of every completed interval.
type Journal interface {
	Save(entry synclog.Entry) error
}

// Orchestrator runs the sync state machine for one exchange. A single
// goroutine owns it: one pass runs to completion before the next tick is
// considered, so two passes never race on the same cursor.
type Orchestrator struct {
	platform   string
	exchange   exchange.Client
	resolver   *resolver.Resolver
	writer     *writer.Writer
	reconciler *reconciler.Reconciler
	journal    Journal
	cursor     *Cursor
	interval   Interval
	state      State
	log        *zap.Logger
}

// NewOrchestrator wires the pass pipeline for one exchange. journal may be
// nil when interval auditing is disabled.
func NewOrchestrator(
	exchangeClient exchange.Client,
	res *resolver.Resolver,
	ledgerWriter *writer.Writer,
	rec *reconciler.Reconciler,
	journal Journal,
	startTimestamp int64,
	interval Interval,
	logger *zap.Logger,
) *Orchestrator {
	platform := exchangeClient.Name()
	return &Orchestrator{
		platform:   platform,
		exchange:   exchangeClient,
		resolver:   res,
		writer:     ledgerWriter,
		reconciler: rec,
		journal:    journal,
		cursor:     NewCursor(startTimestamp),
		interval:   interval,
		state:      StateInitializing,
		log:        logger.With(zap.String("component", "syncer"), zap.String("platform", platform)),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Cursor returns the current cursor position in epoch milliseconds.
func (o *Orchestrator) Cursor() int64 {
	return o.cursor.Value()
}

// Run ticks the state machine until the context is cancelled or a fatal
// error terminates the sync. The first tick fires immediately to start the
// historical backfill.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Tick(ctx, time.Now()); err != nil {
		return err
	}

	ticker := time.NewTicker(o.interval.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := o.Tick(ctx, now); err != nil {
				return err
			}
		}
	}
}

// Tick advances the state machine by one step. It returns an error only for
// fatal conditions; maintenance outages and transient pass failures are
// absorbed, leaving the cursor unchanged so the next tick retries the same
// window.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) error {
	boundary := o.interval.Boundary(now)

	switch o.state {
	case StateInitializing, StateBackfilling, StateMaintenanceWait:
		o.state = StateBackfilling
		o.log.Info("backfilling history",
			zap.Int64("from", o.cursor.Value()),
			zap.Int64("to", boundary))

		err := o.pass(ctx, o.cursor.Value(), boundary)
		switch {
		case err == nil:
			o.cursor.Advance(boundary)
			o.state = StateSteady
		case errors.Is(err, domain.ErrMaintenance):
			o.log.Warn("exchange under maintenance, backfill postponed")
			o.cursor.Reset()
			o.state = StateMaintenanceWait
		case domain.IsFatal(err):
			return err
		default:
			o.log.Error("backfill pass failed", zap.Error(err))
		}

	case StateSteady:
		if boundary <= o.cursor.Value() {
			o.log.Debug("interval boundary not yet elapsed", zap.Int64("boundary", boundary))
			return nil
		}
		o.log.Info("syncing interval",
			zap.Int64("from", o.cursor.Value()),
			zap.Int64("to", boundary))

		err := o.pass(ctx, o.cursor.Value(), boundary)
		switch {
		case err == nil:
			o.cursor.Advance(boundary)
		case errors.Is(err, domain.ErrMaintenance):
			o.log.Warn("exchange under maintenance, interval retried next tick")
		case domain.IsFatal(err):
			return err
		default:
			o.log.Error("sync pass failed", zap.Error(err))
		}
	}
	return nil
}

// pass runs one orchestration pass over [from, to].
func (o *Orchestrator) pass(ctx context.Context, from, to int64) error {
	if to <= from {
		return nil
	}

	o.resolver.Reset()

	symbols, err := o.resolver.SymbolsAndCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list ledger symbols")
	}
	if len(symbols) == 0 {
		o.log.Warn("no tagged ledger accounts, nothing to sync")
		return nil
	}

	catalog, err := o.exchange.TradablePairs(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch pair catalog")
	}

	pairs := o.resolver.TradingPairs(symbols, catalog)
	o.log.Info("trading pairs resolved", zap.Int("count", len(pairs)))

	triples, err := o.resolver.TriplesForPairs(ctx, pairs)
	if err != nil {
		return err
	}

	if err := o.syncTrades(ctx, pairs, triples, from, to); err != nil {
		return err
	}
	if err := o.syncInterest(ctx, from, to); err != nil {
		return err
	}
	if err := o.syncTransfers(ctx, from, to); err != nil {
		return err
	}
	if err := o.reconciler.Reconcile(ctx); err != nil {
		return err
	}

	if o.journal != nil {
		entry := synclog.Entry{Platform: o.platform, From: from, To: to, CompletedAt: time.Now().UTC()}
		if err := o.journal.Save(entry); err != nil {
			o.log.Error("failed to journal completed interval", zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) syncTrades(ctx context.Context, pairs []domain.Pair, triples []domain.AccountTriple, from, to int64) error {
	for _, pair := range pairs {
		trades, err := o.exchange.Trades(ctx, pair, from, to)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMaintenance):
				return err
			case errors.Is(err, exchange.ErrInvalidSymbol):
				o.log.Warn("pair rejected by exchange, skipping", zap.String("pair", pair.String()))
			default:
				// unknown provider errors cost one pair, not the whole pass
				o.log.Error("failed to fetch trades, skipping pair",
					zap.String("pair", pair.String()), zap.Error(err))
			}
			continue
		}

		for _, trade := range trades {
			classified, err := classifier.Classify(trade, triples)
			if err != nil {
				return err
			}
			o.writer.WriteTrade(ctx, classified)
		}
	}
	return nil
}

func (o *Orchestrator) syncInterest(ctx context.Context, from, to int64) error {
	payouts, err := o.exchange.LendingInterest(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "fetch lending interest")
	}

	for _, payout := range payouts {
		triple, ok, err := o.resolver.TryAccountTriple(ctx, payout.Currency)
		if err != nil {
			return err
		}
		if !ok {
			o.log.Info("no ledger account for interest currency, skipping",
				zap.String("currency", payout.Currency))
			continue
		}
		o.writer.WriteInterest(ctx, payout, triple)
	}
	return nil
}

func (o *Orchestrator) syncTransfers(ctx context.Context, from, to int64) error {
	withdrawals, err := o.exchange.Withdrawals(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "fetch withdrawals")
	}
	for _, transfer := range withdrawals {
		triple, ok, err := o.resolver.TryAccountTriple(ctx, transfer.Asset)
		if err != nil {
			return err
		}
		if !ok {
			o.skipTransfer(transfer)
			continue
		}
		o.writer.WriteWithdrawal(ctx, transfer, triple)
	}

	deposits, err := o.exchange.Deposits(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "fetch deposits")
	}
	for _, transfer := range deposits {
		triple, ok, err := o.resolver.TryAccountTriple(ctx, transfer.Asset)
		if err != nil {
			return err
		}
		if !ok {
			o.skipTransfer(transfer)
			continue
		}
		o.writer.WriteDeposit(ctx, transfer, triple)
	}
	return nil
}

// skipTransfer notes a transfer in an asset the ledger does not track.
func (o *Orchestrator) skipTransfer(transfer domain.Transfer) {
	o.log.Info("no ledger account for transfer asset, skipping",
		zap.String("kind", string(transfer.Kind)),
		zap.String("asset", transfer.Asset),
		zap.String("transaction_id", transfer.TransactionID))
}
