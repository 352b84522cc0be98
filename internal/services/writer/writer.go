// Package writer posts normalized exchange records to the ledger.
package writer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
)

const (
	txTypeTransfer   = "transfer"
	txTypeWithdrawal = "withdrawal"
	txTypeDeposit    = "deposit"
)

// Writer writes one ledger transaction per call. A duplicate response from
// the ledger is an expected, non-fatal outcome: the external id (or content
// hash) already exists, so the record was imported by an earlier pass. Any
// other store error is logged and the record skipped so the rest of the
// batch can proceed; failed records are surfaced via logs only and are not
// retried within the same interval.
type Writer struct {
	platform        string
	ledger          ledger.Client
	serviceKey      string
	unclassifiedKey string
	debug           bool
	log             *zap.Logger
}

// New constructs a Writer for one platform.
func New(platform string, ledgerClient ledger.Client, serviceKey, unclassifiedKey string, debug bool, logger *zap.Logger) *Writer {
	return &Writer{
		platform:        platform,
		ledger:          ledgerClient,
		serviceKey:      serviceKey,
		unclassifiedKey: unclassifiedKey,
		debug:           debug,
		log:             logger.With(zap.String("component", "writer"), zap.String("platform", platform)),
	}
}

// Tags returns the tag set attached to every posted transaction.
func (w *Writer) Tags() []string {
	tags := []string{strings.ToLower(w.platform)}
	if w.debug {
		tags = append(tags, "dev")
	}
	return tags
}

// WriteTrade posts the trade as a transfer between the two asset accounts
// and, when the trade is stored fresh, its commission as a separate
// withdrawal carrying the same external id.
func (w *Writer) WriteTrade(ctx context.Context, trade domain.ClassifiedTrade) {
	description := w.platform + " | " + string(trade.Side) +
		" | Security: " + trade.Pair.Security +
		" | Currency: " + trade.Pair.Currency +
		" | Ticker " + trade.Pair.Symbol()

	split := ledger.Split{
		Type:                  txTypeTransfer,
		Date:                  time.UnixMilli(trade.Time),
		Amount:                trade.SecurityAmount.String(),
		Description:           description,
		SourceName:            trade.From.Name,
		SourceType:            trade.From.Type,
		DestinationName:       trade.To.Name,
		DestinationType:       trade.To.Type,
		CurrencyCode:          trade.From.CurrencyCode,
		CurrencySymbol:        trade.From.CurrencySymbol,
		ForeignAmount:         trade.CurrencyAmount.StringFixed(8),
		ForeignCurrencyCode:   trade.To.CurrencyCode,
		ForeignCurrencySymbol: trade.To.CurrencySymbol,
		ExternalID:            trade.ExternalID(),
		Notes:                 w.serviceKey,
		Tags:                  w.Tags(),
		Reconciled:            true,
	}

	err := w.ledger.Store(ctx, split)
	switch {
	case err == nil:
		w.log.Info("wrote new trade", zap.Int64("trade_id", trade.ID))
		w.writeCommission(ctx, trade)
	case errors.Is(err, ledger.ErrDuplicate):
		w.log.Warn("duplicate trade detected", zap.Int64("trade_id", trade.ID))
	default:
		w.log.Error("failed to write trade, skipping record", zap.Int64("trade_id", trade.ID), zap.Error(err))
	}
}

func (w *Writer) writeCommission(ctx context.Context, trade domain.ClassifiedTrade) {
	split := ledger.Split{
		Type:            txTypeWithdrawal,
		Date:            time.UnixMilli(trade.Time),
		Amount:          trade.CommissionAmount.String(),
		Description:     w.platform + " | FEE | Currency: " + trade.CommissionSource.CurrencyCode,
		SourceName:      trade.CommissionSource.Name,
		SourceType:      trade.CommissionSource.Type,
		DestinationName: trade.Commission.Name,
		DestinationType: trade.Commission.Type,
		CurrencyCode:    trade.CommissionSource.CurrencyCode,
		CurrencySymbol:  trade.CommissionSource.CurrencySymbol,
		ExternalID:      trade.ExternalID(),
		Notes:           w.serviceKey,
		Tags:            w.Tags(),
		Reconciled:      true,
	}

	err := w.ledger.Store(ctx, split)
	switch {
	case err == nil:
		w.log.Info("wrote paid commission", zap.Int64("trade_id", trade.ID))
	case errors.Is(err, ledger.ErrDuplicate):
		w.log.Debug("duplicate commission", zap.Int64("trade_id", trade.ID))
	default:
		w.log.Error("failed to write commission, skipping record", zap.Int64("trade_id", trade.ID), zap.Error(err))
	}
}

// WriteInterest posts an interest payout as a deposit from the revenue
// account into the asset account.
func (w *Writer) WriteInterest(ctx context.Context, interest domain.Interest, triple domain.AccountTriple) {
	description := w.platform + " | INTEREST | Currency: " + triple.Asset.CurrencyCode
	switch interest.Due {
	case domain.InterestDueDaily:
		description += " | Daily interest"
	case domain.InterestDueActive:
		description += " | Active interest"
	case domain.InterestDueFixed:
		description += " | Locked interest"
	}

	split := ledger.Split{
		Type:            txTypeDeposit,
		Date:            interest.Date,
		Amount:          interest.Amount.String(),
		Description:     description,
		SourceName:      triple.Revenue.Name,
		SourceType:      triple.Revenue.Type,
		DestinationName: triple.Asset.Name,
		DestinationType: triple.Asset.Type,
		CurrencyCode:    triple.Asset.CurrencyCode,
		CurrencySymbol:  triple.Asset.CurrencySymbol,
		Notes:           w.serviceKey,
		Tags:            w.Tags(),
		Reconciled:      true,
	}

	err := w.ledger.Store(ctx, split)
	switch {
	case err == nil:
		w.log.Info("wrote received interest", zap.String("currency", interest.Currency))
	case errors.Is(err, ledger.ErrDuplicate):
		w.log.Warn("duplicate received interest", zap.String("currency", interest.Currency))
	default:
		w.log.Error("failed to write interest, skipping record", zap.String("currency", interest.Currency), zap.Error(err))
	}
}

// WriteWithdrawal posts a withdrawal whose on-chain counterparty is not yet
// known: the destination is the generic expense account and the transaction
// carries the unclassified marker for a later reconciliation pass.
func (w *Writer) WriteWithdrawal(ctx context.Context, transfer domain.Transfer, triple domain.AccountTriple) {
	split := ledger.Split{
		Type:            txTypeWithdrawal,
		Date:            time.UnixMilli(transfer.Time),
		Amount:          transfer.Amount.String(),
		Description:     w.platform + " | WITHDRAWAL (unclassified) | Security: " + transfer.Asset,
		SourceName:      triple.Asset.Name,
		SourceType:      triple.Asset.Type,
		DestinationName: triple.Expense.Name,
		DestinationType: triple.Expense.Type,
		CurrencyCode:    triple.Asset.CurrencyCode,
		CurrencySymbol:  triple.Asset.CurrencySymbol,
		ExternalID:      transfer.TransactionID,
		Notes:           w.unclassifiedKey,
		Tags:            w.Tags(),
		Reconciled:      true,
	}
	w.storeTransfer(ctx, split, transfer)
}

// WriteDeposit posts a deposit whose on-chain counterparty is not yet
// known: the source is the generic revenue account.
func (w *Writer) WriteDeposit(ctx context.Context, transfer domain.Transfer, triple domain.AccountTriple) {
	split := ledger.Split{
		Type:            txTypeDeposit,
		Date:            time.UnixMilli(transfer.Time),
		Amount:          transfer.Amount.String(),
		Description:     w.platform + " | DEPOSIT (unclassified) | Security: " + transfer.Asset,
		SourceName:      triple.Revenue.Name,
		SourceType:      triple.Revenue.Type,
		DestinationName: triple.Asset.Name,
		DestinationType: triple.Asset.Type,
		CurrencyCode:    triple.Asset.CurrencyCode,
		CurrencySymbol:  triple.Asset.CurrencySymbol,
		ExternalID:      transfer.TransactionID,
		Notes:           w.unclassifiedKey,
		Tags:            w.Tags(),
		Reconciled:      true,
	}
	w.storeTransfer(ctx, split, transfer)
}

func (w *Writer) storeTransfer(ctx context.Context, split ledger.Split, transfer domain.Transfer) {
	err := w.ledger.Store(ctx, split)
	switch {
	case err == nil:
		w.log.Info("wrote new transfer",
			zap.String("kind", string(transfer.Kind)),
			zap.String("transaction_id", transfer.TransactionID))
	case errors.Is(err, ledger.ErrDuplicate):
		w.log.Warn("duplicate transfer detected",
			zap.String("kind", string(transfer.Kind)),
			zap.String("transaction_id", transfer.TransactionID))
	default:
		w.log.Error("failed to write transfer, skipping record",
			zap.String("kind", string(transfer.Kind)),
			zap.String("transaction_id", transfer.TransactionID),
			zap.Error(err))
	}
}
