// Package reconciler resolves the on-chain counterparty of ledger
// transactions that were posted before the matching blockchain transfer was
// observed.
package reconciler

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fireflysync/fireflysync/internal/domain"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
	"github.com/fireflysync/fireflysync/internal/services/resolver"
)

const (
	txTypeTransfer   = "transfer"
	txTypeWithdrawal = "withdrawal"
	txTypeDeposit    = "deposit"
)

// Reconciler rewrites unclassified withdrawals and deposits once their
// counterparty address is known to belong to a ledger account. Entries whose
// on-chain transaction cannot be matched yet are left for a future pass:
// chain confirmation may lag the exchange-side record.
type Reconciler struct {
	platform string
	ledger   ledger.Client
	resolver *resolver.Resolver
	chains   map[string]explorer.Client
	log      *zap.Logger
}

// New constructs a Reconciler over the supported chains.
func New(platform string, ledgerClient ledger.Client, res *resolver.Resolver, chains map[string]explorer.Client, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		platform: platform,
		ledger:   ledgerClient,
		resolver: res,
		chains:   chains,
		log:      logger.With(zap.String("component", "reconciler"), zap.String("platform", platform)),
	}
}

// Reconcile runs one pass over every supported chain.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if len(r.chains) == 0 {
		return nil
	}

	transactions, err := r.ledger.Transactions(ctx)
	if err != nil {
		return errors.Wrap(err, "list ledger transactions")
	}

	for name, chain := range r.chains {
		if err := r.reconcileChain(ctx, name, chain, transactions); err != nil {
			if domain.IsFatal(err) {
				return err
			}
			// a chain being unreachable must not block the others
			r.log.Error("chain reconciliation failed", zap.String("chain", name), zap.Error(err))
		}
	}
	return nil
}

func (r *Reconciler) reconcileChain(ctx context.Context, name string, chain explorer.Client, transactions []ledger.Transaction) error {
	ownership, err := r.resolver.AddressOwnership(ctx, chain)
	if err != nil {
		return errors.Wrap(err, "derive address ownership")
	}
	if len(ownership) == 0 {
		r.log.Debug("no chain-tagged accounts", zap.String("chain", name))
		return nil
	}

	currency := domain.NormalizeSymbol(chain.CurrencyCode())
	for _, transaction := range transactions {
		if len(transaction.Splits) == 0 {
			continue
		}
		split := transaction.Splits[0]
		if !strings.Contains(split.Notes, r.resolver.UnclassifiedKey()) {
			continue
		}
		if !split.MatchesCurrency(currency) {
			continue
		}

		if err := r.reconcileEntry(ctx, chain, ownership, transaction.ID, split); err != nil {
			if domain.IsFatal(err) {
				return err
			}
			r.log.Error("failed to reconcile entry",
				zap.String("transaction_id", transaction.ID),
				zap.String("external_id", split.ExternalID),
				zap.Error(err))
		}
	}
	return nil
}

func (r *Reconciler) reconcileEntry(ctx context.Context, chain explorer.Client, ownership map[string]domain.AddressOwnership, id string, split ledger.Split) error {
	if split.ExternalID == "" {
		return nil
	}

	chainTx, err := chain.Transaction(ctx, split.ExternalID)
	if err != nil {
		return errors.Wrapf(err, "fetch chain transaction %s", split.ExternalID)
	}

	// a deposit into the exchange was sent from one of our own addresses,
	// a withdrawal from the exchange landed on one of them
	var candidates []string
	switch split.Type {
	case txTypeDeposit:
		candidates = chainTx.Inputs
	case txTypeWithdrawal:
		candidates = chainTx.Outputs
	default:
		return nil
	}

	owner, found := matchOwner(candidates, ownership)
	if !found {
		r.log.Debug("no owned address in chain transaction, leaving unclassified",
			zap.String("external_id", split.ExternalID))
		return nil
	}

	rewritten := split
	rewritten.Notes = r.resolver.ServiceKey()
	rewritten.Description = strings.Replace(split.Description, "(unclassified)", "(classified)", 1)
	switch split.Type {
	case txTypeDeposit:
		rewritten.Type = txTypeTransfer
		rewritten.SourceName = owner.Account.Name
		rewritten.SourceType = owner.Account.Type
	case txTypeWithdrawal:
		rewritten.Type = txTypeTransfer
		rewritten.DestinationName = owner.Account.Name
		rewritten.DestinationType = owner.Account.Type
	}

	if err := r.ledger.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete unclassified transaction %s", id)
	}
	if err := r.ledger.Store(ctx, rewritten); err != nil && !errors.Is(err, ledger.ErrDuplicate) {
		return errors.Wrapf(err, "re-post classified transaction %s", split.ExternalID)
	}

	r.log.Info("reclassified transfer",
		zap.String("external_id", split.ExternalID),
		zap.String("account", owner.Account.Name))
	return nil
}

// matchOwner finds the ownership entry holding any of the addresses.
// Address comparison is case-insensitive: some chains checksum-case their
// addresses.
func matchOwner(addresses []string, ownership map[string]domain.AddressOwnership) (domain.AddressOwnership, bool) {
	for _, owned := range ownership {
		for _, address := range owned.Addresses {
			for _, candidate := range addresses {
				if strings.EqualFold(address, candidate) {
					return owned, true
				}
			}
		}
	}
	return domain.AddressOwnership{}, false
}
