// Package classifier pairs normalized trades with their source and
// destination ledger accounts.
package classifier

import (
	"github.com/fireflysync/fireflysync/internal/domain"
)

// Classify assigns ledger accounts to a trade. A BUY moves value from the
// currency leg's asset account to the security leg's; a SELL is the reverse.
// The commission account is the expense account of the triple matching the
// commission asset; the commission source is the asset account whose
// currency equals the commission asset.
//
// An unresolved commission source is a configuration-integrity failure (a
// ledger account is missing) and aborts the run instead of silently
// skipping the trade.
func Classify(trade domain.Trade, triples []domain.AccountTriple) (domain.ClassifiedTrade, error) {
	classified := domain.ClassifiedTrade{Trade: trade}

	for i := range triples {
		triple := &triples[i]

		switch trade.Side {
		case domain.SideBuy:
			if triple.Security == trade.Pair.Security {
				classified.To = &triple.Asset
			}
			if triple.Security == trade.Pair.Currency {
				classified.From = &triple.Asset
			}
		case domain.SideSell:
			if triple.Security == trade.Pair.Currency {
				classified.To = &triple.Asset
			}
			if triple.Security == trade.Pair.Security {
				classified.From = &triple.Asset
			}
		}

		if triple.Security == trade.CommissionAsset {
			classified.Commission = &triple.Expense
		}
		if triple.Asset.MatchesCurrency(trade.CommissionAsset) {
			classified.CommissionSource = &triple.Asset
		}
	}

	if classified.From == nil || classified.To == nil {
		return domain.ClassifiedTrade{}, domain.Fatalf("no asset accounts resolved for pair %s", trade.Pair.String())
	}
	if classified.CommissionSource == nil {
		return domain.ClassifiedTrade{}, domain.Fatalf("no commission account found for asset %s", trade.CommissionAsset)
	}

	return classified, nil
}
