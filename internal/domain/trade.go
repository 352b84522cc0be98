package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side trade direction as reported by the exchange.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is a normalized exchange trade. For a BUY the security amount is the
// quote currency paid and the currency amount is the base currency received;
// a SELL is the mirror image. This matches how the ledger records the
// resulting currency conversion.
type Trade struct {
	Platform         string
	CommissionAmount decimal.Decimal
	CommissionAsset  string
	CurrencyAmount   decimal.Decimal
	SecurityAmount   decimal.Decimal
	Pair             Pair
	Side             Side
	// ID exchange-assigned trade identifier, used as the ledger external id.
	ID int64
	// Time milliseconds since epoch.
	Time int64
}

// ExternalID returns the ledger deduplication key for this trade.
func (t Trade) ExternalID() string {
	return fmt.Sprintf("%d", t.ID)
}
