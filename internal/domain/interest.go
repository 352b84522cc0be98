package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestDue settlement cadence of a lending interest payout.
type InterestDue string

const (
	InterestDueDaily  InterestDue = "DAILY"
	InterestDueActive InterestDue = "ACTIVE"
	InterestDueFixed  InterestDue = "FIXED"
)

// InterestType kind of savings product that produced the interest.
type InterestType string

const InterestTypeLending InterestType = "LENDING"

// Interest is a normalized interest payout record.
type Interest struct {
	Type     InterestType
	Amount   decimal.Decimal
	Currency string
	Date     time.Time
	Due      InterestDue
}
