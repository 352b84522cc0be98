package domain

import "github.com/shopspring/decimal"

// TransferKind distinguishes withdrawals from deposits.
type TransferKind string

const (
	TransferWithdrawal TransferKind = "WITHDRAWAL"
	TransferDeposit    TransferKind = "DEPOSIT"
)

// Transfer is a normalized withdrawal or deposit record. TransactionID is the
// on-chain transaction hash and serves as the ledger external id.
type Transfer struct {
	Platform      string
	Kind          TransferKind
	Amount        decimal.Decimal
	Asset         string
	// Time milliseconds since epoch.
	Time          int64
	TargetAddress string
	TransactionID string
	// TransactionFee is zero when the provider does not report one.
	TransactionFee decimal.Decimal
}
