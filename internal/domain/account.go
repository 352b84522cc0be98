package domain

// LedgerAccount is the subset of a ledger account the sync engine needs.
type LedgerAccount struct {
	ID             string
	Name           string
	Type           string
	CurrencyCode   string
	CurrencySymbol string
	Notes          string
}

// MatchesCurrency reports whether the account's currency code or symbol
// equals the given (already normalized) symbol.
func (a LedgerAccount) MatchesCurrency(symbol string) bool {
	return NormalizeSymbol(a.CurrencyCode) == symbol || NormalizeSymbol(a.CurrencySymbol) == symbol
}

// AccountTriple is the (asset, expense, revenue) ledger account set
// associated with one traded currency. Resolved once per sync interval and
// cached only for that interval.
type AccountTriple struct {
	Security string
	Asset    LedgerAccount
	Expense  LedgerAccount
	Revenue  LedgerAccount
}

// ClassifiedTrade is a Trade augmented with its resolved ledger accounts.
// It must not be posted while CommissionSource is nil.
type ClassifiedTrade struct {
	Trade
	From             *LedgerAccount
	To               *LedgerAccount
	Commission       *LedgerAccount
	CommissionSource *LedgerAccount
}

// AddressOwnership maps a set of on-chain receive addresses to the ledger
// account that owns them.
type AddressOwnership struct {
	Addresses    []string
	Account      LedgerAccount
	CurrencyCode string
}
