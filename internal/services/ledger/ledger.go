// Package ledger talks to the double-entry personal-finance system that
// receives imported transactions.
package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fireflysync/fireflysync/internal/domain"
)

// Account is a ledger account record.
type Account = domain.LedgerAccount

// ErrDuplicate is returned by Store when the ledger rejects the transaction
// as a duplicate of an existing one. Callers treat it as success: it is the
// system's primary replay-safety mechanism.
var ErrDuplicate = errors.New("duplicate ledger transaction")

// Split is one leg set of a ledger transaction. The engine only ever writes
// single-split transactions.
type Split struct {
	Type                  string    `json:"type"`
	Date                  time.Time `json:"date"`
	Amount                string    `json:"amount"`
	Description           string    `json:"description"`
	SourceName            string    `json:"source_name,omitempty"`
	SourceType            string    `json:"source_type,omitempty"`
	DestinationName       string    `json:"destination_name,omitempty"`
	DestinationType       string    `json:"destination_type,omitempty"`
	CurrencyCode          string    `json:"currency_code,omitempty"`
	CurrencySymbol        string    `json:"currency_symbol,omitempty"`
	ForeignAmount         string    `json:"foreign_amount,omitempty"`
	ForeignCurrencyCode   string    `json:"foreign_currency_code,omitempty"`
	ForeignCurrencySymbol string    `json:"foreign_currency_symbol,omitempty"`
	ExternalID            string    `json:"external_id,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	Tags                  []string  `json:"tags,omitempty"`
	Reconciled            bool      `json:"reconciled"`
}

// MatchesCurrency reports whether the split settles the given (already
// normalized) currency, by code or symbol. Custom crypto currencies often
// carry the code in the symbol field.
func (s Split) MatchesCurrency(symbol string) bool {
	return domain.NormalizeSymbol(s.CurrencyCode) == symbol || domain.NormalizeSymbol(s.CurrencySymbol) == symbol
}

// Transaction is a stored ledger transaction as returned by listing.
type Transaction struct {
	ID     string
	Splits []Split
}

// Client is the ledger collaborator contract consumed by the sync engine.
type Client interface {
	// Connect verifies reachability and credentials.
	Connect(ctx context.Context) error
	// Accounts lists all accounts of the given type.
	Accounts(ctx context.Context, accountType string) ([]Account, error)
	// Transactions lists all transactions.
	Transactions(ctx context.Context) ([]Transaction, error)
	// Store writes one transaction; returns ErrDuplicate when the ledger's
	// duplicate detection rejects it.
	Store(ctx context.Context, split Split) error
	// Delete removes a transaction by id.
	Delete(ctx context.Context, id string) error
}
