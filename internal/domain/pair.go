// Package domain defines core data structures shared by the sync engine.
package domain

import "fmt"

// legacy Binance ticker for Optimism, renamed upstream.
const legacyOptimismTicker = "OPC"

// NormalizeSymbol maps legacy ticker codes to their canonical symbol.
// It must be applied wherever symbols are compared or constructed.
func NormalizeSymbol(symbol string) string {
	if symbol == legacyOptimismTicker {
		return "OP"
	}
	return symbol
}

// Pair is a traded (security, currency) combination. Both legs are
// normalized on construction; equality is by value.
type Pair struct {
	// Security base symbol.
	Security string
	// Currency quote symbol.
	Currency string
}

// NewPair constructs a Pair with normalized legs.
func NewPair(security, currency string) Pair {
	return Pair{
		Security: NormalizeSymbol(security),
		Currency: NormalizeSymbol(currency),
	}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Security, p.Currency)
}

// Symbol returns the concatenated ticker used by exchange APIs.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Security, p.Currency)
}
