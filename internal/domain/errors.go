package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMaintenance signals that the exchange is under maintenance. The
// orchestrator treats it as a recoverable condition: the pass is aborted, the
// cursor stays put and the next tick retries the same window.
var ErrMaintenance = errors.New("exchange under maintenance")

// FatalError marks a configuration-integrity failure that cannot succeed on
// retry without operator action (missing ledger account, unresolved
// commission asset, unsupported interval). It unwinds to process exit.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }

func (e *FatalError) Unwrap() error { return e.err }

// Fatalf builds a FatalError from a format string.
func Fatalf(format string, args ...any) error {
	return &FatalError{err: fmt.Errorf(format, args...)}
}

// FatalWrap wraps err into a FatalError with a message.
func FatalWrap(err error, msg string) error {
	return &FatalError{err: errors.Wrap(err, msg)}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
