package market

import (
	"errors"
	"fmt"

	"github.com/gridline-markets/gridx/pkg/db/postgres"
)

// ErrNotFound is returned when a referenced entity does not exist. For events
// that require pre-existing position state this is fatal for the event and
// surfaced to the operator rather than retried.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func wrapNotFound(err error, what string) error {
	if postgres.IsNoRows(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// zeroIfEmpty maps an empty decimal string to "0" so NUMERIC columns never
// see an empty literal.
func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
