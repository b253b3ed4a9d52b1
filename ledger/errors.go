/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  The error taxonomy the presentation layer is allowed to rely on. Every
  failure surfaces its specific kind; nothing is collapsed into an opaque
  label (a masking pattern the legacy console suffered from and that is
  explicitly disallowed here).

ERROR CATEGORIES:
  1. Validation errors  - malformed amounts, short search terms
  2. Business rejections - insufficient balance, redemption in flight
  3. Lookup errors      - unknown client id
  4. Store errors       - surfaced from docstore, see docstore.ErrStore

USAGE:
  if errors.Is(err, ledger.ErrRedemptionInFlight) { ... render 409 ... }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/nadsa/loyalty-engine/docstore"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input fails validation before any
	// store call is made. Failing fast here guarantees no side effect.
	ErrValidation = errors.New("validation failed")

	// ErrClientNotFound is returned when an unknown client id is passed
	// to lookup or redeem.
	ErrClientNotFound = errors.New("client not found")

	// ErrInsufficientBalance is returned when redeeming a client whose
	// total points are not positive.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRedemptionInFlight is returned when a redemption is attempted
	// while another one holds the client's lock. Not retried, not queued.
	ErrRedemptionInFlight = errors.New("redemption already in flight")
)

// ErrStore is re-exported so callers of this package have one import for
// the whole taxonomy.
var ErrStore = docstore.ErrStore

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError carries the balance that failed the redemption
// precondition.
type InsufficientBalanceError struct {
	ClientID ClientID
	Points   int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("client %s has no redeemable balance (points: %d)", e.ClientID, e.Points)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is a business-rule rejection or
// bad input, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrRedemptionInFlight)
}

// IsNotFound reports whether the error indicates a missing client.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) || errors.Is(err, docstore.ErrNotFound)
}
