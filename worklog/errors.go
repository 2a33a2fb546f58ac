/*
errors.go - Error types for the ledger

PURPOSE:
  All error types in one place. Store adapters wrap driver failures with
  ErrStoreUnavailable so the ledger can tell transient failures from
  permanent ones; policy rejections carry the context the caller needs to
  explain them.

ERROR CATEGORIES:
  1. Policy errors - leave cap violations (client error, nothing mutated)
  2. Validation errors - malformed entries or settings
  3. Store errors - persistence failures, possibly transient

SEE ALSO:
  - ledger.go: returns these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package worklog

import (
	"errors"
	"fmt"

	"github.com/warp/hours-ledger/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLeaveCapReached is returned when a leave type's monthly cap is
	// already used by another date of the same month.
	ErrLeaveCapReached = errors.New("monthly leave cap reached")

	// ErrInvalidEntry is returned when an entry or settings document is malformed.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrStoreUnavailable wraps store failures that may succeed on retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LeaveCapError reports a rejected leave designation.
type LeaveCapError struct {
	Date      calendar.Date
	LeaveType LeaveType
	Cap       int
	// UsedOn lists the other dates of the month already using the type.
	UsedOn []calendar.Date
}

func (e *LeaveCapError) Error() string {
	return fmt.Sprintf("%s leave allowed %d time(s) per month: %s already used on %v",
		e.LeaveType, e.Cap, e.Date.YearMonth(), e.UsedOn)
}

func (e *LeaveCapError) Unwrap() error {
	return ErrLeaveCapReached
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEntry
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrLeaveCapReached) ||
		errors.Is(err, ErrInvalidEntry)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Unavailable wraps err as a transient store failure. nil stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
