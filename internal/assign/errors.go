package assign

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes assignment failures.  Codes are returned as typed
// results so batch processing can continue past one failed booking; none
// of them are retried automatically except PersistenceFailure, which is
// safe to retry on a later poll cycle.
type ErrorCode string

const (
	// CodeInvalidBooking marks a booking with missing or malformed time
	// or pax data.  Not retried.
	CodeInvalidBooking ErrorCode = "INVALID_BOOKING"

	// CodePastBooking marks a booking whose start is beyond the past
	// grace period.  Silently skipped in automated sweeps, surfaced in
	// manual flows.
	CodePastBooking ErrorCode = "PAST_BOOKING"

	// CodeDuplicateBooking marks a booking already assigned somewhere.
	// Success-adjacent: no operator action is needed.
	CodeDuplicateBooking ErrorCode = "DUPLICATE_BOOKING"

	// CodeNoTableAvailable means no table passed the capacity and
	// conflict filters for the requested window.
	CodeNoTableAvailable ErrorCode = "NO_TABLE_AVAILABLE"

	// CodeNoSuitableTable means tables were available but the selector
	// could not pick one.
	CodeNoSuitableTable ErrorCode = "NO_SUITABLE_TABLE"

	// CodeConflictDetected is the table-specific variant used by manual
	// entry; the message names the blocking window.
	CodeConflictDetected ErrorCode = "CONFLICT_DETECTED"

	// CodePersistenceFailure wraps a record-store write error after the
	// local append has been rolled back.
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// CodeAdapterUnavailable marks a misconfigured or unreachable
	// external adapter.  Collapses to "no events" at the poller.
	CodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
)

// Error is a typed assignment failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an Error with a formatted message.
func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or empty when err is not an
// assignment error.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsDuplicate reports whether err is a duplicate-booking rejection.
func IsDuplicate(err error) bool { return CodeOf(err) == CodeDuplicateBooking }
