/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error here is a precondition or input-validation failure, not a
  runtime fault: the engine itself never performs I/O.

ERROR POLICY:
  - Fatal preconditions (missing start date, malformed contract,
    negative fees) return explicit errors. Never defaulted, never
    swallowed.
  - Legitimate degenerate business cases (no AUM, zero expected fee,
    unpaid period, empty history) are sentinel VALUES, not errors:
    nil fees, StatusUnknown, StatusNoPayment.

USAGE:
  Callers branch with errors.Is / errors.As:

    if errors.Is(err, billing.ErrMissingStartDate) { ... }

    var malformed *billing.MalformedContractError
    if errors.As(err, &malformed) { ... }

SEE ALSO:
  - compliance.go: where the fatal preconditions are enforced
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingStartDate is returned when a contract has no start date.
	// A ledger cannot be built without one; defaulting to an arbitrary
	// date would fabricate obligations.
	ErrMissingStartDate = errors.New("contract has no start date")

	// ErrMalformedContract is returned when the fee-type/rate invariant
	// is violated. Wrapped by MalformedContractError.
	ErrMalformedContract = errors.New("malformed contract")

	// ErrInvalidFee is returned for negative or otherwise impossible fee
	// inputs. Wrapped by InvalidFeeError.
	ErrInvalidFee = errors.New("invalid fee value")

	// ErrInvalidPeriod is returned for a period number outside the
	// schedule's range, or an unknown schedule.
	ErrInvalidPeriod = errors.New("invalid billing period")

	// ErrScheduleMismatch is returned when two periods of different
	// schedules are combined. Monthly and quarterly periods are never
	// comparable.
	ErrScheduleMismatch = errors.New("schedule mismatch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedContractError reports a violated contract invariant.
// The engine fails loudly rather than silently picking a rate.
type MalformedContractError struct {
	ContractID ContractID
	Reason     string
}

func (e *MalformedContractError) Error() string {
	return fmt.Sprintf("malformed contract %s: %s", e.ContractID, e.Reason)
}

func (e *MalformedContractError) Unwrap() error { return ErrMalformedContract }

// InvalidFeeError reports a fee input the form layer should have
// rejected (negative actual fee, negative AUM).
type InvalidFeeError struct {
	PaymentID PaymentID
	Field     string
	Value     fmt.Stringer
}

func (e *InvalidFeeError) Error() string {
	return fmt.Sprintf("invalid %s on payment %s: %v", e.Field, e.PaymentID, e.Value)
}

func (e *InvalidFeeError) Unwrap() error { return ErrInvalidFee }

// InvalidPeriodError reports an out-of-range billing period.
type InvalidPeriodError struct {
	Schedule Schedule
	Period   int
	Year     int
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid %s period %d/%d", e.Schedule, e.Period, e.Year)
}

func (e *InvalidPeriodError) Unwrap() error { return ErrInvalidPeriod }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input
// rather than an internal fault. The API layer maps these to 400s.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingStartDate) ||
		errors.Is(err, ErrMalformedContract) ||
		errors.Is(err, ErrInvalidFee) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrScheduleMismatch)
}
