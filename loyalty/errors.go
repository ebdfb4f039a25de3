/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is(); structured variants carry context.

ERROR CATEGORIES:
  1. Configuration errors - malformed Program/Rule/Reward definitions.
     Raised once at load time, fatal to that program's activation,
     never surfaced mid-order.
  2. Redemption errors - insufficient points, invalid codes. Either
     absorbed (auto-triggered rewards) or returned inside the
     Evaluation result; they do not cross the Evaluate boundary as
     Go errors.
  3. Commit errors - stale balance snapshots, ledger failures.

PROPAGATION POLICY:
  Evaluate never returns redemption errors - it records Rejections.
  Commit returns ErrStaleSnapshot only after bounded re-evaluation.

SEE ALSO:
  - program.go: Raises ConfigurationError from Validate
  - account.go: Raises InsufficientPointsError from Debit
  - engine.go: Commit retry loop around ErrStaleSnapshot
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when a program definition is malformed
	// (unknown mode, negative amount). Detected at load time.
	ErrConfiguration = errors.New("invalid program configuration")

	// ErrInsufficientPoints is returned when a debit exceeds the balance.
	// Debit refuses to mutate; there is never a partial debit.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrStaleSnapshot is returned when an account balance changed between
	// evaluation and commit. The evaluation must be re-run.
	ErrStaleSnapshot = errors.New("stale balance snapshot")

	// ErrReservation is returned when a user-entered code does not resolve
	// to an active, eligible account.
	ErrReservation = errors.New("code cannot be redeemed")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrProgramNotFound is returned when a referenced program doesn't exist.
	ErrProgramNotFound = errors.New("program not found")

	// ErrDuplicateIdempotencyKey is returned when a ledger entry with the
	// same idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateCode is returned when issuing an account with a code
	// that is already in use.
	ErrDuplicateCode = errors.New("duplicate account code")

	// ErrNegativeAmount is returned when a debit or credit is negative.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError reports which program and field failed validation.
type ConfigurationError struct {
	ProgramID ProgramID
	Field     string
	Detail    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("program %s: invalid %s: %s", e.ProgramID, e.Field, e.Detail)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// InsufficientPointsError provides details about a balance shortage.
type InsufficientPointsError struct {
	AccountID AccountID
	Available string
	Requested string
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points on %s: available %s, requested %s",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// ReservationError reports why a user-entered code was refused.
type ReservationError struct {
	Code   string
	Reason string
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("code %q: %s", e.Code, e.Reason)
}

func (e *ReservationError) Unwrap() error {
	return ErrReservation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleSnapshot)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReservation) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrConfiguration)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrProgramNotFound)
}
