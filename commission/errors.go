/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place. Callers match with errors.Is against the
  sentinels and use errors.As on the structured types for details.

ERROR CATEGORIES:
  1. Validation    - malformed rules/tiers/inputs, rejected before any write
  2. Not found     - unknown rule, commission or period id
  3. Conflict      - booking re-recorded with different inputs, commission
                     owned by another period, rule deleted while in use
  4. Not eligible  - booking without an artist or with a non-positive price
  5. No rule       - no artist rule and no studio default
  6. Transition    - pay period operation not allowed in its current state

SEE ALSO:
  - api/errors.go: HTTP status mapping
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrNotEligible       = errors.New("booking not eligible for commission")
	ErrNoRuleConfigured  = errors.New("no commission rule configured")
	ErrInvalidTransition = errors.New("invalid pay period transition")

	// ErrDuplicateBooking is returned by stores when a ledger row for the
	// booking already exists. The recorder turns it into an idempotent read.
	ErrDuplicateBooking = errors.New("ledger row already exists for booking")

	// ErrRuleInUse is returned when deleting a rule still assigned to artists.
	ErrRuleInUse = fmt.Errorf("%w: rule is assigned to artists", ErrConflict)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing object.
type NotFoundError struct {
	Kind string // "rule", "commission", "period"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NoRuleError is returned by the resolver when nothing applies.
type NoRuleError struct {
	ArtistID ArtistID
	StudioID StudioID
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no commission rule configured for artist %q in studio %q", e.ArtistID, e.StudioID)
}

func (e *NoRuleError) Unwrap() error { return ErrNoRuleConfigured }

// NotEligibleError explains why a completion produced no ledger row.
type NotEligibleError struct {
	BookingID BookingID
	Reason    string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("booking %s not eligible: %s", e.BookingID, e.Reason)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// BookingConflictError is returned alongside the existing row when a booking
// is recorded again with inputs that differ from the stored row.
type BookingConflictError struct {
	BookingID BookingID
	Existing  CommissionID
	Field     string
}

func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("booking %s already recorded as %s with a different %s", e.BookingID, e.Existing, e.Field)
}

func (e *BookingConflictError) Unwrap() error { return ErrConflict }

// AssignmentConflictError is returned when a commission cannot join a period.
type AssignmentConflictError struct {
	CommissionID CommissionID
	PeriodID     PeriodID
	Reason       string
}

func (e *AssignmentConflictError) Error() string {
	return fmt.Sprintf("commission %s cannot be assigned to period %s: %s", e.CommissionID, e.PeriodID, e.Reason)
}

func (e *AssignmentConflictError) Unwrap() error { return ErrConflict }

// TransitionError is returned when a pay period operation is not allowed in
// the period's current state. It matches both ErrInvalidTransition and
// ErrConflict.
type TransitionError struct {
	PeriodID PeriodID
	Op       string
	From     PeriodStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s pay period %s: status is %s", e.Op, e.PeriodID, e.From)
}

func (e *TransitionError) Unwrap() []error { return []error{ErrInvalidTransition, ErrConflict} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrNoRuleConfigured)
}

// IsNotFound returns true if the error indicates a missing object.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true for conflicts, including invalid transitions.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
