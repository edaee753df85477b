/*
errors.go - Centralized error types for the waybill engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Contract violations - malformed settings, negative distances. A caller bug;
     the operation stops immediately.
  2. Precondition failures - not enough blanks for the batch. Reported before
     anything is created, carries required vs. available counts.
  3. Invariant violations - found by the audit, always a complete list
     (see audit/errors.go).
  4. Transition rejections - a state machine refused "<from> → <to>".

USAGE:
  if errors.Is(err, generic.ErrInsufficientBlanks) {
      var ib *generic.InsufficientBlanksError
      errors.As(err, &ib)
      fmt.Printf("need %d, have %d\n", ib.Required, ib.Available)
  }

SEE ALSO:
  - season.go: Panics with ContractViolationError on malformed settings
  - batch/engine.go: Returns InsufficientBlanksError
  - waybill/lifecycle.go: Returns TransitionError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrContractViolation marks input that a correct caller never produces.
	ErrContractViolation = errors.New("contract violation")

	// ErrInsufficientBlanks is returned when a batch needs more blanks than the
	// driver has on hand. Nothing has been created when this is returned.
	ErrInsufficientBlanks = errors.New("insufficient blanks")

	// ErrInvalidTransition is returned when a state machine refuses a status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvariantViolation is returned by the audit when the snapshot is inconsistent.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrCreateFailed is returned when the waybill store rejects a draft.
	ErrCreateFailed = errors.New("waybill creation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ContractViolationError names the broken contract.
type ContractViolationError struct {
	Rule   string
	Detail string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s: %s", e.Rule, e.Detail)
}

func (e *ContractViolationError) Unwrap() error {
	return ErrContractViolation
}

// NewContractViolation formats a ContractViolationError.
func NewContractViolation(rule, format string, args ...any) *ContractViolationError {
	return &ContractViolationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// InsufficientBlanksError provides the counts the caller needs to display.
type InsufficientBlanksError struct {
	Required  int
	Available int
}

func (e *InsufficientBlanksError) Error() string {
	return fmt.Sprintf("insufficient blanks: required %d, available %d, shortfall %d",
		e.Required, e.Available, e.Required-e.Available)
}

func (e *InsufficientBlanksError) Unwrap() error {
	return ErrInsufficientBlanks
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	Entity string // "waybill" or "blank"
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Entity, FormatTransition(e.From, e.To))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// FormatTransition renders "<from> → <to>".
func FormatTransition(from, to string) string {
	return from + " → " + to
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrContractViolation) ||
		errors.Is(err, ErrInsufficientBlanks) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
