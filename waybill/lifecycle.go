/*
lifecycle.go - Waybill status state machine

PURPOSE:
  Every waybill status change passes through this table before it reaches
  persistence. Illegal changes are rejected with a "<from> → <to>" message,
  never coerced into something nearby.

STATE GRAPH:
  DRAFT      → SUBMITTED, POSTED, CANCELLED
  SUBMITTED  → POSTED, DRAFT, CANCELLED*
  POSTED     → DRAFT
  CANCELLED  → (terminal)

  * SUBMITTED → CANCELLED is legal only in central review mode. In driver
    mode the driver posts directly and a submitted waybill can only be
    posted or sent back to draft.

SEE ALSO:
  - blank.go: The blank state machine driven by these transitions
  - service.go: Applies both machines atomically
*/
package waybill

import (
	"github.com/warp/waybill-engine/generic"
)

// ReviewMode is the operating mode passed in at call time.
type ReviewMode string

const (
	ModeDriver  ReviewMode = "driver"
	ModeCentral ReviewMode = "central"
)

// ParseReviewMode accepts "driver" or "central"; empty means driver.
func ParseReviewMode(s string) (ReviewMode, error) {
	switch ReviewMode(s) {
	case "", ModeDriver:
		return ModeDriver, nil
	case ModeCentral:
		return ModeCentral, nil
	}
	return "", generic.NewContractViolation("review_mode", "unknown review mode %q", s)
}

var waybillTransitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted, StatusPosted, StatusCancelled},
	StatusSubmitted: {StatusPosted, StatusDraft, StatusCancelled},
	StatusPosted:    {StatusDraft},
	StatusCancelled: {},
}

// CanTransition reports whether a waybill may move from -> to in mode.
func CanTransition(from, to Status, mode ReviewMode) bool {
	if from == StatusSubmitted && to == StatusCancelled && mode != ModeCentral {
		return false
	}
	for _, allowed := range waybillTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *generic.TransitionError when CanTransition is false.
func ValidateTransition(from, to Status, mode ReviewMode) error {
	if CanTransition(from, to, mode) {
		return nil
	}
	reason := ""
	switch {
	case from == StatusCancelled:
		reason = "cancelled waybills are final"
	case from == StatusSubmitted && to == StatusCancelled:
		reason = "cancelling a submitted waybill requires central review mode"
	}
	return &generic.TransitionError{Entity: "waybill", From: string(from), To: string(to), Reason: reason}
}

// AllowedTransitions lists the statuses reachable from 'from' in mode.
func AllowedTransitions(from Status, mode ReviewMode) []Status {
	var out []Status
	for _, to := range waybillTransitions[from] {
		if CanTransition(from, to, mode) {
			out = append(out, to)
		}
	}
	return out
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool { return len(waybillTransitions[s]) == 0 }

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := waybillTransitions[s]
	return ok
}

// =============================================================================
// BLANK EFFECTS - How a waybill transition moves its blank
// =============================================================================

// BlankMove is a blank transition caused by a waybill transition.
type BlankMove struct {
	From BlankStatus
	To   BlankStatus
}

// BlankEffect returns the blank move caused by a waybill moving from -> to.
// ok is false when the blank is untouched.
//
//	posting             reserved → used
//	reverting to draft  used     → issued
//	cancelling          reserved → issued
func BlankEffect(from, to Status) (BlankMove, bool) {
	switch {
	case to == StatusPosted && (from == StatusDraft || from == StatusSubmitted):
		return BlankMove{From: BlankReserved, To: BlankUsed}, true
	case from == StatusPosted && to == StatusDraft:
		return BlankMove{From: BlankUsed, To: BlankIssued}, true
	case to == StatusCancelled:
		return BlankMove{From: BlankReserved, To: BlankIssued}, true
	}
	return BlankMove{}, false
}
