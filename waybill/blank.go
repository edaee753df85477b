package waybill

import (
	"time"

	"github.com/warp/waybill-engine/generic"
)

// =============================================================================
// BLANK STATE MACHINE
// =============================================================================

// available → issued, spoiled
// issued    → reserved, spoiled, available
// reserved  → used, issued, spoiled
// used      → issued, spoiled
// returned  → reserved, spoiled, available
// spoiled   → (terminal)
//
// from == to is always legal and changes nothing.
var blankTransitions = map[BlankStatus][]BlankStatus{
	BlankAvailable: {BlankIssued, BlankSpoiled},
	BlankIssued:    {BlankReserved, BlankSpoiled, BlankAvailable},
	BlankReserved:  {BlankUsed, BlankIssued, BlankSpoiled},
	BlankUsed:      {BlankIssued, BlankSpoiled},
	BlankReturned:  {BlankReserved, BlankSpoiled, BlankAvailable},
	BlankSpoiled:   {},
}

// BlankStatuses lists every blank status.
var BlankStatuses = []BlankStatus{BlankAvailable, BlankIssued, BlankReserved, BlankUsed, BlankReturned, BlankSpoiled}

// CanTransitionBlank reports whether a blank may move from -> to.
func CanTransitionBlank(from, to BlankStatus) bool {
	if _, known := blankTransitions[from]; !known {
		return false
	}
	if from == to {
		return true
	}
	for _, allowed := range blankTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateBlankTransition returns a *generic.TransitionError when the move is illegal.
func ValidateBlankTransition(from, to BlankStatus) error {
	if CanTransitionBlank(from, to) {
		return nil
	}
	reason := ""
	if from == BlankSpoiled {
		reason = "spoiled blanks are final"
	}
	return &generic.TransitionError{Entity: "blank", From: string(from), To: string(to), Reason: reason}
}

// AllowedBlankTransitions lists the statuses reachable from 'from', excluding from itself.
func AllowedBlankTransitions(from BlankStatus) []BlankStatus {
	return append([]BlankStatus(nil), blankTransitions[from]...)
}

func (s BlankStatus) IsValid() bool {
	_, ok := blankTransitions[s]
	return ok
}

// =============================================================================
// RESERVATION PATH
// =============================================================================

// ReservePath returns the blank statuses a blank walks through when a new
// draft picks it. Issued and returned blanks go straight to reserved; an
// available blank is issued to the driver first.
func ReservePath(from BlankStatus) ([]BlankStatus, error) {
	switch from {
	case BlankIssued, BlankReturned:
		return []BlankStatus{BlankReserved}, nil
	case BlankAvailable:
		return []BlankStatus{BlankIssued, BlankReserved}, nil
	}
	return nil, ValidateBlankTransition(from, BlankReserved)
}

// Apply moves b to status 'to', maintaining the reservation and usage
// references. It validates the move and leaves b untouched on error.
func (b *Blank) Apply(to BlankStatus, waybillID WaybillID, owner EmployeeID, at time.Time) error {
	if err := ValidateBlankTransition(b.Status, to); err != nil {
		return err
	}
	if b.Status == to {
		return nil
	}

	switch to {
	case BlankIssued:
		if owner != "" {
			b.OwnerEmployeeID = owner
		}
		b.ReservedByWaybillID, b.ReservedAt = "", nil
		b.UsedInWaybillID, b.UsedAt = "", nil
	case BlankReserved:
		if owner != "" && b.OwnerEmployeeID == "" {
			b.OwnerEmployeeID = owner
		}
		b.ReservedByWaybillID = waybillID
		b.ReservedAt = &at
		b.UsedInWaybillID, b.UsedAt = "", nil
	case BlankUsed:
		b.UsedInWaybillID = waybillID
		b.UsedAt = &at
		b.ReservedByWaybillID, b.ReservedAt = "", nil
	case BlankAvailable:
		b.OwnerEmployeeID = ""
		b.ReservedByWaybillID, b.ReservedAt = "", nil
		b.UsedInWaybillID, b.UsedAt = "", nil
	case BlankSpoiled, BlankReturned:
		b.ReservedByWaybillID, b.ReservedAt = "", nil
	}
	b.Status = to
	return nil
}
