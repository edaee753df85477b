package fuel

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/generic"
)

// ErrPlanMismatch is returned by Check when a stored figure disagrees with a
// fresh computation.
var ErrPlanMismatch = errors.New("fuel plan mismatch")

// MismatchError carries both figures, rounded as stored.
type MismatchError struct {
	Method   Method
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("fuel plan mismatch (%s): stored %s, computed %s",
		e.Method, e.Stored.StringFixed(generic.FuelPlaces), e.Computed.StringFixed(generic.FuelPlaces))
}

func (e *MismatchError) Unwrap() error { return ErrPlanMismatch }

// Check recomputes the plan for in and compares it with the stored planned
// fuel. Both sides are compared after rounding to two places, exactly.
func Check(in Input, storedPlanned decimal.Decimal) (Result, error) {
	res, err := Plan(in)
	if err != nil {
		return Result{}, err
	}
	if !generic.RoundFuel(storedPlanned).Equal(res.PlannedFuel) {
		return res, &MismatchError{Method: in.Method, Stored: generic.RoundFuel(storedPlanned), Computed: res.PlannedFuel}
	}
	return res, nil
}
