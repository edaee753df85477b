// Package fuel computes total distance and planned fuel consumption for a set
// of route segments under one of three accounting methods.
package fuel

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/generic"
)

// =============================================================================
// METHOD
// =============================================================================

// Method selects the planning formula.
type Method string

const (
	// MethodAggregate applies one seasonal rate, chosen by the base date, to the
	// group's total distance. Segment modifiers are ignored.
	MethodAggregate Method = "aggregate"

	// MethodPerSegment rates every segment by its own date and compounds the
	// city and warming modifiers multiplicatively.
	MethodPerSegment Method = "per_segment"

	// MethodBlended sums modifier percentages per segment, derives an average
	// rate, and applies it to the total distance.
	MethodBlended Method = "blended"
)

// Methods lists every supported method.
var Methods = []Method{MethodAggregate, MethodPerSegment, MethodBlended}

// ParseMethod accepts the wire name of a method.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", generic.NewContractViolation("fuel_method", "unknown method %q", s)
}

// =============================================================================
// RATES
// =============================================================================

// Rates are a vehicle's consumption norms in liters per 100 km.
type Rates struct {
	SummerRate decimal.Decimal
	WinterRate decimal.Decimal

	// Optional modifiers in percent; nil means "not configured" (treated as 0).
	CityIncreasePercent    *decimal.Decimal
	WarmingIncreasePercent *decimal.Decimal
}

// RateFor returns the seasonal base rate for date.
func (r Rates) RateFor(date generic.TimePoint, season generic.SeasonSettings) decimal.Decimal {
	if generic.IsWinter(date, season) {
		return r.WinterRate
	}
	return r.SummerRate
}

func (r Rates) cityPercent() decimal.Decimal    { return orZero(r.CityIncreasePercent) }
func (r Rates) warmingPercent() decimal.Decimal { return orZero(r.WarmingIncreasePercent) }

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Validate rejects negative rates and modifiers.
func (r Rates) Validate() error {
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"summer rate", r.SummerRate},
		{"winter rate", r.WinterRate},
		{"city increase", r.cityPercent()},
		{"warming increase", r.warmingPercent()},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return generic.NewContractViolation("fuel_rates", "%s is negative: %s", c.name, c.value)
		}
	}
	return nil
}

// =============================================================================
// SEGMENT / INPUT / RESULT
// =============================================================================

// Segment is the slice of a route leg that matters to fuel planning.
type Segment struct {
	DistanceKm decimal.Decimal
	// Date is the trip date; zero means "use the plan's base date".
	Date    generic.TimePoint
	City    bool
	Warming bool
}

// Input is everything one plan needs. Callers supply it wholesale.
type Input struct {
	Method   Method
	Segments []Segment
	Rates    Rates
	Season   generic.SeasonSettings
	BaseDate generic.TimePoint

	// OdometerDistance is used by MethodAggregate when there are no segments,
	// i.e. the distance comes from the odometer delta alone.
	OdometerDistance *decimal.Decimal
}

// Result is the outcome of a plan.
type Result struct {
	TotalDistanceKm decimal.Decimal
	// PlannedFuel is rounded to two places; RawFuel is the unrounded figure.
	PlannedFuel   decimal.Decimal
	RawFuel       decimal.Decimal
	EffectiveRate decimal.Decimal
	Method        Method
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %s km, %s l @ %s l/100km",
		r.Method, r.TotalDistanceKm, r.PlannedFuel.StringFixed(generic.FuelPlaces), r.EffectiveRate.StringFixed(generic.FuelPlaces))
}
