/*
plan.go - Planned fuel consumption under three accounting methods

PURPOSE:
  Given the route segments of one waybill period and the vehicle's rates,
  compute total distance and planned fuel. The same function runs when the
  waybill is drafted and again in the audit check pass, so it must be a pure
  function of its input with no hidden caching.

FORMULAS (rate in l/100km, d = distance):
  Aggregate:
    rate = winter/summer by isWinter(baseDate)
    fuel = totalD / 100 * rate

  PerSegment:
    rate_i = winter/summer by date_i (baseDate if missing)
             * (1 + city%/100)     if city
             * (1 + warming%/100)  if warming        (compounded)
    fuel   = Σ d_i / 100 * rate_i
    effectiveRate = fuel / (totalD / 100)

  Blended:
    coeff_i = 1 + city%/100*[city] + warming%/100*[warming]   (summed)
    raw_i   = d_i / 100 * baseRate_i * coeff_i
    avgRate = Σ raw_i / (Σ d_i / 100)
    fuel    = totalD / 100 * avgRate

  PerSegment compounds modifiers, Blended adds them. Both behaviours are
  relied on by existing figures and must not be unified.

ROUNDING:
  Only PlannedFuel is rounded (2 places), only at the very end.

SEE ALSO:
  - check.go: Recomputes a plan and compares it to a stored figure
  - batch/engine.go: One plan per waybill group
*/
package fuel

import (
	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/generic"
)

// Plan computes distance and planned fuel for in.
func Plan(in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	totalDistance := decimal.Zero
	for _, s := range in.Segments {
		totalDistance = totalDistance.Add(s.DistanceKm)
	}

	var raw, rate decimal.Decimal
	switch in.Method {
	case MethodAggregate:
		if len(in.Segments) == 0 && in.OdometerDistance != nil {
			totalDistance = *in.OdometerDistance
		}
		rate = in.Rates.RateFor(in.BaseDate, in.Season)
		raw = totalDistance.Div(generic.Hundred).Mul(rate)

	case MethodPerSegment:
		raw = perSegment(in)
		rate = averageRate(raw, totalDistance)

	case MethodBlended:
		rate = averageRate(blendedRaw(in), totalDistance)
		raw = totalDistance.Div(generic.Hundred).Mul(rate)
	}

	return Result{
		TotalDistanceKm: totalDistance,
		PlannedFuel:     generic.RoundFuel(raw),
		RawFuel:         raw,
		EffectiveRate:   rate,
		Method:          in.Method,
	}, nil
}

func validate(in Input) error {
	switch in.Method {
	case MethodAggregate, MethodPerSegment, MethodBlended:
	default:
		return generic.NewContractViolation("fuel_method", "unknown method %q", in.Method)
	}
	if err := in.Rates.Validate(); err != nil {
		return err
	}
	if in.Season != nil {
		if err := in.Season.Validate(); err != nil {
			return err
		}
	}
	for i, s := range in.Segments {
		if s.DistanceKm.IsNegative() {
			return generic.NewContractViolation("segment_distance", "segment %d has negative distance %s", i, s.DistanceKm)
		}
	}
	if in.OdometerDistance != nil && in.OdometerDistance.IsNegative() {
		return generic.NewContractViolation("odometer_distance", "negative odometer distance %s", *in.OdometerDistance)
	}
	return nil
}

func segmentDate(s Segment, base generic.TimePoint) generic.TimePoint {
	if s.Date.IsZero() {
		return base
	}
	return s.Date
}

func perSegment(in Input) decimal.Decimal {
	cityFactor := generic.PercentFactor(in.Rates.cityPercent())
	warmingFactor := generic.PercentFactor(in.Rates.warmingPercent())

	total := decimal.Zero
	for _, s := range in.Segments {
		rate := in.Rates.RateFor(segmentDate(s, in.BaseDate), in.Season)
		if s.City {
			rate = rate.Mul(cityFactor)
		}
		if s.Warming {
			rate = rate.Mul(warmingFactor)
		}
		total = total.Add(s.DistanceKm.Div(generic.Hundred).Mul(rate))
	}
	return total
}

func blendedRaw(in Input) decimal.Decimal {
	cityPart := in.Rates.cityPercent().Div(generic.Hundred)
	warmingPart := in.Rates.warmingPercent().Div(generic.Hundred)

	total := decimal.Zero
	for _, s := range in.Segments {
		coeff := decimal.NewFromInt(1)
		if s.City {
			coeff = coeff.Add(cityPart)
		}
		if s.Warming {
			coeff = coeff.Add(warmingPart)
		}
		base := in.Rates.RateFor(segmentDate(s, in.BaseDate), in.Season)
		total = total.Add(s.DistanceKm.Div(generic.Hundred).Mul(base).Mul(coeff))
	}
	return total
}

// averageRate is fuel per 100 km, zero when nothing was driven.
func averageRate(fuel, distance decimal.Decimal) decimal.Decimal {
	if distance.IsZero() {
		return decimal.Zero
	}
	return fuel.Div(distance.Div(generic.Hundred))
}

// =============================================================================
// SETTLEMENT - Figures carried onto the waybill
// =============================================================================

// Settlement is the odometer and fuel state at the end of a period.
type Settlement struct {
	OdometerStart int64
	OdometerEnd   int64
	FuelAtStart   decimal.Decimal
	FuelFilled    decimal.Decimal
	FuelPlanned   decimal.Decimal
	FuelAtEnd     decimal.Decimal
}

// Settle derives end-of-period odometer and fuel. Kilometers are rounded to
// whole numbers, fuel to two places.
func Settle(odometerStart int64, fuelAtStart, fuelFilled decimal.Decimal, r Result) Settlement {
	return Settlement{
		OdometerStart: odometerStart,
		OdometerEnd:   odometerStart + generic.RoundKilometers(r.TotalDistanceKm),
		FuelAtStart:   generic.RoundFuel(fuelAtStart),
		FuelFilled:    generic.RoundFuel(fuelFilled),
		FuelPlanned:   r.PlannedFuel,
		FuelAtEnd:     generic.RoundFuel(fuelAtStart.Add(fuelFilled).Sub(r.PlannedFuel)),
	}
}
