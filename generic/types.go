/*
Package generic provides the calendar and quantity primitives of the waybill engine.

PURPOSE:
  This package holds the domain-agnostic building blocks every other package
  leans on: calendar dates, periods, decimal quantities, season classification,
  the working-day calendar, and the shared error taxonomy. Nothing in here
  knows what a waybill or a blank is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantities are plain decimal.Decimal values (l, km, l/100km, %)
  - Rounding helpers: fuel is rounded to 2 places, odometer to whole km

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so that a plan computed twice agrees exactly
  2. Late rounding: Intermediate values are never rounded, only final figures
  3. Explicit inputs: No package-level mutable state

USAGE:
  dist := generic.MustParseDecimal("100")
  rate := generic.MustParseDecimal("12")
  fuel := generic.RoundFuel(dist.Div(generic.Hundred).Mul(rate))

SEE ALSO:
  - time.go: TimePoint calendar dates
  - season.go: Winter/summer classification
  - calendar.go: Working-day calendar
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// Hundred is the divisor used by every per-100-km formula.
var Hundred = decimal.NewFromInt(100)

// FuelPlaces is the number of decimal places kept on fuel figures.
const FuelPlaces = 2

// MustParseDecimal parses s and panics when it is not a number. Meant for
// literals in fixtures and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// ROUNDING - Only ever applied to final figures
// =============================================================================

// RoundFuel rounds a fuel quantity to two decimal places.
func RoundFuel(d decimal.Decimal) decimal.Decimal {
	return d.Round(FuelPlaces)
}

// RoundKilometers rounds a distance to whole kilometers.
func RoundKilometers(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// PercentFactor converts a percentage into a multiplier: 15 -> 1.15.
func PercentFactor(pct decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(pct.Div(Hundred))
}
