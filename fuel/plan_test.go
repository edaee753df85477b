package fuel_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func pct(s string) *decimal.Decimal { v := dec(s); return &v }

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func rates() fuel.Rates {
	return fuel.Rates{
		SummerRate:             dec("10"),
		WinterRate:             dec("12"),
		CityIncreasePercent:    pct("10"),
		WarmingIncreasePercent: pct("20"),
	}
}

func seg(km, day string, city, warming bool) fuel.Segment {
	s := fuel.Segment{DistanceKm: dec(km), City: city, Warming: warming}
	if day != "" {
		s.Date = date(day)
	}
	return s
}

var season = generic.DefaultRecurringSeason()

// =============================================================================
// AGGREGATE
// =============================================================================

func TestPlan_Aggregate_WinterScenario(t *testing.T) {
	// GIVEN: rates 10/12, one 100 km winter segment, base date in winter
	// THEN: 12.00 l planned
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodAggregate,
		Segments: []fuel.Segment{seg("100", "2024-01-15", false, false)},
		Rates:    fuel.Rates{SummerRate: dec("10"), WinterRate: dec("12")},
		Season:   season,
		BaseDate: date("2024-01-15"),
	})

	require.NoError(t, err)
	assert.Equal(t, "12.00", res.PlannedFuel.StringFixed(2))
	assert.True(t, res.EffectiveRate.Equal(dec("12")))
	assert.True(t, res.TotalDistanceKm.Equal(dec("100")))
}

func TestPlan_Aggregate_IgnoresModifiersAndSegmentDates(t *testing.T) {
	// Segment dated in winter, base date in summer: base date decides.
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodAggregate,
		Segments: []fuel.Segment{seg("50", "2024-01-15", true, true), seg("50", "", false, false)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-06-15"),
	})

	require.NoError(t, err)
	assert.Equal(t, "10.00", res.PlannedFuel.StringFixed(2))
}

func TestPlan_Aggregate_OdometerDistanceWithoutSegments(t *testing.T) {
	odo := dec("250")
	res, err := fuel.Plan(fuel.Input{
		Method:           fuel.MethodAggregate,
		Rates:            rates(),
		Season:           season,
		BaseDate:         date("2024-06-15"),
		OdometerDistance: &odo,
	})

	require.NoError(t, err)
	assert.Equal(t, "25.00", res.PlannedFuel.StringFixed(2))
	assert.True(t, res.TotalDistanceKm.Equal(odo))
}

// =============================================================================
// PER SEGMENT
// =============================================================================

func TestPlan_PerSegment_ModifiersCompound(t *testing.T) {
	// 100 km summer, city + warming: 10 * 1.1 * 1.2 = 13.2 l
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodPerSegment,
		Segments: []fuel.Segment{seg("100", "2024-06-10", true, true)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-06-10"),
	})

	require.NoError(t, err)
	assert.Equal(t, "13.20", res.PlannedFuel.StringFixed(2))
}

func TestPlan_PerSegment_EachSegmentUsesItsOwnSeason(t *testing.T) {
	// 100 km on Mar 31 (winter, 12) + 100 km on Apr 1 (summer, 10) = 22 l over 200 km
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodPerSegment,
		Segments: []fuel.Segment{seg("100", "2024-03-31", false, false), seg("100", "2024-04-01", false, false)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-03-31"),
	})

	require.NoError(t, err)
	assert.Equal(t, "22.00", res.PlannedFuel.StringFixed(2))
	assert.Equal(t, "11.00", res.EffectiveRate.StringFixed(2), "distance-weighted average")
}

func TestPlan_PerSegment_UndatedSegmentUsesBaseDate(t *testing.T) {
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodPerSegment,
		Segments: []fuel.Segment{seg("100", "", false, false)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-12-01"),
	})

	require.NoError(t, err)
	assert.Equal(t, "12.00", res.PlannedFuel.StringFixed(2))
}

// =============================================================================
// BLENDED
// =============================================================================

func TestPlan_Blended_ModifiersAdd(t *testing.T) {
	// 100 km summer, city + warming: 10 * (1 + 0.1 + 0.2) = 13.0 l
	res, err := fuel.Plan(fuel.Input{
		Method:   fuel.MethodBlended,
		Segments: []fuel.Segment{seg("100", "2024-06-10", true, true)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-06-10"),
	})

	require.NoError(t, err)
	assert.Equal(t, "13.00", res.PlannedFuel.StringFixed(2))
	assert.Equal(t, "13.00", res.EffectiveRate.StringFixed(2))
}

func TestPlan_Blended_DiffersFromPerSegment(t *testing.T) {
	in := fuel.Input{
		Segments: []fuel.Segment{seg("80", "2024-06-10", true, true), seg("40", "2024-06-11", false, false)},
		Rates:    rates(),
		Season:   season,
		BaseDate: date("2024-06-10"),
	}
	in.Method = fuel.MethodPerSegment
	perSeg, err := fuel.Plan(in)
	require.NoError(t, err)
	in.Method = fuel.MethodBlended
	blended, err := fuel.Plan(in)
	require.NoError(t, err)

	// PerSegment: 0.8*13.2 + 0.4*10 = 14.56; Blended: 0.8*13 + 0.4*10 = 14.40
	assert.Equal(t, "14.56", perSeg.PlannedFuel.StringFixed(2))
	assert.Equal(t, "14.40", blended.PlannedFuel.StringFixed(2))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestPlan_AggregateEqualsPerSegment_NoModifiersSingleSeason(t *testing.T) {
	segments := []fuel.Segment{
		seg("12.3", "2024-06-03", false, false),
		seg("45.67", "2024-06-04", false, false),
		seg("0.01", "2024-06-05", false, false),
		seg("101", "2024-06-06", false, false),
	}
	for _, method := range []fuel.Method{fuel.MethodPerSegment, fuel.MethodBlended} {
		agg, err := fuel.Plan(fuel.Input{Method: fuel.MethodAggregate, Segments: segments, Rates: rates(), Season: season, BaseDate: date("2024-06-03")})
		require.NoError(t, err)
		other, err := fuel.Plan(fuel.Input{Method: method, Segments: segments, Rates: rates(), Season: season, BaseDate: date("2024-06-03")})
		require.NoError(t, err)

		assert.True(t, agg.PlannedFuel.Equal(other.PlannedFuel), "%s: %s vs %s", method, agg.PlannedFuel, other.PlannedFuel)
	}
}

func TestPlan_EmptySegmentsIsZero(t *testing.T) {
	for _, method := range fuel.Methods {
		res, err := fuel.Plan(fuel.Input{Method: method, Rates: rates(), Season: season, BaseDate: date("2024-06-03")})

		require.NoError(t, err, method)
		assert.True(t, res.PlannedFuel.IsZero(), method)
		assert.True(t, res.TotalDistanceKm.IsZero(), method)
		assert.False(t, res.PlannedFuel.IsNegative(), method)
	}
}

func TestPlan_RoundsOnlyAtTheEnd(t *testing.T) {
	// Three 0.333 km legs at 10 l/100km: each 0.0333 l, total 0.0999 -> 0.10.
	// Rounding each leg first would give 0.09.
	segments := []fuel.Segment{seg("0.333", "", false, false), seg("0.333", "", false, false), seg("0.333", "", false, false)}
	res, err := fuel.Plan(fuel.Input{Method: fuel.MethodPerSegment, Segments: segments, Rates: rates(), BaseDate: date("2024-06-03")})

	require.NoError(t, err)
	assert.Equal(t, "0.10", res.PlannedFuel.StringFixed(2))
	assert.True(t, res.RawFuel.Equal(dec("0.0999")))
}

// =============================================================================
// CONTRACT VIOLATIONS
// =============================================================================

func TestPlan_RejectsNegativeDistance(t *testing.T) {
	_, err := fuel.Plan(fuel.Input{Method: fuel.MethodPerSegment, Segments: []fuel.Segment{seg("-1", "", false, false)}, Rates: rates()})

	assert.ErrorIs(t, err, generic.ErrContractViolation)
}

func TestPlan_RejectsUnknownMethod(t *testing.T) {
	_, err := fuel.Plan(fuel.Input{Method: "guess", Rates: rates()})
	assert.ErrorIs(t, err, generic.ErrContractViolation)

	_, err = fuel.ParseMethod("guess")
	assert.ErrorIs(t, err, generic.ErrContractViolation)
}

// =============================================================================
// SETTLEMENT AND CHECK
// =============================================================================

func TestSettle_RoundsKilometersAndFuel(t *testing.T) {
	res := fuel.Result{TotalDistanceKm: dec("100.6"), PlannedFuel: dec("12.07")}

	s := fuel.Settle(1000, dec("40"), dec("10.005"), res)

	assert.Equal(t, int64(1101), s.OdometerEnd)
	assert.Equal(t, "37.94", s.FuelAtEnd.StringFixed(2))
	assert.Equal(t, "10.01", s.FuelFilled.StringFixed(2))
}

func TestCheck_DetectsMismatch(t *testing.T) {
	in := fuel.Input{Method: fuel.MethodAggregate, Segments: []fuel.Segment{seg("100", "", false, false)}, Rates: rates(), Season: season, BaseDate: date("2024-06-03")}

	_, err := fuel.Check(in, dec("10.00"))
	assert.NoError(t, err)

	_, err = fuel.Check(in, dec("10.01"))
	var mismatch *fuel.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.ErrorIs(t, err, fuel.ErrPlanMismatch)
	assert.Equal(t, "10.00", mismatch.Computed.StringFixed(2))
}
