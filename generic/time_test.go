package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/generic"
)

func TestTimePoint_StartOfWeekIsMonday(t *testing.T) {
	assert.Equal(t, d("2024-02-26"), d("2024-03-03").StartOfWeek())
	assert.Equal(t, d("2024-02-26"), d("2024-02-26").StartOfWeek())
	assert.Equal(t, time.Monday, d("2024-02-29").StartOfWeek().Weekday())
}

func TestTimePoint_SameISOWeekAcrossMonths(t *testing.T) {
	assert.True(t, d("2024-02-29").SameISOWeek(d("2024-03-01")))
	assert.False(t, d("2024-02-29").SameMonth(d("2024-03-01")))
	assert.True(t, d("2024-12-30").SameISOWeek(d("2025-01-01")), "ISO week 1 of 2025")
}

func TestTimePoint_JSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(struct{ Date generic.TimePoint }{d("2024-02-10")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Date":"2024-02-10"}`, string(b))

	var out struct{ Date generic.TimePoint }
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, out.Date.Equal(d("2024-02-10")))
}

func TestPeriod_ClipAndLen(t *testing.T) {
	p := generic.WeekOf(d("2024-02-29")).Clip(generic.MonthOf(d("2024-02-29")))

	assert.Equal(t, 4, p.Len())
	assert.Len(t, p.Days(), 4)

	_, err := generic.NewPeriod(d("2024-02-02"), d("2024-02-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, "12.35", generic.RoundFuel(generic.MustParseDecimal("12.345")).StringFixed(2))
	assert.Equal(t, int64(101), generic.RoundKilometers(generic.MustParseDecimal("100.5")))
	assert.Equal(t, int64(100), generic.RoundKilometers(generic.MustParseDecimal("100.49")))
	assert.True(t, generic.PercentFactor(generic.MustParseDecimal("15")).Equal(generic.MustParseDecimal("1.15")))
}

func TestMustParseDecimal_PanicsOnTypo(t *testing.T) {
	// GIVEN: a literal that is not a number
	// WHEN: parsed with MustParseDecimal
	// THEN: it panics instead of quietly becoming zero

	assert.Panics(t, func() { generic.MustParseDecimal("12,5") })
	assert.True(t, generic.MustParseDecimal("12.5").Equal(decimal.NewFromFloat(12.5)))
}
