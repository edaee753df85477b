/*
preview.go - Trip log to calendar days

PURPOSE:
  Spreads raw route segments over the calendar. Every day between the first
  and last trip (or inside an explicit period) gets a DayPreview, including
  days with no trips, so the user can see and override what the grouping
  will work with.

WORKING DAY RULE:
  isWorkingDay = calendar says working OR the day has trips

  A day with trips is always treated as working. When the calendar disagrees
  a warning is attached so the user notices the trip on a holiday.

OVERRIDES:
  Between preview and grouping the user may flip isWorkingDay or enter the
  fuel filled on a day. Overrides are keyed by date ("YYYY-MM-DD").

SEE ALSO:
  - grouping.go: Filters and partitions the preview
  - generic/calendar.go: The working-day rule
*/
package batch

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// DayPreview is one calendar day of the batch.
type DayPreview struct {
	Date            generic.TimePoint      `json:"date"`
	IsWorkingDay    bool                   `json:"is_working_day"`
	HolidayName     string                 `json:"holiday_name,omitempty"`
	Segments        []waybill.RouteSegment `json:"segments"`
	TotalDistanceKm decimal.Decimal        `json:"total_distance_km"`
	Warnings        []string               `json:"warnings,omitempty"`
	FuelFilled      decimal.Decimal        `json:"fuel_filled"`
}

// HasTrips reports whether any segment falls on the day.
func (d DayPreview) HasTrips() bool { return len(d.Segments) > 0 }

// DayOverride is a user correction applied to one preview day.
// Nil fields leave the computed value alone.
type DayOverride struct {
	IsWorkingDay *bool            `json:"is_working_day,omitempty"`
	FuelFilled   *decimal.Decimal `json:"fuel_filled,omitempty"`
}

// BuildPreview lays segments out day by day. With period nil the range runs
// from the earliest to the latest segment date; segments outside an explicit
// period are left out. Segments keep their input order within a day.
func BuildPreview(segments []waybill.RouteSegment, period *generic.Period, cal *generic.WorkCalendar) ([]DayPreview, error) {
	for _, s := range segments {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	var span generic.Period
	switch {
	case period != nil:
		if period.End.Before(period.Start) {
			return nil, fmt.Errorf("%w: %s", generic.ErrInvalidPeriod, period)
		}
		span = *period
	case len(segments) == 0:
		return nil, nil
	default:
		span = generic.Period{Start: segments[0].Date, End: segments[0].Date}
		for _, s := range segments[1:] {
			span = span.Union(generic.Period{Start: s.Date, End: s.Date})
		}
	}

	byDate := make(map[string][]waybill.RouteSegment)
	for _, s := range segments {
		if span.Contains(s.Date) {
			byDate[s.Date.String()] = append(byDate[s.Date.String()], s)
		}
	}

	days := make([]DayPreview, 0, span.Len())
	for _, date := range span.Days() {
		day := DayPreview{
			Date:            date,
			Segments:        byDate[date.String()],
			TotalDistanceKm: decimal.Zero,
			FuelFilled:      decimal.Zero,
		}
		for _, s := range day.Segments {
			day.TotalDistanceKm = day.TotalDistanceKm.Add(s.DistanceKm)
		}

		calendarWorking := cal.IsWorkingDay(date)
		day.IsWorkingDay = calendarWorking || day.HasTrips()
		if name, ok := cal.HolidayName(date); ok {
			day.HolidayName = name
		}
		if day.HasTrips() && !calendarWorking {
			day.Warnings = append(day.Warnings, nonWorkingWarning(day))
		}
		days = append(days, day)
	}
	return days, nil
}

func nonWorkingWarning(day DayPreview) string {
	if day.HolidayName != "" {
		return fmt.Sprintf("%d trip(s) on non-working day %s (%s)", len(day.Segments), day.Date, day.HolidayName)
	}
	return fmt.Sprintf("%d trip(s) on non-working day %s", len(day.Segments), day.Date)
}

// ApplyOverrides returns a copy of days with user corrections applied.
// Overrides for dates outside the preview are ignored.
func ApplyOverrides(days []DayPreview, overrides map[string]DayOverride) []DayPreview {
	out := make([]DayPreview, len(days))
	copy(out, days)
	for i := range out {
		o, ok := overrides[out[i].Date.String()]
		if !ok {
			continue
		}
		if o.IsWorkingDay != nil {
			out[i].IsWorkingDay = *o.IsWorkingDay
		}
		if o.FuelFilled != nil {
			out[i].FuelFilled = *o.FuelFilled
		}
	}
	return out
}

func sortDays(days []DayPreview) []DayPreview {
	out := make([]DayPreview, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
