package batch

import (
	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// GRANULARITY
// =============================================================================

type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityTwoDays Granularity = "two_days"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
)

var Granularities = []Granularity{GranularityDay, GranularityTwoDays, GranularityWeek, GranularityMonth}

func ParseGranularity(s string) (Granularity, error) {
	for _, g := range Granularities {
		if string(g) == s {
			return g, nil
		}
	}
	return "", generic.NewContractViolation("granularity", "unknown grouping granularity %q", s)
}

// twoDaysMaxGapHours is the largest distance from a group's first day that
// still joins a two-day group.
const twoDaysMaxGapHours = 36

// =============================================================================
// GROUP
// =============================================================================

// Group is a run of days that becomes one waybill.
type Group struct {
	Days []DayPreview
}

func (g Group) First() generic.TimePoint { return g.Days[0].Date }
func (g Group) Last() generic.TimePoint  { return g.Days[len(g.Days)-1].Date }

// Period spans the first to the last day of the group.
func (g Group) Period() generic.Period {
	return generic.Period{Start: g.First(), End: g.Last()}
}

// Routes concatenates the segments of every day in date order.
func (g Group) Routes() []waybill.RouteSegment {
	var out []waybill.RouteSegment
	for _, d := range g.Days {
		out = append(out, d.Segments...)
	}
	return out
}

// FuelFilled sums the fuel filled over the group's days.
func (g Group) FuelFilled() decimal.Decimal {
	total := decimal.Zero
	for _, d := range g.Days {
		total = total.Add(d.FuelFilled)
	}
	return total
}

// =============================================================================
// FILTER + PARTITION
// =============================================================================

// Filter keeps working days and, unless createEmptyDays is set, only those
// with trips. The result is sorted by date.
func Filter(days []DayPreview, createEmptyDays bool) []DayPreview {
	var out []DayPreview
	for _, d := range sortDays(days) {
		if !d.IsWorkingDay {
			continue
		}
		if !createEmptyDays && !d.HasTrips() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Partition walks days in date order and starts a new group when, in order:
//
//	a. the month differs from the group's first day
//	b. the year differs from the group's first day
//	c. the season differs from the previous day in the group
//	d. the granularity says so
//
// With season nil rule c never fires.
func Partition(days []DayPreview, gran Granularity, season generic.SeasonSettings) ([]Group, error) {
	if _, err := ParseGranularity(string(gran)); err != nil {
		return nil, err
	}
	if season != nil {
		if err := season.Validate(); err != nil {
			return nil, err
		}
	}

	var groups []Group
	var current []DayPreview
	for _, day := range sortDays(days) {
		if len(current) > 0 && splitBefore(current, day, gran, season) {
			groups = append(groups, Group{Days: current})
			current = nil
		}
		current = append(current, day)
	}
	if len(current) > 0 {
		groups = append(groups, Group{Days: current})
	}
	return groups, nil
}

func splitBefore(current []DayPreview, day DayPreview, gran Granularity, season generic.SeasonSettings) bool {
	first := current[0].Date
	prev := current[len(current)-1].Date

	if day.Date.Month() != first.Month() {
		return true
	}
	if day.Date.Year() != first.Year() {
		return true
	}
	if season != nil && generic.IsWinter(day.Date, season) != generic.IsWinter(prev, season) {
		return true
	}

	switch gran {
	case GranularityDay:
		return true
	case GranularityTwoDays:
		return len(current) >= 2 || generic.HoursBetween(first, day.Date) > twoDaysMaxGapHours
	case GranularityWeek:
		return !day.Date.SameISOWeek(first)
	}
	return false
}

// EstimateGroupCount is the quick pre-pass used for display before a run: it
// applies the month, year and granularity rules but not the season rule, so
// the real partition can only produce as many groups or more.
func EstimateGroupCount(days []DayPreview, gran Granularity) int {
	groups, err := Partition(days, gran, nil)
	if err != nil {
		return 0
	}
	return len(groups)
}
