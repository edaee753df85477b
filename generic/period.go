package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive range of calendar dates [Start, End].
//
// Examples:
//   - A waybill valid 2024-02-10 .. 2024-02-11
//   - The working part of a week clipped to its month
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a period and rejects ranges whose end precedes the start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Clip intersects p with other. The result may be empty (End before Start).
func (p Period) Clip(other Period) Period {
	return Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}
}

// Union returns the smallest period covering both.
func (p Period) Union(other Period) Period {
	return Period{Start: MinDate(p.Start, other.Start), End: MaxDate(p.End, other.End)}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthOf returns the calendar month containing t.
func MonthOf(t TimePoint) Period {
	return Period{Start: StartOfMonth(t.Year(), t.Month()), End: EndOfMonth(t.Year(), t.Month())}
}

// WeekOf returns the Monday..Sunday week containing t.
func WeekOf(t TimePoint) Period {
	start := t.StartOfWeek()
	return Period{Start: start, End: start.AddDays(6)}
}
