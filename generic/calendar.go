/*
calendar.go - Working-day calendar with per-year override dictionaries

PURPOSE:
  Decides whether a date is a working day. Default rule is Mon-Fri working,
  Sat/Sun off. Organizations publish a production calendar each year that
  moves holidays and transfers weekends into working days; those arrive as
  CalendarEvent values from the calendar store.

TWO MODES PER YEAR:
  Dictionary mode (any event exists for the year):
    - exact-date event Workday  -> working (weekend transferred to a workday)
    - exact-date event Holiday  -> not working
    - exact-date event Short    -> working (shortened, still worked)
    - no event for that date    -> weekday/weekend rule
    The fallback holiday table is NOT consulted in this mode.

  Fallback mode (no events at all for the year):
    - per-year exception table entry -> its verdict
    - weekend                        -> not working
    - fixed month/day holiday table  -> not working
    - otherwise                      -> working

  The fallback table is configuration handed to NewWorkCalendar, never hidden
  package state.

WORKING WEEK:
  WorkingWeekRange(date) = Monday..Sunday week of date, clipped to date's month,
  then narrowed to its first and last working day. A range with no working
  day at all is returned clipped but not narrowed.

SEE ALSO:
  - batch/preview.go: Marks preview days as working / non-working
  - batch/engine.go: Week validity ranges
*/
package generic

import (
	"time"
)

// =============================================================================
// CALENDAR EVENTS
// =============================================================================

type EventKind string

const (
	EventHoliday EventKind = "holiday"
	EventWorkday EventKind = "workday"
	EventShort   EventKind = "short"
)

// CalendarEvent overrides the weekday rule for one date.
type CalendarEvent struct {
	Date TimePoint
	Kind EventKind
	Note string
}

// =============================================================================
// FALLBACK TABLE - Used only for years without any event
// =============================================================================

// FixedHoliday recurs on the same month/day every year.
type FixedHoliday struct {
	Month time.Month
	Day   int
	Name  string
}

// DayException forces a verdict for one date in fallback mode.
type DayException struct {
	Working bool
	Name    string
}

// FallbackTable is the legacy calendar applied when a year has no events.
type FallbackTable struct {
	// Exceptions is keyed by "YYYY-MM-DD".
	Exceptions map[string]DayException
	Holidays   []FixedHoliday
}

// DefaultFallbackTable returns the fixed public holidays and no exceptions.
func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		Exceptions: map[string]DayException{},
		Holidays: []FixedHoliday{
			{Month: time.January, Day: 1, Name: "New Year holidays"},
			{Month: time.January, Day: 2, Name: "New Year holidays"},
			{Month: time.January, Day: 3, Name: "New Year holidays"},
			{Month: time.January, Day: 4, Name: "New Year holidays"},
			{Month: time.January, Day: 5, Name: "New Year holidays"},
			{Month: time.January, Day: 6, Name: "New Year holidays"},
			{Month: time.January, Day: 7, Name: "Christmas"},
			{Month: time.January, Day: 8, Name: "New Year holidays"},
			{Month: time.February, Day: 23, Name: "Defender of the Fatherland Day"},
			{Month: time.March, Day: 8, Name: "International Women's Day"},
			{Month: time.May, Day: 1, Name: "Spring and Labour Day"},
			{Month: time.May, Day: 9, Name: "Victory Day"},
			{Month: time.June, Day: 12, Name: "Russia Day"},
			{Month: time.November, Day: 4, Name: "Unity Day"},
		},
	}
}

func (ft FallbackTable) holiday(date TimePoint) (string, bool) {
	for _, h := range ft.Holidays {
		if h.Month == date.Month() && h.Day == date.Day() {
			return h.Name, true
		}
	}
	return "", false
}

// =============================================================================
// WORK CALENDAR
// =============================================================================

// WorkCalendar answers working-day questions from injected events.
// It is immutable after construction and safe for concurrent reads.
type WorkCalendar struct {
	events   map[string]CalendarEvent
	years    map[int]bool
	fallback FallbackTable
}

// NewWorkCalendar indexes events by date. Later events for the same date win.
func NewWorkCalendar(events []CalendarEvent, fallback FallbackTable) *WorkCalendar {
	wc := &WorkCalendar{
		events:   make(map[string]CalendarEvent, len(events)),
		years:    make(map[int]bool),
		fallback: fallback,
	}
	for _, e := range events {
		wc.events[e.Date.String()] = e
		wc.years[e.Date.Year()] = true
	}
	return wc
}

// HasEvents reports whether year is in dictionary mode.
func (wc *WorkCalendar) HasEvents(year int) bool {
	return wc.years[year]
}

// IsWorkingDay reports whether trips are expected on date.
func (wc *WorkCalendar) IsWorkingDay(date TimePoint) bool {
	if wc.years[date.Year()] {
		if e, ok := wc.events[date.String()]; ok {
			switch e.Kind {
			case EventWorkday, EventShort:
				return true
			case EventHoliday:
				return false
			}
		}
		return !date.IsWeekend()
	}

	if ex, ok := wc.fallback.Exceptions[date.String()]; ok {
		return ex.Working
	}
	if date.IsWeekend() {
		return false
	}
	_, holiday := wc.fallback.holiday(date)
	return !holiday
}

// HolidayName returns a display name for a non-standard date, following the
// same precedence as IsWorkingDay. Not used by any decision logic.
func (wc *WorkCalendar) HolidayName(date TimePoint) (string, bool) {
	if wc.years[date.Year()] {
		e, ok := wc.events[date.String()]
		if !ok {
			return "", false
		}
		switch e.Kind {
		case EventHoliday:
			return nameOr(e.Note, "Holiday"), true
		case EventShort:
			return nameOr(e.Note, "Shortened working day"), true
		case EventWorkday:
			return nameOr(e.Note, "Transferred working day"), true
		}
		return "", false
	}

	if ex, ok := wc.fallback.Exceptions[date.String()]; ok && ex.Name != "" {
		return ex.Name, true
	}
	if date.IsWeekend() {
		return "", false
	}
	return wc.fallback.holiday(date)
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// WorkingWeekRange returns the working part of date's week inside date's month.
func (wc *WorkCalendar) WorkingWeekRange(date TimePoint) Period {
	clipped := WeekOf(date).Clip(MonthOf(date))

	start, end := clipped.Start, clipped.End
	for start.BeforeOrEqual(clipped.End) && !wc.IsWorkingDay(start) {
		start = start.AddDays(1)
	}
	if start.After(clipped.End) {
		return clipped
	}
	for end.After(start) && !wc.IsWorkingDay(end) {
		end = end.AddDays(-1)
	}
	return Period{Start: start, End: end}
}

// WorkingDaysIn counts working days in p.
func (wc *WorkCalendar) WorkingDaysIn(p Period) int {
	n := 0
	for _, d := range p.Days() {
		if wc.IsWorkingDay(d) {
			n++
		}
	}
	return n
}
