/*
season.go - Winter/summer classification for fuel rate switching

PURPOSE:
  Vehicles carry two fuel rates, one for summer and one for winter. This file
  decides which season a date belongs to under the organization's settings.

SETTINGS SHAPES (exactly one is active):
  RecurringSeason: a yearly cycle, e.g. summer from Apr 1, winter from Nov 1.
  ManualSeason:    one explicit winter window, e.g. 2024-11-15 .. 2025-03-20.

RECURRING RULE:
  summerStart = (year(date), SummerMonth, SummerDay)
  winterStart = (year(date), WinterMonth, WinterDay)

  summerStart < winterStart  (usual: summer Apr, winter Nov)
      winter = date < summerStart OR date >= winterStart   (wraps the year end)
  otherwise
      winter = winterStart <= date < summerStart           (inside one year)

MALFORMED SETTINGS:
  Out-of-range months or days, or a manual window whose end precedes its
  start, are a caller bug. Validate() reports them as ContractViolationError;
  IsWinter panics with the same error.

SEE ALSO:
  - fuel/plan.go: Selects summer or winter rate per date
  - batch/grouping.go: Never lets a group straddle a season boundary
*/
package generic

import (
	"time"
)

// =============================================================================
// SEASON SETTINGS - Tagged variant
// =============================================================================

// SeasonSettings is either RecurringSeason or ManualSeason.
// A nil SeasonSettings means no season configuration: every date is summer.
type SeasonSettings interface {
	// Validate reports malformed settings as a ContractViolationError.
	Validate() error

	seasonSettings()
}

// RecurringSeason switches on the same month/day every year.
type RecurringSeason struct {
	SummerDay   int
	SummerMonth time.Month
	WinterDay   int
	WinterMonth time.Month
}

// ManualSeason is an explicit winter window; dates outside it are summer.
type ManualSeason struct {
	WinterStart TimePoint
	WinterEnd   TimePoint
}

func (RecurringSeason) seasonSettings() {}
func (ManualSeason) seasonSettings()    {}

var (
	_ SeasonSettings = RecurringSeason{}
	_ SeasonSettings = ManualSeason{}
)

// DefaultRecurringSeason is summer from April 1 and winter from November 1.
func DefaultRecurringSeason() RecurringSeason {
	return RecurringSeason{SummerDay: 1, SummerMonth: time.April, WinterDay: 1, WinterMonth: time.November}
}

func (s RecurringSeason) Validate() error {
	if err := validateMonthDay("summer", s.SummerMonth, s.SummerDay); err != nil {
		return err
	}
	return validateMonthDay("winter", s.WinterMonth, s.WinterDay)
}

func (s ManualSeason) Validate() error {
	if s.WinterStart.IsZero() || s.WinterEnd.IsZero() {
		return NewContractViolation("season_settings", "manual season requires both winter start and end")
	}
	if s.WinterEnd.Before(s.WinterStart) {
		return NewContractViolation("season_settings", "manual winter ends %s before it starts %s", s.WinterEnd, s.WinterStart)
	}
	return nil
}

func validateMonthDay(name string, month time.Month, day int) error {
	if month < time.January || month > time.December {
		return NewContractViolation("season_settings", "%s month %d out of range", name, month)
	}
	// Feb 29 is allowed; in non-leap years time.Date normalizes it to Mar 1.
	maxDay := EndOfMonth(2024, month).Day()
	if day < 1 || day > maxDay {
		return NewContractViolation("season_settings", "%s day %d out of range for %s", name, day, month)
	}
	return nil
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// IsWinter reports whether date falls into the winter season.
// Panics with *ContractViolationError when settings are malformed.
func IsWinter(date TimePoint, settings SeasonSettings) bool {
	if settings == nil {
		return false
	}
	if err := settings.Validate(); err != nil {
		panic(err)
	}

	switch s := settings.(type) {
	case ManualSeason:
		return date.AfterOrEqual(s.WinterStart) && date.BeforeOrEqual(s.WinterEnd)

	case RecurringSeason:
		summerStart := NewTimePoint(date.Year(), s.SummerMonth, s.SummerDay)
		winterStart := NewTimePoint(date.Year(), s.WinterMonth, s.WinterDay)
		if summerStart.Before(winterStart) {
			return date.Before(summerStart) || date.AfterOrEqual(winterStart)
		}
		return date.AfterOrEqual(winterStart) && date.Before(summerStart)

	default:
		panic(NewContractViolation("season_settings", "unknown settings type %T", settings))
	}
}

// Season is the display label of a classification.
type Season string

const (
	SeasonSummer Season = "summer"
	SeasonWinter Season = "winter"
)

// SeasonOf returns the Season label for date.
func SeasonOf(date TimePoint, settings SeasonSettings) Season {
	if IsWinter(date, settings) {
		return SeasonWinter
	}
	return SeasonSummer
}
