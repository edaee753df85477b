/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request types carry
  validator tags; handlers run them through validator/v10 before touching
  the engine, then convert them to domain values.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response bodies
  - *DTO: Nested pieces shared by both

TYPES:
  Fuel:      FuelPlanRequest, FuelPlanResponse, RatesDTO, SeasonDTO
  Batch:     BatchRequest, GroupingDTO, PreviewResponse, RunResponse
  Waybills:  StatusChangeRequest, TransitionsResponse
  Calendar:  WorkingDayResponse, WeekRangeResponse
  Audit:     AuditResponse
  Scenarios: ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/audit"
	"github.com/warp/waybill-engine/batch"
	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// FUEL
// =============================================================================

// RatesDTO is a vehicle's consumption norms on the wire.
type RatesDTO struct {
	SummerRate             decimal.Decimal  `json:"summer_rate"`
	WinterRate             decimal.Decimal  `json:"winter_rate"`
	CityIncreasePercent    *decimal.Decimal `json:"city_increase_percent,omitempty"`
	WarmingIncreasePercent *decimal.Decimal `json:"warming_increase_percent,omitempty"`
}

func (r RatesDTO) toRates() fuel.Rates {
	return fuel.Rates{
		SummerRate:             r.SummerRate,
		WinterRate:             r.WinterRate,
		CityIncreasePercent:    r.CityIncreasePercent,
		WarmingIncreasePercent: r.WarmingIncreasePercent,
	}
}

// SeasonDTO is the tagged season settings union.
type SeasonDTO struct {
	Type        string `json:"type" validate:"required,oneof=recurring manual"`
	SummerDay   int    `json:"summer_day,omitempty" validate:"required_if=Type recurring"`
	SummerMonth int    `json:"summer_month,omitempty" validate:"required_if=Type recurring"`
	WinterDay   int    `json:"winter_day,omitempty" validate:"required_if=Type recurring"`
	WinterMonth int    `json:"winter_month,omitempty" validate:"required_if=Type recurring"`
	WinterStart string `json:"winter_start,omitempty" validate:"required_if=Type manual"`
	WinterEnd   string `json:"winter_end,omitempty" validate:"required_if=Type manual"`
}

func (s SeasonDTO) toSettings() (generic.SeasonSettings, error) {
	var settings generic.SeasonSettings
	switch s.Type {
	case "manual":
		start, err := generic.ParseDate(s.WinterStart)
		if err != nil {
			return nil, err
		}
		end, err := generic.ParseDate(s.WinterEnd)
		if err != nil {
			return nil, err
		}
		settings = generic.ManualSeason{WinterStart: start, WinterEnd: end}
	default:
		settings = generic.RecurringSeason{
			SummerDay:   s.SummerDay,
			SummerMonth: time.Month(s.SummerMonth),
			WinterDay:   s.WinterDay,
			WinterMonth: time.Month(s.WinterMonth),
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// FuelPlanRequest asks for one fuel plan. Season defaults to the server's.
type FuelPlanRequest struct {
	Method           string                 `json:"method" validate:"required,oneof=aggregate per_segment blended"`
	Segments         []waybill.RouteSegment `json:"segments"`
	Rates            RatesDTO               `json:"rates"`
	Season           *SeasonDTO             `json:"season,omitempty"`
	BaseDate         string                 `json:"base_date" validate:"required,datetime=2006-01-02"`
	OdometerDistance *decimal.Decimal       `json:"odometer_distance,omitempty"`
}

// FuelPlanResponse is a fuel.Result with fuel figures fixed to two places.
type FuelPlanResponse struct {
	Method          string          `json:"method"`
	TotalDistanceKm decimal.Decimal `json:"total_distance_km"`
	PlannedFuel     string          `json:"planned_fuel"`
	EffectiveRate   string          `json:"effective_rate"`
}

func toFuelPlanResponse(r fuel.Result) FuelPlanResponse {
	return FuelPlanResponse{
		Method:          string(r.Method),
		TotalDistanceKm: r.TotalDistanceKm,
		PlannedFuel:     r.PlannedFuel.StringFixed(generic.FuelPlaces),
		EffectiveRate:   r.EffectiveRate.StringFixed(generic.FuelPlaces),
	}
}

// =============================================================================
// BATCH
// =============================================================================

// GroupingDTO is batch.GroupingConfig with validation rules.
type GroupingDTO struct {
	DriverID        string `json:"driver_id" validate:"required"`
	VehicleID       string `json:"vehicle_id" validate:"required"`
	OrganizationID  string `json:"organization_id"`
	DispatcherID    string `json:"dispatcher_id,omitempty"`
	ControllerID    string `json:"controller_id,omitempty"`
	CreateEmptyDays bool   `json:"create_empty_days"`
	Granularity     string `json:"granularity" validate:"required,oneof=day two_days week month"`
	FuelMethod      string `json:"fuel_method" validate:"required,oneof=aggregate per_segment blended"`
}

func (g GroupingDTO) toConfig() batch.GroupingConfig {
	return batch.GroupingConfig{
		DriverID:        waybill.EmployeeID(g.DriverID),
		VehicleID:       waybill.VehicleID(g.VehicleID),
		OrganizationID:  waybill.OrganizationID(g.OrganizationID),
		DispatcherID:    waybill.EmployeeID(g.DispatcherID),
		ControllerID:    waybill.EmployeeID(g.ControllerID),
		CreateEmptyDays: g.CreateEmptyDays,
		Granularity:     batch.Granularity(g.Granularity),
		FuelMethod:      fuel.Method(g.FuelMethod),
	}
}

// BatchRequest drives both preview and run. PeriodStart/PeriodEnd are
// optional and go together.
type BatchRequest struct {
	Config      GroupingDTO                  `json:"config"`
	Segments    []waybill.RouteSegment       `json:"segments"`
	PeriodStart string                       `json:"period_start,omitempty" validate:"required_with=PeriodEnd"`
	PeriodEnd   string                       `json:"period_end,omitempty" validate:"required_with=PeriodStart"`
	Overrides   map[string]batch.DayOverride `json:"overrides,omitempty" validate:"omitempty,dive,keys,datetime=2006-01-02,endkeys"`
}

func (r BatchRequest) toJob() (batch.Job, error) {
	job := batch.Job{
		Config:    r.Config.toConfig(),
		Segments:  r.Segments,
		Overrides: r.Overrides,
	}
	if r.PeriodStart != "" {
		start, err := generic.ParseDate(r.PeriodStart)
		if err != nil {
			return job, err
		}
		end, err := generic.ParseDate(r.PeriodEnd)
		if err != nil {
			return job, err
		}
		p, err := generic.NewPeriod(start, end)
		if err != nil {
			return job, err
		}
		job.Period = &p
	}
	return job, nil
}

// PreviewResponse is the day list plus the simplified group estimate.
type PreviewResponse struct {
	Days               []batch.DayPreview `json:"days"`
	EstimatedWaybills  int                `json:"estimated_waybills"`
	AvailableBlanks    int                `json:"available_blanks"`
	NonWorkingTripDays int                `json:"non_working_trip_days"`
	GroupWarnings      []string           `json:"group_warnings,omitempty"`
}

// PlannedDTO summarises one created waybill.
type PlannedDTO struct {
	WaybillID   string          `json:"waybill_id"`
	ValidFrom   string          `json:"valid_from"`
	ValidTo     string          `json:"valid_to"`
	Days        int             `json:"days"`
	DistanceKm  decimal.Decimal `json:"distance_km"`
	PlannedFuel string          `json:"planned_fuel"`
	BlankID     string          `json:"blank_id"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// RunResponse lists what a batch created.
type RunResponse struct {
	Created  int          `json:"created"`
	Planned  int          `json:"planned"`
	Waybills []PlannedDTO `json:"waybills"`
}

func toRunResponse(res batch.Result) RunResponse {
	out := RunResponse{
		Created:  len(res.Waybills),
		Planned:  len(res.Planned),
		Waybills: make([]PlannedDTO, 0, len(res.Waybills)),
	}
	for i, wb := range res.Waybills {
		p := res.Planned[i]
		out.Waybills = append(out.Waybills, PlannedDTO{
			WaybillID:   string(wb.ID),
			ValidFrom:   wb.ValidFrom.String(),
			ValidTo:     wb.ValidTo.String(),
			Days:        len(p.Group.Days),
			DistanceKm:  p.Fuel.TotalDistanceKm,
			PlannedFuel: p.Fuel.PlannedFuel.StringFixed(generic.FuelPlaces),
			BlankID:     string(wb.BlankID),
			Warnings:    p.Warnings,
		})
	}
	return out
}

// =============================================================================
// WAYBILLS
// =============================================================================

// StatusChangeRequest moves a waybill. Mode defaults to the server's.
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT SUBMITTED POSTED CANCELLED"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=driver central"`
}

// TransitionsResponse lists where a waybill can go next.
type TransitionsResponse struct {
	ID      string           `json:"id"`
	Status  waybill.Status   `json:"status"`
	Mode    string           `json:"mode"`
	Allowed []waybill.Status `json:"allowed"`
}

// =============================================================================
// CALENDAR
// =============================================================================

type WorkingDayResponse struct {
	Date         string `json:"date"`
	IsWorkingDay bool   `json:"is_working_day"`
	HolidayName  string `json:"holiday_name,omitempty"`
	Dictionary   bool   `json:"dictionary"`
}

type WeekRangeResponse struct {
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	WorkingDays int    `json:"working_days"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditResponse struct {
	Clean      bool              `json:"clean"`
	Violations []audit.Violation `json:"violations"`
	CheckedAt  string            `json:"checked_at,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
