/*
engine.go - Batch waybill generation

PURPOSE:
  Turns a previewed trip log into a sequence of waybill drafts and hands
  each one to the waybill store. Planning is pure; only Run does I/O.

FLOW:
  preview days ──► Filter ──► Partition ──► blank check ──► fold over groups
                                                              │
                           per group: fuel.Plan, fuel.Settle, next blank,
                           validity range, carry odometer/fuel forward

  The fold is sequential because each group starts from the odometer and
  fuel the previous group ended with. Blanks are consumed in the order the
  blank store returned them through an explicit cursor.

FAILURE SEMANTICS:
  - Fewer blanks than groups: *generic.InsufficientBlanksError before any
    draft is created.
  - Creator fails mid-batch: Run stops and returns the waybills created so
    far together with the error. Rolling those back is the caller's call.
  - Planned fuel above the fuel on board: not an error. The group carries a
    warning and the negative balance rolls into the next group.

WEEK VALIDITY:
  For week groups the validity range is the working-week range of the first
  day, shrunk from both ends to the first day's season, then widened to
  cover the group's own days.

SEE ALSO:
  - grouping.go: Split rules
  - fuel/plan.go: The three planning formulas
*/
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// CONFIG + REQUEST
// =============================================================================

// GroupingConfig is what the user picks for one batch.
type GroupingConfig struct {
	DriverID        waybill.EmployeeID     `json:"driver_id"`
	VehicleID       waybill.VehicleID      `json:"vehicle_id"`
	OrganizationID  waybill.OrganizationID `json:"organization_id"`
	DispatcherID    waybill.EmployeeID     `json:"dispatcher_id,omitempty"`
	ControllerID    waybill.EmployeeID     `json:"controller_id,omitempty"`
	CreateEmptyDays bool                   `json:"create_empty_days"`
	Granularity     Granularity            `json:"granularity"`
	FuelMethod      fuel.Method            `json:"fuel_method"`
}

// Request carries everything a plan needs. Days should already have the
// user's overrides applied.
type Request struct {
	Config   GroupingConfig
	Days     []DayPreview
	Rates    fuel.Rates
	Season   generic.SeasonSettings
	Calendar *generic.WorkCalendar

	OdometerStart int64
	FuelAtStart   decimal.Decimal

	// Blanks in allocation order.
	Blanks []waybill.BlankRef
}

// Planned is one group and the draft built from it. Warnings flag figures
// the audit would reject later, such as a negative fuel balance at the end.
type Planned struct {
	Group    Group
	Draft    waybill.Draft
	Fuel     fuel.Result
	Warnings []string
}

// Result of a run. Waybills holds what was created, even on error.
type Result struct {
	Planned  []Planned
	Waybills []waybill.Waybill
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Creator waybill.Creator
	Logger  *slog.Logger

	// Progress, when set, is called after each group with the number of
	// days consumed so far and the total.
	Progress func(done, total int)
}

func NewEngine(creator waybill.Creator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Creator: creator, Logger: logger}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Plan partitions the days and builds one draft per group. It creates
// nothing and fails with *generic.InsufficientBlanksError when there are
// fewer blanks than groups.
func (e *Engine) Plan(req Request) ([]Planned, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	days := Filter(req.Days, req.Config.CreateEmptyDays)
	for _, d := range days {
		for _, w := range d.Warnings {
			e.logger().Warn("batch day warning", "date", d.Date.String(), "warning", w)
		}
	}

	groups, err := Partition(days, req.Config.Granularity, req.Season)
	if err != nil {
		return nil, err
	}
	if len(groups) > len(req.Blanks) {
		return nil, &generic.InsufficientBlanksError{Required: len(groups), Available: len(req.Blanks)}
	}

	var (
		planned  = make([]Planned, 0, len(groups))
		odometer = req.OdometerStart
		fuelLeft = req.FuelAtStart
		cursor   = 0
	)
	for _, g := range groups {
		p, err := e.planGroup(req, g, odometer, fuelLeft, req.Blanks[cursor])
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Period(), err)
		}
		cursor++
		if p.Draft.FuelAtEnd.IsNegative() {
			p.Warnings = append(p.Warnings, fuelShortWarning(p.Draft))
			e.logger().Warn("batch group runs out of fuel",
				"from", p.Draft.ValidFrom.String(),
				"to", p.Draft.ValidTo.String(),
				"fuel_at_end", p.Draft.FuelAtEnd.String())
		}
		odometer = p.Draft.OdometerEnd
		fuelLeft = p.Draft.FuelAtEnd
		planned = append(planned, p)

		e.logger().Debug("batch group closed",
			"from", p.Draft.ValidFrom.String(),
			"to", p.Draft.ValidTo.String(),
			"days", len(g.Days),
			"distance_km", p.Fuel.TotalDistanceKm.String(),
			"fuel_planned", p.Draft.FuelPlanned.String(),
			"blank", string(p.Draft.BlankID))
	}
	return planned, nil
}

func (e *Engine) planGroup(req Request, g Group, odometer int64, fuelAtStart decimal.Decimal, blank waybill.BlankRef) (Planned, error) {
	routes := g.Routes()
	result, err := fuel.Plan(fuel.Input{
		Method:   req.Config.FuelMethod,
		Segments: waybill.FuelSegments(routes),
		Rates:    req.Rates,
		Season:   req.Season,
		BaseDate: g.First(),
	})
	if err != nil {
		return Planned{}, err
	}

	filled := g.FuelFilled()
	settled := fuel.Settle(odometer, fuelAtStart, filled, result)
	validity := g.Period()
	if req.Config.Granularity == GranularityWeek {
		validity = weekValidity(req.Calendar, req.Season, g)
	}

	draft := waybill.Draft{
		ValidFrom:         validity.Start,
		ValidTo:           validity.End,
		VehicleID:         req.Config.VehicleID,
		DriverID:          req.Config.DriverID,
		OrganizationID:    req.Config.OrganizationID,
		DispatcherID:      req.Config.DispatcherID,
		ControllerID:      req.Config.ControllerID,
		OdometerStart:     settled.OdometerStart,
		OdometerEnd:       settled.OdometerEnd,
		FuelAtStart:       settled.FuelAtStart,
		FuelAtEnd:         settled.FuelAtEnd,
		FuelPlanned:       settled.FuelPlanned,
		FuelFilled:        settled.FuelFilled,
		Routes:            routes,
		BlankID:           blank.ID,
		CalculationMethod: req.Config.FuelMethod,
	}
	return Planned{Group: g, Draft: draft, Fuel: result}, nil
}

func fuelShortWarning(d waybill.Draft) string {
	return fmt.Sprintf("fuel at end of %s is %s: planned %s exceeds %s at start plus %s filled",
		d.Period(), d.FuelAtEnd, d.FuelPlanned, d.FuelAtStart, d.FuelFilled)
}

// weekValidity computes the validity range of a week group.
func weekValidity(cal *generic.WorkCalendar, season generic.SeasonSettings, g Group) generic.Period {
	r := cal.WorkingWeekRange(g.First())
	if season != nil {
		want := generic.SeasonOf(g.First(), season)
		for r.Start.Before(r.End) && generic.SeasonOf(r.Start, season) != want {
			r.Start = r.Start.AddDays(1)
		}
		for r.End.After(r.Start) && generic.SeasonOf(r.End, season) != want {
			r.End = r.End.AddDays(-1)
		}
	}
	return r.Union(g.Period())
}

func validateRequest(req Request) error {
	if req.Config.VehicleID == "" || req.Config.DriverID == "" {
		return generic.NewContractViolation("grouping_config", "vehicle and driver are required")
	}
	if _, err := ParseGranularity(string(req.Config.Granularity)); err != nil {
		return err
	}
	if _, err := fuel.ParseMethod(string(req.Config.FuelMethod)); err != nil {
		return err
	}
	if req.Config.Granularity == GranularityWeek && req.Calendar == nil {
		return generic.NewContractViolation("grouping_config", "week grouping needs a work calendar")
	}
	if req.FuelAtStart.IsNegative() || req.OdometerStart < 0 {
		return generic.NewContractViolation("batch_start", "negative starting odometer or fuel")
	}
	return nil
}

// Run plans the batch and creates one waybill per group, in order. It stops
// at the first creation error.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	planned, err := e.Plan(req)
	if err != nil {
		return Result{}, err
	}

	total := 0
	for _, p := range planned {
		total += len(p.Group.Days)
	}

	res := Result{Planned: planned}
	done := 0
	for i, p := range planned {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		wb, err := e.Creator.CreateWaybill(ctx, p.Draft)
		if err != nil {
			e.logger().Error("batch stopped", "group", i+1, "of", len(planned), "error", err)
			return res, fmt.Errorf("group %d of %d (%s): %w", i+1, len(planned), p.Group.Period(), err)
		}
		res.Waybills = append(res.Waybills, wb)

		done += len(p.Group.Days)
		if e.Progress != nil {
			e.Progress(done, total)
		}
	}

	e.logger().Info("batch finished",
		"driver", string(req.Config.DriverID),
		"vehicle", string(req.Config.VehicleID),
		"waybills", len(res.Waybills),
		"days", total)
	return res, nil
}
