package batch

import (
	"context"
	"fmt"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// Job is a batch described by stored entities rather than loaded values.
type Job struct {
	Config    GroupingConfig         `json:"config"`
	Segments  []waybill.RouteSegment `json:"segments"`
	Period    *generic.Period        `json:"period,omitempty"`
	Overrides map[string]DayOverride `json:"overrides,omitempty"`
}

// Service loads the calendar, vehicle and blanks a job needs and runs it
// through the engine.
type Service struct {
	Engine   *Engine
	Calendar waybill.CalendarStore
	Blanks   waybill.BlankStore
	Vehicles waybill.VehicleStore
	Fallback generic.FallbackTable
	Season   generic.SeasonSettings
}

// LoadCalendar builds a WorkCalendar from the events of every year in span.
func LoadCalendar(ctx context.Context, store waybill.CalendarStore, fallback generic.FallbackTable, span generic.Period) (*generic.WorkCalendar, error) {
	var events []generic.CalendarEvent
	for year := span.Start.Year(); year <= span.End.Year(); year++ {
		ev, err := store.GetEvents(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("calendar events for %d: %w", year, err)
		}
		events = append(events, ev...)
	}
	return generic.NewWorkCalendar(events, fallback), nil
}

// Preview lays the job's segments over the calendar and applies overrides.
func (s *Service) Preview(ctx context.Context, job Job) ([]DayPreview, *generic.WorkCalendar, error) {
	for _, seg := range job.Segments {
		if err := seg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	span, ok := jobSpan(job)
	if !ok {
		return nil, generic.NewWorkCalendar(nil, s.Fallback), nil
	}
	cal, err := LoadCalendar(ctx, s.Calendar, s.Fallback, span)
	if err != nil {
		return nil, nil, err
	}
	days, err := BuildPreview(job.Segments, job.Period, cal)
	if err != nil {
		return nil, nil, err
	}
	return ApplyOverrides(days, job.Overrides), cal, nil
}

// Plan builds the drafts for days previewed from job without creating
// anything. The preview endpoint uses it to surface group warnings.
func (s *Service) Plan(ctx context.Context, job Job, days []DayPreview, cal *generic.WorkCalendar) ([]Planned, error) {
	req, err := s.request(ctx, job, days, cal)
	if err != nil {
		return nil, err
	}
	return s.Engine.Plan(req)
}

// Run previews the job, loads the vehicle and the driver's blanks, and runs
// the engine.
func (s *Service) Run(ctx context.Context, job Job) (Result, error) {
	days, cal, err := s.Preview(ctx, job)
	if err != nil {
		return Result{}, err
	}
	req, err := s.request(ctx, job, days, cal)
	if err != nil {
		return Result{}, err
	}
	return s.Engine.Run(ctx, req)
}

func (s *Service) request(ctx context.Context, job Job, days []DayPreview, cal *generic.WorkCalendar) (Request, error) {
	vehicle, err := s.Vehicles.GetVehicle(ctx, job.Config.VehicleID)
	if err != nil {
		return Request{}, err
	}
	blanks, err := s.Blanks.GetAvailableBlanks(ctx, job.Config.DriverID)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Config:        job.Config,
		Days:          days,
		Rates:         vehicle.Rates,
		Season:        s.Season,
		Calendar:      cal,
		OdometerStart: vehicle.Mileage,
		FuelAtStart:   vehicle.CurrentFuel,
		Blanks:        blanks,
	}, nil
}

func jobSpan(job Job) (generic.Period, bool) {
	if job.Period != nil {
		return *job.Period, true
	}
	if len(job.Segments) == 0 {
		return generic.Period{}, false
	}
	span := generic.Period{Start: job.Segments[0].Date, End: job.Segments[0].Date}
	for _, seg := range job.Segments[1:] {
		span = span.Union(generic.Period{Start: seg.Date, End: seg.Date})
	}
	return span, true
}
