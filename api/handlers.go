/*
handlers.go - HTTP API handlers for the waybill engine

PURPOSE:
  Exposes fuel planning, batch grouping, waybill status changes, the work
  calendar and the consistency audit via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Fuel:
    POST   /api/fuel/plan                   Plan fuel for a set of segments

  Batch:
    POST   /api/batch/preview               Day-by-day preview + estimate
    POST   /api/batch/run                   Group days and create waybills

  Calendar:
    GET    /api/calendar/working-day?date=  Working day + holiday name
    GET    /api/calendar/week?date=         Working week range in the month

  Waybills:
    GET    /api/waybills/{id}               Get waybill
    POST   /api/waybills/{id}/status        Change status (both state machines)
    DELETE /api/waybills/{id}               Delete a draft, release its blank
    GET    /api/waybills/{id}/transitions   Allowed next statuses

  Audit:
    GET    /api/audit                       Run the audit now
    GET    /api/audit/last                  Last scheduled audit

REQUEST FLOW:
  1. Decode JSON body
  2. Validate with validator/v10 (field names reported by json tag)
  3. Convert DTO to domain values
  4. Call domain logic
  5. Serialize response or map the error

ERROR HANDLING:
  - 400: Malformed body, validation failures, contract violations
  - 404: Unknown waybill / vehicle / blank
  - 409: Rejected transition, insufficient blanks
  - 500: Anything else (logged)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/waybill-engine/audit"
	"github.com/warp/waybill-engine/batch"
	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/store/sqlite"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options are the engine-level settings the handlers pass down.
type Options struct {
	Season   generic.SeasonSettings
	Mode     waybill.ReviewMode
	Fallback generic.FallbackTable
	Logger   *slog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Waybills  *waybill.Service
	Batch     *batch.Service
	Auditor   *audit.Auditor
	Scheduler *AuditScheduler

	Season   generic.SeasonSettings
	Mode     waybill.ReviewMode
	Fallback generic.FallbackTable
	Logger   *slog.Logger

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services over store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := opts.Mode
	if mode == "" {
		mode = waybill.ModeDriver
	}
	store.SetSeason(opts.Season)

	waybills := waybill.NewService(store)
	return &Handler{
		Store:    store,
		Waybills: waybills,
		Batch: &batch.Service{
			Engine:   batch.NewEngine(waybills, logger),
			Calendar: store,
			Blanks:   store,
			Vehicles: store,
			Fallback: opts.Fallback,
			Season:   opts.Season,
		},
		Auditor:  &audit.Auditor{Source: store, Logger: logger},
		Season:   opts.Season,
		Mode:     mode,
		Fallback: opts.Fallback,
		Logger:   logger,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// FUEL ENDPOINTS
// =============================================================================

// PlanFuel computes distance and planned fuel for the given segments.
// POST /api/fuel/plan
func (h *Handler) PlanFuel(w http.ResponseWriter, r *http.Request) {
	var req FuelPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	baseDate, err := generic.ParseDate(req.BaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base_date", err)
		return
	}
	season := h.Season
	if req.Season != nil {
		if season, err = req.Season.toSettings(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid season settings", err)
			return
		}
	}
	for _, seg := range req.Segments {
		if err := seg.Validate(); err != nil {
			h.writeDomainError(w, "Invalid segment", err)
			return
		}
	}

	res, err := fuel.Plan(fuel.Input{
		Method:           fuel.Method(req.Method),
		Segments:         waybill.FuelSegments(req.Segments),
		Rates:            req.Rates.toRates(),
		Season:           season,
		BaseDate:         baseDate,
		OdometerDistance: req.OdometerDistance,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to plan fuel", err)
		return
	}

	writeJSON(w, http.StatusOK, toFuelPlanResponse(res))
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// PreviewBatch lays segments over the calendar without creating anything.
// POST /api/batch/preview
func (h *Handler) PreviewBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	job, err := req.toJob()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	days, cal, err := h.Batch.Preview(ctx, job)
	if err != nil {
		h.writeDomainError(w, "Failed to build preview", err)
		return
	}
	blanks, err := h.Store.GetAvailableBlanks(ctx, job.Config.DriverID)
	if err != nil {
		h.writeDomainError(w, "Failed to load blanks", err)
		return
	}

	resp := PreviewResponse{
		Days:              days,
		EstimatedWaybills: batch.EstimateGroupCount(batch.Filter(days, job.Config.CreateEmptyDays), job.Config.Granularity),
		AvailableBlanks:   len(blanks),
	}
	if resp.Days == nil {
		resp.Days = []batch.DayPreview{}
	}
	for _, d := range days {
		if len(d.Warnings) > 0 {
			resp.NonWorkingTripDays++
		}
	}

	// A dry plan that fails on input (unknown vehicle, too few blanks) still
	// leaves a useful preview; the run reports that failure.
	planned, err := h.Batch.Plan(ctx, job, days, cal)
	switch {
	case err == nil:
		for _, p := range planned {
			resp.GroupWarnings = append(resp.GroupWarnings, p.Warnings...)
		}
	case generic.IsClientError(err) || generic.IsNotFound(err):
		h.Logger.Debug("preview without dry plan", "error", err)
	default:
		h.writeDomainError(w, "Failed to plan batch", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunBatch groups the days and creates one waybill per group. A failure
// part-way through reports the waybills already created in details.
// POST /api/batch/run
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	job, err := req.toJob()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	res, err := h.Batch.Run(r.Context(), job)
	if err != nil {
		if len(res.Waybills) > 0 {
			status, code := errorStatus(err)
			writeJSON(w, status, ErrorResponse{
				Error:   "Batch stopped after a failure: " + err.Error(),
				Code:    code,
				Details: toRunResponse(res),
			})
			return
		}
		h.writeDomainError(w, "Failed to run batch", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRunResponse(res))
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

// WorkingDay answers whether trips are expected on a date.
// GET /api/calendar/working-day?date=2024-02-23
func (h *Handler) WorkingDay(w http.ResponseWriter, r *http.Request) {
	date, cal, ok := h.calendarFor(w, r)
	if !ok {
		return
	}
	name, _ := cal.HolidayName(date)
	writeJSON(w, http.StatusOK, WorkingDayResponse{
		Date:         date.String(),
		IsWorkingDay: cal.IsWorkingDay(date),
		HolidayName:  name,
		Dictionary:   cal.HasEvents(date.Year()),
	})
}

// WeekRange returns the working part of a date's week inside its month.
// GET /api/calendar/week?date=2024-02-28
func (h *Handler) WeekRange(w http.ResponseWriter, r *http.Request) {
	date, cal, ok := h.calendarFor(w, r)
	if !ok {
		return
	}
	p := cal.WorkingWeekRange(date)
	writeJSON(w, http.StatusOK, WeekRangeResponse{
		Date:        date.String(),
		Start:       p.Start.String(),
		End:         p.End.String(),
		WorkingDays: cal.WorkingDaysIn(p),
	})
}

func (h *Handler) calendarFor(w http.ResponseWriter, r *http.Request) (generic.TimePoint, *generic.WorkCalendar, bool) {
	date, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return generic.TimePoint{}, nil, false
	}
	cal, err := batch.LoadCalendar(r.Context(), h.Store, h.Fallback, generic.Period{Start: date, End: date})
	if err != nil {
		h.writeDomainError(w, "Failed to load calendar", err)
		return generic.TimePoint{}, nil, false
	}
	return date, cal, true
}

// =============================================================================
// WAYBILL ENDPOINTS
// =============================================================================

// GetWaybill returns one waybill.
// GET /api/waybills/{id}
func (h *Handler) GetWaybill(w http.ResponseWriter, r *http.Request) {
	wb, err := h.Store.GetWaybill(r.Context(), waybill.WaybillID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get waybill", err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

// ChangeStatus moves a waybill and its blank.
// POST /api/waybills/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	mode := h.Mode
	if req.Mode != "" {
		mode = waybill.ReviewMode(req.Mode)
	}

	wb, err := h.Waybills.ChangeStatus(r.Context(), waybill.WaybillID(chi.URLParam(r, "id")), waybill.Status(req.Status), mode)
	if err != nil {
		h.writeDomainError(w, "Status change rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

// DeleteWaybill removes a draft and releases its blank.
// DELETE /api/waybills/{id}
func (h *Handler) DeleteWaybill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Waybills.Delete(r.Context(), waybill.WaybillID(id)); err != nil {
		h.writeDomainError(w, "Failed to delete waybill", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// Transitions lists the statuses a waybill may move to.
// GET /api/waybills/{id}/transitions?mode=central
func (h *Handler) Transitions(w http.ResponseWriter, r *http.Request) {
	mode := h.Mode
	if q := r.URL.Query().Get("mode"); q != "" {
		parsed, err := waybill.ParseReviewMode(q)
		if err != nil {
			h.writeDomainError(w, "Invalid mode", err)
			return
		}
		mode = parsed
	}

	wb, err := h.Store.GetWaybill(r.Context(), waybill.WaybillID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get waybill", err)
		return
	}
	allowed := waybill.AllowedTransitions(wb.Status, mode)
	if allowed == nil {
		allowed = []waybill.Status{}
	}
	writeJSON(w, http.StatusOK, TransitionsResponse{
		ID:      string(wb.ID),
		Status:  wb.Status,
		Mode:    string(mode),
		Allowed: allowed,
	})
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// RunAudit audits the current data.
// GET /api/audit
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	violations, err := h.Auditor.Run(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to run audit", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(violations))
}

// LastAudit returns the report of the most recent scheduled audit.
// GET /api/audit/last
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Audit scheduler is disabled", nil)
		return
	}
	report, ok := h.Scheduler.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "No scheduled audit has completed yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func toAuditResponse(violations []audit.Violation) AuditResponse {
	if violations == nil {
		violations = []audit.Violation{}
	}
	return AuditResponse{Clean: len(violations) == 0, Violations: violations}
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: "validation", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrInsufficientBlanks):
		return http.StatusConflict, "insufficient_blanks"
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "contract_violation"
	}
	return http.StatusInternalServerError, ""
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, "error", err)
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var ib *generic.InsufficientBlanksError
	if errors.As(err, &ib) {
		resp.Details = map[string]int{"required": ib.Required, "available": ib.Available}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
