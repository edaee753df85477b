/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the database with a small
	fleet, so the batch and status endpoints can be tried without another
	system feeding vehicles, drivers and blanks.

AVAILABLE SCENARIOS:

	winter-fleet:   One vehicle, one driver, ten blanks, 2024 holidays
	blank-shortage: Same fleet with a single blank left
	empty:          Nothing at all

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees and vehicles
 3. Issue blanks to the driver
 4. Load calendar events and stock

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "winter-fleet"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The endpoints that use the seeded data
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "winter-fleet",
		Name:        "Winter Fleet",
		Description: "One truck, one driver with ten issued blanks, 2024 production calendar",
	},
	{
		ID:          "blank-shortage",
		Name:        "Blank Shortage",
		Description: "Same fleet, but the driver holds a single blank",
	},
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "Clean database",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, h *Handler) error{
	"winter-fleet":   func(ctx context.Context, h *Handler) error { return loadFleet(ctx, h, 10) },
	"blank-shortage": func(ctx context.Context, h *Handler) error { return loadFleet(ctx, h, 1) },
	"empty":          func(context.Context, *Handler) error { return nil },
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	if err := load(ctx, h); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// LOADERS
// =============================================================================

const (
	demoDriver     waybill.EmployeeID = "drv-petrov"
	demoDispatcher waybill.EmployeeID = "disp-ivanova"
	demoVehicle    waybill.VehicleID  = "veh-kamaz-01"
)

const demoSeries = "ПЛ"

func loadFleet(ctx context.Context, h *Handler, blanks int) error {
	s := h.Store

	for _, e := range []waybill.Employee{
		{ID: demoDriver, Name: "Petrov P.", FuelCardBalance: decimal.Zero},
		{ID: demoDispatcher, Name: "Ivanova A.", FuelCardBalance: decimal.Zero},
	} {
		if err := s.PutEmployee(ctx, e); err != nil {
			return err
		}
	}

	city := decimal.NewFromInt(10)
	warming := decimal.NewFromInt(5)
	if err := s.PutVehicle(ctx, waybill.Vehicle{
		ID:    demoVehicle,
		Plate: "А001АА 77",
		Rates: fuel.Rates{
			SummerRate:             decimal.NewFromInt(30),
			WinterRate:             decimal.NewFromInt(33),
			CityIncreasePercent:    &city,
			WarmingIncreasePercent: &warming,
		},
		Mileage:     120000,
		CurrentFuel: decimal.NewFromInt(150),
	}); err != nil {
		return err
	}

	for i := 1; i <= blanks; i++ {
		if _, err := s.PutBlank(ctx, waybill.Blank{
			ID:              waybill.BlankID(fmt.Sprintf("blank-%03d", i)),
			Series:          demoSeries,
			Number:          int64(i),
			Status:          waybill.BlankIssued,
			OwnerEmployeeID: demoDriver,
		}); err != nil {
			return err
		}
	}

	if err := s.AddCalendarEvents(ctx, demoCalendar2024()...); err != nil {
		return err
	}

	if err := s.PutStockItem(ctx, waybill.StockItem{ID: "diesel", Name: "Diesel fuel", Balance: decimal.NewFromInt(5000)}); err != nil {
		return err
	}
	_, err := s.AddStockTransaction(ctx, waybill.StockTransaction{
		Type:     waybill.StockIncome,
		ItemID:   "diesel",
		Quantity: decimal.NewFromInt(5000),
		Date:     generic.MustParseDate("2024-01-09"),
	})
	return err
}

// demoCalendar2024 is the 2024 production calendar: public holidays, the
// transferred days off, and the Saturdays worked in exchange.
func demoCalendar2024() []generic.CalendarEvent {
	holiday := func(date, note string) generic.CalendarEvent {
		return generic.CalendarEvent{Date: generic.MustParseDate(date), Kind: generic.EventHoliday, Note: note}
	}
	workday := func(date string) generic.CalendarEvent {
		return generic.CalendarEvent{Date: generic.MustParseDate(date), Kind: generic.EventWorkday}
	}
	short := func(date string) generic.CalendarEvent {
		return generic.CalendarEvent{Date: generic.MustParseDate(date), Kind: generic.EventShort}
	}

	events := []generic.CalendarEvent{
		holiday("2024-02-23", "Defender of the Fatherland Day"),
		short("2024-02-22"),
		holiday("2024-03-08", "International Women's Day"),
		short("2024-03-07"),
		workday("2024-04-27"),
		holiday("2024-04-29", ""),
		holiday("2024-04-30", ""),
		holiday("2024-05-01", "Spring and Labour Day"),
		holiday("2024-05-09", "Victory Day"),
		holiday("2024-05-10", ""),
		holiday("2024-06-12", "Russia Day"),
		short("2024-06-11"),
		workday("2024-11-02"),
		holiday("2024-11-04", "Unity Day"),
		workday("2024-12-28"),
		holiday("2024-12-30", ""),
		holiday("2024-12-31", ""),
	}
	for day := 1; day <= 8; day++ {
		events = append(events, holiday(fmt.Sprintf("2024-01-%02d", day), "New Year holidays"))
	}
	return events
}
