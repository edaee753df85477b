// Package waybill holds the waybill and blank domain model, the two status
// state machines, and the ports to the stores that persist them.
package waybill

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WaybillID string
type BlankID string
type VehicleID string
type EmployeeID string
type OrganizationID string
type StockItemID string

// =============================================================================
// ROUTE SEGMENT - One leg of the trip log, produced by the route importer
// =============================================================================

// RouteSegment is immutable once ingested.
type RouteSegment struct {
	From          string            `json:"from"`
	To            string            `json:"to"`
	DistanceKm    decimal.Decimal   `json:"distance_km"`
	Date          generic.TimePoint `json:"date"`
	DepartureTime string            `json:"departure_time,omitempty"`
	ArrivalTime   string            `json:"arrival_time,omitempty"`
	City          bool              `json:"city,omitempty"`
	Warming       bool              `json:"warming,omitempty"`
}

// Validate checks the importer contract: a date and a non-negative distance.
func (s RouteSegment) Validate() error {
	if s.Date.IsZero() {
		return generic.NewContractViolation("segment_date", "segment %s → %s has no date", s.From, s.To)
	}
	if s.DistanceKm.IsNegative() {
		return generic.NewContractViolation("segment_distance", "segment %s → %s on %s has negative distance %s",
			s.From, s.To, s.Date, s.DistanceKm)
	}
	return nil
}

// FuelSegment is the view of s that fuel planning needs.
func (s RouteSegment) FuelSegment() fuel.Segment {
	return fuel.Segment{DistanceKm: s.DistanceKm, Date: s.Date, City: s.City, Warming: s.Warming}
}

// FuelSegments converts a route list for fuel.Plan.
func FuelSegments(routes []RouteSegment) []fuel.Segment {
	out := make([]fuel.Segment, len(routes))
	for i, r := range routes {
		out[i] = r.FuelSegment()
	}
	return out
}

// =============================================================================
// WAYBILL
// =============================================================================

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// Draft is the creation payload. A created waybill starts in StatusDraft.
type Draft struct {
	ValidFrom      generic.TimePoint `json:"valid_from"`
	ValidTo        generic.TimePoint `json:"valid_to"`
	VehicleID      VehicleID         `json:"vehicle_id"`
	DriverID       EmployeeID        `json:"driver_id"`
	OrganizationID OrganizationID    `json:"organization_id"`
	DispatcherID   EmployeeID        `json:"dispatcher_id,omitempty"`
	ControllerID   EmployeeID        `json:"controller_id,omitempty"`

	OdometerStart int64 `json:"odometer_start"`
	OdometerEnd   int64 `json:"odometer_end"`

	FuelAtStart decimal.Decimal `json:"fuel_at_start"`
	FuelAtEnd   decimal.Decimal `json:"fuel_at_end"`
	FuelPlanned decimal.Decimal `json:"fuel_planned"`
	FuelFilled  decimal.Decimal `json:"fuel_filled"`

	Routes            []RouteSegment `json:"routes"`
	BlankID           BlankID        `json:"blank_id,omitempty"`
	CalculationMethod fuel.Method    `json:"calculation_method"`
}

// Period returns the validity range of the draft.
func (d Draft) Period() generic.Period {
	return generic.Period{Start: d.ValidFrom, End: d.ValidTo}
}

// Consumption is fuelAtStart + fuelFilled - fuelAtEnd.
func (d Draft) Consumption() decimal.Decimal {
	return d.FuelAtStart.Add(d.FuelFilled).Sub(d.FuelAtEnd)
}

// Waybill is a persisted draft with identity and status.
type Waybill struct {
	ID     WaybillID `json:"id"`
	Status Status    `json:"status"`
	Draft
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// BLANK - Serial-numbered paper form
// =============================================================================

type BlankStatus string

const (
	BlankAvailable BlankStatus = "available"
	BlankIssued    BlankStatus = "issued"
	BlankReserved  BlankStatus = "reserved"
	BlankUsed      BlankStatus = "used"
	BlankReturned  BlankStatus = "returned"
	BlankSpoiled   BlankStatus = "spoiled"
)

type Blank struct {
	ID                  BlankID     `json:"id"`
	Series              string      `json:"series"`
	Number              int64       `json:"number"`
	Status              BlankStatus `json:"status"`
	OwnerEmployeeID     EmployeeID  `json:"owner_employee_id,omitempty"`
	ReservedByWaybillID WaybillID   `json:"reserved_by_waybill_id,omitempty"`
	UsedInWaybillID     WaybillID   `json:"used_in_waybill_id,omitempty"`
	ReservedAt          *time.Time  `json:"reserved_at,omitempty"`
	UsedAt              *time.Time  `json:"used_at,omitempty"`
}

// BlankRef is what the blank store hands out for allocation.
type BlankRef struct {
	ID     BlankID `json:"id"`
	Series string  `json:"series"`
	Number int64   `json:"number"`
}

func (b Blank) Ref() BlankRef { return BlankRef{ID: b.ID, Series: b.Series, Number: b.Number} }

// =============================================================================
// REFERENCE DATA - Read-only to this engine
// =============================================================================

type Vehicle struct {
	ID          VehicleID       `json:"id"`
	Plate       string          `json:"plate"`
	Rates       fuel.Rates      `json:"-"`
	Mileage     int64           `json:"mileage"`
	CurrentFuel decimal.Decimal `json:"current_fuel"`
}

type Employee struct {
	ID              EmployeeID      `json:"id"`
	Name            string          `json:"name"`
	FuelCardBalance decimal.Decimal `json:"fuel_card_balance"`
}

// =============================================================================
// STOCK - Fuel warehouse items and their movements
// =============================================================================

type StockItem struct {
	ID      StockItemID     `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type StockTxType string

const (
	StockIncome  StockTxType = "income"
	StockExpense StockTxType = "expense"
)

type ExpenseReason string

const (
	// ExpenseWaybill writes off fuel consumed on a posted waybill. Its presence
	// anywhere marks a deployment that does stock-based fuel accounting.
	ExpenseWaybill ExpenseReason = "waybill"
	// ExpenseFuelCard moves fuel from stock onto an employee's fuel card.
	ExpenseFuelCard ExpenseReason = "fuel_card"
	ExpenseOther    ExpenseReason = "other"
)

type StockTransaction struct {
	ID            string            `json:"id"`
	Type          StockTxType       `json:"type"`
	ExpenseReason ExpenseReason     `json:"expense_reason,omitempty"`
	ItemID        StockItemID       `json:"item_id"`
	Quantity      decimal.Decimal   `json:"quantity"`
	WaybillID     WaybillID         `json:"waybill_id,omitempty"`
	EmployeeID    EmployeeID        `json:"employee_id,omitempty"`
	Date          generic.TimePoint `json:"date"`
}
