package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/audit"
	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
	"github.com/warp/waybill-engine/waybill/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func d(s string) generic.TimePoint { return generic.MustParseDate(s) }

// consistentSnapshot has one posted and one draft waybill, stock accounting
// with waybill expenses and a fuel card, and no violations.
func consistentSnapshot() audit.Snapshot {
	posted := waybill.Waybill{
		ID:     "wb-posted",
		Status: waybill.StatusPosted,
		Draft: waybill.Draft{
			ValidFrom:         d("2024-06-03"),
			ValidTo:           d("2024-06-03"),
			VehicleID:         "veh",
			DriverID:          "drv",
			OdometerStart:     1000,
			OdometerEnd:       1250,
			FuelAtStart:       dec("20"),
			FuelFilled:        dec("30"),
			FuelPlanned:       dec("25"),
			FuelAtEnd:         dec("25"),
			Routes:            []waybill.RouteSegment{{From: "A", To: "B", DistanceKm: dec("250"), Date: d("2024-06-03")}},
			BlankID:           "b1",
			CalculationMethod: fuel.MethodAggregate,
		},
	}
	draft := waybill.Waybill{
		ID:     "wb-draft",
		Status: waybill.StatusDraft,
		Draft: waybill.Draft{
			ValidFrom:     d("2024-06-04"),
			ValidTo:       d("2024-06-04"),
			VehicleID:     "veh",
			DriverID:      "drv",
			OdometerStart: 1250,
			OdometerEnd:   1250,
			FuelAtStart:   dec("25"),
			FuelAtEnd:     dec("25"),
			BlankID:       "b2",
		},
	}

	return audit.Snapshot{
		Waybills: []waybill.Waybill{posted, draft},
		Blanks: []waybill.Blank{
			{ID: "b1", Series: "AA", Number: 1, Status: waybill.BlankUsed, OwnerEmployeeID: "drv", UsedInWaybillID: "wb-posted"},
			{ID: "b2", Series: "AA", Number: 2, Status: waybill.BlankReserved, OwnerEmployeeID: "drv", ReservedByWaybillID: "wb-draft"},
			{ID: "b3", Series: "AA", Number: 3, Status: waybill.BlankIssued, OwnerEmployeeID: "drv"},
			{ID: "b4", Series: "AA", Number: 4, Status: waybill.BlankAvailable},
		},
		Employees: []waybill.Employee{{ID: "drv", Name: "Driver", FuelCardBalance: dec("70")}},
		Vehicles:  []waybill.Vehicle{{ID: "veh", Rates: fuel.Rates{SummerRate: dec("10"), WinterRate: dec("12")}}},
		StockItems: []waybill.StockItem{
			{ID: "diesel", Name: "Diesel", Balance: dec("375")},
		},
		StockTransactions: []waybill.StockTransaction{
			{ID: "t1", Type: waybill.StockIncome, ItemID: "diesel", Quantity: dec("500"), Date: d("2024-06-01")},
			{ID: "t2", Type: waybill.StockExpense, ExpenseReason: waybill.ExpenseFuelCard, ItemID: "diesel", Quantity: dec("100"), EmployeeID: "drv", Date: d("2024-06-02")},
			{ID: "t3", Type: waybill.StockExpense, ExpenseReason: waybill.ExpenseWaybill, ItemID: "diesel", Quantity: dec("25"), WaybillID: "wb-posted", Date: d("2024-06-03")},
		},
		Season: generic.DefaultRecurringSeason(),
	}
}

func rules(vs []audit.Violation) []audit.Rule {
	var out []audit.Rule
	for _, v := range vs {
		out = append(out, v.Rule)
	}
	return out
}

func waybillByID(s *audit.Snapshot, id waybill.WaybillID) *waybill.Waybill {
	for i := range s.Waybills {
		if s.Waybills[i].ID == id {
			return &s.Waybills[i]
		}
	}
	return nil
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCheck_ConsistentSnapshotIsClean(t *testing.T) {
	assert.Empty(t, audit.CheckInvariants(consistentSnapshot()))
	assert.NoError(t, audit.Check(consistentSnapshot()))
}

func TestCheck_NegativeConsumption(t *testing.T) {
	// GIVEN: a waybill with fuelAtStart=10, fuelFilled=0, fuelAtEnd=15
	// WHEN: audited
	// THEN: an arithmetic violation is reported (consumption -5)

	snap := audit.Snapshot{Waybills: []waybill.Waybill{{
		ID:     "wb1",
		Status: waybill.StatusDraft,
		Draft: waybill.Draft{
			VehicleID:   "veh",
			DriverID:    "drv",
			FuelAtStart: dec("10"),
			FuelFilled:  dec("0"),
			FuelAtEnd:   dec("15"),
		},
	}}}

	violations := audit.CheckInvariants(snap)

	require.Len(t, violations, 1)
	assert.Equal(t, audit.RuleFuelArithmetic, violations[0].Rule)
	assert.Equal(t, "wb1", violations[0].EntityID)
	assert.Contains(t, violations[0].Message, "-5")

	err := audit.Check(snap)
	assert.True(t, errors.Is(err, generic.ErrInvariantViolation))
	var ie *audit.InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Len(t, ie.Violations, 1)
}

func TestCheck_AccumulatesEveryViolation(t *testing.T) {
	snap := consistentSnapshot()
	snap.StockItems[0].Balance = dec("-1")
	snap.Employees[0].FuelCardBalance = dec("0")
	waybillByID(&snap, "wb-draft").OdometerEnd = 1200
	waybillByID(&snap, "wb-draft").FuelFilled = dec("-3")

	got := rules(audit.CheckInvariants(snap))

	assert.Contains(t, got, audit.RuleStockBalance)
	assert.Contains(t, got, audit.RuleStockNegative)
	assert.Contains(t, got, audit.RuleFuelCardBalance)
	assert.Contains(t, got, audit.RuleOdometerDecreasing)
	assert.Contains(t, got, audit.RuleFuelNegative)
	assert.Contains(t, got, audit.RuleFuelArithmetic)

	err := audit.Check(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant violation(s)")
}

func TestCheck_DoesNotReorderInput(t *testing.T) {
	snap := consistentSnapshot()
	snap.Waybills[0], snap.Waybills[1] = snap.Waybills[1], snap.Waybills[0]
	first := snap.Waybills[0].ID

	audit.CheckInvariants(snap)

	assert.Equal(t, first, snap.Waybills[0].ID)
}

// =============================================================================
// BLANK RULES
// =============================================================================

func TestCheck_ReservedBlankNeedsLiveDraft(t *testing.T) {
	snap := consistentSnapshot()
	waybillByID(&snap, "wb-draft").Status = waybill.StatusCancelled

	got := audit.CheckInvariants(snap)

	require.Len(t, got, 1)
	assert.Equal(t, audit.RuleBlankReservation, got[0].Rule)
	assert.Contains(t, got[0].EntityID, "AA-2")
}

func TestCheck_ReservedBlankAcceptsSubmitted(t *testing.T) {
	snap := consistentSnapshot()
	waybillByID(&snap, "wb-draft").Status = waybill.StatusSubmitted

	assert.Empty(t, audit.CheckInvariants(snap))
}

func TestCheck_UsedBlankMustPointAtPostedWaybill(t *testing.T) {
	snap := consistentSnapshot()
	snap.Blanks[0].UsedInWaybillID = "wb-draft"

	got := rules(audit.CheckInvariants(snap))

	assert.Contains(t, got, audit.RuleBlankUsage)
}

func TestCheck_BlankBackReferenceAndOwner(t *testing.T) {
	snap := consistentSnapshot()
	snap.Blanks[2].OwnerEmployeeID = "ghost"
	waybillByID(&snap, "wb-draft").BlankID = "b9"

	got := rules(audit.CheckInvariants(snap))

	assert.Contains(t, got, audit.RuleBlankOwner)
	assert.Contains(t, got, audit.RuleBlankReservation, "b2 is no longer pointed back at")
	assert.Contains(t, got, audit.RuleWaybillBlank, "b9 does not exist")
}

func TestCheck_BlankHeldByTwoWaybills(t *testing.T) {
	snap := consistentSnapshot()
	extra := *waybillByID(&snap, "wb-draft")
	extra.ID = "wb-draft-2"
	snap.Waybills = append(snap.Waybills, extra)

	got := rules(audit.CheckInvariants(snap))

	assert.Contains(t, got, audit.RuleBlankShared)
}

// =============================================================================
// STOCK + FUEL CARD RULES
// =============================================================================

func TestCheck_StockExpenseRequiredWhenDeploymentUsesIt(t *testing.T) {
	snap := consistentSnapshot()
	// Expense now belongs to another waybill; stock accounting stays on.
	snap.StockTransactions[2].WaybillID = "wb-other"

	got := rules(audit.CheckInvariants(snap))

	assert.Equal(t, []audit.Rule{audit.RuleStockExpense}, got)
}

func TestCheck_StockExpenseSkippedWithoutStockAccounting(t *testing.T) {
	snap := consistentSnapshot()
	snap.StockTransactions = snap.StockTransactions[:2]
	snap.StockItems[0].Balance = dec("400")

	assert.Empty(t, audit.CheckInvariants(snap))
}

func TestCheck_UnknownStockItem(t *testing.T) {
	snap := consistentSnapshot()
	snap.StockTransactions = append(snap.StockTransactions, waybill.StockTransaction{
		ID: "t9", Type: waybill.StockIncome, ItemID: "petrol", Quantity: dec("1"), Date: d("2024-06-05"),
	})

	got := audit.CheckInvariants(snap)

	require.Len(t, got, 1)
	assert.Equal(t, audit.RuleStockItemUnknown, got[0].Rule)
	assert.Equal(t, "t9", got[0].EntityID)
}

func TestCheck_FuelCardNegative(t *testing.T) {
	snap := consistentSnapshot()
	snap.StockTransactions[1].Quantity = dec("10")
	snap.StockItems[0].Balance = dec("465")
	snap.Employees[0].FuelCardBalance = dec("-20")

	got := rules(audit.CheckInvariants(snap))

	assert.Equal(t, []audit.Rule{audit.RuleFuelCardNegative}, got, "balance matches the ledger but is negative")
}

// =============================================================================
// FUEL PLAN RECHECK
// =============================================================================

func TestCheck_FuelPlanMismatch(t *testing.T) {
	snap := consistentSnapshot()
	wb := waybillByID(&snap, "wb-posted")
	wb.FuelPlanned = dec("24")

	got := audit.CheckInvariants(snap)

	require.Len(t, got, 1)
	assert.Equal(t, audit.RuleFuelPlanMismatch, got[0].Rule)
	assert.Contains(t, got[0].Message, "25.00")

	snap.Season = nil
	assert.Empty(t, audit.CheckInvariants(snap), "no season settings, no recheck")
}

// =============================================================================
// AUDITOR
// =============================================================================

func TestAuditor_RunOverMemoryStore(t *testing.T) {
	mem := store.NewMemory()
	mem.PutEmployee(waybill.Employee{ID: "drv", Name: "Driver"})
	mem.PutBlank(waybill.Blank{ID: "b1", Series: "AA", Number: 1, Status: waybill.BlankReserved, OwnerEmployeeID: "drv", ReservedByWaybillID: "wb-gone"})

	violations, err := (&audit.Auditor{Source: mem}).Run(context.Background())

	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, audit.RuleBlankReservation, violations[0].Rule)
	assert.Contains(t, violations[0].Message, "wb-gone")
}
