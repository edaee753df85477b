/*
checker.go - Read-only consistency audit

PURPOSE:
  Walks a snapshot and collects every broken invariant. It never stops at
  the first problem and never writes.

RULES:
  Blanks
    - issued/reserved/used/returned blanks have an existing owner
    - reserved: points at an existing DRAFT or SUBMITTED waybill that points back
    - used: points at an existing POSTED waybill that points back
    - at most one live (non-cancelled) waybill holds a blank
    - every waybill's blankId names an existing blank
  Stock
    - posted waybills with positive consumption have a waybill expense,
      checked only when the deployment records waybill expenses at all
    - transactions reference existing items
    - item balance = income - expense, never negative
  Fuel cards
    - balance = fuel_card top-ups - fuel filled on the driver's posted
      waybills, never negative
  Waybills
    - fuel fields non-negative, start + filled - end >= 0
    - odometer end >= odometer start
    - stored planned fuel matches a fresh plan (needs season + vehicle rates)

SEE ALSO:
  - errors.go: Rule names and the aggregated error
  - fuel/check.go: The plan recheck
*/
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/waybill"
)

// CheckInvariants returns every violation in s, in a stable order.
func CheckInvariants(s Snapshot) []Violation {
	s = s.clone()
	s.Sort()
	c := &checker{snap: s, ix: newIndex(s)}

	c.checkBlanks()
	c.checkWaybillBlanks()
	c.checkStockExpenses()
	c.checkStockBalances()
	c.checkFuelCards()
	c.checkFuelTriples()
	c.checkFuelPlans()
	return c.violations
}

// Check is CheckInvariants as an error: nil, or *InvariantError.
func Check(s Snapshot) error {
	if v := CheckInvariants(s); len(v) > 0 {
		return &InvariantError{Violations: v}
	}
	return nil
}

// Auditor runs the audit over a stored snapshot.
type Auditor struct {
	Source SnapshotSource
	Logger *slog.Logger
}

// Run loads a snapshot and audits it.
func (a *Auditor) Run(ctx context.Context) ([]Violation, error) {
	snap, err := a.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	violations := CheckInvariants(snap)

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(violations) > 0 {
		logger.Warn("audit found violations", "count", len(violations), "waybills", len(snap.Waybills), "blanks", len(snap.Blanks))
	} else {
		logger.Info("audit clean", "waybills", len(snap.Waybills), "blanks", len(snap.Blanks))
	}
	return violations, nil
}

type checker struct {
	snap       Snapshot
	ix         index
	violations []Violation
}

func (c *checker) add(rule Rule, entity, id, format string, args ...any) {
	c.violations = append(c.violations, Violation{
		Rule:     rule,
		Entity:   entity,
		EntityID: id,
		Message:  fmt.Sprintf(format, args...),
	})
}

// =============================================================================
// BLANKS
// =============================================================================

func (c *checker) checkBlanks() {
	holders := make(map[waybill.BlankID][]waybill.WaybillID)
	for _, wb := range c.snap.Waybills {
		if wb.BlankID != "" && wb.Status != waybill.StatusCancelled {
			holders[wb.BlankID] = append(holders[wb.BlankID], wb.ID)
		}
	}

	for _, b := range c.snap.Blanks {
		id := blankLabel(b)

		switch b.Status {
		case waybill.BlankIssued, waybill.BlankReserved, waybill.BlankUsed, waybill.BlankReturned:
			if b.OwnerEmployeeID == "" {
				c.add(RuleBlankOwner, "blank", id, "%s blank has no owner", b.Status)
			} else if _, ok := c.ix.employees[b.OwnerEmployeeID]; !ok {
				c.add(RuleBlankOwner, "blank", id, "owner %s does not exist", b.OwnerEmployeeID)
			}
		}

		switch b.Status {
		case waybill.BlankReserved:
			// SUBMITTED too: DRAFT → SUBMITTED leaves the blank reserved.
			c.checkBlankLink(b, RuleBlankReservation, b.ReservedByWaybillID, waybill.StatusDraft, waybill.StatusSubmitted)
		case waybill.BlankUsed:
			c.checkBlankLink(b, RuleBlankUsage, b.UsedInWaybillID, waybill.StatusPosted)
		}

		if n := len(holders[b.ID]); n > 1 {
			c.add(RuleBlankShared, "blank", id, "held by %d live waybills %v", n, holders[b.ID])
		}
	}
}

func (c *checker) checkBlankLink(b waybill.Blank, rule Rule, ref waybill.WaybillID, want ...waybill.Status) {
	id := blankLabel(b)
	if ref == "" {
		c.add(rule, "blank", id, "%s blank references no waybill", b.Status)
		return
	}
	wb, ok := c.ix.waybills[ref]
	if !ok {
		c.add(rule, "blank", id, "references missing waybill %s", ref)
		return
	}
	if wb.BlankID != b.ID {
		c.add(rule, "blank", id, "waybill %s does not point back (blankId %q)", wb.ID, wb.BlankID)
	}
	for _, s := range want {
		if wb.Status == s {
			return
		}
	}
	c.add(rule, "blank", id, "%s blank's waybill %s is %s, want %v", b.Status, wb.ID, wb.Status, want)
}

func (c *checker) checkWaybillBlanks() {
	for _, wb := range c.snap.Waybills {
		if wb.BlankID == "" {
			continue
		}
		if _, ok := c.ix.blanks[wb.BlankID]; !ok {
			c.add(RuleWaybillBlank, "waybill", string(wb.ID), "blank %s does not exist", wb.BlankID)
		}
	}
}

func blankLabel(b waybill.Blank) string {
	if b.Series == "" && b.Number == 0 {
		return string(b.ID)
	}
	return fmt.Sprintf("%s (%s-%d)", b.ID, b.Series, b.Number)
}

// =============================================================================
// STOCK
// =============================================================================

func (c *checker) checkStockExpenses() {
	stockAccounting := false
	expensed := make(map[waybill.WaybillID]bool)
	for _, tx := range c.snap.StockTransactions {
		if tx.Type == waybill.StockExpense && tx.ExpenseReason == waybill.ExpenseWaybill {
			stockAccounting = true
			if tx.WaybillID != "" {
				expensed[tx.WaybillID] = true
			}
		}
	}
	if !stockAccounting {
		return
	}

	for _, wb := range c.snap.Waybills {
		if wb.Status != waybill.StatusPosted || !wb.Consumption().IsPositive() {
			continue
		}
		if !expensed[wb.ID] {
			c.add(RuleStockExpense, "waybill", string(wb.ID),
				"posted with consumption %s but no stock expense", wb.Consumption())
		}
	}
}

func (c *checker) checkStockBalances() {
	net := make(map[waybill.StockItemID]decimal.Decimal)
	for _, tx := range c.snap.StockTransactions {
		if _, ok := c.ix.stockItems[tx.ItemID]; !ok {
			c.add(RuleStockItemUnknown, "stock_transaction", tx.ID, "references missing stock item %s", tx.ItemID)
			continue
		}
		switch tx.Type {
		case waybill.StockIncome:
			net[tx.ItemID] = net[tx.ItemID].Add(tx.Quantity)
		case waybill.StockExpense:
			net[tx.ItemID] = net[tx.ItemID].Sub(tx.Quantity)
		}
	}

	for _, item := range c.snap.StockItems {
		want := net[item.ID]
		if !item.Balance.Equal(want) {
			c.add(RuleStockBalance, "stock_item", string(item.ID),
				"balance %s, transactions net %s", item.Balance, want)
		}
		if item.Balance.IsNegative() {
			c.add(RuleStockNegative, "stock_item", string(item.ID), "negative balance %s", item.Balance)
		}
	}
}

// =============================================================================
// FUEL CARDS
// =============================================================================

func (c *checker) checkFuelCards() {
	topUps := make(map[waybill.EmployeeID]decimal.Decimal)
	for _, tx := range c.snap.StockTransactions {
		if tx.Type == waybill.StockExpense && tx.ExpenseReason == waybill.ExpenseFuelCard && tx.EmployeeID != "" {
			topUps[tx.EmployeeID] = topUps[tx.EmployeeID].Add(tx.Quantity)
		}
	}
	drawn := make(map[waybill.EmployeeID]decimal.Decimal)
	for _, wb := range c.snap.Waybills {
		if wb.Status == waybill.StatusPosted {
			drawn[wb.DriverID] = drawn[wb.DriverID].Add(wb.FuelFilled)
		}
	}

	for _, e := range c.snap.Employees {
		want := topUps[e.ID].Sub(drawn[e.ID])
		if !e.FuelCardBalance.Equal(want) {
			c.add(RuleFuelCardBalance, "employee", string(e.ID),
				"fuel card balance %s, top-ups %s minus posted fills %s = %s",
				e.FuelCardBalance, topUps[e.ID], drawn[e.ID], want)
		}
		if e.FuelCardBalance.IsNegative() {
			c.add(RuleFuelCardNegative, "employee", string(e.ID), "negative fuel card balance %s", e.FuelCardBalance)
		}
	}
}

// =============================================================================
// WAYBILL FIGURES
// =============================================================================

func (c *checker) checkFuelTriples() {
	for _, wb := range c.snap.Waybills {
		id := string(wb.ID)
		fields := []struct {
			name  string
			value decimal.Decimal
		}{
			{"fuelAtStart", wb.FuelAtStart},
			{"fuelFilled", wb.FuelFilled},
			{"fuelAtEnd", wb.FuelAtEnd},
			{"fuelPlanned", wb.FuelPlanned},
		}
		for _, f := range fields {
			if f.value.IsNegative() {
				c.add(RuleFuelNegative, "waybill", id, "%s is negative: %s", f.name, f.value)
			}
		}
		if consumption := wb.Consumption(); consumption.IsNegative() {
			c.add(RuleFuelArithmetic, "waybill", id,
				"fuelAtStart %s + fuelFilled %s - fuelAtEnd %s = %s, consumption cannot be negative",
				wb.FuelAtStart, wb.FuelFilled, wb.FuelAtEnd, consumption)
		}
		if wb.OdometerEnd < wb.OdometerStart {
			c.add(RuleOdometerDecreasing, "waybill", id,
				"odometer end %d before start %d", wb.OdometerEnd, wb.OdometerStart)
		}
	}
}

func (c *checker) checkFuelPlans() {
	if c.snap.Season == nil {
		return
	}
	for _, wb := range c.snap.Waybills {
		if wb.Status == waybill.StatusCancelled || len(wb.Routes) == 0 || wb.CalculationMethod == "" {
			continue
		}
		v, ok := c.ix.vehicles[wb.VehicleID]
		if !ok || (v.Rates.SummerRate.IsZero() && v.Rates.WinterRate.IsZero()) {
			continue
		}
		_, err := fuel.Check(fuel.Input{
			Method:   wb.CalculationMethod,
			Segments: waybill.FuelSegments(wb.Routes),
			Rates:    v.Rates,
			Season:   c.snap.Season,
			BaseDate: wb.ValidFrom,
		}, wb.FuelPlanned)
		if err != nil {
			c.add(RuleFuelPlanMismatch, "waybill", string(wb.ID), "%v", err)
		}
	}
}
