package audit

import (
	"fmt"
	"strings"

	"github.com/warp/waybill-engine/generic"
)

// Rule names one invariant.
type Rule string

const (
	RuleBlankOwner         Rule = "blank_owner"
	RuleBlankReservation   Rule = "blank_reservation"
	RuleBlankUsage         Rule = "blank_usage"
	RuleBlankShared        Rule = "blank_shared"
	RuleWaybillBlank       Rule = "waybill_blank"
	RuleStockExpense       Rule = "stock_expense_missing"
	RuleStockItemUnknown   Rule = "stock_item_unknown"
	RuleStockBalance       Rule = "stock_balance"
	RuleStockNegative      Rule = "stock_negative"
	RuleFuelCardBalance    Rule = "fuel_card_balance"
	RuleFuelCardNegative   Rule = "fuel_card_negative"
	RuleFuelNegative       Rule = "fuel_negative"
	RuleFuelArithmetic     Rule = "fuel_arithmetic"
	RuleOdometerDecreasing Rule = "odometer_decreasing"
	RuleFuelPlanMismatch   Rule = "fuel_plan_mismatch"
)

// Violation is one broken invariant on one entity.
type Violation struct {
	Rule     Rule   `json:"rule"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", v.Rule, v.Entity, v.EntityID, v.Message)
}

// InvariantError reports every violation found by one audit.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d invariant violation(s):", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

func (e *InvariantError) Unwrap() error {
	return generic.ErrInvariantViolation
}
