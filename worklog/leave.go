package worklog

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TABLE - Credited hours and entitlement deduction per leave type
// =============================================================================

// LeaveRule describes one leave type.
//
//   Credit:     hours added to the day's total
//   Deduct:     days subtracted from the annual entitlement
//   MonthlyCap: maximum uses per calendar month, 0 for unlimited
type LeaveRule struct {
	Credit     decimal.Decimal
	Deduct     decimal.Decimal
	MonthlyCap int
}

// LeaveTable maps each leave type to its rule.
type LeaveTable map[LeaveType]LeaveRule

// DefaultLeaveTable returns the standard rules. Female leave credits a full
// day, deducts nothing from the annual entitlement, and is limited to once a
// month.
func DefaultLeaveTable() LeaveTable {
	return LeaveTable{
		LeaveNone:    {Credit: decimal.Zero, Deduct: decimal.Zero},
		LeaveAnnual:  {Credit: decimal.NewFromInt(8), Deduct: decimal.NewFromInt(1)},
		LeaveAMHalf:  {Credit: decimal.NewFromInt(4), Deduct: decimal.RequireFromString("0.5")},
		LeavePMHalf:  {Credit: decimal.NewFromInt(4), Deduct: decimal.RequireFromString("0.5")},
		LeaveQuarter: {Credit: decimal.NewFromInt(2), Deduct: decimal.RequireFromString("0.25")},
		LeaveFemale:  {Credit: decimal.NewFromInt(8), Deduct: decimal.Zero, MonthlyCap: 1},
	}
}

// WithDeduction returns a copy of the table with t's deduction replaced.
func (lt LeaveTable) WithDeduction(t LeaveType, deduct decimal.Decimal) LeaveTable {
	out := make(LeaveTable, len(lt))
	for k, v := range lt {
		out[k] = v
	}
	r := out[t]
	r.Deduct = deduct
	out[t] = r
	return out
}

// Credit returns the hours credited for t. Unknown types credit nothing.
func (lt LeaveTable) Credit(t LeaveType) decimal.Decimal {
	return lt[t.Normalize()].Credit
}

// Deduct returns the entitlement deducted for t. Unknown types deduct nothing.
func (lt LeaveTable) Deduct(t LeaveType) decimal.Decimal {
	return lt[t.Normalize()].Deduct
}

func (lt LeaveTable) MonthlyCap(t LeaveType) int {
	return lt[t.Normalize()].MonthlyCap
}

// creditTable is fixed: credited hours are not configurable.
var creditTable = DefaultLeaveTable()

// LeaveCredit returns the hours credited for t by the fixed table.
func LeaveCredit(t LeaveType) decimal.Decimal { return creditTable.Credit(t) }
