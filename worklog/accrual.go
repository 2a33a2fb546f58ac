/*
accrual.go - Leave usage aggregation and the accrual window

PURPOSE:
  Leave is an annual entitlement consumed by leave-designated days. This
  file sums deductions across a range of months and works out which months
  count toward the current entitlement.

ACCRUAL WINDOW:
  start = January of the expiry year (January of the viewed year when the
          entitlement is open-ended)
  end   = the earlier of the viewed month and the expiry month
  Expired when the viewed month is after the expiry month.

ROUNDING:
  Each month's deduction is rounded to 2 places before being added to the
  total, and the total is rounded again. Per-month rounding is part of the
  contract: month views and the total must agree.

MONTHLY CAP:
  Some leave types (female) may be used at most N times per calendar month.
  CheckLeaveCap counts the OTHER dates of the month, so re-saving a date
  that already holds the leave never rejects itself.
*/
package worklog

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/calendar"
)

// LeaveUsage is the aggregated leave use over a range of months.
type LeaveUsage struct {
	TotalDeducted   decimal.Decimal
	DeductedByMonth map[calendar.YearMonth]decimal.Decimal
	FemaleByMonth   map[calendar.YearMonth]int
}

// NewLeaveUsage returns an empty usage.
func NewLeaveUsage() LeaveUsage {
	return LeaveUsage{
		TotalDeducted:   decimal.Zero,
		DeductedByMonth: make(map[calendar.YearMonth]decimal.Decimal),
		FemaleByMonth:   make(map[calendar.YearMonth]int),
	}
}

// MonthUsage is one month's contribution to a LeaveUsage.
type MonthUsage struct {
	Deducted decimal.Decimal
	Female   int
}

// AggregateMonth sums one month's deductions (rounded) and counts its female
// leave days.
func AggregateMonth(table LeaveTable, entries []DayEntry) MonthUsage {
	sum := decimal.Zero
	female := 0
	for _, e := range entries {
		lt := e.LeaveType.Normalize()
		sum = sum.Add(table.Deduct(lt))
		if lt == LeaveFemale {
			female++
		}
	}
	return MonthUsage{Deducted: Round2(sum), Female: female}
}

// AggregateLeave sums usage over months. Months missing from entriesByMonth
// count as empty.
func AggregateLeave(table LeaveTable, months []calendar.YearMonth, entriesByMonth map[calendar.YearMonth][]DayEntry) LeaveUsage {
	per := make(map[calendar.YearMonth]MonthUsage, len(months))
	for _, ym := range months {
		per[ym] = AggregateMonth(table, entriesByMonth[ym])
	}
	return CombineUsage(per)
}

// CombineUsage folds per-month results into a LeaveUsage. Months are added
// in calendar order so the total does not depend on map iteration.
func CombineUsage(per map[calendar.YearMonth]MonthUsage) LeaveUsage {
	months := make([]calendar.YearMonth, 0, len(per))
	for ym := range per {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	u := NewLeaveUsage()
	total := decimal.Zero
	for _, ym := range months {
		mu := per[ym]
		u.DeductedByMonth[ym] = mu.Deducted
		u.FemaleByMonth[ym] = mu.Female
		total = total.Add(mu.Deducted)
	}
	u.TotalDeducted = Round2(total)
	return u
}

// =============================================================================
// ACCRUAL WINDOW
// =============================================================================

// Window is the inclusive month range counted against the entitlement.
type Window struct {
	Start   calendar.YearMonth
	End     calendar.YearMonth
	Expired bool
}

// Months lists the window's months. It is empty when End is before Start,
// which happens when the viewed month precedes the expiry year.
func (w Window) Months() []calendar.YearMonth {
	return calendar.MonthsBetween(w.Start, w.End)
}

// AccrualWindow returns the window for settings as seen from viewed.
func AccrualWindow(settings LeaveSettings, viewed calendar.YearMonth) Window {
	if settings.ValidUntil == nil || settings.ValidUntil.IsZero() {
		return Window{
			Start: calendar.NewYearMonth(viewed.Year, 1),
			End:   viewed,
		}
	}
	exp := *settings.ValidUntil
	return Window{
		Start:   calendar.NewYearMonth(exp.Year, 1),
		End:     calendar.MinMonth(viewed, exp),
		Expired: viewed.After(exp),
	}
}

// Balance is the entitlement position for a window.
type Balance struct {
	Total     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
	Window    Window
}

// Balance computes remaining = max(0, round2(total - used)).
func (s LeaveSettings) Balance(usage LeaveUsage, w Window) Balance {
	remaining := Round2(s.AnnualTotal.Sub(usage.TotalDeducted))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Balance{
		Total:     s.AnnualTotal,
		Used:      usage.TotalDeducted,
		Remaining: remaining,
		Window:    w,
	}
}

// =============================================================================
// MONTHLY CAP
// =============================================================================

// CheckLeaveCap reports whether setting leave on date is allowed given the
// other entries of the same month. monthEntries may include date itself.
func CheckLeaveCap(table LeaveTable, date calendar.Date, leave LeaveType, monthEntries []DayEntry) error {
	leave = leave.Normalize()
	limit := table.MonthlyCap(leave)
	if limit <= 0 {
		return nil
	}

	var usedOn []calendar.Date
	for _, e := range monthEntries {
		if e.Date == date || !date.YearMonth().Contains(e.Date) {
			continue
		}
		if e.LeaveType.Normalize() == leave {
			usedOn = append(usedOn, e.Date)
		}
	}
	if len(usedOn) < limit {
		return nil
	}
	sort.Slice(usedOn, func(i, j int) bool { return usedOn[i].Before(usedOn[j]) })
	return &LeaveCapError{Date: date, LeaveType: leave, Cap: limit, UsedOn: usedOn}
}
