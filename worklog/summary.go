package worklog

import (
	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
)

// MonthSummary reconciles a month's required hours against recorded hours.
type MonthSummary struct {
	Month         calendar.YearMonth
	BusinessDays  int
	HolidayDays   int // weekday holidays only
	WeekendDays   int
	RequiredHours decimal.Decimal
	ActualHours   decimal.Decimal

	// Remaining is Required - Actual; negative means overtime.
	Remaining decimal.Decimal
}

// Summarize classifies every day of month and sums entry hours.
//
// Every entry counts toward ActualHours, including weekend and holiday work.
// Entries outside month are ignored.
func Summarize(month calendar.YearMonth, holidays holiday.Set, entries []DayEntry) MonthSummary {
	s := MonthSummary{Month: month}
	for _, d := range month.Days() {
		switch {
		case d.IsWeekend():
			s.WeekendDays++
		case holidays.Contains(d):
			s.HolidayDays++
		default:
			s.BusinessDays++
		}
	}

	actual := decimal.Zero
	for _, e := range entries {
		if month.Contains(e.Date) {
			actual = actual.Add(e.Hours)
		}
	}

	s.RequiredHours = decimal.NewFromInt(int64(s.BusinessDays)).Mul(dayHours)
	s.ActualHours = Round2(actual)
	s.Remaining = s.RequiredHours.Sub(s.ActualHours)
	return s
}
