package worklog

import (
	"time"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
)

// =============================================================================
// BULK PLAN PROJECTOR
// =============================================================================

// CustomPreset marks a shift projected from a rule that names no preset.
const CustomPreset = "CUSTOM"

// ProjectPlan returns the drafts that applying plan to month would write.
// existing holds the month's current entries by date; it is only read.
//
// Saturday and Sunday are never projected, whatever SkipWeekends says.
// Memo and leave of an existing entry are carried over unchanged.
func ProjectPlan(plan BulkPlan, month calendar.YearMonth, holidays holiday.Set, existing map[calendar.Date]DayEntry, now time.Time) []DayEntry {
	var drafts []DayEntry
	for _, date := range month.Days() {
		wd := date.Weekday()
		if plan.SkipWeekends && date.IsWeekend() {
			continue
		}
		if plan.SkipHolidays && holidays.Contains(date) {
			continue
		}

		var rule BulkRule
		switch {
		case wd >= time.Monday && wd <= time.Thursday:
			rule = plan.MonThu
		case wd == time.Friday:
			rule = plan.Fri
		default:
			continue
		}

		prev, had := existing[date]
		if plan.Mode == PlanOnlyEmpty && had && prev.HasContent() {
			continue
		}

		draft := DayEntry{
			Date:      date,
			Work:      rule.Shift(),
			LeaveType: LeaveNone,
		}
		if had {
			draft.Memo = prev.Memo
			draft.LeaveType = prev.LeaveType
		}
		drafts = append(drafts, draft.Stamp(now))
	}
	return drafts
}

// Shift converts the rule to a ShiftWork, filling the preset and break
// defaults.
func (r BulkRule) Shift() ShiftWork {
	s := ShiftWork{
		Preset:       r.Preset,
		Start:        r.Start,
		End:          r.End,
		BreakEnabled: r.BreakEnabled,
		BreakStart:   r.BreakStart,
		BreakEnd:     r.BreakEnd,
	}
	if s.Preset == "" {
		s.Preset = CustomPreset
	}
	if s.BreakEnabled {
		if s.BreakStart == "" {
			s.BreakStart = DefaultBreakStart
		}
		if s.BreakEnd == "" {
			s.BreakEnd = DefaultBreakEnd
		}
	}
	return s
}
