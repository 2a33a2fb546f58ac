package worklog_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/worklog"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) calendar.Date            { return calendar.MustParseDate(s) }
func ym(s string) calendar.YearMonth      { return calendar.MustParseYearMonth(s) }
func dec(s string) decimal.Decimal        { return decimal.RequireFromString(s) }
func hours(f float64) decimal.Decimal     { return decimal.NewFromFloat(f) }
func manual(h float64) worklog.ManualWork { return worklog.ManualWork{Hours: hours(h)} }

var testNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func shift(start, end string) worklog.ShiftWork {
	return worklog.ShiftWork{Start: start, End: end}
}

func shiftBreak(start, end, bs, be string) worklog.ShiftWork {
	return worklog.ShiftWork{Start: start, End: end, BreakEnabled: true, BreakStart: bs, BreakEnd: be}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

// =============================================================================
// HOUR CALCULATOR
// =============================================================================

func TestComputeHours(t *testing.T) {
	tests := []struct {
		name  string
		entry worklog.DayEntry
		want  string
	}{
		{"standard day with lunch", worklog.DayEntry{Work: shiftBreak("07:30", "17:00", "12:00", "13:00")}, "8.5"},
		{"overnight shift", worklog.DayEntry{Work: shift("22:00", "06:00")}, "8"},
		{"short day with short break", worklog.DayEntry{Work: shiftBreak("07:30", "12:30", "11:30", "12:00")}, "4.5"},
		{"break outside window subtracts full break", worklog.DayEntry{Work: shiftBreak("09:00", "17:00", "20:00", "21:00")}, "7"},
		{"partial overlap subtracts overlap only", worklog.DayEntry{Work: shiftBreak("12:30", "17:00", "12:00", "13:00")}, "4"},
		{"break disabled", worklog.DayEntry{Work: shift("08:00", "12:00")}, "4"},
		{"manual plus half day", worklog.DayEntry{Work: manual(4), LeaveType: worklog.LeaveAMHalf}, "8"},
		{"manual clamped high", worklog.DayEntry{Work: manual(30)}, "24"},
		{"manual clamped low", worklog.DayEntry{Work: manual(-3)}, "0"},
		{"manual rounded half away from zero", worklog.DayEntry{Work: manual(7.125)}, "7.13"},
		{"nil work uses default shift", worklog.DayEntry{}, "8"},
		{"malformed clocks fall back", worklog.DayEntry{Work: worklog.ShiftWork{Start: "25:99", End: "", BreakEnabled: true}}, "8"},
		{"thirds of an hour round", worklog.DayEntry{Work: shift("08:00", "08:20")}, "0.33"},
		{"annual leave credit", worklog.DayEntry{Work: manual(0), LeaveType: worklog.LeaveAnnual}, "8"},
		{"quarter leave credit", worklog.DayEntry{Work: manual(6), LeaveType: worklog.LeaveQuarter}, "8"},
		{"leave on top of full shift clamps at 24", worklog.DayEntry{Work: manual(20), LeaveType: worklog.LeaveFemale}, "24"},
		{"pointer variants", worklog.DayEntry{Work: &worklog.ShiftWork{Start: "09:00", End: "18:00", BreakEnabled: true}}, "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, worklog.ComputeHours(tt.entry))
		})
	}
}

func TestComputeHours_AlwaysInRange(t *testing.T) {
	clocks := []string{"00:00", "06:15", "12:00", "13:30", "23:59", "bad", ""}
	for _, s := range clocks {
		for _, e := range clocks {
			for _, brk := range []bool{true, false} {
				for _, lt := range worklog.LeaveTypes {
					entry := worklog.DayEntry{
						Work:      worklog.ShiftWork{Start: s, End: e, BreakEnabled: brk, BreakStart: e, BreakEnd: s},
						LeaveType: lt,
					}
					h := worklog.ComputeHours(entry)
					assert.False(t, h.IsNegative(), "%s-%s", s, e)
					assert.True(t, h.LessThanOrEqual(decimal.NewFromInt(24)), "%s-%s", s, e)
					assert.True(t, h.Equal(h.Round(2)))
				}
			}
		}
	}
}

func TestComputeHours_ManualIsClampedRoundedInput(t *testing.T) {
	for _, h := range []float64{-1, 0, 0.004, 0.005, 3.333, 8, 23.999, 24, 100} {
		got := worklog.ComputeHours(worklog.DayEntry{Work: manual(h)})
		want := worklog.Round2(worklog.Clamp(hours(h), decimal.Zero, decimal.NewFromInt(24)))
		assert.True(t, want.Equal(got), "manual %v: want %s got %s", h, want, got)
	}
}

func TestStamp_RecomputesHours(t *testing.T) {
	// GIVEN: An entry with a stale Hours value
	e := worklog.DayEntry{Date: d("2025-03-04"), Work: manual(5), Hours: hours(99)}

	// WHEN: Stamped
	s := e.Stamp(testNow)

	// THEN: Hours is derived, leave normalized, timestamp set
	assertDecimal(t, "5", s.Hours)
	assert.Equal(t, worklog.LeaveNone, s.LeaveType)
	assert.Equal(t, testNow, s.UpdatedAt)
}

func TestHasContent(t *testing.T) {
	assert.False(t, worklog.DayEntry{Work: manual(0)}.HasContent())
	assert.False(t, worklog.DayEntry{Work: manual(0), Memo: "   "}.HasContent())
	assert.True(t, worklog.DayEntry{Work: manual(0), Memo: "dentist"}.HasContent())
	assert.True(t, worklog.DayEntry{Work: manual(0), LeaveType: worklog.LeaveQuarter}.HasContent())
	assert.True(t, worklog.DayEntry{Work: manual(0), Hours: hours(1)}.HasContent())
	assert.True(t, worklog.DayEntry{Work: shift("08:00", "17:00")}.HasContent())
}

func TestParseClock(t *testing.T) {
	m, err := worklog.ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 450, m)

	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd"} {
		_, err := worklog.ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestShiftPresets(t *testing.T) {
	presets := worklog.ShiftPresets()
	require.Len(t, presets, 4)

	s, ok := worklog.ShiftFromPreset("0730-1230")
	require.True(t, ok)
	assertDecimal(t, "4.5", worklog.ComputeHours(worklog.DayEntry{Work: s}))

	s, ok = worklog.ShiftFromPreset("0800-1200")
	require.True(t, ok)
	assert.False(t, s.BreakEnabled)

	_, ok = worklog.ShiftFromPreset("nope")
	assert.False(t, ok)

	// Callers get a copy.
	presets[0].Key = "mutated"
	assert.Equal(t, "0730-1700", worklog.ShiftPresets()[0].Key)
}

func TestFormatWorkRange(t *testing.T) {
	assert.Equal(t, "07:30-17:00", worklog.FormatWorkRange(worklog.DayEntry{Work: shift("07:30", "17:00")}))
	assert.Equal(t, "", worklog.FormatWorkRange(worklog.DayEntry{Work: manual(3)}))
	assert.Equal(t, "", worklog.FormatWorkRange(worklog.DayEntry{}))
}
