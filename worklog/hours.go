/*
hours.go - The Hour Calculator

PURPOSE:
  ComputeHours turns one day's raw input into the canonical decimal hour
  value stored alongside it. It is pure and total: malformed or missing
  fields fall back to defaults instead of producing errors.

ALGORITHM:
  1. Worked hours
     - manual: clamp(hours, 0, 24)
     - shift:  end - start in minutes, wrapping forward past midnight.
               With a break, subtract the overlap of [start,end) and
               [breakStart,breakEnd); when they do not overlap, subtract the
               whole break instead.
  2. Leave credit from the fixed table (annual 8h, half 4h, quarter 2h...).
  3. total = round2(clamp(worked + credit, 0, 24))

ROUNDING:
  decimal.Round(2), half away from zero, applied when minutes become hours
  and again on the total.
*/
package worklog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultStart      = "08:00"
	DefaultEnd        = "17:00"
	DefaultBreakStart = "12:00"
	DefaultBreakEnd   = "13:00"

	minutesPerDay = 24 * 60
)

var (
	maxHours = decimal.NewFromInt(24)
	sixty    = decimal.NewFromInt(60)
	dayHours = decimal.NewFromInt(8)
)

// ComputeHours returns the entry's total hours in [0, 24].
func ComputeHours(e DayEntry) decimal.Decimal {
	worked := WorkedHours(e.Work)
	return Round2(Clamp(worked.Add(LeaveCredit(e.LeaveType)), decimal.Zero, maxHours))
}

// WorkedHours returns the hours contributed by w alone. A nil Work is
// computed as DefaultShift.
func WorkedHours(w Work) decimal.Decimal {
	switch v := w.(type) {
	case ManualWork:
		return Round2(Clamp(v.Hours, decimal.Zero, maxHours))
	case *ManualWork:
		if v != nil {
			return WorkedHours(*v)
		}
	case ShiftWork:
		return shiftHours(v)
	case *ShiftWork:
		if v != nil {
			return shiftHours(*v)
		}
	}
	return shiftHours(DefaultShift())
}

func shiftHours(s ShiftWork) decimal.Decimal {
	start := clockOr(s.Start, DefaultStart)
	end := clockOr(s.End, DefaultEnd)

	mins := span(start, end)
	if s.BreakEnabled {
		bs := clockOr(s.BreakStart, DefaultBreakStart)
		be := clockOr(s.BreakEnd, DefaultBreakEnd)
		brk := span(bs, be)

		// Overlap is taken in raw minute space, without wrapping.
		overlap := max(0, min(end, be)-max(start, bs))
		if overlap > 0 {
			mins -= overlap
		} else {
			mins -= brk
		}
	}

	h := decimal.NewFromInt(int64(mins)).Div(sixty)
	return Round2(Clamp(h, decimal.Zero, maxHours))
}

// span is the forward distance from a to b, wrapping past midnight.
func span(a, b int) int {
	d := b - a
	if d < 0 {
		d += minutesPerDay
	}
	return d
}

// ParseClock parses HH:MM (24h) into minutes after midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

func clockOr(s, fallback string) int {
	if m, err := ParseClock(s); err == nil {
		return m
	}
	m, _ := ParseClock(fallback)
	return m
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Clamp limits d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// FormatWorkRange renders "start-end" for a shift entry and "" otherwise.
func FormatWorkRange(e DayEntry) string {
	s, ok := e.Shift()
	if !ok || s.Start == "" || s.End == "" {
		return ""
	}
	return s.Start + "-" + s.End
}

// =============================================================================
// PRESETS
// =============================================================================

// ShiftPreset is a named shift offered when editing a day.
type ShiftPreset struct {
	Key          string `json:"key"`
	Start        string `json:"start"`
	End          string `json:"end"`
	BreakDefault bool   `json:"breakDefault"`
	BreakStart   string `json:"breakStart,omitempty"`
	BreakEnd     string `json:"breakEnd,omitempty"`
}

var shiftPresets = []ShiftPreset{
	{Key: "0730-1700", Start: "07:30", End: "17:00", BreakDefault: true, BreakStart: "12:00", BreakEnd: "13:00"},
	{Key: "0800-1700", Start: "08:00", End: "17:00", BreakDefault: true, BreakStart: "12:00", BreakEnd: "13:00"},
	{Key: "0800-1200", Start: "08:00", End: "12:00"},
	{Key: "0730-1230", Start: "07:30", End: "12:30", BreakDefault: true, BreakStart: "11:30", BreakEnd: "12:00"},
}

// ShiftPresets returns the built-in shift presets.
func ShiftPresets() []ShiftPreset {
	out := make([]ShiftPreset, len(shiftPresets))
	copy(out, shiftPresets)
	return out
}

// ShiftFromPreset builds a ShiftWork from a preset key.
func ShiftFromPreset(key string) (ShiftWork, bool) {
	for _, p := range shiftPresets {
		if p.Key == key {
			return ShiftWork{
				Preset:       p.Key,
				Start:        p.Start,
				End:          p.End,
				BreakEnabled: p.BreakDefault,
				BreakStart:   p.BreakStart,
				BreakEnd:     p.BreakEnd,
			}, true
		}
	}
	return ShiftWork{}, false
}

// BreakPreset is a named break window.
type BreakPreset struct {
	Key   string `json:"key"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// BreakPresets returns the built-in break windows.
func BreakPresets() []BreakPreset {
	return []BreakPreset{
		{Key: "1200-1300", Start: "12:00", End: "13:00"},
		{Key: "1130-1200", Start: "11:30", End: "12:00"},
	}
}
