/*
Package worklog is the time-accounting engine of the hours ledger.

PURPOSE:
  An owner records, per calendar day, a work shift or a manual hour count,
  optionally together with a leave designation. This package turns those
  raw inputs into canonical decimal hours and reconciles them against a
  monthly requirement.

KEY CONCEPTS IN THIS FILE (types.go):
  - DayEntry:  one owner's record for one date
  - Work:      how the worked part of the day was recorded (shift or manual)
  - LeaveType: paid absence credited in addition to worked hours
  - BulkPlan:  weekly shift template projected onto a month
  - LeaveSettings: annual leave entitlement and its expiry month

DESIGN PRINCIPLES:
  1. Hours is derived: it is recomputed by ComputeHours on every write and
     never edited directly.
  2. Work is a closed sum type. A manual hour count cannot coexist with a
     shift, so there is no "which field wins" question.
  3. Precision: all hour quantities are decimal.Decimal.

SEE ALSO:
  - hours.go: the Hour Calculator
  - plan.go: the Bulk Plan Projector
  - accrual.go: leave usage aggregation
  - summary.go: month reconciliation
  - ledger.go: write and read paths over a Store
*/
package worklog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OwnerID scopes every record. There are no cross-owner relationships.
type OwnerID string

// =============================================================================
// WORK - Sum type for the worked part of a day
// =============================================================================

type Mode string

const (
	ModePreset Mode = "preset"
	ModeManual Mode = "manual"
)

// Work is either a ShiftWork or a ManualWork.
type Work interface {
	Mode() Mode
	sealed()
}

// ShiftWork records a shift by clock times (HH:MM, 24h). End before Start
// means the shift crosses midnight.
type ShiftWork struct {
	Preset       string `json:"preset,omitempty"`
	Start        string `json:"start"`
	End          string `json:"end"`
	BreakEnabled bool   `json:"breakEnabled"`
	BreakStart   string `json:"breakStart,omitempty"`
	BreakEnd     string `json:"breakEnd,omitempty"`
}

func (ShiftWork) Mode() Mode { return ModePreset }
func (ShiftWork) sealed()    {}

// ManualWork records worked hours directly.
type ManualWork struct {
	Hours decimal.Decimal `json:"manualHours"`
}

func (ManualWork) Mode() Mode { return ModeManual }
func (ManualWork) sealed()    {}

// DefaultShift is what an entry without recorded work is computed as.
func DefaultShift() ShiftWork {
	return ShiftWork{
		Start:        DefaultStart,
		End:          DefaultEnd,
		BreakEnabled: true,
		BreakStart:   DefaultBreakStart,
		BreakEnd:     DefaultBreakEnd,
	}
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType string

const (
	LeaveNone    LeaveType = "none"
	LeaveAnnual  LeaveType = "annual"
	LeaveAMHalf  LeaveType = "amHalf"
	LeavePMHalf  LeaveType = "pmHalf"
	LeaveQuarter LeaveType = "quarter"
	LeaveFemale  LeaveType = "female"
)

// LeaveTypes lists every leave type in display order.
var LeaveTypes = []LeaveType{LeaveNone, LeaveAnnual, LeaveAMHalf, LeavePMHalf, LeaveQuarter, LeaveFemale}

// Normalize maps the empty value to LeaveNone.
func (t LeaveType) Normalize() LeaveType {
	if t == "" {
		return LeaveNone
	}
	return t
}

func (t LeaveType) Valid() bool {
	for _, v := range LeaveTypes {
		if t.Normalize() == v {
			return true
		}
	}
	return false
}

// =============================================================================
// DAY ENTRY
// =============================================================================

// DayEntry is one owner's record for one calendar date.
type DayEntry struct {
	Date      calendar.Date
	Work      Work
	LeaveType LeaveType
	Memo      string
	Hours     decimal.Decimal
	UpdatedAt time.Time
}

// Mode returns the work mode; an entry without recorded work is a shift.
func (e DayEntry) Mode() Mode {
	if e.Work == nil {
		return ModePreset
	}
	return e.Work.Mode()
}

// Shift returns the shift fields when the entry is in preset mode.
func (e DayEntry) Shift() (ShiftWork, bool) {
	switch w := e.Work.(type) {
	case ShiftWork:
		return w, true
	case *ShiftWork:
		if w != nil {
			return *w, true
		}
	}
	return ShiftWork{}, false
}

// Manual returns the manual hours when the entry is in manual mode.
func (e DayEntry) Manual() (ManualWork, bool) {
	switch w := e.Work.(type) {
	case ManualWork:
		return w, true
	case *ManualWork:
		if w != nil {
			return *w, true
		}
	}
	return ManualWork{}, false
}

// HasContent reports whether the entry carries anything a user entered:
// worked hours, a start or end time, preset mode, a leave, or a memo.
func (e DayEntry) HasContent() bool {
	if e.Hours.IsPositive() {
		return true
	}
	// A shift always has start and end times, so preset mode alone counts.
	if e.Mode() == ModePreset {
		return true
	}
	if e.LeaveType.Normalize() != LeaveNone {
		return true
	}
	return strings.TrimSpace(e.Memo) != ""
}

// Stamp returns e with Hours recomputed and UpdatedAt set to now. It is the
// only way an entry should be prepared for persistence.
func (e DayEntry) Stamp(now time.Time) DayEntry {
	e.LeaveType = e.LeaveType.Normalize()
	e.Hours = ComputeHours(e)
	e.UpdatedAt = now
	return e
}

// =============================================================================
// BULK PLAN
// =============================================================================

type PlanMode string

const (
	PlanOnlyEmpty PlanMode = "onlyEmpty"
	PlanOverwrite PlanMode = "overwrite"
)

// BulkRule is the shift applied to one weekday class.
type BulkRule struct {
	Preset       string `json:"preset,omitempty"`
	Start        string `json:"start"`
	End          string `json:"end"`
	BreakEnabled bool   `json:"breakEnabled"`
	BreakStart   string `json:"breakStart"`
	BreakEnd     string `json:"breakEnd"`
}

// BulkPlan is an owner's weekly template. It is not date-scoped.
type BulkPlan struct {
	MonThu       BulkRule `json:"monThu"`
	Fri          BulkRule `json:"fri"`
	Mode         PlanMode `json:"mode"`
	SkipWeekends bool     `json:"skipWeekends"`
	SkipHolidays bool     `json:"skipHolidays"`
}

// DefaultBulkPlan is the plan an owner starts with.
func DefaultBulkPlan() BulkPlan {
	return BulkPlan{
		MonThu: BulkRule{
			Start:        "07:30",
			End:          "17:00",
			BreakEnabled: true,
			BreakStart:   "12:00",
			BreakEnd:     "13:00",
		},
		Fri: BulkRule{
			Preset: "HALF_AM",
			Start:  "08:00",
			End:    "12:00",
		},
		Mode:         PlanOnlyEmpty,
		SkipWeekends: true,
		SkipHolidays: true,
	}
}

// =============================================================================
// LEAVE SETTINGS
// =============================================================================

// LeaveSettings is an owner's annual leave entitlement. ValidUntil nil means
// the entitlement does not expire.
type LeaveSettings struct {
	AnnualTotal decimal.Decimal
	ValidUntil  *calendar.YearMonth
}

func DefaultLeaveSettings() LeaveSettings {
	return LeaveSettings{AnnualTotal: decimal.NewFromInt(15)}
}
