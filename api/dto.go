/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract. Hours travel as
  JSON numbers; the ledger keeps them as decimals.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. Two custom tags are
  registered in newValidator:
    clock      HH:MM, 24h
    yearmonth  YYYY-MM, or empty

SEE ALSO:
  - handlers.go: Uses these types
  - worklog/types.go: domain types
*/
package api

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
	"github.com/warp/hours-ledger/worklog"
)

// =============================================================================
// DAY ENTRIES
// =============================================================================

// EntryDTO represents one stored day.
type EntryDTO struct {
	Date         string   `json:"date"`
	Mode         string   `json:"mode"`
	Preset       string   `json:"preset,omitempty"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	BreakEnabled bool     `json:"breakEnabled"`
	BreakStart   string   `json:"breakStart,omitempty"`
	BreakEnd     string   `json:"breakEnd,omitempty"`
	ManualHours  *float64 `json:"manualHours,omitempty"`
	LeaveType    string   `json:"leaveType"`
	LeaveLabel   string   `json:"leaveLabel"`
	Memo         string   `json:"memo,omitempty"`
	Hours        float64  `json:"hours"`
	WorkRange    string   `json:"workRange,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// MonthEntriesResponse lists a month's entries ordered by date.
type MonthEntriesResponse struct {
	Month   string     `json:"month"`
	Entries []EntryDTO `json:"entries"`
}

// SaveEntryRequest is the body of PUT /entries/{date}.
//
// With mode "manual" only manualHours counts. Otherwise the shift fields are
// used; a preset key with no start/end expands to the preset's times. A
// missing breakEnabled means the break is on, as in worklog.DefaultShift.
type SaveEntryRequest struct {
	Mode         string   `json:"mode" validate:"omitempty,oneof=preset manual"`
	Preset       string   `json:"preset" validate:"max=32"`
	Start        string   `json:"start" validate:"omitempty,clock"`
	End          string   `json:"end" validate:"omitempty,clock"`
	BreakEnabled *bool    `json:"breakEnabled"`
	BreakStart   string   `json:"breakStart" validate:"omitempty,clock"`
	BreakEnd     string   `json:"breakEnd" validate:"omitempty,clock"`
	ManualHours  *float64 `json:"manualHours" validate:"omitempty,gte=0"`
	LeaveType    string   `json:"leaveType" validate:"omitempty,oneof=none annual amHalf pmHalf quarter female"`
	Memo         string   `json:"memo" validate:"max=1000"`
}

// toDraft builds the unsaved entry for date.
func (r SaveEntryRequest) toDraft(date calendar.Date) worklog.DayEntry {
	e := worklog.DayEntry{
		Date:      date,
		LeaveType: worklog.LeaveType(r.LeaveType),
		Memo:      r.Memo,
	}
	if r.Mode == string(worklog.ModeManual) {
		var h float64
		if r.ManualHours != nil {
			h = *r.ManualHours
		}
		e.Work = worklog.ManualWork{Hours: decimal.NewFromFloat(h)}
		return e
	}

	if r.Preset != "" && r.Start == "" && r.End == "" {
		if sw, ok := worklog.ShiftFromPreset(r.Preset); ok {
			e.Work = sw
			return e
		}
	}
	e.Work = worklog.ShiftWork{
		Preset:       r.Preset,
		Start:        r.Start,
		End:          r.End,
		BreakEnabled: r.BreakEnabled == nil || *r.BreakEnabled,
		BreakStart:   r.BreakStart,
		BreakEnd:     r.BreakEnd,
	}
	return e
}

func (h *Handler) toEntryDTO(ctx context.Context, e worklog.DayEntry) EntryDTO {
	dto := EntryDTO{
		Date:       e.Date.String(),
		Mode:       string(e.Mode()),
		LeaveType:  string(e.LeaveType.Normalize()),
		LeaveLabel: h.Translator.LeaveLabel(ctx, e.LeaveType),
		Memo:       e.Memo,
		Hours:      e.Hours.InexactFloat64(),
		WorkRange:  worklog.FormatWorkRange(e),
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if sw, ok := e.Shift(); ok {
		dto.Preset = sw.Preset
		dto.Start = sw.Start
		dto.End = sw.End
		dto.BreakEnabled = sw.BreakEnabled
		dto.BreakStart = sw.BreakStart
		dto.BreakEnd = sw.BreakEnd
	}
	if m, ok := e.Manual(); ok {
		v := m.Hours.InexactFloat64()
		dto.ManualHours = &v
	}
	return dto
}

// =============================================================================
// SUMMARY
// =============================================================================

// SummaryDTO is a month reconciliation.
type SummaryDTO struct {
	Month         string  `json:"month"`
	BusinessDays  int     `json:"businessDays"`
	HolidayDays   int     `json:"holidayDays"`
	WeekendDays   int     `json:"weekendDays"`
	RequiredHours float64 `json:"requiredHours"`
	ActualHours   float64 `json:"actualHours"`
	Remaining     float64 `json:"remaining"`
	Overtime      bool    `json:"overtime"`
}

func toSummaryDTO(s worklog.MonthSummary) SummaryDTO {
	return SummaryDTO{
		Month:         s.Month.String(),
		BusinessDays:  s.BusinessDays,
		HolidayDays:   s.HolidayDays,
		WeekendDays:   s.WeekendDays,
		RequiredHours: s.RequiredHours.InexactFloat64(),
		ActualHours:   s.ActualHours.InexactFloat64(),
		Remaining:     s.Remaining.InexactFloat64(),
		Overtime:      s.Remaining.IsNegative(),
	}
}

// =============================================================================
// BULK PLAN
// =============================================================================

type BulkRuleDTO struct {
	Preset       string `json:"preset,omitempty" validate:"max=32"`
	Start        string `json:"start" validate:"required,clock"`
	End          string `json:"end" validate:"required,clock"`
	BreakEnabled bool   `json:"breakEnabled"`
	BreakStart   string `json:"breakStart" validate:"omitempty,clock"`
	BreakEnd     string `json:"breakEnd" validate:"omitempty,clock"`
}

// BulkPlanDTO is both the response and the PUT body for the bulk plan.
type BulkPlanDTO struct {
	MonThu       BulkRuleDTO `json:"monThu"`
	Fri          BulkRuleDTO `json:"fri"`
	Mode         string      `json:"mode" validate:"omitempty,oneof=onlyEmpty overwrite"`
	SkipWeekends bool        `json:"skipWeekends"`
	SkipHolidays bool        `json:"skipHolidays"`
}

func (r BulkRuleDTO) rule() worklog.BulkRule {
	return worklog.BulkRule(r)
}

func (p BulkPlanDTO) plan() worklog.BulkPlan {
	return worklog.BulkPlan{
		MonThu:       p.MonThu.rule(),
		Fri:          p.Fri.rule(),
		Mode:         worklog.PlanMode(p.Mode),
		SkipWeekends: p.SkipWeekends,
		SkipHolidays: p.SkipHolidays,
	}
}

func toBulkPlanDTO(p worklog.BulkPlan) BulkPlanDTO {
	return BulkPlanDTO{
		MonThu:       BulkRuleDTO(p.MonThu),
		Fri:          BulkRuleDTO(p.Fri),
		Mode:         string(p.Mode),
		SkipWeekends: p.SkipWeekends,
		SkipHolidays: p.SkipHolidays,
	}
}

// DateResultDTO is one projected write.
type DateResultDTO struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
	Error string  `json:"error,omitempty"`
}

// ApplyPlanResponse reports a bulk plan application.
type ApplyPlanResponse struct {
	Month   string          `json:"month"`
	Written int             `json:"written"`
	Failed  int             `json:"failed"`
	Message string          `json:"message"`
	Results []DateResultDTO `json:"results"`
}

// =============================================================================
// LEAVE
// =============================================================================

// LeaveSettingsDTO is both the response and the PUT body for leave settings.
// A null or empty validUntil means the entitlement never expires.
type LeaveSettingsDTO struct {
	AnnualTotal float64 `json:"annualTotal" validate:"gte=0"`
	ValidUntil  *string `json:"validUntil" validate:"omitempty,yearmonth"`
}

func (s LeaveSettingsDTO) settings() worklog.LeaveSettings {
	out := worklog.LeaveSettings{AnnualTotal: decimal.NewFromFloat(s.AnnualTotal)}
	if s.ValidUntil != nil && *s.ValidUntil != "" {
		// Already checked by the yearmonth tag.
		ym := calendar.MustParseYearMonth(*s.ValidUntil)
		out.ValidUntil = &ym
	}
	return out
}

func toLeaveSettingsDTO(s worklog.LeaveSettings) LeaveSettingsDTO {
	dto := LeaveSettingsDTO{AnnualTotal: s.AnnualTotal.InexactFloat64()}
	if s.ValidUntil != nil && !s.ValidUntil.IsZero() {
		v := s.ValidUntil.String()
		dto.ValidUntil = &v
	}
	return dto
}

// LeaveReportDTO is the leave position as seen from one month.
type LeaveReportDTO struct {
	Month         string             `json:"month"`
	Settings      LeaveSettingsDTO   `json:"settings"`
	Used          float64            `json:"used"`
	Remaining     float64            `json:"remaining"`
	UsedThisMonth float64            `json:"usedThisMonth"`
	Expired       bool               `json:"expired"`
	WindowStart   string             `json:"windowStart"`
	WindowEnd     string             `json:"windowEnd"`
	ByMonth       map[string]float64 `json:"byMonth"`
	FemaleUsed    int                `json:"femaleUsed"`
	FemaleCap     int                `json:"femaleCap"`
}

func toLeaveReportDTO(r worklog.LeaveReport, table worklog.LeaveTable) LeaveReportDTO {
	byMonth := make(map[string]float64, len(r.Usage.DeductedByMonth))
	for ym, v := range r.Usage.DeductedByMonth {
		byMonth[ym.String()] = v.InexactFloat64()
	}
	return LeaveReportDTO{
		Month:         r.Month.String(),
		Settings:      toLeaveSettingsDTO(r.Settings),
		Used:          r.Balance.Used.InexactFloat64(),
		Remaining:     r.Balance.Remaining.InexactFloat64(),
		UsedThisMonth: r.UsedThisMonth().InexactFloat64(),
		Expired:       r.Expired(),
		WindowStart:   r.Balance.Window.Start.String(),
		WindowEnd:     r.Balance.Window.End.String(),
		ByMonth:       byMonth,
		FemaleUsed:    r.FemaleUsed,
		FemaleCap:     table.MonthlyCap(worklog.LeaveFemale),
	}
}

// =============================================================================
// PRESETS / HOLIDAYS
// =============================================================================

// LeaveTypeDTO describes one leave type with its localized label.
type LeaveTypeDTO struct {
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Credit     float64 `json:"credit"`
	Deduct     float64 `json:"deduct"`
	MonthlyCap int     `json:"monthlyCap,omitempty"`
}

// PresetsResponse lists everything an editor needs to offer choices.
type PresetsResponse struct {
	Shifts     []worklog.ShiftPreset `json:"shifts"`
	Breaks     []worklog.BreakPreset `json:"breaks"`
	LeaveTypes []LeaveTypeDTO        `json:"leaveTypes"`
}

// HolidayDTO is one resolved public holiday.
type HolidayDTO struct {
	Date       string `json:"date"`
	LocalName  string `json:"localName"`
	Substitute bool   `json:"substitute"`
}

func toHolidayDTOs(s holiday.Set) []HolidayDTO {
	sorted := s.Sorted()
	out := make([]HolidayDTO, len(sorted))
	for i, h := range sorted {
		out[i] = HolidayDTO{Date: h.Date.String(), LocalName: h.LocalName, Substitute: h.Substitute}
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// =============================================================================
// VALIDATION
// =============================================================================

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := worklog.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		if fl.Field().String() == "" {
			return true
		}
		_, err := calendar.ParseYearMonth(fl.Field().String())
		return err == nil
	})
	return v
}

// validationDetails maps each failing field (JSON path, e.g. "monThu.start")
// to the tag it failed.
func validationDetails(err error) map[string]string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		out[path] = fe.Tag()
	}
	return out
}
