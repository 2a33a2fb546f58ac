/*
handlers.go - HTTP API handlers for the hours ledger

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the worklog package.

ENDPOINTS:
  Entries:
    GET    /api/owners/{owner}/months/{month}/entries       Month entries
    GET    /api/owners/{owner}/entries/{date}               One day
    PUT    /api/owners/{owner}/entries/{date}               Save one day

  Summary:
    GET    /api/owners/{owner}/months/{month}/summary         Month summary
    GET    /api/owners/{owner}/months/{month}/summary/stream  Live summary (SSE)

  Bulk plan:
    GET    /api/owners/{owner}/bulk-plan                    Current plan
    PUT    /api/owners/{owner}/bulk-plan                    Replace plan
    POST   /api/owners/{owner}/bulk-plan/reset              Restore defaults
    POST   /api/owners/{owner}/months/{month}/apply-plan    Project and write

  Leave:
    GET    /api/owners/{owner}/leave?month=YYYY-MM          Balance as of month
    GET    /api/owners/{owner}/leave/stream?month=YYYY-MM   Live usage (SSE)
    GET    /api/owners/{owner}/leave/settings               Entitlement
    PUT    /api/owners/{owner}/leave/settings               Replace entitlement

  Reference:
    GET    /api/holidays/{year}                             Resolved holidays
    GET    /api/presets                                     Shift/break/leave choices
    GET    /api/health                                      Liveness

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Ledger: every read and write
  - Holidays: holiday lookups for the reference endpoint
  - Translator: leave labels and messages, locale picked per request

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Monthly leave cap reached
  - 503: Store temporarily unavailable
  - 500: Internal errors
  Apply-plan answers 207 when some dates failed to write.

SECURITY NOTE:
  No authentication. The owner ID in the path is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
	"github.com/warp/hours-ledger/i18n"
	"github.com/warp/hours-ledger/worklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HolidayLister resolves a whole year. *holiday.Resolver satisfies it.
type HolidayLister interface {
	Year(ctx context.Context, year int) holiday.Set
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *worklog.Ledger
	Holidays   HolidayLister
	Translator *i18n.Translator
	Log        *log.Logger

	// StoreName is reported by the health endpoint.
	StoreName string

	// Now is overridable in tests.
	Now func() time.Time

	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(ledger *worklog.Ledger, holidays HolidayLister, tr *i18n.Translator, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		Ledger:     ledger,
		Holidays:   holidays,
		Translator: tr,
		Log:        logger.WithPrefix("api"),
		Now:        time.Now,
		validate:   newValidator(),
	}
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// MonthEntries returns the stored entries of a month.
// GET /api/owners/{owner}/months/{month}/entries
func (h *Handler) MonthEntries(w http.ResponseWriter, r *http.Request) {
	owner, month, ok := ownerMonth(w, r)
	if !ok {
		return
	}

	entries, err := h.Ledger.MonthEntries(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = h.toEntryDTO(r.Context(), e)
	}
	writeJSON(w, http.StatusOK, MonthEntriesResponse{Month: month.String(), Entries: dtos})
}

// GetEntry returns one stored day, 404 when the day is empty.
// GET /api/owners/{owner}/entries/{date}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	owner := worklog.OwnerID(chi.URLParam(r, "owner"))
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	entry, err := h.Ledger.Entry(r.Context(), owner, date)
	if err != nil {
		h.writeDomainError(w, r, "Entry not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toEntryDTO(r.Context(), entry))
}

// SaveEntry saves one day. Hours are recomputed by the ledger.
// PUT /api/owners/{owner}/entries/{date}
func (h *Handler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	owner := worklog.OwnerID(chi.URLParam(r, "owner"))
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	var req SaveEntryRequest
	if !h.decode(w, r, &req) {
		return
	}

	saved, err := h.Ledger.SaveEntry(r.Context(), owner, req.toDraft(date))
	if err != nil {
		h.writeDomainError(w, r, "Failed to save entry", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toEntryDTO(r.Context(), saved))
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// MonthSummary returns required vs recorded hours.
// GET /api/owners/{owner}/months/{month}/summary
func (h *Handler) MonthSummary(w http.ResponseWriter, r *http.Request) {
	owner, month, ok := ownerMonth(w, r)
	if !ok {
		return
	}

	s, err := h.Ledger.MonthSummary(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// StreamSummary sends the month summary as server-sent events, once
// immediately and again after every change to the month.
// GET /api/owners/{owner}/months/{month}/summary/stream
func (h *Handler) StreamSummary(w http.ResponseWriter, r *http.Request) {
	owner, month, ok := ownerMonth(w, r)
	if !ok {
		return
	}

	updates, err := h.Ledger.WatchMonthSummary(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to watch month", err)
		return
	}
	streamEvents(r.Context(), w, "summary", updates, toSummaryDTO)
}

// =============================================================================
// BULK PLAN HANDLERS
// =============================================================================

// GetBulkPlan returns the owner's plan, or the default.
// GET /api/owners/{owner}/bulk-plan
func (h *Handler) GetBulkPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Ledger.BulkPlan(r.Context(), worklog.OwnerID(chi.URLParam(r, "owner")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to load bulk plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkPlanDTO(plan))
}

// PutBulkPlan replaces the owner's plan.
// PUT /api/owners/{owner}/bulk-plan
func (h *Handler) PutBulkPlan(w http.ResponseWriter, r *http.Request) {
	var req BulkPlanDTO
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.Ledger.SaveBulkPlan(r.Context(), worklog.OwnerID(chi.URLParam(r, "owner")), req.plan())
	if err != nil {
		h.writeDomainError(w, r, "Failed to save bulk plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkPlanDTO(plan))
}

// ResetBulkPlan restores the default plan.
// POST /api/owners/{owner}/bulk-plan/reset
func (h *Handler) ResetBulkPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Ledger.ResetBulkPlan(r.Context(), worklog.OwnerID(chi.URLParam(r, "owner")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to reset bulk plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkPlanDTO(plan))
}

// ApplyPlan projects the bulk plan onto a month and writes the result.
// Responds 207 Multi-Status when only some dates were written.
// POST /api/owners/{owner}/months/{month}/apply-plan
func (h *Handler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
	owner, month, ok := ownerMonth(w, r)
	if !ok {
		return
	}

	res, err := h.Ledger.ApplyPlan(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to apply bulk plan", err)
		return
	}

	failed := len(res.Failed())
	resp := ApplyPlanResponse{
		Month:   month.String(),
		Written: res.Written(),
		Failed:  failed,
		Results: make([]DateResultDTO, len(res.Results)),
	}
	for i, d := range res.Results {
		resp.Results[i] = DateResultDTO{Date: d.Date.String(), Hours: d.Entry.Hours.InexactFloat64()}
		if d.Err != nil {
			resp.Results[i].Error = d.Err.Error()
		}
	}

	data := map[string]any{"Written": resp.Written, "Failed": failed}
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
		resp.Message = h.Translator.T(r.Context(), "plan.partial", data)
	} else {
		resp.Message = h.Translator.T(r.Context(), "plan.applied", data)
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// GetLeaveSettings returns the owner's entitlement, or the default.
// GET /api/owners/{owner}/leave/settings
func (h *Handler) GetLeaveSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Ledger.LeaveSettings(r.Context(), worklog.OwnerID(chi.URLParam(r, "owner")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to load leave settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveSettingsDTO(s))
}

// PutLeaveSettings replaces the owner's entitlement.
// PUT /api/owners/{owner}/leave/settings
func (h *Handler) PutLeaveSettings(w http.ResponseWriter, r *http.Request) {
	var req LeaveSettingsDTO
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.Ledger.SaveLeaveSettings(r.Context(), worklog.OwnerID(chi.URLParam(r, "owner")), req.settings())
	if err != nil {
		h.writeDomainError(w, r, "Failed to save leave settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveSettingsDTO(s))
}

// LeaveBalance returns the leave position as seen from ?month (default:
// the current month).
// GET /api/owners/{owner}/leave
func (h *Handler) LeaveBalance(w http.ResponseWriter, r *http.Request) {
	owner := worklog.OwnerID(chi.URLParam(r, "owner"))
	month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}

	report, err := h.Ledger.LeaveBalance(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute leave balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveReportDTO(report, h.Ledger.LeaveTable()))
}

// StreamLeave sends the leave report as server-sent events, recomputed
// whenever a month it reads changes. Each event matches GET /leave.
// GET /api/owners/{owner}/leave/stream
func (h *Handler) StreamLeave(w http.ResponseWriter, r *http.Request) {
	owner := worklog.OwnerID(chi.URLParam(r, "owner"))
	month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}

	updates, err := h.Ledger.WatchLeaveBalance(r.Context(), owner, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to watch leave", err)
		return
	}
	table := h.Ledger.LeaveTable()
	streamEvents(r.Context(), w, "leave", updates, func(report worklog.LeaveReport) LeaveReportDTO {
		return toLeaveReportDTO(report, table)
	})
}

// =============================================================================
// REFERENCE HANDLERS
// =============================================================================

// ListHolidays returns the resolved holidays of a year.
// GET /api/holidays/{year}
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(h.Holidays.Year(r.Context(), year)))
}

// Presets lists shift presets, break presets and leave types.
// GET /api/presets
func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	table := h.Ledger.LeaveTable()
	leaves := make([]LeaveTypeDTO, len(worklog.LeaveTypes))
	for i, lt := range worklog.LeaveTypes {
		leaves[i] = LeaveTypeDTO{
			Type:       string(lt),
			Label:      h.Translator.LeaveLabel(r.Context(), lt),
			Credit:     worklog.LeaveCredit(lt).InexactFloat64(),
			Deduct:     table.Deduct(lt).InexactFloat64(),
			MonthlyCap: table.MonthlyCap(lt),
		}
	}
	writeJSON(w, http.StatusOK, PresetsResponse{
		Shifts:     worklog.ShiftPresets(),
		Breaks:     worklog.BreakPresets(),
		LeaveTypes: leaves,
	})
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: h.StoreName})
}

// =============================================================================
// HELPERS
// =============================================================================

func ownerMonth(w http.ResponseWriter, r *http.Request) (worklog.OwnerID, calendar.YearMonth, bool) {
	month, err := calendar.ParseYearMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return "", calendar.YearMonth{}, false
	}
	return worklog.OwnerID(chi.URLParam(r, "owner")), month, true
}

func (h *Handler) monthQuery(w http.ResponseWriter, r *http.Request) (calendar.YearMonth, bool) {
	q := r.URL.Query().Get("month")
	if q == "" {
		return calendar.FromTime(h.Now()).YearMonth(), true
	}
	month, err := calendar.ParseYearMonth(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return calendar.YearMonth{}, false
	}
	return month, true
}

// decode reads a JSON body into dst and validates it. On failure the
// response is written and false is returned.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

// writeDomainError maps ledger errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var capErr *worklog.LeaveCapError
	switch {
	case errors.As(err, &capErr):
		used := make([]string, len(capErr.UsedOn))
		for i, d := range capErr.UsedOn {
			used[i] = d.String()
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: h.Translator.T(r.Context(), "leave.cap_reached", map[string]any{
				"Leave":  h.Translator.LeaveLabel(r.Context(), capErr.LeaveType),
				"UsedOn": strings.Join(used, ", "),
			}),
			Code: "leave_cap_reached",
			Details: map[string]any{
				"date":      capErr.Date.String(),
				"leaveType": capErr.LeaveType,
				"cap":       capErr.Cap,
				"usedOn":    used,
			},
		})
	case worklog.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid", Details: err.Error()})
	case worklog.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case worklog.IsRetryable(err):
		h.Log.Warn(message, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.Log.Error(message, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// SERVER-SENT EVENTS
// =============================================================================

// streamEvents writes every value from updates as an SSE event until ctx
// ends or updates closes.
func streamEvents[T, D any](ctx context.Context, w http.ResponseWriter, event string, updates <-chan T, convert func(T) D) {
	rc := http.NewResponseController(w)
	// The server's write timeout does not apply to a stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(convert(v))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
