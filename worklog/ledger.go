/*
ledger.go - Write and read paths over a Store

PURPOSE:
  The Ledger is the only component that writes day entries. Both write
  paths recompute hours before persisting, so a stored entry never carries
  a stale Hours value.

WRITE PATHS:
  SaveEntry:  one draft; applies the monthly leave cap first
  ApplyPlan:  projects the bulk plan and writes every draft concurrently

READ PATHS:
  MonthSummary:  required vs actual hours for a month
  LeaveBalance:  entitlement, usage and window as seen from a month

APPLY PLAN FAN-OUT:
  Writes run on an errgroup with a concurrency limit. Each write is retried
  with exponential backoff while the store reports a retryable error. A
  failed write never cancels its siblings: errors are collected per date in
  the ApplyResult and the call returns once every write has settled.

SEE ALSO:
  - plan.go: ProjectPlan
  - accrual.go: AggregateLeave, AccrualWindow, CheckLeaveCap
  - watch.go: live variants of the read paths
*/
package worklog

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
)

// HolidaySource resolves holidays for a month. *holiday.Resolver satisfies it.
type HolidaySource interface {
	Month(ctx context.Context, ym calendar.YearMonth) holiday.Set
}

// Options configures a Ledger. Zero values select defaults.
type Options struct {
	Leave       LeaveTable
	Concurrency int
	MaxRetries  uint64

	// RetryInterval is the first backoff interval.
	RetryInterval time.Duration

	Logger *log.Logger
	Now    func() time.Time
}

type Ledger struct {
	store    Store
	holidays HolidaySource
	table    LeaveTable
	log      *log.Logger
	now      func() time.Time

	concurrency   int
	maxRetries    uint64
	retryInterval time.Duration
}

func NewLedger(store Store, holidays HolidaySource, opts Options) *Ledger {
	l := &Ledger{
		store:         store,
		holidays:      holidays,
		table:         opts.Leave,
		log:           opts.Logger,
		now:           opts.Now,
		concurrency:   opts.Concurrency,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
	}
	if l.table == nil {
		l.table = DefaultLeaveTable()
	}
	if l.log == nil {
		l.log = log.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.concurrency <= 0 {
		l.concurrency = 8
	}
	if l.maxRetries == 0 {
		l.maxRetries = 3
	}
	if l.retryInterval <= 0 {
		l.retryInterval = 100 * time.Millisecond
	}
	return l
}

// LeaveTable returns the table used for deductions and caps.
func (l *Ledger) LeaveTable() LeaveTable { return l.table }

// =============================================================================
// ENTRIES
// =============================================================================

func (l *Ledger) MonthEntries(ctx context.Context, owner OwnerID, month calendar.YearMonth) ([]DayEntry, error) {
	return l.store.MonthEntries(ctx, owner, month)
}

// Entry returns the stored entry for date, or ErrNotFound.
func (l *Ledger) Entry(ctx context.Context, owner OwnerID, date calendar.Date) (DayEntry, error) {
	return l.store.GetEntry(ctx, owner, date)
}

// SaveEntry validates draft, enforces the monthly leave cap, recomputes
// hours and persists the entry. On rejection nothing is written.
func (l *Ledger) SaveEntry(ctx context.Context, owner OwnerID, draft DayEntry) (DayEntry, error) {
	if err := validateEntry(draft); err != nil {
		return DayEntry{}, err
	}
	draft.LeaveType = draft.LeaveType.Normalize()

	if l.table.MonthlyCap(draft.LeaveType) > 0 {
		month, err := l.store.MonthEntries(ctx, owner, draft.Date.YearMonth())
		if err != nil {
			return DayEntry{}, fmt.Errorf("load month for leave cap: %w", err)
		}
		if err := CheckLeaveCap(l.table, draft.Date, draft.LeaveType, month); err != nil {
			l.log.Info("leave rejected", "owner", owner, "date", draft.Date, "leave", draft.LeaveType, "err", err)
			return DayEntry{}, err
		}
	}

	entry := draft.Stamp(l.now())
	if err := l.put(ctx, owner, entry); err != nil {
		l.log.Error("save entry failed", "owner", owner, "date", entry.Date, "err", err)
		return DayEntry{}, err
	}
	l.log.Debug("entry saved", "owner", owner, "date", entry.Date, "hours", entry.Hours)
	return entry, nil
}

func validateEntry(e DayEntry) error {
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	if !e.LeaveType.Valid() {
		return &ValidationError{Field: "leaveType", Message: fmt.Sprintf("unknown leave type %q", e.LeaveType)}
	}
	if m, ok := e.Manual(); ok && m.Hours.IsNegative() {
		return &ValidationError{Field: "manualHours", Message: "must not be negative"}
	}
	return nil
}

// put writes one entry, retrying transient store failures.
func (l *Ledger) put(ctx context.Context, owner OwnerID, e DayEntry) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, l.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := l.store.PutEntry(ctx, owner, e)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// =============================================================================
// APPLY PLAN
// =============================================================================

// DateResult is the outcome of one projected write.
type DateResult struct {
	Date  calendar.Date
	Entry DayEntry
	Err   error
}

// ApplyResult collects the outcome of ApplyPlan, ordered by date.
type ApplyResult struct {
	Month   calendar.YearMonth
	Results []DateResult
}

func (r ApplyResult) Written() int {
	n := 0
	for _, d := range r.Results {
		if d.Err == nil {
			n++
		}
	}
	return n
}

func (r ApplyResult) Failed() []DateResult {
	var out []DateResult
	for _, d := range r.Results {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// OK reports whether every write succeeded.
func (r ApplyResult) OK() bool { return len(r.Failed()) == 0 }

// ApplyPlan projects the owner's bulk plan onto month and writes the drafts.
// The returned error covers failures before any write was attempted; write
// failures are reported in the result.
func (l *Ledger) ApplyPlan(ctx context.Context, owner OwnerID, month calendar.YearMonth) (ApplyResult, error) {
	plan, err := l.BulkPlan(ctx, owner)
	if err != nil {
		return ApplyResult{}, err
	}
	existing, err := l.store.MonthEntries(ctx, owner, month)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("load month entries: %w", err)
	}
	holidays := l.holidays.Month(ctx, month)

	drafts := ProjectPlan(plan, month, holidays, EntriesByDate(existing), l.now())
	res := ApplyResult{Month: month, Results: make([]DateResult, len(drafts))}

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, d := range drafts {
		g.Go(func() error {
			res.Results[i] = DateResult{Date: d.Date, Entry: d, Err: l.put(ctx, owner, d)}
			return nil
		})
	}
	_ = g.Wait()

	failed := res.Failed()
	if len(failed) > 0 {
		l.log.Warn("bulk plan partially applied", "owner", owner, "month", month,
			"written", res.Written(), "failed", len(failed), "first_err", failed[0].Err)
	} else {
		l.log.Info("bulk plan applied", "owner", owner, "month", month, "written", res.Written())
	}
	return res, nil
}

// =============================================================================
// BULK PLAN / LEAVE SETTINGS
// =============================================================================

// BulkPlan returns the owner's plan, or the default when none is stored.
func (l *Ledger) BulkPlan(ctx context.Context, owner OwnerID) (BulkPlan, error) {
	p, err := l.store.GetBulkPlan(ctx, owner)
	if err != nil {
		return BulkPlan{}, fmt.Errorf("load bulk plan: %w", err)
	}
	if p == nil {
		return DefaultBulkPlan(), nil
	}
	return *p, nil
}

func (l *Ledger) SaveBulkPlan(ctx context.Context, owner OwnerID, plan BulkPlan) (BulkPlan, error) {
	if plan.Mode == "" {
		plan.Mode = PlanOnlyEmpty
	}
	if err := validatePlan(plan); err != nil {
		return BulkPlan{}, err
	}
	if err := l.store.PutBulkPlan(ctx, owner, plan); err != nil {
		return BulkPlan{}, fmt.Errorf("save bulk plan: %w", err)
	}
	return plan, nil
}

// ResetBulkPlan stores and returns the default plan.
func (l *Ledger) ResetBulkPlan(ctx context.Context, owner OwnerID) (BulkPlan, error) {
	return l.SaveBulkPlan(ctx, owner, DefaultBulkPlan())
}

func validatePlan(p BulkPlan) error {
	if p.Mode != PlanOnlyEmpty && p.Mode != PlanOverwrite {
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", p.Mode)}
	}
	for name, r := range map[string]BulkRule{"monThu": p.MonThu, "fri": p.Fri} {
		for field, v := range map[string]string{"start": r.Start, "end": r.End} {
			if _, err := ParseClock(v); err != nil {
				return &ValidationError{Field: name + "." + field, Message: err.Error()}
			}
		}
	}
	return nil
}

// LeaveSettings returns the owner's settings, or the default when none are stored.
func (l *Ledger) LeaveSettings(ctx context.Context, owner OwnerID) (LeaveSettings, error) {
	s, err := l.store.GetLeaveSettings(ctx, owner)
	if err != nil {
		return LeaveSettings{}, fmt.Errorf("load leave settings: %w", err)
	}
	if s == nil {
		return DefaultLeaveSettings(), nil
	}
	return *s, nil
}

func (l *Ledger) SaveLeaveSettings(ctx context.Context, owner OwnerID, s LeaveSettings) (LeaveSettings, error) {
	if s.AnnualTotal.IsNegative() {
		return LeaveSettings{}, &ValidationError{Field: "annualTotal", Message: "must not be negative"}
	}
	if err := l.store.PutLeaveSettings(ctx, owner, s); err != nil {
		return LeaveSettings{}, fmt.Errorf("save leave settings: %w", err)
	}
	return s, nil
}

// =============================================================================
// READ PATHS
// =============================================================================

func (l *Ledger) MonthSummary(ctx context.Context, owner OwnerID, month calendar.YearMonth) (MonthSummary, error) {
	entries, err := l.store.MonthEntries(ctx, owner, month)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("load month entries: %w", err)
	}
	return Summarize(month, l.holidays.Month(ctx, month), entries), nil
}

// LeaveReport is the leave position as seen from one month.
type LeaveReport struct {
	Month    calendar.YearMonth
	Settings LeaveSettings
	Balance  Balance
	Usage    LeaveUsage

	// FemaleUsed is the female leave count of Month.
	FemaleUsed int
}

// Expired reports whether the entitlement ran out before Month.
func (r LeaveReport) Expired() bool { return r.Balance.Window.Expired }

// UsedThisMonth returns the deduction recorded in Month, zero outside the window.
func (r LeaveReport) UsedThisMonth() decimal.Decimal {
	return r.Usage.DeductedByMonth[r.Month]
}

// LeaveBalance aggregates leave over the accrual window for viewed.
// Window months are loaded concurrently.
func (l *Ledger) LeaveBalance(ctx context.Context, owner OwnerID, viewed calendar.YearMonth) (LeaveReport, error) {
	settings, err := l.LeaveSettings(ctx, owner)
	if err != nil {
		return LeaveReport{}, err
	}
	w := AccrualWindow(settings, viewed)
	months := reportMonths(w, viewed)

	loaded := make([]MonthUsage, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, ym := range months {
		g.Go(func() error {
			entries, err := l.store.MonthEntries(gctx, owner, ym)
			if err != nil {
				return fmt.Errorf("load %s: %w", ym, err)
			}
			loaded[i] = AggregateMonth(l.table, entries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LeaveReport{}, err
	}

	per := make(map[calendar.YearMonth]MonthUsage, len(months))
	for i, ym := range months {
		per[ym] = loaded[i]
	}
	return leaveReport(settings, w, viewed, per), nil
}

// reportMonths lists the months a report for viewed reads: the window, plus
// viewed itself once the entitlement expired before it.
func reportMonths(w Window, viewed calendar.YearMonth) []calendar.YearMonth {
	months := w.Months()
	if slices.Contains(months, viewed) {
		return months
	}
	return append(months, viewed)
}

// leaveReport builds the report for viewed from per-month usage covering
// reportMonths. Only window months count against the entitlement.
func leaveReport(settings LeaveSettings, w Window, viewed calendar.YearMonth, per map[calendar.YearMonth]MonthUsage) LeaveReport {
	window := make(map[calendar.YearMonth]MonthUsage, len(per))
	for _, ym := range w.Months() {
		window[ym] = per[ym]
	}
	usage := CombineUsage(window)
	return LeaveReport{
		Month:      viewed,
		Settings:   settings,
		Balance:    settings.Balance(usage, w),
		Usage:      usage,
		FemaleUsed: per[viewed].Female,
	}
}
