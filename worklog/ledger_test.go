package worklog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
	"github.com/warp/hours-ledger/worklog"
	"github.com/warp/hours-ledger/worklog/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type staticHolidays holiday.Set

func (s staticHolidays) Month(_ context.Context, m calendar.YearMonth) holiday.Set {
	return holiday.Set(s).InMonth(m)
}

const owner = worklog.OwnerID("owner-1")

func newTestLedger(t *testing.T) (*worklog.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	l := worklog.NewLedger(mem, staticHolidays(march2025Holidays()), worklog.Options{
		Concurrency:   4,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
		Now:           func() time.Time { return testNow },
	})
	return l, mem
}

// =============================================================================
// SAVE ENTRY
// =============================================================================

func TestLedger_SaveEntry_RecomputesHours(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)

	saved, err := l.SaveEntry(ctx, owner, worklog.DayEntry{
		Date:  d("2025-03-04"),
		Work:  shiftBreak("07:30", "17:00", "12:00", "13:00"),
		Hours: hours(1), // stale, ignored
	})
	require.NoError(t, err)
	assertDecimal(t, "8.5", saved.Hours)

	stored, err := mem.GetEntry(ctx, owner, d("2025-03-04"))
	require.NoError(t, err)
	assertDecimal(t, "8.5", stored.Hours)
	assert.Equal(t, worklog.LeaveNone, stored.LeaveType)
}

func TestLedger_SaveEntry_FemaleCap(t *testing.T) {
	// GIVEN: Female leave already used on March 4
	ctx := context.Background()
	l, mem := newTestLedger(t)
	_, err := l.SaveEntry(ctx, owner, leave("2025-03-04", worklog.LeaveFemale))
	require.NoError(t, err)

	// WHEN: Using it again on March 18
	_, err = l.SaveEntry(ctx, owner, leave("2025-03-18", worklog.LeaveFemale))

	// THEN: Rejected, nothing written
	var capErr *worklog.LeaveCapError
	require.True(t, errors.As(err, &capErr))
	_, err = mem.GetEntry(ctx, owner, d("2025-03-18"))
	assert.True(t, worklog.IsNotFound(err))

	// AND: Editing March 4 itself is allowed
	e := leave("2025-03-04", worklog.LeaveFemale)
	e.Memo = "updated"
	_, err = l.SaveEntry(ctx, owner, e)
	require.NoError(t, err)

	// AND: April is a new month
	_, err = l.SaveEntry(ctx, owner, leave("2025-04-01", worklog.LeaveFemale))
	require.NoError(t, err)
}

func TestLedger_SaveEntry_Validation(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, err := l.SaveEntry(ctx, owner, worklog.DayEntry{Work: manual(3)})
	assert.True(t, errors.Is(err, worklog.ErrInvalidEntry))

	_, err = l.SaveEntry(ctx, owner, worklog.DayEntry{Date: d("2025-03-04"), LeaveType: "sabbatical"})
	assert.True(t, worklog.IsClientError(err))

	_, err = l.SaveEntry(ctx, owner, worklog.DayEntry{Date: d("2025-03-04"), Work: manual(-1)})
	var ve *worklog.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "manualHours", ve.Field)
}

// =============================================================================
// APPLY PLAN
// =============================================================================

func TestLedger_ApplyPlan_WritesAllDrafts(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)

	res, err := l.ApplyPlan(ctx, owner, ym("2025-03"))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 20, res.Written())

	entries, err := mem.MonthEntries(ctx, owner, ym("2025-03"))
	require.NoError(t, err)
	assert.Len(t, entries, 20)

	// Results are in date order
	assert.Equal(t, d("2025-03-04"), res.Results[0].Date)

	// Applying again in onlyEmpty mode writes nothing
	res, err = l.ApplyPlan(ctx, owner, ym("2025-03"))
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestLedger_ApplyPlan_RetriesTransientFailures(t *testing.T) {
	// GIVEN: A store that fails the first write of each date
	ctx := context.Background()
	l, mem := newTestLedger(t)
	attempts := map[calendar.Date]int{}
	mem.FailPutWith(func(date calendar.Date) error {
		attempts[date]++
		if attempts[date] == 1 {
			return worklog.Unavailable("put", errors.New("busy"))
		}
		return nil
	})

	// WHEN: Applying
	res, err := l.ApplyPlan(ctx, owner, ym("2025-03"))

	// THEN: Every date is written after one retry
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 2, attempts[d("2025-03-04")])
}

func TestLedger_ApplyPlan_PartialFailure(t *testing.T) {
	// GIVEN: One date that always fails transiently and one that fails permanently
	ctx := context.Background()
	l, mem := newTestLedger(t)
	attempts := map[calendar.Date]int{}
	mem.FailPutWith(func(date calendar.Date) error {
		attempts[date]++
		switch date {
		case d("2025-03-05"):
			return worklog.Unavailable("put", errors.New("timeout"))
		case d("2025-03-06"):
			return errors.New("document too large")
		}
		return nil
	})

	// WHEN: Applying
	res, err := l.ApplyPlan(ctx, owner, ym("2025-03"))

	// THEN: Siblings are written, failures reported per date
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, 18, res.Written())
	failed := res.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, d("2025-03-05"), failed[0].Date)
	assert.True(t, worklog.IsRetryable(failed[0].Err))
	assert.Equal(t, d("2025-03-06"), failed[1].Date)

	assert.Equal(t, 3, attempts[d("2025-03-05")], "initial try plus two retries")
	assert.Equal(t, 1, attempts[d("2025-03-06")], "permanent errors are not retried")
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestLedger_BulkPlanDefaultsAndReset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	p, err := l.BulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, worklog.DefaultBulkPlan(), p)

	p.Mode = worklog.PlanOverwrite
	p.Fri.End = "13:00"
	_, err = l.SaveBulkPlan(ctx, owner, p)
	require.NoError(t, err)

	got, err := l.BulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "13:00", got.Fri.End)

	_, err = l.SaveBulkPlan(ctx, owner, worklog.BulkPlan{Mode: "sometimes"})
	assert.True(t, worklog.IsClientError(err))

	reset, err := l.ResetBulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, worklog.DefaultBulkPlan(), reset)
}

func TestLedger_LeaveBalance(t *testing.T) {
	// GIVEN: 15 days valid until December, leave used across Q1
	ctx := context.Background()
	l, _ := newTestLedger(t)
	until := ym("2025-12")
	_, err := l.SaveLeaveSettings(ctx, owner, worklog.LeaveSettings{AnnualTotal: dec("15"), ValidUntil: &until})
	require.NoError(t, err)

	for _, e := range []worklog.DayEntry{
		leave("2025-01-06", worklog.LeaveAnnual),
		leave("2025-02-03", worklog.LeaveAMHalf),
		leave("2025-03-04", worklog.LeaveQuarter),
		leave("2025-03-05", worklog.LeaveFemale),
	} {
		_, err := l.SaveEntry(ctx, owner, e)
		require.NoError(t, err)
	}

	// WHEN: Viewing March
	r, err := l.LeaveBalance(ctx, owner, ym("2025-03"))
	require.NoError(t, err)

	// THEN
	assertDecimal(t, "1.75", r.Balance.Used)
	assertDecimal(t, "13.25", r.Balance.Remaining)
	assertDecimal(t, "0.25", r.UsedThisMonth())
	assert.Equal(t, 1, r.FemaleUsed)
	assert.False(t, r.Expired())

	// AND: After expiry the window stops at December
	r, err = l.LeaveBalance(ctx, owner, ym("2026-01"))
	require.NoError(t, err)
	assert.True(t, r.Expired())
	assertDecimal(t, "1.75", r.Balance.Used)
	assert.Equal(t, 0, r.FemaleUsed)
}

func TestLedger_LeaveSettingsDefault(t *testing.T) {
	l, _ := newTestLedger(t)
	s, err := l.LeaveSettings(context.Background(), owner)
	require.NoError(t, err)
	assertDecimal(t, "15", s.AnnualTotal)
	assert.Nil(t, s.ValidUntil)

	_, err = l.SaveLeaveSettings(context.Background(), owner, worklog.LeaveSettings{AnnualTotal: dec("-1")})
	assert.True(t, worklog.IsClientError(err))
}

// =============================================================================
// LIVE RECOMPUTATION
// =============================================================================

// waitFor reads from ch until pred holds or the timeout expires.
func waitFor[T any](t *testing.T, ch <-chan T, pred func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed")
			if pred(v) {
				return v
			}
		case <-timeout:
			require.FailNow(t, "condition not met before timeout")
		}
	}
}

func TestLedger_WatchMonthSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, mem := newTestLedger(t)

	ch, err := l.WatchMonthSummary(ctx, owner, ym("2025-03"))
	require.NoError(t, err)

	first := <-ch
	assert.True(t, first.ActualHours.IsZero())
	assert.Equal(t, 20, first.BusinessDays)

	_, err = l.SaveEntry(ctx, owner, worklog.DayEntry{Date: d("2025-03-04"), Work: manual(6)})
	require.NoError(t, err)

	s := waitFor(t, ch, func(s worklog.MonthSummary) bool { return !s.ActualHours.IsZero() })
	assertDecimal(t, "6", s.ActualHours)

	// Cancelling tears the subscription down and closes the channel
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return mem.Subscribers(owner, ym("2025-03")) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestLedger_WatchLeaveBalance_MergesMonths(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, mem := newTestLedger(t)

	_, err := l.SaveEntry(ctx, owner, leave("2025-01-06", worklog.LeaveAnnual))
	require.NoError(t, err)

	ch, err := l.WatchLeaveBalance(ctx, owner, ym("2025-03"))
	require.NoError(t, err)

	first := <-ch
	assertDecimal(t, "1", first.Balance.Used)
	assertDecimal(t, "14", first.Balance.Remaining)

	// A change in February updates only February and the total
	_, err = l.SaveEntry(ctx, owner, leave("2025-02-03", worklog.LeaveAMHalf))
	require.NoError(t, err)
	r := waitFor(t, ch, func(r worklog.LeaveReport) bool { return r.Balance.Used.Equal(dec("1.5")) })
	assertDecimal(t, "0.5", r.Usage.DeductedByMonth[ym("2025-02")])
	assertDecimal(t, "1", r.Usage.DeductedByMonth[ym("2025-01")])

	// A change outside the window is not observed
	_, err = l.SaveEntry(ctx, owner, leave("2025-04-01", worklog.LeaveAnnual))
	require.NoError(t, err)
	_, err = l.SaveEntry(ctx, owner, leave("2025-03-04", worklog.LeaveFemale))
	require.NoError(t, err)
	r = waitFor(t, ch, func(r worklog.LeaveReport) bool { return r.FemaleUsed == 1 })
	assertDecimal(t, "1.5", r.Balance.Used)

	cancel()
	for _, m := range calendar.MonthsBetween(ym("2025-01"), ym("2025-03")) {
		require.Eventually(t, func() bool { return mem.Subscribers(owner, m) == 0 }, 2*time.Second, 5*time.Millisecond)
	}
}

func TestLedger_WatchLeaveBalance_AfterExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, _ := newTestLedger(t)

	// GIVEN: an entitlement that ended in December
	until := ym("2025-12")
	_, err := l.SaveLeaveSettings(ctx, owner, worklog.LeaveSettings{AnnualTotal: dec("15"), ValidUntil: &until})
	require.NoError(t, err)
	_, err = l.SaveEntry(ctx, owner, leave("2025-11-03", worklog.LeaveAnnual))
	require.NoError(t, err)

	ch, err := l.WatchLeaveBalance(ctx, owner, ym("2026-02"))
	require.NoError(t, err)
	first := <-ch
	assert.True(t, first.Expired())
	assert.Equal(t, 0, first.FemaleUsed)

	// WHEN: female leave is taken in the viewed month, past the window
	_, err = l.SaveEntry(ctx, owner, leave("2026-02-03", worklog.LeaveFemale))
	require.NoError(t, err)

	// THEN: the stream counts it like LeaveBalance, without touching the balance
	r := waitFor(t, ch, func(r worklog.LeaveReport) bool { return r.FemaleUsed == 1 })
	assertDecimal(t, "1", r.Balance.Used)

	got, err := l.LeaveBalance(ctx, owner, ym("2026-02"))
	require.NoError(t, err)
	assert.Equal(t, got.FemaleUsed, r.FemaleUsed)
	assert.True(t, got.Balance.Used.Equal(r.Balance.Used))
	assert.Equal(t, got.Balance.Window, r.Balance.Window)
}
