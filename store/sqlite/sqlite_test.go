package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/holiday"
	"github.com/warp/hours-ledger/store/sqlite"
	"github.com/warp/hours-ledger/worklog"
)

const owner = worklog.OwnerID("owner-1")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var now = time.Date(2025, time.March, 10, 8, 30, 0, 0, time.UTC)

type noHolidays struct{}

func (noHolidays) Month(context.Context, calendar.YearMonth) holiday.Set { return nil }

func TestStore_EntryRoundTrip(t *testing.T) {
	// GIVEN: A shift entry and a manual entry
	ctx := context.Background()
	store := newTestStore(t)

	shiftEntry := worklog.DayEntry{
		Date:      calendar.MustParseDate("2025-03-04"),
		Work:      worklog.ShiftWork{Preset: "0730-1700", Start: "07:30", End: "17:00", BreakEnabled: true, BreakStart: "12:00", BreakEnd: "13:00"},
		LeaveType: worklog.LeavePMHalf,
		Memo:      "site visit",
	}.Stamp(now)
	manualEntry := worklog.DayEntry{
		Date: calendar.MustParseDate("2025-03-05"),
		Work: worklog.ManualWork{Hours: decimal.RequireFromString("6.25")},
	}.Stamp(now)

	// WHEN: Saving both
	require.NoError(t, store.PutEntry(ctx, owner, shiftEntry))
	require.NoError(t, store.PutEntry(ctx, owner, manualEntry))

	// THEN: They read back exactly, in date order
	entries, err := store.MonthEntries(ctx, owner, calendar.MustParseYearMonth("2025-03"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, shiftEntry.Work, entries[0].Work)
	assert.Equal(t, worklog.LeavePMHalf, entries[0].LeaveType)
	assert.Equal(t, "site visit", entries[0].Memo)
	assert.True(t, decimal.RequireFromString("12.5").Equal(entries[0].Hours))
	assert.True(t, now.Equal(entries[0].UpdatedAt))

	m, ok := entries[1].Manual()
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("6.25").Equal(m.Hours))
	assert.Equal(t, worklog.LeaveNone, entries[1].LeaveType)
}

func TestStore_PutEntryIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	date := calendar.MustParseDate("2025-03-04")

	first := worklog.DayEntry{Date: date, Work: worklog.ShiftWork{Start: "08:00", End: "17:00"}}.Stamp(now)
	second := worklog.DayEntry{Date: date, Work: worklog.ManualWork{Hours: decimal.NewFromInt(3)}, Memo: "late"}.Stamp(now)
	require.NoError(t, store.PutEntry(ctx, owner, first))
	require.NoError(t, store.PutEntry(ctx, owner, second))

	got, err := store.GetEntry(ctx, owner, date)
	require.NoError(t, err)
	assert.Equal(t, worklog.ModeManual, got.Mode())
	assert.Equal(t, "late", got.Memo)

	entries, err := store.MonthEntries(ctx, owner, date.YearMonth())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_OwnersAndMonthsArePartitioned(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e := worklog.DayEntry{Date: calendar.MustParseDate("2025-03-31"), Work: worklog.ManualWork{Hours: decimal.NewFromInt(1)}}.Stamp(now)
	require.NoError(t, store.PutEntry(ctx, owner, e))

	other, err := store.MonthEntries(ctx, "someone-else", calendar.MustParseYearMonth("2025-03"))
	require.NoError(t, err)
	assert.Empty(t, other)

	april, err := store.MonthEntries(ctx, owner, calendar.MustParseYearMonth("2025-04"))
	require.NoError(t, err)
	assert.Empty(t, april)

	_, err = store.GetEntry(ctx, owner, calendar.MustParseDate("2025-04-01"))
	assert.True(t, errors.Is(err, worklog.ErrNotFound))
}

func TestStore_SettingsDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Absent documents are nil, not errors
	plan, err := store.GetBulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, plan)
	settings, err := store.GetLeaveSettings(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, settings)

	// Bulk plan round trip
	p := worklog.DefaultBulkPlan()
	p.Mode = worklog.PlanOverwrite
	require.NoError(t, store.PutBulkPlan(ctx, owner, p))
	plan, err = store.GetBulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, p, *plan)

	// Leave settings with and without expiry
	until := calendar.MustParseYearMonth("2025-12")
	require.NoError(t, store.PutLeaveSettings(ctx, owner, worklog.LeaveSettings{AnnualTotal: decimal.RequireFromString("16.5"), ValidUntil: &until}))
	settings, err = store.GetLeaveSettings(ctx, owner)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("16.5").Equal(settings.AnnualTotal))
	require.NotNil(t, settings.ValidUntil)
	assert.Equal(t, until, *settings.ValidUntil)

	require.NoError(t, store.PutLeaveSettings(ctx, owner, worklog.LeaveSettings{AnnualTotal: decimal.NewFromInt(15)}))
	settings, err = store.GetLeaveSettings(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, settings.ValidUntil)
}

func TestStore_WatchMonth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newTestStore(t)
	march := calendar.MustParseYearMonth("2025-03")

	ch, err := store.WatchMonth(ctx, owner, march)
	require.NoError(t, err)

	// A write to another month does not notify
	e := worklog.DayEntry{Date: calendar.MustParseDate("2025-04-01"), Work: worklog.ManualWork{Hours: decimal.NewFromInt(1)}}.Stamp(now)
	require.NoError(t, store.PutEntry(ctx, owner, e))
	select {
	case <-ch:
		t.Fatal("unexpected notification")
	default:
	}

	e.Date = calendar.MustParseDate("2025-03-03")
	require.NoError(t, store.PutEntry(ctx, owner, e))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}

	cancel()
	require.Eventually(t, func() bool { return store.Subscribers(owner, march) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_FileBackedWithLedger(t *testing.T) {
	// GIVEN: A file-backed store driven by the ledger
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hours.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)

	ledger := worklog.NewLedger(store, noHolidays{}, worklog.Options{Now: func() time.Time { return now }})

	// WHEN: Applying the default plan concurrently
	res, err := ledger.ApplyPlan(ctx, owner, calendar.MustParseYearMonth("2025-09"))
	require.NoError(t, err)
	require.True(t, res.OK())
	require.NoError(t, store.Close())

	// THEN: A reopened store sees every write
	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.MonthEntries(ctx, owner, calendar.MustParseYearMonth("2025-09"))
	require.NoError(t, err)
	assert.Len(t, entries, 22)
}
