package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/worklog"
)

var now = time.Date(2025, time.March, 10, 8, 30, 0, 0, time.UTC)

func TestEntryDoc_RoundTrip(t *testing.T) {
	entries := []worklog.DayEntry{
		worklog.DayEntry{
			Date:      calendar.MustParseDate("2025-03-04"),
			Work:      worklog.ShiftWork{Preset: "CUSTOM", Start: "22:00", End: "06:00", BreakEnabled: true, BreakStart: "02:00", BreakEnd: "02:30"},
			LeaveType: worklog.LeaveQuarter,
			Memo:      "night",
		}.Stamp(now),
		worklog.DayEntry{
			Date: calendar.MustParseDate("2025-03-05"),
			Work: worklog.ManualWork{Hours: decimal.RequireFromString("3.75")},
		}.Stamp(now),
	}

	for _, e := range entries {
		doc := toEntryDoc("owner-1", e)
		assert.Equal(t, "2025-03", doc.Month)

		got, err := doc.entry()
		require.NoError(t, err)
		assert.Equal(t, e.Date, got.Date)
		assert.Equal(t, e.Work.Mode(), got.Mode())
		assert.Equal(t, e.LeaveType, got.LeaveType)
		assert.Equal(t, e.Memo, got.Memo)
		assert.True(t, e.Hours.Equal(got.Hours))
		if sw, ok := e.Shift(); ok {
			assert.Equal(t, sw, got.Work)
		}
	}
}

func TestEntryDoc_CorruptDate(t *testing.T) {
	_, err := entryDoc{Date: "yesterday"}.entry()
	assert.Error(t, err)
}

// TestStore_Integration runs against a replica set named by MONGODB_TEST_URI.
func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()
	s, err := New(ctx, uri, "hours_ledger_test_"+time.Now().Format("150405"), nil)
	require.NoError(t, err)
	defer func() {
		_ = s.entries.Database().Drop(ctx)
		s.Close()
	}()

	owner := worklog.OwnerID("owner-1")
	march := calendar.MustParseYearMonth("2025-03")

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes, err := s.WatchMonth(wctx, owner, march)
	require.NoError(t, err)

	e := worklog.DayEntry{Date: calendar.MustParseDate("2025-03-04"), Work: worklog.ManualWork{Hours: decimal.NewFromInt(4)}}.Stamp(now)
	require.NoError(t, s.PutEntry(ctx, owner, e))
	e.Memo = "second write wins"
	require.NoError(t, s.PutEntry(ctx, owner, e))

	got, err := s.MonthEntries(ctx, owner, march)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second write wins", got[0].Memo)

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("expected change notification")
	}

	// A re-save clears fields the new entry leaves empty.
	shift := worklog.DayEntry{
		Date: calendar.MustParseDate("2025-03-05"),
		Work: worklog.ShiftWork{Preset: "CUSTOM", Start: "09:00", End: "18:00", BreakEnabled: true, BreakStart: "11:30", BreakEnd: "12:00"},
	}.Stamp(now)
	require.NoError(t, s.PutEntry(ctx, owner, shift))
	shift = worklog.DayEntry{
		Date: shift.Date,
		Work: worklog.ShiftWork{Start: "09:00", End: "18:00", BreakEnabled: true},
	}.Stamp(now)
	require.NoError(t, s.PutEntry(ctx, owner, shift))

	stored, err := s.GetEntry(ctx, owner, shift.Date)
	require.NoError(t, err)
	assert.Equal(t, shift.Work, stored.Work)
	assert.True(t, shift.Hours.Equal(stored.Hours))
	assert.True(t, worklog.ComputeHours(stored).Equal(stored.Hours))

	plan, err := s.GetBulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, plan)
	require.NoError(t, s.PutBulkPlan(ctx, owner, worklog.DefaultBulkPlan()))
	plan, err = s.GetBulkPlan(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, worklog.DefaultBulkPlan(), *plan)
}
