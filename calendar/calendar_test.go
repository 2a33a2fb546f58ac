package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-ledger/calendar"
)

func TestWeekday_MatchesStdlib(t *testing.T) {
	// Walk several years, including century boundaries, and compare with the
	// standard library in UTC where no zone shift can happen.
	start := time.Date(1899, time.December, 25, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365*5; i += 3 {
		tm := start.AddDate(0, 0, i)
		d := calendar.FromTime(tm)
		require.Equal(t, tm.Weekday(), d.Weekday(), "weekday of %s", d)
	}
	for _, y := range []int{2000, 2024, 2025, 2026, 2027, 2100} {
		for m := time.January; m <= time.December; m++ {
			tm := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
			assert.Equal(t, tm.Weekday(), calendar.NewDate(y, m, 1).Weekday())
		}
	}
}

func TestWeekday_KnownDates(t *testing.T) {
	tests := []struct {
		date string
		want time.Weekday
	}{
		{"2026-10-17", time.Saturday},
		{"2026-02-17", time.Tuesday},
		{"2025-01-01", time.Wednesday},
		{"2024-02-29", time.Thursday},
		{"2027-02-07", time.Sunday},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calendar.MustParseDate(tt.date).Weekday(), tt.date)
	}
}

func TestParseDate(t *testing.T) {
	d, err := calendar.ParseDate("2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, calendar.Date{Year: 2026, Month: time.March, Day: 9}, d)
	assert.Equal(t, "2026-03-09", d.String())

	for _, bad := range []string{"", "2026-3-9", "2026-13-01", "2026-02-29", "2026/03/09", "abcd-ef-gh"} {
		_, err := calendar.ParseDate(bad)
		assert.Error(t, err, bad)
	}

	_, err = calendar.ParseDate("2024-02-29")
	assert.NoError(t, err, "leap day")
}

func TestDate_AddDaysAndNormalize(t *testing.T) {
	assert.Equal(t, calendar.MustParseDate("2026-03-01"), calendar.MustParseDate("2026-02-28").AddDays(1))
	assert.Equal(t, calendar.MustParseDate("2025-12-31"), calendar.MustParseDate("2026-01-01").AddDays(-1))
	assert.Equal(t, calendar.MustParseDate("2026-02-01"), calendar.NewDate(2026, time.January, 32))
	assert.Equal(t, calendar.MustParseDate("2027-01-05"), calendar.NewDate(2026, 13, 5))
}

func TestDate_JSONKey(t *testing.T) {
	var d calendar.Date
	require.NoError(t, d.UnmarshalText([]byte("2026-07-04")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2026-07-04", string(b))
}

func TestYearMonth_Stepping(t *testing.T) {
	ym := calendar.MustParseYearMonth("2025-11")
	assert.Equal(t, "2026-01", ym.AddMonths(2).String())
	assert.Equal(t, "2024-12", ym.AddMonths(-11).String())
	assert.Equal(t, 30, ym.DaysIn())
	assert.Len(t, calendar.MustParseYearMonth("2024-02").Days(), 29)
}

func TestMonthsBetween_WrapsYear(t *testing.T) {
	months := calendar.MonthsBetween(calendar.MustParseYearMonth("2025-11"), calendar.MustParseYearMonth("2026-02"))

	var got []string
	for _, m := range months {
		got = append(got, m.String())
	}
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, got)

	assert.Empty(t, calendar.MonthsBetween(calendar.MustParseYearMonth("2026-02"), calendar.MustParseYearMonth("2026-01")))
}

func TestMinMonth(t *testing.T) {
	a := calendar.MustParseYearMonth("2026-06")
	b := calendar.MustParseYearMonth("2026-03")
	assert.Equal(t, b, calendar.MinMonth(a, b))
	assert.Equal(t, b, calendar.MinMonth(b, a))
}
