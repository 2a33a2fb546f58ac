/*
Package calendar provides naive local-calendar date arithmetic.

PURPOSE:
  Every date in the ledger is a plain calendar date: no clock, no zone.
  Dates are stored and compared as explicit year/month/day integers so that
  weekday classification can never drift by a day through UTC conversion.

KEY CONCEPTS:
  - Date:      a calendar day (2026-02-17)
  - YearMonth: a calendar month (2026-02), the partition key for day entries

WEEKDAYS:
  Weekday() uses Zeller's congruence on the integer fields. It never goes
  through time.Parse or time.Date, so the result is independent of the
  process time zone.

SEE ALSO:
  - month.go: YearMonth and month stepping
*/
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE
// =============================================================================

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date y-m-d. Out-of-range components are normalized the
// way time.Date does (Jan 32 becomes Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	y, m := normalizeMonth(year, int(month))
	return fromDayNumber(dayNumber(y, m, 1) + int64(day-1))
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	d, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return Date{}, fmt.Errorf("invalid date %q: non-numeric component", s)
	}
	if m < 1 || m > 12 {
		return Date{}, fmt.Errorf("invalid date %q: month out of range", s)
	}
	if d < 1 || d > DaysInMonth(y, time.Month(m)) {
		return Date{}, fmt.Errorf("invalid date %q: day out of range", s)
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar date.
func Today() Date { return FromTime(time.Now()) }

// Comparison
func (d Date) Before(o Date) bool   { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool    { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool    { return d == o }
func (d Date) IsZero() bool         { return d == Date{} }
func (d Date) YearMonth() YearMonth { return YearMonth{Year: d.Year, Month: d.Month} }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return fromDayNumber(dayNumber(d.Year, d.Month, d.Day) + int64(n))
}

// Weekday returns the day of week using Zeller's congruence.
func (d Date) Weekday() time.Weekday {
	return time.Weekday(zeller(d.Year, int(d.Month), d.Day))
}

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the date as YYYY-MM-DD so it can be used as a JSON
// value and as a JSON object key.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CALENDAR ARITHMETIC
// =============================================================================

// IsLeapYear reports whether year is a proleptic Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// zeller returns 0=Sunday .. 6=Saturday for a Gregorian date.
func zeller(year, month, day int) int {
	if month < 3 {
		month += 12
		year--
	}
	k := floorMod(year, 100)
	j := floorDiv(year, 100)
	h := (day + (13*(month+1))/5 + k + k/4 + floorDiv(j, 4) + 5*j) % 7
	h = floorMod(h, 7)
	// h: 0=Saturday, 1=Sunday, ... 6=Friday
	return (h + 6) % 7
}

// dayNumber counts days since 1970-01-01 (days-from-civil).
func dayNumber(year int, month time.Month, day int) int64 {
	y := int64(year)
	m := int64(month)
	if m <= 2 {
		y--
	}
	era := floorDiv64(y, 400)
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + int64(day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// fromDayNumber is the inverse of dayNumber.
func fromDayNumber(z int64) Date {
	z += 719468
	era := floorDiv64(z, 146097)
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if m > 12 {
		m -= 12
	}
	if m <= 2 {
		y++
	}
	return Date{Year: int(y), Month: time.Month(m), Day: int(d)}
}

func normalizeMonth(year, month int) (int, time.Month) {
	m := month - 1
	year += floorDiv(m, 12)
	return year, time.Month(floorMod(m, 12) + 1)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int { return a - floorDiv(a, b)*b }

func floorDiv64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
