package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// YEAR-MONTH - Partition key for day entries
// =============================================================================

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

func NewYearMonth(year int, month time.Month) YearMonth {
	y, m := normalizeMonth(year, int(month))
	return YearMonth{Year: y, Month: m}
}

// ParseYearMonth parses YYYY-MM.
func ParseYearMonth(s string) (YearMonth, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return YearMonth{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errY != nil || errM != nil || m < 1 || m > 12 {
		return YearMonth{}, fmt.Errorf("invalid month %q", s)
	}
	return YearMonth{Year: y, Month: time.Month(m)}, nil
}

func MustParseYearMonth(s string) YearMonth {
	ym, err := ParseYearMonth(s)
	if err != nil {
		panic(err)
	}
	return ym
}

// CurrentMonth returns the local calendar month.
func CurrentMonth() YearMonth { return Today().YearMonth() }

func (ym YearMonth) First() Date { return Date{Year: ym.Year, Month: ym.Month, Day: 1} }
func (ym YearMonth) Last() Date  { return Date{Year: ym.Year, Month: ym.Month, Day: ym.DaysIn()} }
func (ym YearMonth) DaysIn() int { return DaysInMonth(ym.Year, ym.Month) }

func (ym YearMonth) Before(o YearMonth) bool { return ym.index() < o.index() }
func (ym YearMonth) After(o YearMonth) bool  { return ym.index() > o.index() }
func (ym YearMonth) IsZero() bool            { return ym == YearMonth{} }

// Contains reports whether d falls inside the month.
func (ym YearMonth) Contains(d Date) bool { return d.Year == ym.Year && d.Month == ym.Month }

// AddMonths steps n months forward (backward for negative n), wrapping years.
func (ym YearMonth) AddMonths(n int) YearMonth {
	return NewYearMonth(ym.Year, ym.Month+time.Month(n))
}

// Days returns every date of the month in order.
func (ym YearMonth) Days() []Date {
	n := ym.DaysIn()
	days := make([]Date, n)
	for i := range days {
		days[i] = Date{Year: ym.Year, Month: ym.Month, Day: i + 1}
	}
	return days
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) { return []byte(ym.String()), nil }

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

func (ym YearMonth) index() int { return ym.Year*12 + int(ym.Month) - 1 }

// MinMonth returns the earlier of a and b.
func MinMonth(a, b YearMonth) YearMonth {
	if b.Before(a) {
		return b
	}
	return a
}

// MonthsBetween returns every month in [start, end], stepping one month at a
// time and wrapping December to January. Empty when end is before start.
func MonthsBetween(start, end YearMonth) []YearMonth {
	var months []YearMonth
	for cur := start; !cur.After(end); cur = cur.AddMonths(1) {
		months = append(months, cur)
	}
	return months
}
