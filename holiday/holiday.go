/*
Package holiday resolves public holidays for a year.

PURPOSE:
  Business days are weekdays that are not public holidays, so every required
  hour figure depends on this package. Holidays are read-only reference data
  keyed by date, scoped by year and country.

SOURCES:
  1. Bundled tables (data/holidays-YYYY.json) for the years we ship.
  2. The date.nager.at public holiday API for any other year.

MERGING:
  Several holidays can fall on one date (2025-05-05 is both Children's Day
  and Buddha's Birthday). They are merged into one Holiday whose LocalName
  joins the distinct names with " / ". A name containing a substitute
  keyword ("대체", "Substitute") marks the date as a substitute holiday.

FAILURE MODE:
  A failed lookup yields an empty Set for that year. Lookups never return
  errors to callers; the month summary degrades to "no holidays".

SEE ALSO:
  - resolver.go: cached lookups
  - refresher.go: background cache warming
*/
package holiday

import (
	"sort"
	"strings"

	"github.com/warp/hours-ledger/calendar"
)

// Holiday is one public holiday date.
type Holiday struct {
	Date       calendar.Date `json:"date"`
	LocalName  string        `json:"localName"`
	Substitute bool          `json:"substitute"`
}

// Set is the holidays of some period keyed by date.
type Set map[calendar.Date]Holiday

func (s Set) Contains(d calendar.Date) bool {
	_, ok := s[d]
	return ok
}

// InMonth returns the subset of s falling in ym.
func (s Set) InMonth(ym calendar.YearMonth) Set {
	out := make(Set)
	for d, h := range s {
		if ym.Contains(d) {
			out[d] = h
		}
	}
	return out
}

// Sorted returns the holidays ordered by date.
func (s Set) Sorted() []Holiday {
	out := make([]Holiday, 0, len(s))
	for _, h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Raw is a single named holiday before merging.
type Raw struct {
	Date       string `json:"date"`
	Name       string `json:"name"`
	Substitute bool   `json:"substitute"`
}

// DefaultSubstituteKeywords are matched when no localized keywords are configured.
var DefaultSubstituteKeywords = []string{"대체", "Substitute"}

// Merge folds raw holidays into a Set. Entries with a blank or malformed date
// are dropped. Names are kept in first-seen order without duplicates.
func Merge(list []Raw, substituteKeywords []string) Set {
	type acc struct {
		names      []string
		substitute bool
	}
	byDate := make(map[calendar.Date]*acc)
	var order []calendar.Date

	for _, h := range list {
		d, err := calendar.ParseDate(h.Date)
		if err != nil {
			continue
		}
		a, ok := byDate[d]
		if !ok {
			a = &acc{}
			byDate[d] = a
			order = append(order, d)
		}
		if h.Name != "" && !containsString(a.names, h.Name) {
			a.names = append(a.names, h.Name)
		}
		if h.Substitute || hasKeyword(h.Name, substituteKeywords) {
			a.substitute = true
		}
	}

	out := make(Set, len(byDate))
	for _, d := range order {
		a := byDate[d]
		out[d] = Holiday{
			Date:       d,
			LocalName:  strings.Join(a.names, " / "),
			Substitute: a.substitute,
		}
	}
	return out
}

func hasKeyword(name string, keywords []string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
