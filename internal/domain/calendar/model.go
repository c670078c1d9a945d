package calendar

import (
	"errors"
	"sort"
	"time"

	"classledger/internal/domain/session"
)

// Domain errors
var (
	ErrFutureDate = errors.New("cannot select a date in the future")
)

// CoverageSet is the set of dates for which a session record exists for one
// (class, subject, kind). It answers per-day membership without a query per
// calendar cell and is rebuilt wholesale after every successful commit.
type CoverageSet struct {
	days map[string]struct{}
}

// NewCoverageSet builds a CoverageSet from recorded dates.
// PRE: none
// POST: returns a set covering exactly the given calendar days
func NewCoverageSet(dates []time.Time) CoverageSet {
	days := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		days[dayKey(d)] = struct{}{}
	}
	return CoverageSet{days: days}
}

// Covers reports whether a session exists on the given calendar day.
// INVARIANT: the set is not mutated
func (c CoverageSet) Covers(d time.Time) bool {
	_, ok := c.days[dayKey(d)]
	return ok
}

// Len returns the number of covered days.
func (c CoverageSet) Len() int {
	return len(c.days)
}

// Dates returns the covered days in chronological order.
// PRE: none
// POST: returns a sorted, possibly empty slice of midnight-UTC days
func (c CoverageSet) Dates() []time.Time {
	out := make([]time.Time, 0, len(c.days))
	for k := range c.days {
		if d, err := session.ParseLedgerDate(k); err == nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// dayKey normalizes a time to its calendar-day identity. Reuses the ledger
// date convention so the set keys match stored record dates exactly.
func dayKey(d time.Time) string {
	return session.FormatLedgerDate(d)
}

// SelectDate validates a calendar selection. Dates strictly after today are
// not selectable: no future recording.
// PRE: today carries the caller's notion of the current day
// POST: nil if date is today or earlier, ErrFutureDate otherwise
func SelectDate(date, today time.Time) error {
	if sameDay(date, today) {
		return nil
	}
	if date.After(today) {
		return ErrFutureDate
	}
	return nil
}

// MonthView is the navigable month grid state. Forward navigation stops at
// the current month; backward navigation is unbounded.
type MonthView struct {
	Year  int
	Month time.Month
}

// MonthOf returns the MonthView containing a date.
func MonthOf(d time.Time) MonthView {
	return MonthView{Year: d.Year(), Month: d.Month()}
}

// CanGoForward reports whether the next month is still navigable.
// PRE: today carries the caller's notion of the current day
// POST: false once the displayed month is the current (or a later) month
func (m MonthView) CanGoForward(today time.Time) bool {
	current := MonthOf(today)
	if m.Year != current.Year {
		return m.Year < current.Year
	}
	return m.Month < current.Month
}

// Next returns the following month.
func (m MonthView) Next() MonthView {
	if m.Month == time.December {
		return MonthView{Year: m.Year + 1, Month: time.January}
	}
	return MonthView{Year: m.Year, Month: m.Month + 1}
}

// Prev returns the preceding month.
func (m MonthView) Prev() MonthView {
	if m.Month == time.January {
		return MonthView{Year: m.Year - 1, Month: time.December}
	}
	return MonthView{Year: m.Year, Month: m.Month - 1}
}

// DayCell is one renderable day of the month grid.
type DayCell struct {
	Date     time.Time
	Covered  bool // a session record exists on this day
	Future   bool // strictly after today; not selectable
	Selected bool // the currently loaded session date
}

// Days produces the month's day cells with coverage and future markers.
// Selected is flagged on the cell matching the given date (zero to skip).
// PRE: none
// POST: returns one cell per calendar day of the displayed month, in order
func (m MonthView) Days(cov CoverageSet, selected, today time.Time) []DayCell {
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	cells := make([]DayCell, 0, 31)
	for d := first; d.Month() == m.Month; d = d.AddDate(0, 0, 1) {
		cells = append(cells, DayCell{
			Date:     d,
			Covered:  cov.Covers(d),
			Future:   SelectDate(d, today) != nil,
			Selected: !selected.IsZero() && sameDay(d, selected),
		})
	}
	return cells
}

// sameDay reports whether two times fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
