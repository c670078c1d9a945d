package projections

import (
	"context"
	"errors"
	"time"

	"classledger/internal/domain/calendar"
	"classledger/internal/domain/session"
)

// GetCoverageQuery carries query parameters. Year and Month default to the
// current month; Selected optionally names a highlighted date (DD/MM/YYYY).
type GetCoverageQuery struct {
	Kind     session.Kind
	ClassID  string
	Subject  string
	Year     int
	Month    time.Month
	Selected string
}

// CoverageDay is one calendar cell in the requested month.
type CoverageDay struct {
	Date     string
	Day      int
	Covered  bool
	Future   bool
	Selected bool
}

// GetCoverageResult carries the query result.
type GetCoverageResult struct {
	Year  int
	Month time.Month
	// Dates lists every committed date for the (class, subject) pair in
	// chronological order, not just those in the requested month.
	Dates []string
	Days  []CoverageDay
	// CanGoForward is false when the next month lies entirely in the future.
	CanGoForward bool
}

// GetCoverageDeps holds dependencies for GetCoverage.
type GetCoverageDeps struct {
	SessionStore SessionDateStore
	Now          func() time.Time // nil defaults to time.Now
}

// QueryGetCoverage builds the coverage calendar for a (class, subject) pair:
// which days already hold a committed record, rendered as one month of cells.
// PRE: ClassID and Subject are non-empty, Kind is known
// POST: Returns one cell per day of the requested month
func QueryGetCoverage(ctx context.Context, query GetCoverageQuery, deps GetCoverageDeps) (GetCoverageResult, error) {
	if query.ClassID == "" {
		return GetCoverageResult{}, errors.New("class is required")
	}
	if query.Subject == "" {
		return GetCoverageResult{}, errors.New("subject is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	today := now().UTC()

	dates, err := deps.SessionStore.ListDates(ctx, query.Kind, query.ClassID, query.Subject)
	if err != nil {
		return GetCoverageResult{}, err
	}
	cov := calendar.NewCoverageSet(dates)

	month := calendar.MonthOf(today)
	if query.Year != 0 && query.Month != 0 {
		month = calendar.MonthView{Year: query.Year, Month: query.Month}
	}

	var selected time.Time
	if query.Selected != "" {
		if d, err := session.ParseLedgerDate(query.Selected); err == nil {
			selected = d
		}
	}

	var days []CoverageDay
	for _, cell := range month.Days(cov, selected, today) {
		days = append(days, CoverageDay{
			Date:     session.FormatLedgerDate(cell.Date),
			Day:      cell.Date.Day(),
			Covered:  cell.Covered,
			Future:   cell.Future,
			Selected: cell.Selected,
		})
	}

	covered := make([]string, 0, len(dates))
	for _, d := range cov.Dates() {
		covered = append(covered, session.FormatLedgerDate(d))
	}

	return GetCoverageResult{
		Year:         month.Year,
		Month:        month.Month,
		Dates:        covered,
		Days:         days,
		CanGoForward: month.CanGoForward(today),
	}, nil
}
