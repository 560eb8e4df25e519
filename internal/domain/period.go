package domain

import (
	"fmt"
	"time"
)

// Period is a half-open time interval [Start, End). A transaction stamped
// exactly at Start belongs to the period; one stamped exactly at End does
// not.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether ts falls inside the half-open interval.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && ts.Before(p.End)
}

// Previous returns the immediately preceding period of equal length,
// ending where p starts.
func (p Period) Previous() Period {
	length := p.End.Sub(p.Start)
	return Period{Start: p.Start.Add(-length), End: p.Start}
}

// String renders the period as "2006-01-02 .. 2006-01-02" for logs and
// user-facing summaries.
func (p Period) String() string {
	return fmt.Sprintf("%s .. %s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// MonthPeriod builds the calendar-month period for the given year/month in
// loc, e.g. [2025-11-01, 2025-12-01).
func MonthPeriod(year int, month time.Month, loc *time.Location) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}
