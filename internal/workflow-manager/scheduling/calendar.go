package scheduling

import "time"

// Unit is the recurrence cadence of a workflow.
type Unit string

const (
	UnitOneTime Unit = "one_time"
	UnitDay     Unit = "day"
	UnitWeek    Unit = "week"
	UnitMonth   Unit = "month"
	UnitQuarter Unit = "quarter"
	UnitYear    Unit = "year"
)

// Valid reports whether u is a known recurrence unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitOneTime, UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		return true
	}
	return false
}

// Recurring reports whether u produces repeating cycles.
func (u Unit) Recurring() bool {
	return u.Valid() && u != UnitOneTime
}

// AdjustStartDate snaps a candidate cycle start date to a working day.
// Weekend adjustment applies to weekly cadences only: a Saturday or Sunday
// start moves to the following Monday. All other units return d unchanged.
func AdjustStartDate(unit Unit, d time.Time) time.Time {
	if unit != UnitWeek {
		return d
	}
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// AdjustEndDate is the end-date counterpart of AdjustStartDate: for weekly
// cadences a weekend end rolls back to the preceding Friday.
func AdjustEndDate(unit Unit, d time.Time) time.Time {
	if unit != UnitWeek {
		return d
	}
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	}
	return d
}

// DateOnly truncates t to midnight UTC. All calculator arithmetic works on
// whole calendar days.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	// day 0 of the following month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dayOfMonth builds a date in year/month at the requested day. A day beyond
// the month's length is clamped to the month's last day, never wrapped into
// the following month; if that clamped last day lands on a weekend, the date
// rolls back to the Friday before it, so an authored day 29/30/31 stays on a
// working day of the intended month.
func dayOfMonth(year int, month time.Month, day int) time.Time {
	last := lastDayOfMonth(year, month)
	if day <= last {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	d := time.Date(year, month, last, 0, 0, 0, 0, time.UTC)
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, -2)
	}
	return d
}

// addMonths moves n calendar months away from year/month and re-applies the
// day clamp against the target month, so stepping from Jan 31 lands on the
// last working day of the target month rather than spilling over.
func addMonths(year int, month time.Month, day, n int) time.Time {
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return dayOfMonth(anchor.Year(), anchor.Month(), day)
}

// quarterStartMonth returns the first month of m's quarter (Jan, Apr, Jul, Oct).
func quarterStartMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}

// quarterMonth normalizes a relative month into 1..3. Templates authored with
// calendar months (e.g. 6 for June) keep their position within the quarter.
func quarterMonth(m int) int {
	return (m-1)%3 + 1
}

// isoWeekday maps time.Weekday to ISO 8601 numbering, Monday=1 .. Sunday=7.
func isoWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
