package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTasks is returned when a date is requested from a workflow that has no
// task templates carrying scheduling information.
var ErrNoTasks = errors.New("workflow has no task templates with scheduling data")

// InvalidDateRangeError reports a malformed template: an end point that still
// falls before its start point after the single-period wraparound adjustment.
// It is surfaced to the caller, never silently corrected.
type InvalidDateRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidDateRangeError) Error() string {
	return fmt.Sprintf("end date %s falls before start date %s",
		e.End.Format("2006-01-02"), e.Start.Format("2006-01-02"))
}

// TaskSpec carries the scheduling fields of one task template: absolute dates
// for one-time workflows, relative month/day offsets otherwise. Month is nil
// for day/week/month units; weekly templates use ISO weekday 1..7 as the day.
type TaskSpec struct {
	StartDate          *time.Time
	EndDate            *time.Time
	RelativeStartMonth *int
	RelativeStartDay   *int
	RelativeEndMonth   *int
	RelativeEndDay     *int
}

// RelativePoint is a (month, day) offset within one recurrence period. Month
// is 0 for units without a month component, so comparison degenerates to the
// day alone.
type RelativePoint struct {
	Month int
	Day   int
}

func (p RelativePoint) before(o RelativePoint) bool {
	if p.Month != o.Month {
		return p.Month < o.Month
	}
	return p.Day < o.Day
}

// Calculator computes concrete cycle dates from a workflow's recurrence unit
// and the relative offsets harvested from its task templates. It is pure:
// no persistence, no clock.
type Calculator struct {
	unit  Unit
	tasks []TaskSpec
}

func NewCalculator(unit Unit, tasks []TaskSpec) *Calculator {
	return &Calculator{unit: unit, tasks: tasks}
}

func (c *Calculator) Unit() Unit { return c.unit }

func startPoint(t TaskSpec) (RelativePoint, bool) {
	if t.RelativeStartDay == nil {
		return RelativePoint{}, false
	}
	p := RelativePoint{Day: *t.RelativeStartDay}
	if t.RelativeStartMonth != nil {
		p.Month = *t.RelativeStartMonth
	}
	return p, true
}

func endPoint(t TaskSpec) (RelativePoint, bool) {
	if t.RelativeEndDay == nil {
		return RelativePoint{}, false
	}
	p := RelativePoint{Day: *t.RelativeEndDay}
	if t.RelativeEndMonth != nil {
		p.Month = *t.RelativeEndMonth
	}
	return p, true
}

// MinRelativeStart returns the earliest relative start point over all task
// templates, compared by month then day.
func (c *Calculator) MinRelativeStart() (RelativePoint, bool) {
	var best RelativePoint
	found := false
	for _, t := range c.tasks {
		p, ok := startPoint(t)
		if !ok {
			continue
		}
		if !found || p.before(best) {
			best = p
			found = true
		}
	}
	return best, found
}

// MaxRelativeEnd returns the latest relative end point over all task
// templates, compared by month then day.
func (c *Calculator) MaxRelativeEnd() (RelativePoint, bool) {
	var best RelativePoint
	found := false
	for _, t := range c.tasks {
		p, ok := endPoint(t)
		if !ok {
			continue
		}
		if !found || best.before(p) {
			best = p
			found = true
		}
	}
	return best, found
}

func (c *Calculator) minAbsoluteStart() (time.Time, bool) {
	var best time.Time
	found := false
	for _, t := range c.tasks {
		if t.StartDate == nil {
			continue
		}
		d := DateOnly(*t.StartDate)
		if !found || d.Before(best) {
			best = d
			found = true
		}
	}
	return best, found
}

func (c *Calculator) maxAbsoluteEnd() (time.Time, bool) {
	var best time.Time
	found := false
	for _, t := range c.tasks {
		if t.EndDate == nil {
			continue
		}
		d := DateOnly(*t.EndDate)
		if !found || d.After(best) {
			best = d
			found = true
		}
	}
	return best, found
}

// NearestStartDateAfterBasedate returns the earliest date on or after base
// that matches the workflow's relative start spec. One-time workflows return
// their stored absolute start date unchanged, even when it lies in the past.
// Cyclical units never advance more than one period per call.
func (c *Calculator) NearestStartDateAfterBasedate(base time.Time) (time.Time, error) {
	base = DateOnly(base)
	if c.unit == UnitOneTime {
		d, ok := c.minAbsoluteStart()
		if !ok {
			return time.Time{}, ErrNoTasks
		}
		return d, nil
	}
	start, ok := c.MinRelativeStart()
	if !ok {
		return time.Time{}, ErrNoTasks
	}
	return c.nearestStart(base, start)
}

func (c *Calculator) nearestStart(base time.Time, start RelativePoint) (time.Time, error) {
	switch c.unit {
	case UnitDay:
		return base, nil
	case UnitWeek:
		candidate := base.AddDate(0, 0, start.Day-isoWeekday(base))
		for candidate.Before(base) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate, nil
	case UnitMonth:
		candidate := dayOfMonth(base.Year(), base.Month(), start.Day)
		if candidate.Before(base) {
			candidate = addMonths(base.Year(), base.Month(), start.Day, 1)
		}
		return candidate, nil
	case UnitQuarter:
		qs := quarterStartMonth(base.Month())
		offset := quarterMonth(start.Month) - 1
		candidate := addMonths(base.Year(), qs, start.Day, offset)
		if candidate.Before(base) {
			candidate = addMonths(base.Year(), qs, start.Day, offset+3)
		}
		return candidate, nil
	case UnitYear:
		candidate := dayOfMonth(base.Year(), time.Month(start.Month), start.Day)
		if candidate.Before(base) {
			candidate = dayOfMonth(base.Year()+1, time.Month(start.Month), start.Day)
		}
		return candidate, nil
	}
	return time.Time{}, fmt.Errorf("unsupported recurrence unit %q", c.unit)
}

// NearestEndDateAfterStartDate returns the end date matching a concrete start
// date. An end point that falls numerically before the start within the same
// period is pushed forward by exactly one period (the task spans a period
// boundary). If it is still before the start after that single adjustment, an
// InvalidDateRangeError is returned.
func (c *Calculator) NearestEndDateAfterStartDate(start time.Time) (time.Time, error) {
	start = DateOnly(start)
	if c.unit == UnitOneTime {
		end, ok := c.maxAbsoluteEnd()
		if !ok {
			return time.Time{}, ErrNoTasks
		}
		if end.Before(start) {
			return time.Time{}, &InvalidDateRangeError{Start: start, End: end}
		}
		return end, nil
	}
	endP, ok := c.MaxRelativeEnd()
	if !ok {
		return time.Time{}, ErrNoTasks
	}
	startP, _ := c.MinRelativeStart()
	return c.nearestEnd(start, startP, endP)
}

func (c *Calculator) nearestEnd(start time.Time, startP, endP RelativePoint) (time.Time, error) {
	var candidate time.Time
	switch c.unit {
	case UnitDay:
		candidate = start.AddDate(0, 0, endP.Day-startP.Day)
		if candidate.Before(start) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case UnitWeek:
		candidate = start.AddDate(0, 0, endP.Day-isoWeekday(start))
		if candidate.Before(start) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	case UnitMonth:
		candidate = dayOfMonth(start.Year(), start.Month(), endP.Day)
		if candidate.Before(start) {
			candidate = addMonths(start.Year(), start.Month(), endP.Day, 1)
		}
	case UnitQuarter:
		qs := quarterStartMonth(start.Month())
		offset := quarterMonth(endP.Month) - 1
		candidate = addMonths(start.Year(), qs, endP.Day, offset)
		if candidate.Before(start) {
			candidate = addMonths(start.Year(), qs, endP.Day, offset+3)
		}
	case UnitYear:
		candidate = dayOfMonth(start.Year(), time.Month(endP.Month), endP.Day)
		if candidate.Before(start) {
			candidate = dayOfMonth(start.Year()+1, time.Month(endP.Month), endP.Day)
		}
	default:
		return time.Time{}, fmt.Errorf("unsupported recurrence unit %q", c.unit)
	}
	if candidate.Before(start) {
		return time.Time{}, &InvalidDateRangeError{Start: start, End: candidate}
	}
	return candidate, nil
}

// PreviousCycleStartDateBeforeBasedate returns the latest start date strictly
// before base: the next occurrence stepped back exactly one period, with the
// day clamp re-applied against the target month. One-time workflows return
// their single stored start date.
func (c *Calculator) PreviousCycleStartDateBeforeBasedate(base time.Time) (time.Time, error) {
	next, err := c.NearestStartDateAfterBasedate(base)
	if err != nil {
		return time.Time{}, err
	}
	switch c.unit {
	case UnitOneTime:
		return next, nil
	case UnitDay:
		return next.AddDate(0, 0, -1), nil
	case UnitWeek:
		return next.AddDate(0, 0, -7), nil
	}
	start, ok := c.MinRelativeStart()
	if !ok {
		return time.Time{}, ErrNoTasks
	}
	switch c.unit {
	case UnitMonth:
		return addMonths(next.Year(), next.Month(), start.Day, -1), nil
	case UnitQuarter:
		return addMonths(next.Year(), next.Month(), start.Day, -3), nil
	case UnitYear:
		return dayOfMonth(next.Year()-1, time.Month(start.Month), start.Day), nil
	}
	return time.Time{}, fmt.Errorf("unsupported recurrence unit %q", c.unit)
}

// TaskDateRange computes the concrete start and end dates of a single task
// template for the cycle anchored at basis. Relative offsets resolve within
// basis's period; one-time templates return their absolute dates.
func (c *Calculator) TaskDateRange(basis time.Time, t TaskSpec) (time.Time, time.Time, error) {
	basis = DateOnly(basis)
	if c.unit == UnitOneTime {
		if t.StartDate == nil || t.EndDate == nil {
			return time.Time{}, time.Time{}, errors.New("one-time task template is missing absolute dates")
		}
		start := DateOnly(*t.StartDate)
		end := DateOnly(*t.EndDate)
		if end.Before(start) {
			return time.Time{}, time.Time{}, &InvalidDateRangeError{Start: start, End: end}
		}
		return start, end, nil
	}
	startP, ok := startPoint(t)
	if !ok {
		return time.Time{}, time.Time{}, errors.New("task template is missing relative start offsets")
	}
	endP, ok := endPoint(t)
	if !ok {
		return time.Time{}, time.Time{}, errors.New("task template is missing relative end offsets")
	}
	start, err := c.nearestStart(basis, startP)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := c.nearestEnd(start, startP, endP)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// ValidateTaskSpec checks a template's scheduling fields against the
// workflow's recurrence unit before they are persisted. Malformed templates
// are rejected here, at the mutation boundary, so they never reach the
// calculator.
func ValidateTaskSpec(unit Unit, spec TaskSpec) error {
	switch unit {
	case UnitOneTime:
		if spec.StartDate == nil || spec.EndDate == nil {
			return errors.New("one-time tasks require absolute start and end dates")
		}
		return nil
	case UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		if spec.RelativeStartDay == nil || spec.RelativeEndDay == nil {
			return fmt.Errorf("%s tasks require relative start and end days", unit)
		}
	default:
		return fmt.Errorf("unknown recurrence unit %q", unit)
	}
	maxDay := 31
	if unit == UnitWeek {
		maxDay = 7
	}
	for _, day := range []int{*spec.RelativeStartDay, *spec.RelativeEndDay} {
		if day < 1 || day > maxDay {
			return fmt.Errorf("relative day %d out of range 1..%d for %s unit", day, maxDay, unit)
		}
	}
	switch unit {
	case UnitQuarter, UnitYear:
		if spec.RelativeStartMonth == nil || spec.RelativeEndMonth == nil {
			return fmt.Errorf("%s tasks require relative start and end months", unit)
		}
		for _, month := range []int{*spec.RelativeStartMonth, *spec.RelativeEndMonth} {
			if month < 1 || month > 12 {
				return fmt.Errorf("relative month %d out of range 1..12 for %s unit", month, unit)
			}
		}
	default:
		if spec.RelativeStartMonth != nil || spec.RelativeEndMonth != nil {
			return fmt.Errorf("%s tasks must not carry relative months", unit)
		}
	}
	return nil
}
