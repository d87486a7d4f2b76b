package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func datePtr(year int, month time.Month, day int) *time.Time {
	t := d(year, month, day)
	return &t
}

func monthlySpec(startDay, endDay int) TaskSpec {
	return TaskSpec{RelativeStartDay: intPtr(startDay), RelativeEndDay: intPtr(endDay)}
}

func TestNearestStartDate_Monthly(t *testing.T) {
	calc := NewCalculator(UnitMonth, []TaskSpec{monthlySpec(15, 20)})

	// the 15th itself qualifies
	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.June, 15))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 15), got)

	// one day past the 15th pushes into the next month
	got, err = calc.NearestStartDateAfterBasedate(d(2015, time.June, 16))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.July, 15), got)
}

func TestNearestStartDate_MonthlyOverflowClamp(t *testing.T) {
	// day 29 does not exist in Feb 2015; the clamped 28th is a Saturday, so
	// the cycle lands on Friday the 27th
	calc := NewCalculator(UnitMonth, []TaskSpec{monthlySpec(29, 31)})

	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.January, 30))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.February, 27), got)
}

func TestNearestStartDate_Weekly(t *testing.T) {
	// ISO weekday 7 is Sunday
	calc := NewCalculator(UnitWeek, []TaskSpec{monthlySpec(7, 5)})

	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.June, 1))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 7), got)

	// base already past this week's slot rolls to next week
	got, err = calc.NearestStartDateAfterBasedate(d(2015, time.June, 8))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 14), got)
}

func TestNearestStartDate_Daily(t *testing.T) {
	calc := NewCalculator(UnitDay, []TaskSpec{monthlySpec(1, 1)})
	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.June, 3))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 3), got, "daily cycles start on the base date itself")
}

func TestNearestStartDate_Quarterly(t *testing.T) {
	spec := TaskSpec{
		RelativeStartMonth: intPtr(2), RelativeStartDay: intPtr(7),
		RelativeEndMonth: intPtr(6), RelativeEndDay: intPtr(18),
	}
	calc := NewCalculator(UnitQuarter, []TaskSpec{spec})

	// Feb 7 already passed by Mar 2, so the next occurrence is May 7
	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.March, 2))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.May, 7), got)

	end, err := calc.NearestEndDateAfterStartDate(got)
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 18), end, "end month 6 normalizes to the third month of the quarter")
}

func TestNearestStartDate_Yearly(t *testing.T) {
	spec := TaskSpec{
		RelativeStartMonth: intPtr(3), RelativeStartDay: intPtr(10),
		RelativeEndMonth: intPtr(4), RelativeEndDay: intPtr(1),
	}
	calc := NewCalculator(UnitYear, []TaskSpec{spec})

	got, err := calc.NearestStartDateAfterBasedate(d(2015, time.June, 1))
	assert.NoError(t, err)
	assert.Equal(t, d(2016, time.March, 10), got)

	got, err = calc.NearestStartDateAfterBasedate(d(2016, time.March, 10))
	assert.NoError(t, err)
	assert.Equal(t, d(2016, time.March, 10), got)
}

func TestNearestStartDate_OneTimeReturnsStoredDate(t *testing.T) {
	spec := TaskSpec{StartDate: datePtr(2015, time.April, 1), EndDate: datePtr(2015, time.April, 30)}
	calc := NewCalculator(UnitOneTime, []TaskSpec{spec})

	// one-time dates do not advance, even when the base is far in the future
	got, err := calc.NearestStartDateAfterBasedate(d(2020, time.January, 1))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.April, 1), got)
}

func TestNearestStartDate_NoTasks(t *testing.T) {
	calc := NewCalculator(UnitMonth, nil)
	_, err := calc.NearestStartDateAfterBasedate(d(2015, time.June, 1))
	assert.ErrorIs(t, err, ErrNoTasks)

	calc = NewCalculator(UnitOneTime, nil)
	_, err = calc.NearestStartDateAfterBasedate(d(2015, time.June, 1))
	assert.ErrorIs(t, err, ErrNoTasks)
}

func TestNearestEndDate_WrapsOnePeriod(t *testing.T) {
	// end day 10 precedes start day 15 within a month, so the task spans
	// the month boundary
	calc := NewCalculator(UnitMonth, []TaskSpec{monthlySpec(15, 10)})
	end, err := calc.NearestEndDateAfterStartDate(d(2015, time.June, 15))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.July, 10), end)
}

func TestNearestEndDate_Weekly(t *testing.T) {
	calc := NewCalculator(UnitWeek, []TaskSpec{monthlySpec(7, 5)})
	// start Sunday Jun 7; Friday of that ISO week already passed, so the
	// end wraps to Friday Jun 12
	end, err := calc.NearestEndDateAfterStartDate(d(2015, time.June, 7))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 12), end)
}

func TestNearestEndDate_OneTimeInvalidRange(t *testing.T) {
	spec := TaskSpec{StartDate: datePtr(2015, time.April, 30), EndDate: datePtr(2015, time.April, 1)}
	calc := NewCalculator(UnitOneTime, []TaskSpec{spec})

	_, err := calc.NearestEndDateAfterStartDate(d(2015, time.April, 30))
	var rangeErr *InvalidDateRangeError
	assert.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, d(2015, time.April, 30), rangeErr.Start)
}

func TestPreviousCycleStartDate(t *testing.T) {
	calc := NewCalculator(UnitMonth, []TaskSpec{monthlySpec(15, 20)})
	got, err := calc.PreviousCycleStartDateBeforeBasedate(d(2015, time.June, 20))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 15), got)

	weekly := NewCalculator(UnitWeek, []TaskSpec{monthlySpec(1, 5)})
	got, err = weekly.PreviousCycleStartDateBeforeBasedate(d(2015, time.June, 4))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 1), got)
}

func TestMinRelativeStartAndMaxRelativeEnd(t *testing.T) {
	specs := []TaskSpec{
		monthlySpec(15, 20),
		monthlySpec(3, 25),
		{RelativeStartDay: intPtr(10)}, // no end offsets
	}
	calc := NewCalculator(UnitMonth, specs)

	start, ok := calc.MinRelativeStart()
	assert.True(t, ok)
	assert.Equal(t, RelativePoint{Day: 3}, start)

	end, ok := calc.MaxRelativeEnd()
	assert.True(t, ok)
	assert.Equal(t, RelativePoint{Day: 25}, end)
}

func TestMinRelativeStart_MonthOrdersBeforeDay(t *testing.T) {
	specs := []TaskSpec{
		{RelativeStartMonth: intPtr(2), RelativeStartDay: intPtr(1), RelativeEndMonth: intPtr(3), RelativeEndDay: intPtr(1)},
		{RelativeStartMonth: intPtr(1), RelativeStartDay: intPtr(28), RelativeEndMonth: intPtr(2), RelativeEndDay: intPtr(28)},
	}
	calc := NewCalculator(UnitQuarter, specs)

	start, ok := calc.MinRelativeStart()
	assert.True(t, ok)
	assert.Equal(t, RelativePoint{Month: 1, Day: 28}, start)

	end, ok := calc.MaxRelativeEnd()
	assert.True(t, ok)
	assert.Equal(t, RelativePoint{Month: 3, Day: 1}, end)
}

func TestTaskDateRange_Monthly(t *testing.T) {
	calc := NewCalculator(UnitMonth, []TaskSpec{monthlySpec(15, 20)})
	start, end, err := calc.TaskDateRange(d(2015, time.June, 10), monthlySpec(15, 20))
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.June, 15), start)
	assert.Equal(t, d(2015, time.June, 20), end)
}

func TestTaskDateRange_OneTime(t *testing.T) {
	spec := TaskSpec{StartDate: datePtr(2015, time.April, 1), EndDate: datePtr(2015, time.April, 30)}
	calc := NewCalculator(UnitOneTime, []TaskSpec{spec})
	start, end, err := calc.TaskDateRange(d(2015, time.January, 1), spec)
	assert.NoError(t, err)
	assert.Equal(t, d(2015, time.April, 1), start)
	assert.Equal(t, d(2015, time.April, 30), end)

	_, _, err = calc.TaskDateRange(d(2015, time.January, 1), TaskSpec{})
	assert.Error(t, err, "one-time template without absolute dates is malformed")
}

func TestValidateTaskSpec(t *testing.T) {
	assert.NoError(t, ValidateTaskSpec(UnitMonth, monthlySpec(15, 20)))
	assert.NoError(t, ValidateTaskSpec(UnitWeek, monthlySpec(1, 7)))
	assert.NoError(t, ValidateTaskSpec(UnitOneTime, TaskSpec{
		StartDate: datePtr(2015, time.April, 1), EndDate: datePtr(2015, time.April, 30),
	}))
	assert.NoError(t, ValidateTaskSpec(UnitQuarter, TaskSpec{
		RelativeStartMonth: intPtr(2), RelativeStartDay: intPtr(7),
		RelativeEndMonth: intPtr(6), RelativeEndDay: intPtr(18),
	}))

	assert.Error(t, ValidateTaskSpec(UnitOneTime, TaskSpec{}), "one-time needs absolute dates")
	assert.Error(t, ValidateTaskSpec(UnitWeek, monthlySpec(1, 8)), "weekday beyond 7")
	assert.Error(t, ValidateTaskSpec(UnitMonth, monthlySpec(0, 15)), "day below 1")
	assert.Error(t, ValidateTaskSpec(UnitMonth, monthlySpec(15, 32)), "day beyond 31")
	assert.Error(t, ValidateTaskSpec(UnitMonth, TaskSpec{
		RelativeStartMonth: intPtr(1), RelativeStartDay: intPtr(15), RelativeEndDay: intPtr(20),
	}), "monthly templates must not carry months")
	assert.Error(t, ValidateTaskSpec(UnitQuarter, monthlySpec(7, 18)), "quarterly needs months")
	assert.Error(t, ValidateTaskSpec(UnitYear, TaskSpec{
		RelativeStartMonth: intPtr(13), RelativeStartDay: intPtr(1),
		RelativeEndMonth: intPtr(1), RelativeEndDay: intPtr(1),
	}), "month beyond 12")
	assert.Error(t, ValidateTaskSpec(Unit("fortnight"), monthlySpec(1, 2)))
}
