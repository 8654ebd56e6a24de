package engine

import (
	"time"
)

// =============================================================================
// CALENDAR - Enumerates forecast periods around the granularity boundary
// =============================================================================

const (
	// MonthlyWindowMonths is the number of months after the as-of date that
	// are forecast monthly. Fixed by sponsor reporting.
	MonthlyWindowMonths = 24

	MinHorizonYears = 1
	MaxHorizonYears = 16
)

// Calendar knows the as-of date of a scenario and decides which periods a
// projection is made of.
//
// The monthly window covers the 24 months starting at the as-of month. Annual
// periods are calendar years, so when the window ends mid-year the remaining
// months of that year stay monthly and annual buckets begin the following
// January. No calendar month is ever represented at both granularities.
type Calendar struct {
	AsOf time.Time
}

// NewCalendar returns a calendar anchored at the month containing asOf.
func NewCalendar(asOf time.Time) Calendar {
	return Calendar{AsOf: time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// AsOfPeriod is the monthly period containing the as-of date.
func (c Calendar) AsOfPeriod() Period {
	return MonthOf(c.AsOf)
}

// Boundary returns the first annual period.
func (c Calendar) Boundary() Period {
	end := c.AsOfPeriod().monthIndex() + MonthlyWindowMonths
	if rem := end % 12; rem != 0 {
		end += 12 - rem
	}
	return Annual(end / 12)
}

// GranularityOf reports how a calendar month is represented.
func (c Calendar) GranularityOf(month Period) Granularity {
	if month.monthIndex() < c.Boundary().monthIndex() {
		return GranularityMonthly
	}
	return GranularityAnnual
}

// Bucket maps a calendar month to the period that represents it.
func (c Calendar) Bucket(month Period) Period {
	if month.IsAnnual() {
		month = Monthly(month.Year, time.January)
	}
	if c.GranularityOf(month) == GranularityMonthly {
		return month
	}
	return Annual(month.Year)
}

// Schedule enumerates the periods covering horizonYears from the bucket of
// start, in ascending order. A start month in annual territory snaps to its
// calendar year, so the horizon never reaches back before that bucket nor
// past horizonYears buckets.
func (c Calendar) Schedule(start Period, horizonYears int) ([]Period, error) {
	if horizonYears < MinHorizonYears || horizonYears > MaxHorizonYears {
		return nil, &InvalidHorizonError{Years: horizonYears}
	}
	if !start.Valid() || start.IsZero() {
		return nil, ErrInvalidPeriod
	}

	from := c.Bucket(start).monthIndex()
	return c.between(from, from+12*horizonYears), nil
}

// Lead returns the periods from the as-of month up to, not including, the
// bucket of start. Empty when start is not after the as-of month.
func (c Calendar) Lead(start Period) []Period {
	return c.between(c.AsOfPeriod().monthIndex(), c.Bucket(start).monthIndex())
}

// between lists the buckets whose first month lies in [from, to).
func (c Calendar) between(from, to int) []Period {
	boundary := c.Boundary().monthIndex()
	var periods []Period
	for i := from; i < to; {
		if i < boundary {
			periods = append(periods, periodFromIndex(i))
			i++
			continue
		}
		year := i / 12
		periods = append(periods, Annual(year))
		i = (year + 1) * 12
	}
	return periods
}

// IsFrozen reports whether a period lies strictly before the frozen
// boundary. An annual period is frozen only if its whole year is.
func IsFrozen(p Period, frozenBefore Period) bool {
	if frozenBefore.IsZero() {
		return false
	}
	return p.End().Before(frozenBefore.Start())
}
