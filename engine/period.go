package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - A single forecast bucket
// =============================================================================

// Granularity is derived from a Period, never stored alongside it.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityAnnual  Granularity = "annual"
)

// Period is one forecast bucket. Month is 1-12 for monthly periods and 0 for
// annual periods. Periods order by (Year, Month), so an annual period sorts
// before the months of the same year.
type Period struct {
	Year  int
	Month int
}

// Monthly returns the monthly period for year/month.
func Monthly(year int, month time.Month) Period {
	return Period{Year: year, Month: int(month)}
}

// Annual returns the annual period for year.
func Annual(year int) Period {
	return Period{Year: year}
}

// MonthOf returns the monthly period containing t.
func MonthOf(t time.Time) Period {
	return Monthly(t.Year(), t.Month())
}

func (p Period) Granularity() Granularity {
	if p.Month == 0 {
		return GranularityAnnual
	}
	return GranularityMonthly
}

func (p Period) IsMonthly() bool { return p.Month != 0 }
func (p Period) IsAnnual() bool  { return p.Month == 0 }
func (p Period) IsZero() bool    { return p.Year == 0 && p.Month == 0 }

// Valid reports whether the period can exist on a calendar.
func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 2200 && p.Month >= 0 && p.Month <= 12
}

// Compare returns -1, 0 or +1 ordering by (year, month-or-0).
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	}
	return 0
}

func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }
func (p Period) After(other Period) bool  { return p.Compare(other) > 0 }

// Start returns the first day of the period.
func (p Period) Start() time.Time {
	m := p.Month
	if m == 0 {
		m = 1
	}
	return time.Date(p.Year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period.
func (p Period) End() time.Time {
	if p.IsAnnual() {
		return time.Date(p.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(p.Year, time.Month(p.Month)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return int(p.End().Sub(p.Start()).Hours()/24) + 1
}

// Hours returns the number of clock hours in the period.
func (p Period) Hours() Value {
	return decimal.NewFromInt(int64(p.Days() * 24))
}

// monthIndex is a dense month counter used for calendar arithmetic.
// Annual periods map to their January.
func (p Period) monthIndex() int {
	m := p.Month
	if m == 0 {
		m = 1
	}
	return p.Year*12 + m - 1
}

func periodFromIndex(i int) Period {
	return Period{Year: i / 12, Month: i%12 + 1}
}

// AddMonths shifts a monthly period. Annual periods are shifted from January.
func (p Period) AddMonths(n int) Period {
	return periodFromIndex(p.monthIndex() + n)
}

// Contains reports whether other falls inside p. An annual period contains
// itself and every month of its year.
func (p Period) Contains(other Period) bool {
	if p.IsAnnual() {
		return p.Year == other.Year
	}
	return p == other
}

// String returns "YYYY-MM" for monthly periods and "YYYY" for annual ones.
func (p Period) String() string {
	if p.IsAnnual() {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePeriod accepts "YYYY-MM", "YYYYMM" (the legacy period key) and "YYYY".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	var yearPart, monthPart string
	switch {
	case len(s) == 7 && s[4] == '-':
		yearPart, monthPart = s[:4], s[5:]
	case len(s) == 6:
		yearPart, monthPart = s[:4], s[4:]
	case len(s) == 4:
		yearPart = s
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}

	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period{Year: year}
	if monthPart != "" {
		month, err := strconv.Atoi(monthPart)
		if err != nil || month < 1 || month > 12 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		p.Month = month
	}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// MustParsePeriod is ParsePeriod for tables and tests.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// yearsBetween returns the escalation exponent for a step from prev to next:
// whole years when next is annual, months/12 otherwise.
func yearsBetween(prev, next Period) Value {
	if next.IsAnnual() {
		return decimal.NewFromInt(int64(next.Year - prev.Year))
	}
	months := next.monthIndex() - prev.monthIndex()
	return decimal.NewFromInt(int64(months)).Div(decimal.NewFromInt(12))
}
