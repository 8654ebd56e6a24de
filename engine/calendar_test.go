package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod_OrderingAndText(t *testing.T) {
	assert.True(t, engine.Annual(2025).Before(engine.Monthly(2025, time.January)))
	assert.True(t, engine.Monthly(2025, time.December).Before(engine.Annual(2026)))
	assert.Equal(t, "2025-03", engine.Monthly(2025, time.March).String())
	assert.Equal(t, "2027", engine.Annual(2027).String())

	for in, want := range map[string]engine.Period{
		"2025-03": engine.Monthly(2025, time.March),
		"202503":  engine.Monthly(2025, time.March),
		"2027":    engine.Annual(2027),
	} {
		got, err := engine.ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "2025-13", "25-01", "abcd", "1800"} {
		_, err := engine.ParsePeriod(bad)
		assert.True(t, errors.Is(err, engine.ErrInvalidPeriod), bad)
	}
}

func TestPeriod_JSONMapKey(t *testing.T) {
	in := map[engine.Period]string{engine.Monthly(2025, time.May): "m", engine.Annual(2030): "y"}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-05":"m","2030":"y"}`, string(raw))

	var out map[engine.Period]string
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

// =============================================================================
// CALENDAR TESTS
// =============================================================================

func TestCalendar_JanuaryAsOf_24MonthsThenAnnual(t *testing.T) {
	// GIVEN: as-of January 2025
	cal := engine.NewCalendar(asOf(2025, time.January))

	// WHEN: scheduling 16 years
	periods, err := cal.Schedule(jan(2025), 16)
	require.NoError(t, err)

	// THEN: exactly 24 monthly periods, then annual 2027..2040
	require.Len(t, periods, 24+14)
	for i := 0; i < 24; i++ {
		assert.True(t, periods[i].IsMonthly(), periods[i].String())
	}
	assert.Equal(t, engine.Monthly(2026, time.December), periods[23])
	assert.Equal(t, engine.Annual(2027), periods[24])
	assert.Equal(t, engine.Annual(2040), periods[len(periods)-1])
	assert.Equal(t, engine.Annual(2027), cal.Boundary())
}

func TestCalendar_MidYearAsOf_RoundsBoundaryToJanuary(t *testing.T) {
	// GIVEN: as-of July 2025, so the 24-month window ends June 2027
	cal := engine.NewCalendar(time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC))

	// THEN: 2027 stays monthly to December, annual buckets start 2028
	assert.Equal(t, engine.Annual(2028), cal.Boundary())
	assert.Equal(t, engine.GranularityMonthly, cal.GranularityOf(engine.Monthly(2027, time.June)))
	assert.Equal(t, engine.GranularityMonthly, cal.GranularityOf(engine.Monthly(2027, time.December)))
	assert.Equal(t, engine.GranularityAnnual, cal.GranularityOf(jan(2028)))
	assert.Equal(t, engine.Annual(2029), cal.Bucket(engine.Monthly(2029, time.August)))

	periods, err := cal.Schedule(engine.Monthly(2025, time.July), 3)
	require.NoError(t, err)
	assert.Len(t, periods, 30+1)
}

func TestCalendar_NoMonthRepresentedTwice(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		cal := engine.NewCalendar(asOf(2025, m))
		periods, err := cal.Schedule(engine.Monthly(2025, m), 16)
		require.NoError(t, err)

		covered := make(map[engine.Period]int)
		for _, p := range periods {
			if p.IsAnnual() {
				for mm := time.January; mm <= time.December; mm++ {
					covered[engine.Monthly(p.Year, mm)]++
				}
				continue
			}
			covered[p]++
		}
		for month, n := range covered {
			assert.Equal(t, 1, n, "as-of %s: %s covered %d times", m, month, n)
		}
		for i := 1; i < len(periods); i++ {
			assert.True(t, periods[i-1].Before(periods[i]))
		}
	}
}

func TestCalendar_StartSnapsToItsBucket(t *testing.T) {
	cal := engine.NewCalendar(asOf(2025, time.January))

	// A mid-year month in annual territory starts at its year
	periods, err := cal.Schedule(engine.Monthly(2028, time.June), 1)
	require.NoError(t, err)
	assert.Equal(t, []engine.Period{engine.Annual(2028)}, periods)

	periods, err = cal.Schedule(engine.Monthly(2028, time.June), 3)
	require.NoError(t, err)
	assert.Equal(t, []engine.Period{engine.Annual(2028), engine.Annual(2029), engine.Annual(2030)}, periods)

	// A whole year inside the monthly window starts at its January
	periods, err = cal.Schedule(engine.Annual(2025), 1)
	require.NoError(t, err)
	require.Len(t, periods, 12)
	assert.Equal(t, jan(2025), periods[0])
	assert.Equal(t, engine.Monthly(2025, time.December), periods[11])
}

func TestCalendar_Lead(t *testing.T) {
	cal := engine.NewCalendar(asOf(2025, time.January))

	assert.Empty(t, cal.Lead(jan(2025)))
	assert.Equal(t, []engine.Period{jan(2025), engine.Monthly(2025, time.February)},
		cal.Lead(engine.Monthly(2025, time.March)))

	lead := cal.Lead(engine.Monthly(2028, time.June))
	require.Len(t, lead, 24+1)
	assert.Equal(t, engine.Monthly(2026, time.December), lead[23])
	assert.Equal(t, engine.Annual(2027), lead[24])
}

func TestCalendar_InvalidHorizon(t *testing.T) {
	cal := engine.NewCalendar(asOf(2025, time.January))
	for _, years := range []int{0, 17, -1} {
		_, err := cal.Schedule(jan(2025), years)
		var horizon *engine.InvalidHorizonError
		require.ErrorAs(t, err, &horizon)
		assert.Equal(t, years, horizon.Years)
	}
}

func TestIsFrozen(t *testing.T) {
	frozen := engine.Monthly(2025, time.April)
	assert.True(t, engine.IsFrozen(engine.Monthly(2025, time.March), frozen))
	assert.False(t, engine.IsFrozen(engine.Monthly(2025, time.April), frozen))
	assert.True(t, engine.IsFrozen(engine.Annual(2024), frozen))
	assert.False(t, engine.IsFrozen(engine.Annual(2025), frozen), "partly open year stays editable")
	assert.False(t, engine.IsFrozen(engine.Monthly(2020, time.January), engine.Period{}))
}
