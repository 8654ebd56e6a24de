package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/engine"
)

func collect(t *testing.T, env *testEnv, id engine.ScenarioID, start engine.Period, years int) []*engine.EvaluatedSet {
	t.Helper()
	proj, err := env.projector.Project(env.ctx, id, start, years)
	require.NoError(t, err)
	sets, err := proj.Collect(env.ctx)
	require.NoError(t, err)
	return sets
}

func TestProject_EscalationLaw(t *testing.T) {
	// GIVEN: coal escalating at 2.0%/yr and no overrides
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)

	// WHEN: projecting three years from January 2025
	sets := collect(t, env, "budget", jan(2025), 3)

	// THEN: 24 monthly periods then annual 2027
	require.Len(t, sets, 25)
	month0 := sets[0].Get("coal_price_eastern")
	assert.True(t, month0.Equal(v("55.00")))

	// Month 12 is one year of compounding
	assert.Equal(t, jan(2026), sets[12].Period)
	assertNear(t, month0.Mul(v("1.02")), sets[12].Get("coal_price_eastern"))

	// December 2026 carries forward into annual 2027 with one more year
	dec := sets[23]
	annual := sets[24]
	assert.Equal(t, engine.Monthly(2026, time.December), dec.Period)
	assert.Equal(t, engine.Annual(2027), annual.Period)
	want := dec.Get("coal_price_eastern").Mul(v("1.02")).Round(engine.ValuePrecision)
	assert.True(t, want.Equal(annual.Get("coal_price_eastern")), "want %s got %s", want, annual.Get("coal_price_eastern"))

	// Calculated drivers follow their escalated inputs
	assert.True(t, annual.Get("coal_price_blended").Equal(annual.Get("coal_price_eastern")))
	// Non-escalating inputs hold their default
	assert.True(t, annual.Get("coal_tons_consumed").Equal(v("80000")))
}

func TestProject_OverrideWinsAndBecomesNewBase(t *testing.T) {
	// GIVEN: an explicit price in January 2026
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	env.set(t, "budget", "coal_price_eastern", jan(2026), "60")

	// WHEN: projecting
	sets := collect(t, env, "budget", jan(2025), 2)

	// THEN: the override wins in its period and the next month escalates from it
	assert.True(t, sets[12].Get("coal_price_eastern").Equal(v("60")))
	assert.True(t, sets[12].Overridden["coal_price_eastern"])
	next, err := engine.Escalate(v("60"), v("2.0"), v("1").Div(v("12")))
	require.NoError(t, err)
	assert.True(t, next.Equal(sets[13].Get("coal_price_eastern")))
}

func TestProject_RateOverrideAppliesFromItsPeriod(t *testing.T) {
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	for _, p := range []engine.Period{engine.Annual(2027), engine.Annual(2028)} {
		env.set(t, "budget", "escalation_coal_annual", p, "0")
	}

	sets := collect(t, env, "budget", jan(2025), 4)
	require.Len(t, sets, 26)
	assert.True(t, sets[24].Get("coal_price_eastern").Equal(sets[23].Get("coal_price_eastern")))
	assert.True(t, sets[25].Get("coal_price_eastern").Equal(sets[23].Get("coal_price_eastern")))
}

func TestProject_LaterStartResolvesLikeTheFullHorizon(t *testing.T) {
	// GIVEN: a budget with a mid-year price override
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	env.set(t, "budget", "coal_price_eastern", engine.Monthly(2025, time.June), "61")

	full := collect(t, env, "budget", jan(2025), 16)
	byPeriod := make(map[engine.Period]*engine.EvaluatedSet, len(full))
	for _, s := range full {
		byPeriod[s.Period] = s
	}

	// WHEN: projecting from later starts
	for _, start := range []engine.Period{
		engine.Annual(2030),
		engine.Monthly(2026, time.March),
		engine.Monthly(2029, time.June),
	} {
		sets := collect(t, env, "budget", start, 2)
		require.NotEmpty(t, sets)

		// THEN: every period carries the values of the full horizon
		for _, s := range sets {
			want, ok := byPeriod[s.Period]
			require.True(t, ok, "%s from %s", s.Period, start)
			for name, got := range s.Values {
				assert.True(t, want.Values[name].Equal(got),
					"%s %s from %s: want %s got %s", name, s.Period, start, want.Values[name], got)
			}
		}
	}

	// AND: a one-year projection of 2030 is escalated, not the default
	later := collect(t, env, "budget", engine.Annual(2030), 1)
	require.Len(t, later, 1)
	assert.Equal(t, engine.Annual(2030), later[0].Period)
	assert.True(t, byPeriod[engine.Annual(2030)].Get("coal_price_eastern").Equal(later[0].Get("coal_price_eastern")))
	assert.False(t, later[0].Get("coal_price_eastern").Equal(v("55")))
}

func TestProject_MidYearStartInAnnualTerritory(t *testing.T) {
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)

	proj, err := env.projector.Project(env.ctx, "budget", engine.Monthly(2028, time.June), 1)
	require.NoError(t, err)
	assert.Equal(t, []engine.Period{engine.Annual(2028)}, proj.Periods)
	assert.Equal(t, engine.Annual(2028), proj.Start)
}

func TestProject_ConcurrentScenarios(t *testing.T) {
	// GIVEN: two scenarios with different prices and their sequential projections
	env := newTestEnv(t)
	env.budget(t, "a", 2025)
	env.budget(t, "b", 2025)
	env.set(t, "b", "coal_price_eastern", jan(2025), "70")
	env.set(t, "b", "escalation_coal_annual", engine.Annual(2029), "5")

	want := map[engine.ScenarioID][]*engine.EvaluatedSet{
		"a": collect(t, env, "a", jan(2025), 16),
		"b": collect(t, env, "b", jan(2025), 16),
	}

	// WHEN: projecting both from several goroutines at once
	ids := []engine.ScenarioID{"a", "b", "a", "b", "a", "b", "a", "b"}
	results := make([][]*engine.EvaluatedSet, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proj, err := env.projector.Project(env.ctx, id, jan(2025), 16)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = proj.Collect(env.ctx)
		}()
	}
	wg.Wait()

	// THEN: each run matches the sequential result of its scenario
	for i, id := range ids {
		require.NoError(t, errs[i])
		require.Len(t, results[i], len(want[id]))
		for j, set := range results[i] {
			assert.Equal(t, id, set.ScenarioID)
			assert.Equal(t, want[id][j].Period, set.Period)
			for name, got := range set.Values {
				assert.True(t, want[id][j].Values[name].Equal(got), "%s %s %s", id, set.Period, name)
			}
		}
	}
	assert.False(t, want["a"][0].Get("coal_price_eastern").Equal(want["b"][0].Get("coal_price_eastern")))
}

func TestProject_Restartable(t *testing.T) {
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	proj, err := env.projector.Project(env.ctx, "budget", jan(2025), 16)
	require.NoError(t, err)

	var first, second []string
	for _, out := range []*[]string{&first, &second} {
		it := proj.Iter(env.ctx)
		for it.Next() {
			*out = append(*out, it.Period().String()+"="+it.Set().Get("coal_price_eastern").String())
		}
		require.NoError(t, it.Err())
	}
	assert.Len(t, first, len(proj.Periods))
	assert.Equal(t, first, second)
}

func TestProject_InvalidHorizon(t *testing.T) {
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	for _, years := range []int{0, 17} {
		_, err := env.projector.Project(env.ctx, "budget", jan(2025), years)
		assert.True(t, errors.Is(err, engine.ErrInvalidHorizon), "years=%d", years)
	}
}

func TestProject_UnknownScenario(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.projector.Project(env.ctx, "ghost", jan(2025), 1)
	assert.True(t, errors.Is(err, engine.ErrUnknownScenario))
}

func TestProject_FailureIsAtomic(t *testing.T) {
	// GIVEN: a bad stored row in the second year
	env := newTestEnv(t)
	env.budget(t, "budget", 2025)
	require.NoError(t, env.store.PutValues(env.ctx, []engine.DriverValue{{
		ScenarioID: "budget", Driver: "coal_tons_consumed", Period: jan(2026), Value: v("-1"),
	}}))

	proj, err := env.projector.Project(env.ctx, "budget", jan(2025), 2)
	require.NoError(t, err)

	// WHEN: collecting
	sets, err := proj.Collect(env.ctx)

	// THEN: no partial results
	assert.Nil(t, sets)
	assert.True(t, errors.Is(err, engine.ErrTypeMismatch))

	// AND: the iterator stops at the failing period
	it := proj.Iter(env.ctx)
	n := 0
	for it.Next() {
		n++
	}
	assert.Equal(t, 12, n)
	assert.Error(t, it.Err())
	assert.False(t, it.Next())
}
