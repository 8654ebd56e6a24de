package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func v(s string) engine.Value { return engine.MustParseValue(s) }

func vp(s string) *engine.Value {
	x := v(s)
	return &x
}

func jan(year int) engine.Period { return engine.Monthly(year, time.January) }

func asOf(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// assertNear checks two values agree to 1e-6.
func assertNear(t *testing.T, want, got engine.Value, msgAndArgs ...interface{}) {
	t.Helper()
	diff := want.Sub(got).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -6)),
		append([]interface{}{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

// testDrivers is a small coal catalog: two priced coals, a blend, an
// escalation rate and a cost built on top of the blended price.
func testDrivers() []engine.Driver {
	return []engine.Driver{
		{
			Name: "coal_price_eastern", Kind: engine.KindInput, Unit: "$/ton",
			Category: engine.CategoryCoalPrice, Default: v("55.00"), Min: vp("0"),
			EscalatesWith: "escalation_coal_annual",
		},
		{
			Name: "coal_price_ilb", Kind: engine.KindInput, Unit: "$/ton",
			Category: engine.CategoryCoalPrice, Default: v("45.00"), Min: vp("0"),
			EscalatesWith: "escalation_coal_annual",
		},
		{
			Name: "coal_blend_eastern_pct", Kind: engine.KindInput, Unit: "%",
			Category: engine.CategoryCoalPrice, Default: v("100"), Min: vp("0"), Max: vp("100"),
		},
		{
			Name: "coal_blend_ilb_pct", Kind: engine.KindInput, Unit: "%",
			Category: engine.CategoryCoalPrice, Default: v("0"), Min: vp("0"), Max: vp("100"),
		},
		{
			Name: "coal_price_blended", Kind: engine.KindCalculated, Unit: "$/ton",
			Category: engine.CategoryCoalPrice,
			Formula: engine.WeightedSum(engine.Ref("coal_price_eastern"),
				engine.Term(engine.Ref("coal_price_eastern"), engine.Ref("coal_blend_eastern_pct")),
				engine.Term(engine.Ref("coal_price_ilb"), engine.Ref("coal_blend_ilb_pct")),
			),
		},
		{
			Name: "coal_tons_consumed", Kind: engine.KindInput, Unit: "tons",
			Category: engine.CategoryInventory, Default: v("80000"), Min: vp("0"),
		},
		{
			Name: "coal_cost", Kind: engine.KindCalculated, Unit: "$",
			Category: engine.CategoryCost,
			Formula:  engine.Product(engine.Ref("coal_price_blended"), engine.Ref("coal_tons_consumed")),
		},
		{
			Name: "escalation_coal_annual", Kind: engine.KindInput, Unit: "%",
			Category: engine.CategoryEscalation, Default: v("2.0"), Min: vp("-10"), Max: vp("20"),
		},
	}
}

func testRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	reg, err := engine.NewRegistry(testDrivers()...)
	require.NoError(t, err)
	return reg
}

// testEnv wires the engine over an in-memory store with deterministic ids
// and clock.
type testEnv struct {
	ctx       context.Context
	store     *store.Memory
	registry  *engine.Registry
	evaluator *engine.Evaluator
	projector *engine.Projector
	manager   *engine.ScenarioManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := testRegistry(t)
	mem := store.NewMemory()
	ev := engine.NewEvaluator(reg, mem)
	mgr := engine.NewScenarioManager(reg, mem)

	n := 0
	mgr.NewID = func() engine.ScenarioID {
		n++
		return engine.ScenarioID(fmt.Sprintf("scn-%d", n))
	}
	clock := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	mgr.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return &testEnv{
		ctx:       context.Background(),
		store:     mem,
		registry:  reg,
		evaluator: ev,
		projector: engine.NewProjector(ev),
		manager:   mgr,
	}
}

func (e *testEnv) budget(t *testing.T, id engine.ScenarioID, year int) engine.Scenario {
	t.Helper()
	s, err := e.manager.Create(e.ctx, engine.CreateRequest{
		ID: id, Name: string(id), Type: engine.ScenarioBudget, AsOf: asOf(year, time.January),
	})
	require.NoError(t, err)
	return s
}

func (e *testEnv) set(t *testing.T, id engine.ScenarioID, driver engine.DriverName, p engine.Period, value string) {
	t.Helper()
	_, err := e.manager.SetOverride(e.ctx, id, driver, p, v(value))
	require.NoError(t, err)
}

func (e *testEnv) eval(t *testing.T, id engine.ScenarioID, p engine.Period) *engine.EvaluatedSet {
	t.Helper()
	set, err := e.evaluator.Evaluate(e.ctx, id, p)
	require.NoError(t, err)
	return set
}
