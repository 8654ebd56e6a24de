package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/engine"
)

func TestRegistry_OrderIsTopologicalAndStable(t *testing.T) {
	// GIVEN: the test catalog
	reg := testRegistry(t)

	// WHEN: ordering twice
	first := reg.Order()
	second := reg.Order()

	// THEN: identical, and every dependency precedes its dependent
	assert.Equal(t, first, second)
	pos := make(map[engine.DriverName]int)
	for i, name := range first {
		pos[name] = i
	}
	for _, d := range reg.All() {
		for _, dep := range d.Dependencies() {
			assert.Less(t, pos[dep], pos[d.Name], "%s must precede %s", dep, d.Name)
		}
	}
	// Escalation rate is pulled ahead of the prices that escalate with it
	assert.Less(t, pos["escalation_coal_annual"], pos["coal_price_eastern"])
}

func TestRegistry_RegistrationOrderBreaksTies(t *testing.T) {
	reg, err := engine.NewRegistry(
		engine.Driver{Name: "b", Kind: engine.KindInput, Default: v("1")},
		engine.Driver{Name: "a", Kind: engine.KindInput, Default: v("2")},
		engine.Driver{Name: "c", Kind: engine.KindCalculated, Formula: engine.Sum(engine.Ref("a"), engine.Ref("b"))},
	)
	require.NoError(t, err)
	assert.Equal(t, []engine.DriverName{"b", "a", "c"}, reg.Order())
}

func TestRegistry_CycleFailsValidation(t *testing.T) {
	// GIVEN: x depends on y, y depends on z, z depends on x
	_, err := engine.NewRegistry(
		engine.Driver{Name: "base", Kind: engine.KindInput, Default: v("1")},
		engine.Driver{Name: "x", Kind: engine.KindCalculated, Formula: engine.Sum(engine.Ref("y"), engine.Ref("base"))},
		engine.Driver{Name: "y", Kind: engine.KindCalculated, Formula: engine.Ref("z")},
		engine.Driver{Name: "z", Kind: engine.KindCalculated, Formula: engine.Ref("x")},
	)

	// THEN: construction fails naming the cycle
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrCyclicDependency))
	var cyc *engine.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Len(t, cyc.Cycle, 4)
	assert.Equal(t, cyc.Cycle[0], cyc.Cycle[len(cyc.Cycle)-1])
	assert.ElementsMatch(t, []engine.DriverName{"x", "y", "z"}, cyc.Cycle[:3])
}

func TestRegistry_SelfReferenceIsACycle(t *testing.T) {
	_, err := engine.NewRegistry(
		engine.Driver{Name: "x", Kind: engine.KindCalculated, Formula: engine.Sum(engine.Ref("x"), engine.ConstString("1"))},
	)
	assert.True(t, errors.Is(err, engine.ErrCyclicDependency))
}

func TestRegistry_UnknownReference(t *testing.T) {
	_, err := engine.NewRegistry(
		engine.Driver{Name: "x", Kind: engine.KindCalculated, Formula: engine.Ref("missing")},
	)
	var unknown *engine.UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, engine.DriverName("missing"), unknown.Driver)
	assert.Equal(t, engine.DriverName("x"), unknown.Referrer)
}

func TestRegistry_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		drivers []engine.Driver
	}{
		{"duplicate", []engine.Driver{
			{Name: "a", Kind: engine.KindInput},
			{Name: "a", Kind: engine.KindInput},
		}},
		{"input with formula", []engine.Driver{
			{Name: "a", Kind: engine.KindInput, Formula: engine.ConstString("1")},
		}},
		{"calculated without formula", []engine.Driver{
			{Name: "a", Kind: engine.KindCalculated},
		}},
		{"default outside domain", []engine.Driver{
			{Name: "a", Kind: engine.KindInput, Default: v("-1"), Min: vp("0")},
		}},
		{"escalation rate is calculated", []engine.Driver{
			{Name: "r", Kind: engine.KindCalculated, Formula: engine.ConstString("2")},
			{Name: "a", Kind: engine.KindInput, EscalatesWith: "r"},
		}},
		{"unknown kind", []engine.Driver{
			{Name: "a", Kind: "magic"},
		}},
		{"bad conditional", []engine.Driver{
			{Name: "a", Kind: engine.KindCalculated, Formula: &engine.Expr{Kind: engine.ExprConditional}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.NewRegistry(tt.drivers...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrInvalidDefinition), err.Error())
		})
	}
}

func TestRegistry_GetAndByCategory(t *testing.T) {
	reg := testRegistry(t)

	d, err := reg.Get("coal_price_eastern")
	require.NoError(t, err)
	assert.True(t, d.Default.Equal(v("55")))

	_, err = reg.Get("nope")
	assert.True(t, engine.IsNotFound(err))

	prices := reg.ByCategory(engine.CategoryCoalPrice)
	require.Len(t, prices, 5)
	assert.Equal(t, engine.DriverName("coal_price_eastern"), prices[0].Name)

	assert.Len(t, reg.Escalating(), 2)
	assert.Equal(t, engine.DriverName("escalation_coal_annual"), engine.EscalationDriverName("coal"))
}

func TestRegistry_AccessorsReturnCopies(t *testing.T) {
	// GIVEN: a validated registry
	reg := testRegistry(t)

	// WHEN: a caller edits what the accessors hand out
	d, err := reg.Get("coal_price_eastern")
	require.NoError(t, err)
	d.Default = v("1")
	floor := v("-100")
	d.Min = &floor
	for _, all := range reg.All() {
		all.Default = v("2")
	}
	blended, err := reg.Get("coal_price_blended")
	require.NoError(t, err)
	blended.Formula.Terms = nil

	// THEN: the registry's definitions are unchanged
	again, err := reg.Get("coal_price_eastern")
	require.NoError(t, err)
	assert.True(t, again.Default.Equal(v("55")))
	assert.Error(t, again.CheckValue(v("-1")))

	again, err = reg.Get("coal_price_blended")
	require.NoError(t, err)
	assert.NotEmpty(t, again.Formula.Terms)
}
