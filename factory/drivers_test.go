package factory_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/factory"
)

func v(s string) engine.Value { return engine.MustParseValue(s) }

const blendTable = `
drivers:
  - name: coal_price_eastern
    kind: input
    unit: $/ton
    category: coal_price
    default: "55.00"
    min: "0"
    max: "200"
    escalation: coal
  - name: coal_price_ilb
    kind: input
    unit: $/ton
    category: coal_price
    default: "45.00"
    escalation: coal
  - name: coal_blend_eastern_pct
    kind: input
    category: coal_price
    default: "60"
  - name: coal_blend_ilb_pct
    kind: input
    category: coal_price
    default: "40"
  - name: coal_price_blended
    kind: calculated
    category: coal_price
    formula:
      weighted_sum:
        fallback: coal_price_eastern
        terms:
          - {value: coal_price_eastern, weight: coal_blend_eastern_pct}
          - {value: coal_price_ilb, weight: coal_blend_ilb_pct}
  - name: escalation_coal_annual
    kind: input
    unit: "%"
    category: escalation
    default: "2.0"
    display_order: 99
`

func TestParseRegistry_BuildsDrivers(t *testing.T) {
	// GIVEN: a table with inputs, an escalation tag and a formula
	f := factory.NewDriverFactory()

	// WHEN: building the registry
	reg, err := f.ParseRegistry([]byte(blendTable))

	// THEN: every row becomes a driver in table order
	require.NoError(t, err)
	assert.Equal(t, 6, reg.Len())

	eastern, err := reg.Get("coal_price_eastern")
	require.NoError(t, err)
	assert.Equal(t, engine.KindInput, eastern.Kind)
	assert.Equal(t, engine.Unit("$/ton"), eastern.Unit)
	assert.True(t, eastern.Default.Equal(v("55")))
	require.NotNil(t, eastern.Min)
	require.NotNil(t, eastern.Max)
	assert.True(t, eastern.Max.Equal(v("200")))
	assert.Equal(t, engine.DriverName("escalation_coal_annual"), eastern.EscalatesWith)
	assert.Equal(t, 1, eastern.DisplayOrder)

	ilb, _ := reg.Get("coal_price_ilb")
	assert.Nil(t, ilb.Min)

	rate, _ := reg.Get("escalation_coal_annual")
	assert.Equal(t, 99, rate.DisplayOrder)

	blended, err := reg.Get("coal_price_blended")
	require.NoError(t, err)
	assert.Equal(t, engine.KindCalculated, blended.Kind)
	assert.ElementsMatch(t,
		[]engine.DriverName{"coal_price_eastern", "coal_price_ilb", "coal_blend_eastern_pct", "coal_blend_ilb_pct"},
		blended.Formula.Refs())

	got, err := blended.Formula.Eval(engine.Scope{Values: map[engine.DriverName]engine.Value{
		"coal_price_eastern": v("55"), "coal_price_ilb": v("45"),
		"coal_blend_eastern_pct": v("60"), "coal_blend_ilb_pct": v("40"),
	}})
	require.NoError(t, err)
	assert.True(t, got.Equal(v("51")))
}

func TestParse_FormulaNodes(t *testing.T) {
	table := `
drivers:
  - name: capacity_mw
    kind: input
    default: "100"
  - name: use_factor
    kind: input
    default: "50"
  - name: gen
    kind: calculated
    formula:
      product: [capacity_mw, period_hours, {percent: use_factor}]
  - name: scaled
    kind: calculated
    formula: {scale: {arg: gen, factor: "0.001"}}
  - name: guarded
    kind: calculated
    formula:
      ratio: {num: gen, den: {const: "0"}, fallback: "7"}
  - name: clipped
    kind: calculated
    formula:
      if: {left: use_factor, op: gt, right: "40", then: {max: ["1", "2"]}, else: {min: ["1", "2"]}}
  - name: net
    kind: calculated
    formula:
      difference: [{sum: [gen, "10"]}, {ref: capacity_mw}]
`
	reg, err := factory.NewDriverFactory().ParseRegistry([]byte(table))
	require.NoError(t, err)

	scope := engine.Scope{
		Period: engine.Monthly(2025, time.February),
		Values: map[engine.DriverName]engine.Value{"capacity_mw": v("100"), "use_factor": v("50")},
	}
	eval := func(name engine.DriverName) engine.Value {
		d, err := reg.Get(name)
		require.NoError(t, err)
		out, err := d.Formula.Eval(scope)
		require.NoError(t, err)
		scope.Values[name] = out
		return out
	}

	// February 2025 has 672 hours
	assert.True(t, eval("gen").Equal(v("33600")))
	assert.True(t, eval("scaled").Equal(v("33.6")))
	assert.True(t, eval("guarded").Equal(v("7")))
	assert.True(t, eval("clipped").Equal(v("2")))
	assert.True(t, eval("net").Equal(v("33510")))
}

func TestParse_AcceptsJSON(t *testing.T) {
	table := `{"drivers": [
		{"name": "a", "kind": "input", "default": "1.5"},
		{"name": "b", "kind": "calculated", "formula": {"sum": ["a", "a"]}}
	]}`

	reg, err := factory.NewDriverFactory().ParseRegistry([]byte(table))
	require.NoError(t, err)

	b, err := reg.Get("b")
	require.NoError(t, err)
	out, err := b.Formula.Eval(engine.Scope{Values: map[engine.DriverName]engine.Value{"a": v("1.5")}})
	require.NoError(t, err)
	assert.True(t, out.Equal(v("3")))
	assert.Equal(t, engine.CategoryOther, b.Category)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		message string
	}{
		{
			name:    "empty table",
			table:   "drivers: []",
			message: "Drivers",
		},
		{
			name:    "bad name",
			table:   "drivers:\n  - {name: Coal-Price, kind: input}",
			message: "driver_name",
		},
		{
			name:    "unknown kind",
			table:   "drivers:\n  - {name: a, kind: derived}",
			message: "oneof",
		},
		{
			name:    "bad decimal default",
			table:   "drivers:\n  - {name: a, kind: input, default: lots}",
			message: "decimal",
		},
		{
			name:    "calculated without formula",
			table:   "drivers:\n  - {name: a, kind: calculated}",
			message: "required_if",
		},
		{
			name:    "input with formula",
			table:   "drivers:\n  - {name: a, kind: input, formula: \"1\"}",
			message: "excluded_if",
		},
		{
			name:    "unknown category",
			table:   "drivers:\n  - {name: a, kind: input, category: emissions}",
			message: "oneof",
		},
	}

	f := factory.NewDriverFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Parse([]byte(tt.table))
			require.Error(t, err)
			assert.True(t, errors.Is(err, engine.ErrInvalidDefinition))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParse_MalformedFormula(t *testing.T) {
	tests := map[string]string{
		"two keys":     `{sum: [a], product: [a]}`,
		"unknown kind": `{power: [a, "2"]}`,
		"bad const":    `{const: abc}`,
		"bad factor":   `{scale: {arg: a, factor: big}}`,
	}
	for name, formula := range tests {
		t.Run(name, func(t *testing.T) {
			table := "drivers:\n  - {name: a, kind: input}\n  - {name: b, kind: calculated, formula: " + formula + "}"
			_, err := factory.NewDriverFactory().Parse([]byte(table))
			assert.Error(t, err)
		})
	}
}

func TestBuild_RejectsInconsistentCatalog(t *testing.T) {
	f := factory.NewDriverFactory()

	// GIVEN: two formulas that depend on each other
	cycle := `
drivers:
  - {name: a, kind: calculated, formula: {sum: [b, "1"]}}
  - {name: b, kind: calculated, formula: {sum: [a, "1"]}}
`
	_, err := f.ParseRegistry([]byte(cycle))
	assert.True(t, errors.Is(err, engine.ErrCyclicDependency))

	// GIVEN: a formula naming a driver that is not in the table
	missing := "drivers:\n  - {name: a, kind: calculated, formula: {sum: [ghost]}}"
	_, err = f.ParseRegistry([]byte(missing))
	assert.True(t, errors.Is(err, engine.ErrUnknownDriver))

	// GIVEN: an escalation tag without its rate driver
	noRate := "drivers:\n  - {name: a, kind: input, default: \"1\", escalation: fuel}"
	_, err = f.ParseRegistry([]byte(noRate))
	assert.True(t, errors.Is(err, engine.ErrUnknownDriver))

	// GIVEN: the same name twice
	dup := "drivers:\n  - {name: a, kind: input}\n  - {name: a, kind: input}"
	_, err = f.ParseRegistry([]byte(dup))
	assert.Error(t, err)
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drivers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blendTable), 0o600))

	reg, err := factory.NewDriverFactory().LoadRegistryFile(path)
	require.NoError(t, err)
	assert.True(t, reg.Has("coal_price_blended"))

	_, err = factory.NewDriverFactory().LoadRegistryFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	table, err := factory.NewDriverFactory().Load(strings.NewReader(blendTable))
	require.NoError(t, err)
	assert.Len(t, table.Drivers, 6)
}
