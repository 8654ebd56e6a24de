/*
Package engine provides the driver-based fuel cost calculation core.

PURPOSE:
  This package contains the domain-agnostic machinery that turns a catalog of
  named drivers plus per-scenario overrides into fully evaluated values. The
  fuel domain (which drivers exist, how they roll into cost categories) lives
  in package fuelcost; this package only knows about drivers, periods,
  scenarios and the rules that connect them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Value: A decimal quantity (never float64)
  - DriverName / ScenarioID: Type-safe identifiers
  - Kind, Category, ScenarioType, Source: Closed enumerations
  - EvaluatedSet: The ephemeral result of one evaluation

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 16-year projections never drift
  2. Determinism: Same registry + same overrides = same output, always
  3. Type Safety: Strong typing keeps driver names and scenario ids apart
  4. No hidden state: Every call takes (scenario, period) explicitly

USAGE:
  reg, _ := engine.NewRegistry(drivers...)
  ev := &engine.Evaluator{Registry: reg, Values: store, Scenarios: store}
  set, err := ev.Evaluate(ctx, "budget-2025", engine.Monthly(2025, time.January))
  price := set.Get("coal_price_blended")

SEE ALSO:
  - driver.go: Driver definitions and the Registry
  - formula.go: Formula expressions for calculated drivers
  - evaluator.go: Dependency-ordered evaluation
  - projection.go: Multi-year escalation
  - scenario.go: Scenario lifecycle (clone, roll-forward, lock)
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// VALUE - Decimal quantity
// =============================================================================

// Value is the numeric type of every driver. Percentages are stored at their
// natural magnitude (85 means 85%).
type Value = decimal.Decimal

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// MustParseValue parses a decimal literal, panicking on malformed input.
// Only meant for package-level tables and tests.
func MustParseValue(s string) Value {
	return decimal.RequireFromString(s)
}

// ParseValue parses a decimal literal.
func ParseValue(s string) (Value, error) {
	return decimal.NewFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DriverName string
type ScenarioID string

// Unit is a semantic tag only (tons, $/ton, %, MW, BTU/kWh, ...). The engine
// never converts between units.
type Unit string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Kind distinguishes user inputs from derived drivers.
type Kind string

const (
	KindInput      Kind = "input"
	KindCalculated Kind = "calculated"
)

// Category groups drivers for browsing and for escalation naming.
type Category string

const (
	CategoryCoalPrice      Category = "coal_price"
	CategoryTransportation Category = "transportation"
	CategoryHeatRate       Category = "heat_rate"
	CategoryGeneration     Category = "generation"
	CategoryInventory      Category = "inventory"
	CategoryConsumables    Category = "consumables"
	CategoryByproducts     Category = "byproducts"
	CategoryCost           Category = "cost"
	CategoryEscalation     Category = "escalation"
	CategoryOther          Category = "other"
)

// ScenarioType is the forecast version family.
type ScenarioType string

const (
	ScenarioBudget           ScenarioType = "budget"
	ScenarioInternalForecast ScenarioType = "internal_forecast"
	ScenarioExternalForecast ScenarioType = "external_forecast"
)

// Valid reports whether t is one of the known scenario types.
func (t ScenarioType) Valid() bool {
	switch t {
	case ScenarioBudget, ScenarioInternalForecast, ScenarioExternalForecast:
		return true
	}
	return false
}

// Source records how a stored driver value came to exist.
type Source string

const (
	SourceOverride      Source = "override"       // Written by a user or an import
	SourceRolledForward Source = "rolled_forward" // Frozen actual copied by roll-forward
)

// =============================================================================
// EVALUATED SET - Output of one evaluation
// =============================================================================

// EvaluatedSet is the full driver_name → value map for one (scenario, period).
// It is produced fresh on every evaluation and is never cached.
type EvaluatedSet struct {
	ScenarioID ScenarioID
	Period     Period
	Values     map[DriverName]Value

	// Order is the evaluation order, kept so callers can render or compare
	// sets without re-sorting.
	Order []DriverName

	// Overridden lists the drivers whose value came from an explicit override.
	Overridden map[DriverName]bool
}

// Get returns the value of a driver, or zero when absent.
func (s *EvaluatedSet) Get(name DriverName) Value {
	return s.Values[name]
}

// Lookup returns the value of a driver and whether it was present.
func (s *EvaluatedSet) Lookup(name DriverName) (Value, bool) {
	v, ok := s.Values[name]
	return v, ok
}
