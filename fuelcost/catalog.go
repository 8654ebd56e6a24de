/*
Package fuelcost is the fuel domain built on the engine.

PURPOSE:
  Supplies the default driver catalog for a coal-fired plant and maps an
  evaluated driver set into reportable cost categories and $/MWh.

KEY CONCEPTS:
  - drivers.yaml: Embedded default catalog (prices, blends, heat rate,
    generation, inventory, consumables, byproducts, escalation)
  - CategoryMap: Static table of which cost drivers roll into which category
  - Calculator: Pure function from EvaluatedSet to CostSummary
  - Summarize / Annual / Combine: Horizon, calendar-year and system roll-ups

USAGE:
  reg, _ := fuelcost.DefaultRegistry()
  calc, _ := fuelcost.NewCalculator(reg, fuelcost.DefaultCategoryMap())
  summary, err := calc.Compute(set)
  if !summary.CostPerMWh.Defined { report summary.Total instead }

SEE ALSO:
  - engine/: The calculation core
  - factory/drivers.go: Table format
*/
package fuelcost

import (
	_ "embed"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/factory"
)

//go:embed drivers.yaml
var defaultTable []byte

// DefaultTable returns the embedded catalog source.
func DefaultTable() []byte {
	out := make([]byte, len(defaultTable))
	copy(out, defaultTable)
	return out
}

// DefaultRegistry builds the embedded catalog.
func DefaultRegistry() (*engine.Registry, error) {
	return factory.NewDriverFactory().ParseRegistry(defaultTable)
}

// Driver names the calculator reads besides the category members.
const (
	DriverNetGeneration engine.DriverName = "net_delivered_mwh"
	DriverCoalBurnTons  engine.DriverName = "coal_burn_tons"
	DriverCoalMMBtu     engine.DriverName = "coal_mmbtu_consumed"
)
