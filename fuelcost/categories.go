package fuelcost

import (
	"fmt"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// COST CATEGORIES
// =============================================================================

// CostCategory is a reporting bucket.
type CostCategory string

const (
	CategoryCoal           CostCategory = "coal_procurement"
	CategoryTransportation CostCategory = "transportation"
	CategoryConsumables    CostCategory = "consumables"
	CategoryByproducts     CostCategory = "byproducts"
)

// CategoryMap lists, in reporting order, the monetary drivers that roll into
// each category. It is static: membership never changes at runtime.
type CategoryMap []CategoryMembers

type CategoryMembers struct {
	Category CostCategory
	Drivers  []engine.DriverName
}

// DefaultCategoryMap matches the embedded catalog.
func DefaultCategoryMap() CategoryMap {
	return CategoryMap{
		{Category: CategoryCoal, Drivers: []engine.DriverName{"coal_cost"}},
		{Category: CategoryTransportation, Drivers: []engine.DriverName{"transportation_cost"}},
		{Category: CategoryConsumables, Drivers: []engine.DriverName{"limestone_cost", "urea_cost"}},
		{Category: CategoryByproducts, Drivers: []engine.DriverName{"ash_net_cost", "gypsum_net_cost"}},
	}
}

// Validate checks that every member exists and belongs to one category only.
func (m CategoryMap) Validate(reg *engine.Registry) error {
	owner := make(map[engine.DriverName]CostCategory)
	seen := make(map[CostCategory]bool)
	for _, c := range m {
		if seen[c.Category] {
			return fmt.Errorf("cost category %s listed twice", c.Category)
		}
		seen[c.Category] = true
		for _, d := range c.Drivers {
			if prev, dup := owner[d]; dup {
				return fmt.Errorf("driver %s in both %s and %s", d, prev, c.Category)
			}
			owner[d] = c.Category
			if _, err := reg.Get(d); err != nil {
				return fmt.Errorf("cost category %s: %w", c.Category, err)
			}
		}
	}
	return nil
}

// Categories returns the category names in reporting order.
func (m CategoryMap) Categories() []CostCategory {
	out := make([]CostCategory, len(m))
	for i, c := range m {
		out[i] = c.Category
	}
	return out
}
