/*
demo.go - Demo data loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the store with realistic
	scenarios. Each demo creates scenarios and overrides that show one
	feature of the engine.

AVAILABLE DEMOS:

	blend-study:  Budget with a three-coal blend, locked, then cloned into an
	              internal forecast and rolled forward to April
	two-plants:   Budgets for two plants, for the system cost roll-up

HOW DEMOS WORK:
 1. Create the root scenario(s) with fixed ids
 2. Set overrides through the ScenarioManager, so every write is audited
 3. Derive clones and roll-forwards from them

USAGE VIA API:

	POST /api/demo/load
	{"demo_id": "blend-study"}

NOTE:

	Demos never reset the store. Loading a demo twice fails with 409 because
	its root scenario id already exists.

SEE ALSO:
  - handlers.go: Error mapping
  - fuelcost/drivers.yaml: Driver names used below
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// DEMO DEFINITIONS
// =============================================================================

var demos = []DemoDTO{
	{
		ID:          "blend-study",
		Name:        "Blend Study",
		Description: "Locked 2025 budget burning a 50/30/20 Eastern/ILB/PRB blend, an internal forecast clone, and an April roll-forward",
	},
	{
		ID:          "two-plants",
		Name:        "Two Plants",
		Description: "2025 budgets for two plants of different size, for the system cost roll-up",
	},
}

type demoOverride struct {
	driver engine.DriverName
	period string
	value  string
}

// ListDemos returns the available demo data sets.
// GET /api/demo
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demos)
}

// LoadDemo creates the scenarios of one demo.
// POST /api/demo/load
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	var (
		created []engine.Scenario
		err     error
	)
	switch req.DemoID {
	case "blend-study":
		created, err = h.loadBlendStudy(ctx)
	case "two-plants":
		created, err = h.loadTwoPlants(ctx)
	default:
		writeError(w, http.StatusNotFound, "Unknown demo", fmt.Errorf("demo %q", req.DemoID))
		return
	}
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := LoadDemoResponse{DemoID: req.DemoID, Scenarios: make([]ScenarioDTO, len(created))}
	for i, s := range created {
		resp.Scenarios[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// DEMO LOADERS
// =============================================================================

func (h *Handler) loadBlendStudy(ctx context.Context) ([]engine.Scenario, error) {
	budget, err := h.Manager.Create(ctx, engine.CreateRequest{
		ID:   "demo-budget-2025",
		Name: "2025 Budget",
		Type: engine.ScenarioBudget,
		AsOf: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, err
	}

	var overrides []demoOverride
	for m := 1; m <= 12; m++ {
		p := fmt.Sprintf("2025-%02d", m)
		overrides = append(overrides,
			demoOverride{"coal_blend_eastern_pct", p, "50"},
			demoOverride{"coal_blend_ilb_pct", p, "30"},
			demoOverride{"coal_blend_prb_pct", p, "20"},
		)
	}
	overrides = append(overrides,
		demoOverride{"coal_price_eastern", "2025-01", "58.25"},
		demoOverride{"use_factor", "2025-04", "60"},
		demoOverride{"use_factor", "2025-05", "60"},
		demoOverride{"escalation_coal_annual", "2027", "3.5"},
	)
	if err := h.applyOverrides(ctx, budget.ID, overrides); err != nil {
		return nil, err
	}
	if budget, err = h.Manager.Lock(ctx, budget.ID); err != nil {
		return nil, err
	}

	forecast, err := h.Manager.Clone(ctx, budget.ID, engine.ScenarioInternalForecast)
	if err != nil {
		return nil, err
	}
	// Actuals for the first quarter came in above budget
	err = h.applyOverrides(ctx, forecast.ID, []demoOverride{
		{"coal_price_eastern", "2025-02", "61.10"},
		{"coal_price_eastern", "2025-03", "60.40"},
		{"coal_deliveries_tons", "2025-03", "72000"},
	})
	if err != nil {
		return nil, err
	}

	rolled, err := h.Manager.RollForward(ctx, forecast.ID, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	err = h.applyOverrides(ctx, rolled.ID, []demoOverride{
		{"coal_price_eastern", "2025-06", "62.00"},
	})
	if err != nil {
		return nil, err
	}

	return []engine.Scenario{budget, forecast, rolled}, nil
}

func (h *Handler) loadTwoPlants(ctx context.Context) ([]engine.Scenario, error) {
	plants := []struct {
		id       engine.ScenarioID
		name     string
		capacity string
		factor   string
	}{
		{"demo-plant-kc", "Kentucky Creek 2025 Budget", "650", "85"},
		{"demo-plant-cc", "Cedar Cliff 2025 Budget", "420", "72"},
	}

	var out []engine.Scenario
	for _, p := range plants {
		s, err := h.Manager.Create(ctx, engine.CreateRequest{
			ID:   p.id,
			Name: p.name,
			Type: engine.ScenarioBudget,
			AsOf: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			return nil, err
		}
		var overrides []demoOverride
		for m := 1; m <= 12; m++ {
			period := fmt.Sprintf("2025-%02d", m)
			overrides = append(overrides,
				demoOverride{"capacity_mw", period, p.capacity},
				demoOverride{"use_factor", period, p.factor},
			)
		}
		if err := h.applyOverrides(ctx, s.ID, overrides); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (h *Handler) applyOverrides(ctx context.Context, id engine.ScenarioID, overrides []demoOverride) error {
	for _, o := range overrides {
		p, err := engine.ParsePeriod(o.period)
		if err != nil {
			return err
		}
		if _, err := h.Manager.SetOverride(ctx, id, o.driver, p, engine.MustParseValue(o.value)); err != nil {
			return fmt.Errorf("demo override %s@%s: %w", o.driver, o.period, err)
		}
	}
	return nil
}
