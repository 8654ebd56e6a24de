package fuelcost

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// RATE - $/MWh that may be undefined
// =============================================================================

// Rate is a cost per MWh. With zero net generation the ratio has no value:
// Defined is false and Infinite reports whether there was any cost to divide.
// Costs are billed regardless of generation, so the raw total is always
// reported alongside.
type Rate struct {
	Value    engine.Value `json:"value"`
	Defined  bool         `json:"defined"`
	Infinite bool         `json:"infinite,omitempty"`
}

// NewRate divides cost by mwh.
func NewRate(cost, mwh engine.Value) Rate {
	if mwh.IsZero() {
		return Rate{Infinite: !cost.IsZero()}
	}
	return Rate{Value: cost.Div(mwh), Defined: true}
}

func (r Rate) String() string {
	switch {
	case r.Defined:
		return r.Value.StringFixed(2)
	case r.Infinite:
		return "inf"
	}
	return "n/a"
}

// =============================================================================
// COST SUMMARY
// =============================================================================

// CategoryTotal is one reporting line.
type CategoryTotal struct {
	Category CostCategory                       `json:"category"`
	Amount   engine.Value                       `json:"amount"`
	PerMWh   Rate                               `json:"per_mwh"`
	Drivers  map[engine.DriverName]engine.Value `json:"drivers"`
}

// CostSummary is the cost of one period, or of a span of periods after
// Summarize, or of several plants after Combine.
type CostSummary struct {
	ScenarioID engine.ScenarioID `json:"scenario_id,omitempty"`
	Label      string            `json:"label,omitempty"`
	From       engine.Period     `json:"from"`
	To         engine.Period     `json:"to"`
	Periods    int               `json:"periods"`

	Categories []CategoryTotal `json:"categories"`
	Total      engine.Value    `json:"total"`

	NetGenerationMWh engine.Value `json:"net_generation_mwh"`
	CoalBurnTons     engine.Value `json:"coal_burn_tons"`
	CoalMMBtu        engine.Value `json:"coal_mmbtu"`

	CostPerMWh Rate `json:"cost_per_mwh"`
}

// Category returns the line for c, or nil.
func (s *CostSummary) Category(c CostCategory) *CategoryTotal {
	for i := range s.Categories {
		if s.Categories[i].Category == c {
			return &s.Categories[i]
		}
	}
	return nil
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator maps evaluated driver sets to cost summaries. It has no state
// beyond its static category table.
type Calculator struct {
	categories CategoryMap
}

// NewCalculator validates the category table against the registry.
func NewCalculator(reg *engine.Registry, categories CategoryMap) (*Calculator, error) {
	if err := categories.Validate(reg); err != nil {
		return nil, err
	}
	for _, d := range []engine.DriverName{DriverNetGeneration, DriverCoalBurnTons, DriverCoalMMBtu} {
		if !reg.Has(d) {
			return nil, fmt.Errorf("cost calculator: %w", &engine.UnknownDriverError{Driver: d})
		}
	}
	return &Calculator{categories: categories}, nil
}

// Compute returns category totals and $/MWh for one evaluated set. Zero
// net generation is not an error: the rates come back undefined.
func (c *Calculator) Compute(set *engine.EvaluatedSet) (*CostSummary, error) {
	get := func(d engine.DriverName) (engine.Value, error) {
		v, ok := set.Lookup(d)
		if !ok {
			return decimal.Zero, fmt.Errorf("compute costs for %s: %w", set.Period, &engine.UnknownDriverError{Driver: d})
		}
		return v, nil
	}

	out := &CostSummary{
		ScenarioID: set.ScenarioID,
		From:       set.Period,
		To:         set.Period,
		Periods:    1,
		Categories: make([]CategoryTotal, 0, len(c.categories)),
	}
	var err error
	if out.NetGenerationMWh, err = get(DriverNetGeneration); err != nil {
		return nil, err
	}
	if out.CoalBurnTons, err = get(DriverCoalBurnTons); err != nil {
		return nil, err
	}
	if out.CoalMMBtu, err = get(DriverCoalMMBtu); err != nil {
		return nil, err
	}

	for _, members := range c.categories {
		line := CategoryTotal{
			Category: members.Category,
			Drivers:  make(map[engine.DriverName]engine.Value, len(members.Drivers)),
		}
		for _, d := range members.Drivers {
			v, err := get(d)
			if err != nil {
				return nil, err
			}
			line.Drivers[d] = v
			line.Amount = line.Amount.Add(v)
		}
		out.Total = out.Total.Add(line.Amount)
		out.Categories = append(out.Categories, line)
	}
	out.rate()
	return out, nil
}

// rate recomputes every $/MWh from the totals.
func (s *CostSummary) rate() {
	for i := range s.Categories {
		s.Categories[i].PerMWh = NewRate(s.Categories[i].Amount, s.NetGenerationMWh)
	}
	s.CostPerMWh = NewRate(s.Total, s.NetGenerationMWh)
}

// =============================================================================
// ROLL-UPS
// =============================================================================

// Summarize adds period summaries of one scenario into a single span. Rates
// are recomputed from the summed totals, never averaged.
func Summarize(parts ...*CostSummary) (*CostSummary, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("summarize: no periods")
	}
	out := emptyLike(parts[0])
	out.ScenarioID = parts[0].ScenarioID
	for _, p := range parts {
		if p.ScenarioID != out.ScenarioID {
			return nil, fmt.Errorf("summarize: mixed scenarios %s and %s", out.ScenarioID, p.ScenarioID)
		}
		if p.From.Before(out.From) {
			out.From = p.From
		}
		if p.To.After(out.To) {
			out.To = p.To
		}
		out.Periods += p.Periods
		if err := out.add(p); err != nil {
			return nil, err
		}
	}
	out.rate()
	return out, nil
}

// Annual groups period summaries into calendar years, in year order. Monthly
// and annual periods of the same year fold into one total.
func Annual(parts []*CostSummary) ([]*CostSummary, error) {
	byYear := make(map[int][]*CostSummary)
	for _, p := range parts {
		if p.From.Year != p.To.Year {
			return nil, fmt.Errorf("annual: summary %s-%s spans years", p.From, p.To)
		}
		byYear[p.From.Year] = append(byYear[p.From.Year], p)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]*CostSummary, 0, len(years))
	for _, y := range years {
		s, err := Summarize(byYear[y]...)
		if err != nil {
			return nil, err
		}
		s.From, s.To = engine.Annual(y), engine.Annual(y)
		out = append(out, s)
	}
	return out, nil
}

// Combine adds summaries of different plants covering the same span into a
// system total.
func Combine(label string, plants ...*CostSummary) (*CostSummary, error) {
	if len(plants) == 0 {
		return nil, fmt.Errorf("combine: no plants")
	}
	out := emptyLike(plants[0])
	out.Label = label
	out.From, out.To, out.Periods = plants[0].From, plants[0].To, plants[0].Periods
	for _, p := range plants {
		if p.From != out.From || p.To != out.To {
			return nil, fmt.Errorf("combine: span %s-%s differs from %s-%s", p.From, p.To, out.From, out.To)
		}
		if err := out.add(p); err != nil {
			return nil, err
		}
	}
	out.rate()
	return out, nil
}

func emptyLike(s *CostSummary) *CostSummary {
	out := &CostSummary{From: s.From, To: s.To, Categories: make([]CategoryTotal, len(s.Categories))}
	for i, c := range s.Categories {
		out.Categories[i] = CategoryTotal{Category: c.Category, Drivers: make(map[engine.DriverName]engine.Value, len(c.Drivers))}
	}
	return out
}

func (s *CostSummary) add(p *CostSummary) error {
	if len(p.Categories) != len(s.Categories) {
		return fmt.Errorf("cost categories differ")
	}
	for i, c := range p.Categories {
		line := &s.Categories[i]
		if line.Category != c.Category {
			return fmt.Errorf("cost category %s does not line up with %s", c.Category, line.Category)
		}
		line.Amount = line.Amount.Add(c.Amount)
		for d, v := range c.Drivers {
			line.Drivers[d] = line.Drivers[d].Add(v)
		}
	}
	s.Total = s.Total.Add(p.Total)
	s.NetGenerationMWh = s.NetGenerationMWh.Add(p.NetGenerationMWh)
	s.CoalBurnTons = s.CoalBurnTons.Add(p.CoalBurnTons)
	s.CoalMMBtu = s.CoalMMBtu.Add(p.CoalMMBtu)
	return nil
}
