/*
projection.go - Multi-year projection with escalation

PURPOSE:
  Runs the evaluator across an ordered schedule of periods for one
  scenario, carrying escalating inputs forward from each period to the
  next.

GRANULARITY:
  Periods inside the 24-month window from the scenario's as-of date are
  MONTHLY, later periods are ANNUAL (see calendar.go for mid-year as-of
  dates). The boundary is not configurable per scenario.

ESCALATION:
  For an input driver tagged with an escalation_<category>_annual rate and
  no override in period P:

    v(P) = v(P-1) × (1 + rate(P)/100)^Δyears

  Δyears is months/12 inside the monthly window and whole years afterwards.
  The last monthly value (December) is the base of the first annual period,
  so there is no re-basing at the boundary. Overrides always win, and the
  next period escalates from the override.

  The chain always starts at the scenario's as-of month. A projection that
  starts later first walks the lead-in periods without yielding them, so a
  (scenario, period) pair resolves to the same values whatever the start.

ITERATION:
  A Projection is a finite, restartable sequence. Iter returns a fresh lazy
  iterator each time; only the previous period's set is held in memory.
  Collect is the all-or-nothing form: partial results are never returned.

EXAMPLE:
  proj, err := projector.Project(ctx, "budget-2025", engine.Monthly(2025, 1), 16)
  it := proj.Iter(ctx)
  for it.Next() {
      fmt.Println(it.Period(), it.Set().Get("coal_price_eastern"))
  }
  if err := it.Err(); err != nil { ... }

SEE ALSO:
  - evaluator.go: Single-period resolution and Escalate
  - calendar.go: Schedule and boundary
*/
package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Projector produces multi-year projections.
type Projector struct {
	Evaluator *Evaluator
	Logger    *zerolog.Logger
}

func NewProjector(ev *Evaluator) *Projector {
	return &Projector{Evaluator: ev, Logger: ev.Logger}
}

// Projection is the planned sequence of periods for a scenario. Evaluation
// happens lazily during iteration.
type Projection struct {
	ScenarioID   ScenarioID
	Start        Period
	HorizonYears int
	Calendar     Calendar
	Periods      []Period

	// lead holds the periods between the as-of month and Start. They are
	// evaluated to seed escalation but never yielded.
	lead []Period
	ev   *Evaluator
}

// Project validates the request and plans the schedule. Fails with
// InvalidHorizonError outside 1-16 years and UnknownScenarioError for
// unknown ids.
func (pr *Projector) Project(ctx context.Context, id ScenarioID, start Period, horizonYears int) (*Projection, error) {
	if horizonYears < MinHorizonYears || horizonYears > MaxHorizonYears {
		return nil, &InvalidHorizonError{Years: horizonYears}
	}
	s, err := lookupScenario(ctx, pr.Evaluator.Scenarios, id)
	if err != nil {
		return nil, err
	}

	asOf := s.AsOf
	if asOf.IsZero() {
		asOf = start.Start()
	}
	cal := NewCalendar(asOf)
	periods, err := cal.Schedule(start, horizonYears)
	if err != nil {
		return nil, err
	}
	lead := cal.Lead(start)

	if pr.Logger != nil {
		pr.Logger.Debug().
			Str("scenario", string(id)).
			Str("start", start.String()).
			Int("years", horizonYears).
			Int("periods", len(periods)).
			Int("lead", len(lead)).
			Str("annual_from", cal.Boundary().String()).
			Msg("planned projection")
	}

	return &Projection{
		ScenarioID:   id,
		Start:        periods[0],
		HorizonYears: horizonYears,
		Calendar:     cal,
		Periods:      periods,
		lead:         lead,
		ev:           pr.Evaluator,
	}, nil
}

// Iter returns a new iterator positioned before the first period.
func (p *Projection) Iter(ctx context.Context) *ProjectionIterator {
	return &ProjectionIterator{proj: p, ctx: ctx}
}

// Each calls fn for every period in order, stopping at the first error.
func (p *Projection) Each(ctx context.Context, fn func(*EvaluatedSet) error) error {
	it := p.Iter(ctx)
	for it.Next() {
		if err := fn(it.Set()); err != nil {
			return err
		}
	}
	return it.Err()
}

// Collect evaluates the whole horizon. On error no sets are returned.
func (p *Projection) Collect(ctx context.Context) ([]*EvaluatedSet, error) {
	out := make([]*EvaluatedSet, 0, len(p.Periods))
	if err := p.Each(ctx, func(s *EvaluatedSet) error {
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectionIterator walks a projection lazily, in the style of sql.Rows.
type ProjectionIterator struct {
	proj *Projection
	ctx  context.Context
	next int
	cur  *EvaluatedSet
	err  error
}

// Next evaluates the following period. It returns false at the end of the
// horizon or after an error; check Err.
func (it *ProjectionIterator) Next() bool {
	if it.err != nil || it.next >= len(it.proj.Periods) {
		return false
	}
	if it.next == 0 && it.cur == nil {
		if err := it.seed(); err != nil {
			it.err = err
			return false
		}
	}
	p := it.proj.Periods[it.next]
	set, err := it.proj.ev.evaluate(it.ctx, it.proj.ScenarioID, p, it.cur)
	if err != nil {
		it.err = err
		it.cur = nil
		return false
	}
	it.cur = set
	it.next++
	return true
}

// seed evaluates the lead-in periods and keeps only the last set as the
// escalation base of the first yielded period.
func (it *ProjectionIterator) seed() error {
	for _, p := range it.proj.lead {
		if err := it.ctx.Err(); err != nil {
			return err
		}
		set, err := it.proj.ev.evaluate(it.ctx, it.proj.ScenarioID, p, it.cur)
		if err != nil {
			it.cur = nil
			return err
		}
		it.cur = set
	}
	return nil
}

func (it *ProjectionIterator) Period() Period {
	if it.cur == nil {
		return Period{}
	}
	return it.cur.Period
}

func (it *ProjectionIterator) Set() *EvaluatedSet { return it.cur }
func (it *ProjectionIterator) Err() error         { return it.err }
