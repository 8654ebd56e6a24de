/*
evaluator.go - Dependency-ordered evaluation of one (scenario, period)

PURPOSE:
  Produces the EvaluatedSet for a scenario and a period by walking the
  registry's topological order once. Each driver resolves as:

    1. Explicit override for exactly (scenario, driver, period)
    2. CALCULATED: the formula over already-resolved dependencies
    3. INPUT inside a projection: the escalated previous value
    4. The driver's default

  Step 3 only applies when the projector passes the previous period's set;
  a plain Evaluate call never escalates.

DETERMINISM:
  The order is fixed at registry construction (registration order breaks
  ties) and nothing is cached, so identical overrides give identical output.

FAILURES:
  UnknownScenarioError, UnknownDriverError (override names an unregistered
  driver), TypeMismatchError (override outside the driver's domain). Errors
  abort this call only and are never retried.

SEE ALSO:
  - projection.go: Drives the evaluator across periods
  - driver.go: Registry and evaluation order
*/
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ValuePrecision is the number of decimal places escalated values keep.
const ValuePrecision = 12

// Evaluator resolves driver values. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	Registry  *Registry
	Values    ValueStore
	Scenarios ScenarioStore
	Logger    *zerolog.Logger
}

// NewEvaluator wires an evaluator over a store that provides both values and
// scenarios.
func NewEvaluator(reg *Registry, store interface {
	ValueStore
	ScenarioStore
}) *Evaluator {
	return &Evaluator{Registry: reg, Values: store, Scenarios: store}
}

func (e *Evaluator) log() *zerolog.Logger {
	if e.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return e.Logger
}

// Evaluate returns the full driver set for one scenario and period.
func (e *Evaluator) Evaluate(ctx context.Context, id ScenarioID, p Period) (*EvaluatedSet, error) {
	if _, err := lookupScenario(ctx, e.Scenarios, id); err != nil {
		return nil, err
	}
	return e.evaluate(ctx, id, p, nil)
}

func (e *Evaluator) evaluate(ctx context.Context, id ScenarioID, p Period, prev *EvaluatedSet) (*EvaluatedSet, error) {
	if p.IsZero() || !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}

	rows, err := e.Values.Overrides(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("load overrides for %s %s: %w", id, p, err)
	}
	overrides, err := e.checkOverrides(id, p, rows)
	if err != nil {
		return nil, err
	}

	reg := e.Registry
	set := &EvaluatedSet{
		ScenarioID: id,
		Period:     p,
		Values:     make(map[DriverName]Value, reg.Len()),
		Order:      reg.Order(),
		Overridden: make(map[DriverName]bool, len(overrides)),
	}

	for _, name := range set.Order {
		d := reg.drivers[reg.byName[name]]

		if v, ok := overrides[name]; ok {
			set.Values[name] = v
			set.Overridden[name] = true
			continue
		}

		switch {
		case d.Kind == KindCalculated:
			v, err := d.Formula.Eval(Scope{Period: p, Values: set.Values})
			if err != nil {
				return nil, fmt.Errorf("evaluate %s for scenario %s in %s: %w", name, id, p, err)
			}
			set.Values[name] = v

		case prev != nil && d.EscalatesWith != "":
			base, ok := prev.Values[name]
			if !ok {
				base = d.Default
			}
			v, err := Escalate(base, set.Values[d.EscalatesWith], yearsBetween(prev.Period, p))
			if err != nil {
				return nil, fmt.Errorf("escalate %s into %s: %w", name, p, err)
			}
			set.Values[name] = v

		default:
			set.Values[name] = d.Default
		}
	}

	e.log().Debug().
		Str("scenario", string(id)).
		Str("period", p.String()).
		Int("overrides", len(overrides)).
		Msg("evaluated driver set")
	return set, nil
}

// checkOverrides validates stored rows against the registry.
func (e *Evaluator) checkOverrides(id ScenarioID, p Period, rows []DriverValue) (map[DriverName]Value, error) {
	out := make(map[DriverName]Value, len(rows))
	for _, row := range rows {
		if row.Period != p {
			continue
		}
		d, err := e.Registry.lookup(row.Driver)
		if err != nil {
			return nil, err
		}
		if err := d.CheckValue(row.Value); err != nil {
			mismatch := err.(*TypeMismatchError)
			mismatch.ScenarioID = id
			mismatch.Period = p
			return nil, mismatch
		}
		out[row.Driver] = row.Value
	}
	return out, nil
}

// Escalate compounds base by (1 + ratePct/100)^years. Whole-year exponents are
// exact; fractional ones are computed to ValuePrecision places.
func Escalate(base, ratePct, years Value) (Value, error) {
	if years.IsZero() || ratePct.IsZero() {
		return base, nil
	}
	growth := one.Add(ratePct.Div(hundred))

	var factor Value
	if years.Equal(years.Truncate(0)) {
		factor = growth.Pow(years)
	} else {
		f, err := growth.PowWithPrecision(years, ValuePrecision+6)
		if err != nil {
			return zero, err
		}
		factor = f
	}
	return base.Mul(factor).Round(ValuePrecision), nil
}

func lookupScenario(ctx context.Context, store ScenarioStore, id ScenarioID) (Scenario, error) {
	s, err := store.GetScenario(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return Scenario{}, &UnknownScenarioError{ScenarioID: id}
		}
		return Scenario{}, fmt.Errorf("load scenario %s: %w", id, err)
	}
	return s, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
