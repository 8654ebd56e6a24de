/*
formula.go - Formula expressions for calculated drivers

PURPOSE:
  Calculated drivers are defined as data, not code. A formula is a small
  expression tree evaluated by a tiny interpreter. This keeps the driver
  catalog editable without code changes while the evaluator contract
  (acyclic, pure, deterministic) stays enforceable: dependencies are read
  straight off the tree.

EXPRESSION KINDS:
  const         A literal decimal
  ref           The resolved value of another driver
  weighted_sum  Σ value×weight / Σ weight (Fallback when Σ weight = 0)
  ratio         Num / Den (Fallback when Den = 0)
  conditional   If Left <op> Right then Then else Else
  sum           Σ args
  difference    args[0] - args[1] - ...
  product       Π args
  max, min      Extremes of args
  scale         Arg × Factor (e.g. ÷100 for a percentage)
  period_hours  Clock hours in the evaluated period

EXAMPLE:
  Blended coal price:

    engine.WeightedSum(nil,
        engine.Term(engine.Ref("coal_price_eastern"), engine.Ref("coal_blend_eastern_pct")),
        engine.Term(engine.Ref("coal_price_ilb"), engine.Ref("coal_blend_ilb_pct")),
    )

SEE ALSO:
  - factory/drivers.go: YAML/JSON encoding of expressions
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ExprKind tags the variant held by an Expr.
type ExprKind string

const (
	ExprConst       ExprKind = "const"
	ExprRef         ExprKind = "ref"
	ExprWeightedSum ExprKind = "weighted_sum"
	ExprRatio       ExprKind = "ratio"
	ExprConditional ExprKind = "conditional"
	ExprSum         ExprKind = "sum"
	ExprDifference  ExprKind = "difference"
	ExprProduct     ExprKind = "product"
	ExprMax         ExprKind = "max"
	ExprMin         ExprKind = "min"
	ExprScale       ExprKind = "scale"
	ExprPeriodHours ExprKind = "period_hours"
)

// CompareOp is the comparison used by a conditional expression.
type CompareOp string

const (
	OpLT CompareOp = "lt"
	OpLE CompareOp = "le"
	OpGT CompareOp = "gt"
	OpGE CompareOp = "ge"
	OpEQ CompareOp = "eq"
	OpNE CompareOp = "ne"
)

// Expr is a formula node. Only the fields relevant to Kind are set.
type Expr struct {
	Kind ExprKind

	Const    Value      // const; factor for scale
	Ref      DriverName // ref
	Args     []*Expr    // sum, difference, product, max, min; single arg for scale
	Terms    []WeightedTerm
	Num      *Expr
	Den      *Expr
	Op       CompareOp
	Left     *Expr
	Right    *Expr
	Then     *Expr
	Else     *Expr
	Fallback *Expr // weighted_sum and ratio; zero when nil
}

// WeightedTerm is one (value, weight) pair of a weighted sum.
type WeightedTerm struct {
	Value  *Expr
	Weight *Expr
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func Const(v Value) *Expr            { return &Expr{Kind: ExprConst, Const: v} }
func ConstString(s string) *Expr     { return Const(MustParseValue(s)) }
func Ref(name DriverName) *Expr      { return &Expr{Kind: ExprRef, Ref: name} }
func Sum(args ...*Expr) *Expr        { return &Expr{Kind: ExprSum, Args: args} }
func Difference(args ...*Expr) *Expr { return &Expr{Kind: ExprDifference, Args: args} }
func Product(args ...*Expr) *Expr    { return &Expr{Kind: ExprProduct, Args: args} }
func Max(args ...*Expr) *Expr        { return &Expr{Kind: ExprMax, Args: args} }
func Min(args ...*Expr) *Expr        { return &Expr{Kind: ExprMin, Args: args} }
func PeriodHours() *Expr             { return &Expr{Kind: ExprPeriodHours} }

func Scale(arg *Expr, factor Value) *Expr {
	return &Expr{Kind: ExprScale, Args: []*Expr{arg}, Const: factor}
}

// Percent converts a natural-magnitude percentage to a fraction.
func Percent(arg *Expr) *Expr {
	return Scale(arg, decimal.New(1, -2))
}

func Term(value, weight *Expr) WeightedTerm {
	return WeightedTerm{Value: value, Weight: weight}
}

func WeightedSum(fallback *Expr, terms ...WeightedTerm) *Expr {
	return &Expr{Kind: ExprWeightedSum, Terms: terms, Fallback: fallback}
}

func Ratio(num, den, fallback *Expr) *Expr {
	return &Expr{Kind: ExprRatio, Num: num, Den: den, Fallback: fallback}
}

func If(left *Expr, op CompareOp, right *Expr, then, otherwise *Expr) *Expr {
	return &Expr{Kind: ExprConditional, Left: left, Op: op, Right: right, Then: then, Else: otherwise}
}

// =============================================================================
// STRUCTURE
// =============================================================================

// Clone returns a deep copy of the expression tree. Nil stays nil.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	out := *e
	if e.Args != nil {
		out.Args = make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			out.Args[i] = a.Clone()
		}
	}
	if e.Terms != nil {
		out.Terms = make([]WeightedTerm, len(e.Terms))
		for i, t := range e.Terms {
			out.Terms[i] = WeightedTerm{Value: t.Value.Clone(), Weight: t.Weight.Clone()}
		}
	}
	out.Num = e.Num.Clone()
	out.Den = e.Den.Clone()
	out.Left = e.Left.Clone()
	out.Right = e.Right.Clone()
	out.Then = e.Then.Clone()
	out.Else = e.Else.Clone()
	out.Fallback = e.Fallback.Clone()
	return &out
}

// Refs returns the driver names referenced by the expression, in first-seen
// order without duplicates.
func (e *Expr) Refs() []DriverName {
	var out []DriverName
	seen := make(map[DriverName]bool)
	e.walk(func(n *Expr) {
		if n.Kind == ExprRef && !seen[n.Ref] {
			seen[n.Ref] = true
			out = append(out, n.Ref)
		}
	})
	return out
}

func (e *Expr) walk(fn func(*Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, a := range e.Args {
		a.walk(fn)
	}
	for _, t := range e.Terms {
		t.Value.walk(fn)
		t.Weight.walk(fn)
	}
	for _, c := range []*Expr{e.Num, e.Den, e.Left, e.Right, e.Then, e.Else, e.Fallback} {
		c.walk(fn)
	}
}

// Check validates the shape of the tree (arity, operators, missing children).
func (e *Expr) Check() error {
	if e == nil {
		return fmt.Errorf("empty expression")
	}
	switch e.Kind {
	case ExprConst, ExprPeriodHours:
	case ExprRef:
		if e.Ref == "" {
			return fmt.Errorf("ref without driver name")
		}
	case ExprSum, ExprProduct, ExprMax, ExprMin:
		if len(e.Args) == 0 {
			return fmt.Errorf("%s needs at least one argument", e.Kind)
		}
	case ExprDifference:
		if len(e.Args) < 2 {
			return fmt.Errorf("difference needs at least two arguments")
		}
	case ExprScale:
		if len(e.Args) != 1 {
			return fmt.Errorf("scale needs exactly one argument")
		}
	case ExprWeightedSum:
		if len(e.Terms) == 0 {
			return fmt.Errorf("weighted_sum needs at least one term")
		}
		for _, t := range e.Terms {
			if t.Value == nil || t.Weight == nil {
				return fmt.Errorf("weighted_sum term needs value and weight")
			}
		}
	case ExprRatio:
		if e.Num == nil || e.Den == nil {
			return fmt.Errorf("ratio needs num and den")
		}
	case ExprConditional:
		if e.Left == nil || e.Right == nil || e.Then == nil || e.Else == nil {
			return fmt.Errorf("conditional needs left, right, then and else")
		}
		switch e.Op {
		case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		default:
			return fmt.Errorf("unknown comparison %q", e.Op)
		}
	default:
		return fmt.Errorf("unknown expression kind %q", e.Kind)
	}

	var err error
	e.children(func(c *Expr) {
		if err == nil {
			err = c.Check()
		}
	})
	return err
}

func (e *Expr) children(fn func(*Expr)) {
	for _, a := range e.Args {
		fn(a)
	}
	for _, t := range e.Terms {
		fn(t.Value)
		fn(t.Weight)
	}
	for _, c := range []*Expr{e.Num, e.Den, e.Left, e.Right, e.Then, e.Else, e.Fallback} {
		if c != nil {
			fn(c)
		}
	}
}

// =============================================================================
// INTERPRETER
// =============================================================================

// Scope supplies the inputs of one formula evaluation.
type Scope struct {
	Period Period
	Values map[DriverName]Value
}

// Eval evaluates the expression. Every ref must already be resolved in the
// scope; the topological order guarantees that.
func (e *Expr) Eval(s Scope) (Value, error) {
	switch e.Kind {
	case ExprConst:
		return e.Const, nil

	case ExprRef:
		v, ok := s.Values[e.Ref]
		if !ok {
			return zero, &UnknownDriverError{Driver: e.Ref}
		}
		return v, nil

	case ExprPeriodHours:
		return s.Period.Hours(), nil

	case ExprSum, ExprDifference, ExprProduct, ExprMax, ExprMin:
		vals, err := evalAll(e.Args, s)
		if err != nil {
			return zero, err
		}
		acc := vals[0]
		for _, v := range vals[1:] {
			switch e.Kind {
			case ExprSum:
				acc = acc.Add(v)
			case ExprDifference:
				acc = acc.Sub(v)
			case ExprProduct:
				acc = acc.Mul(v)
			case ExprMax:
				acc = decimal.Max(acc, v)
			case ExprMin:
				acc = decimal.Min(acc, v)
			}
		}
		return acc, nil

	case ExprScale:
		v, err := e.Args[0].Eval(s)
		if err != nil {
			return zero, err
		}
		return v.Mul(e.Const), nil

	case ExprWeightedSum:
		total, weights := zero, zero
		for _, t := range e.Terms {
			v, err := t.Value.Eval(s)
			if err != nil {
				return zero, err
			}
			w, err := t.Weight.Eval(s)
			if err != nil {
				return zero, err
			}
			total = total.Add(v.Mul(w))
			weights = weights.Add(w)
		}
		if weights.IsZero() {
			return e.fallback(s)
		}
		return total.Div(weights), nil

	case ExprRatio:
		num, err := e.Num.Eval(s)
		if err != nil {
			return zero, err
		}
		den, err := e.Den.Eval(s)
		if err != nil {
			return zero, err
		}
		if den.IsZero() {
			return e.fallback(s)
		}
		return num.Div(den), nil

	case ExprConditional:
		l, err := e.Left.Eval(s)
		if err != nil {
			return zero, err
		}
		r, err := e.Right.Eval(s)
		if err != nil {
			return zero, err
		}
		if compare(l, e.Op, r) {
			return e.Then.Eval(s)
		}
		return e.Else.Eval(s)
	}
	return zero, fmt.Errorf("unknown expression kind %q", e.Kind)
}

func (e *Expr) fallback(s Scope) (Value, error) {
	if e.Fallback == nil {
		return zero, nil
	}
	return e.Fallback.Eval(s)
}

func evalAll(args []*Expr, s Scope) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := a.Eval(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func compare(l Value, op CompareOp, r Value) bool {
	c := l.Cmp(r)
	switch op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	}
	return false
}
