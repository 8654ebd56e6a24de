package factory

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// FORMULA NODES
// =============================================================================

// ExprNode decodes one formula node into an engine expression.
type ExprNode struct {
	Expr *engine.Expr `validate:"-"`
}

type scaleNode struct {
	Arg    *ExprNode `yaml:"arg"`
	Factor string    `yaml:"factor"`
}

type ratioNode struct {
	Num      *ExprNode `yaml:"num"`
	Den      *ExprNode `yaml:"den"`
	Fallback *ExprNode `yaml:"fallback"`
}

type termNode struct {
	Value  *ExprNode `yaml:"value"`
	Weight *ExprNode `yaml:"weight"`
}

type weightedSumNode struct {
	Terms    []termNode `yaml:"terms"`
	Fallback *ExprNode  `yaml:"fallback"`
}

type ifNode struct {
	Left  *ExprNode `yaml:"left"`
	Op    string    `yaml:"op"`
	Right *ExprNode `yaml:"right"`
	Then  *ExprNode `yaml:"then"`
	Else  *ExprNode `yaml:"else"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *ExprNode) UnmarshalYAML(node *yaml.Node) error {
	expr, err := decodeExpr(node)
	if err != nil {
		return err
	}
	n.Expr = expr
	return nil
}

func decodeExpr(node *yaml.Node) (*engine.Expr, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, fmt.Errorf("line %d: formula node needs exactly one key", node.Line)
		}
		return decodeKind(node.Content[0].Value, node.Content[1])
	}
	return nil, fmt.Errorf("line %d: unexpected formula node", node.Line)
}

func decodeScalar(node *yaml.Node) (*engine.Expr, error) {
	if node.Value == "period_hours" {
		return engine.PeriodHours(), nil
	}
	if v, err := engine.ParseValue(node.Value); err == nil {
		return engine.Const(v), nil
	}
	if node.Value == "" {
		return nil, fmt.Errorf("line %d: empty formula node", node.Line)
	}
	return engine.Ref(engine.DriverName(node.Value)), nil
}

func decodeKind(kind string, body *yaml.Node) (*engine.Expr, error) {
	switch engine.ExprKind(kind) {
	case engine.ExprConst:
		v, err := engine.ParseValue(body.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: const: %w", body.Line, err)
		}
		return engine.Const(v), nil

	case engine.ExprRef:
		return engine.Ref(engine.DriverName(body.Value)), nil

	case engine.ExprPeriodHours:
		return engine.PeriodHours(), nil

	case engine.ExprSum, engine.ExprDifference, engine.ExprProduct, engine.ExprMax, engine.ExprMin:
		var args []*ExprNode
		if err := body.Decode(&args); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", body.Line, kind, err)
		}
		return &engine.Expr{Kind: engine.ExprKind(kind), Args: unwrap(args)}, nil

	case engine.ExprScale:
		var s scaleNode
		if err := body.Decode(&s); err != nil {
			return nil, err
		}
		factor, err := engine.ParseValue(s.Factor)
		if err != nil {
			return nil, fmt.Errorf("line %d: scale factor: %w", body.Line, err)
		}
		return engine.Scale(s.Arg.get(), factor), nil

	case engine.ExprRatio:
		var r ratioNode
		if err := body.Decode(&r); err != nil {
			return nil, err
		}
		return engine.Ratio(r.Num.get(), r.Den.get(), r.Fallback.get()), nil

	case engine.ExprWeightedSum:
		var w weightedSumNode
		if err := body.Decode(&w); err != nil {
			return nil, err
		}
		terms := make([]engine.WeightedTerm, len(w.Terms))
		for i, t := range w.Terms {
			terms[i] = engine.Term(t.Value.get(), t.Weight.get())
		}
		return engine.WeightedSum(w.Fallback.get(), terms...), nil

	case engine.ExprConditional, "if":
		var c ifNode
		if err := body.Decode(&c); err != nil {
			return nil, err
		}
		return engine.If(c.Left.get(), engine.CompareOp(c.Op), c.Right.get(), c.Then.get(), c.Else.get()), nil
	}

	if kind == "percent" {
		var arg ExprNode
		if err := body.Decode(&arg); err != nil {
			return nil, err
		}
		return engine.Percent(arg.Expr), nil
	}
	return nil, fmt.Errorf("line %d: unknown formula kind %q", body.Line, kind)
}

func (n *ExprNode) get() *engine.Expr {
	if n == nil {
		return nil
	}
	return n.Expr
}

func unwrap(nodes []*ExprNode) []*engine.Expr {
	out := make([]*engine.Expr, len(nodes))
	for i, n := range nodes {
		out[i] = n.get()
	}
	return out
}
