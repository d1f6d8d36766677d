package tool

import (
	"bytes"
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// Expression documents
// ============================================================

// Node is the document form of an expression:
//
//	{type: num, value: "1/2"}
//	{type: sym, name: x}            {type: const, name: alpha}
//	{type: element, name: u}        {type: normal}
//	{type: add|mul, args: [...]}    {type: pow|div|sub, args: [a, b]}
//	{type: neg, args: [a]}          {type: func, name: sin, args: [a]}
//	{type: diff, vars: [x, y], args: [a]}
//	{type: index, index: 0, args: [a]}
//	{type: op, op: grad, args: [...]}
//	{type: trace, order: 1, args: [a]}
//	{type: mapping, index: 0}
//	{type: form, name: a}           {type: call, name: a, args: [...]}
//	{type: integral, boundary: Gamma_1, args: [a]}
type Node struct {
	Type     string   `json:"type" yaml:"type"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Value    Rat      `json:"value,omitempty" yaml:"value,omitempty"`
	Op       string   `json:"op,omitempty" yaml:"op,omitempty"`
	Vars     []string `json:"vars,omitempty" yaml:"vars,omitempty"`
	Index    int      `json:"index,omitempty" yaml:"index,omitempty"`
	Order    int      `json:"order,omitempty" yaml:"order,omitempty"`
	Boundary string   `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	Args     []*Node  `json:"args,omitempty" yaml:"args,omitempty"`
}

// Rat is an exact number written as an integer, a decimal or a fraction,
// quoted or not.
type Rat string

func (r *Rat) UnmarshalJSON(b []byte) error {
	*r = Rat(bytes.Trim(b, `"`))
	return nil
}

func (r *Rat) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("tool: line %d: number must be a scalar", n.Line)
	}
	*r = Rat(n.Value)
	return nil
}

func (r Rat) num() (*symbolic.Num, error) {
	v, ok := new(big.Rat).SetString(string(r))
	if !ok {
		return nil, fmt.Errorf("%w: bad number %q", ErrProblem, string(r))
	}
	return symbolic.NRat(v), nil
}

// Decode decodes n against the elements and forms of m.
func (m *Model) Decode(n *Node) (symbolic.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing expression", ErrProblem)
	}
	args := make([]symbolic.Expr, len(n.Args))
	if n.Type != "call" {
		for i, a := range n.Args {
			e, err := m.Decode(a)
			if err != nil {
				return nil, err
			}
			args[i] = e
		}
	}
	arity := func(k int) error {
		if len(args) != k {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrProblem, n.Type, k, len(args))
		}
		return nil
	}

	switch n.Type {
	case "num":
		v, err := n.Value.num()
		if err != nil {
			return nil, err
		}
		return v, nil
	case "sym":
		return symbolic.S(n.Name), nil
	case "const":
		return symbolic.C(n.Name), nil
	case "element":
		if el, ok := m.elements[n.Name]; ok {
			return el, nil
		}
		return nil, fmt.Errorf("%w: unknown element %q", ErrProblem, n.Name)
	case "normal":
		return topology.NormalVector(m.Domain.Dim()), nil
	case "add":
		return symbolic.AddOf(args...), nil
	case "mul":
		return symbolic.MulOf(args...), nil
	case "pow", "div", "sub":
		if err := arity(2); err != nil {
			return nil, err
		}
		switch n.Type {
		case "pow":
			return symbolic.PowOf(args[0], args[1]), nil
		case "div":
			return symbolic.DivOf(args[0], args[1]), nil
		}
		return symbolic.Minus(args[0], args[1]), nil
	case "neg":
		if err := arity(1); err != nil {
			return nil, err
		}
		return symbolic.Neg(args[0]), nil
	case "func":
		return symbolic.FuncOf(n.Name, args...), nil
	case "diff":
		if err := arity(1); err != nil {
			return nil, err
		}
		e := args[0]
		for _, v := range n.Vars {
			e = e.Diff(v)
		}
		return e, nil
	case "index":
		if err := arity(1); err != nil {
			return nil, err
		}
		return topology.Index(args[0], n.Index), nil
	case "op":
		op, ok := calculus.ParseOp(n.Op)
		if !ok {
			return nil, fmt.Errorf("%w: unknown operator %q", ErrProblem, n.Op)
		}
		return calculus.Apply(op, args...)
	case "trace":
		if err := arity(1); err != nil {
			return nil, err
		}
		if n.Order == 1 {
			return calculus.Trace1(args[0]), nil
		}
		return calculus.Trace0(args[0]), nil
	case "mapping":
		if m.Mapping == nil || n.Index < 0 || n.Index >= m.Mapping.PDim() {
			return nil, fmt.Errorf("%w: no mapping component %d", ErrProblem, n.Index)
		}
		return m.Mapping.Component(n.Index), nil
	case "form":
		if f, ok := m.forms[n.Name]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: unknown form %q", ErrProblem, n.Name)
	case "call":
		return m.call(n)
	case "integral":
		if err := arity(1); err != nil {
			return nil, err
		}
		if n.Boundary == "" {
			return form.Integrate(args[0], m.Domain), nil
		}
		b, err := m.boundary(n.Boundary)
		if err != nil {
			return nil, err
		}
		return form.IntegrateBoundary(args[0], b), nil
	}
	return nil, fmt.Errorf("%w: unknown expression type %q", ErrProblem, n.Type)
}

func (m *Model) call(n *Node) (symbolic.Expr, error) {
	f, ok := m.forms[n.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown form %q", ErrProblem, n.Name)
	}
	args := make([]symbolic.Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := m.Decode(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	var c *form.FormCall
	var err error
	switch v := f.(type) {
	case *form.BilinearForm:
		c, err = v.Call(args...)
	case *form.LinearForm:
		c, err = v.Call(args...)
	default:
		return nil, fmt.Errorf("%w: %s form %s cannot be called", ErrProblem, f.Kind(), f.Name())
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
