// Package calculus implements the differential operators of the weak-form
// layer as a single tagged node type. Constructors validate the operand
// against the kind of its function space and normalize eagerly: linearity,
// Leibniz rules and the classical vector identities are applied when the
// node is built, so structurally equal inputs yield equal trees.
package calculus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// Errors
// ============================================================

var (
	// ErrShape is returned when an operator receives an operand of the wrong
	// rank, e.g. the divergence of a scalar.
	ErrShape = errors.New("calculus: unsupported operand shape")
	// ErrDimension is returned when the coordinates of an expression cannot
	// be inferred.
	ErrDimension = errors.New("calculus: cannot infer dimension")
)

// ArgumentTypeError reports an operator applied to an element whose space
// kind does not admit it.
type ArgumentTypeError struct {
	Op      Op
	Kind    topology.Kind
	Element string
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("calculus: %s is not defined on %s element %s", e.Op, e.Kind, e.Element)
}

// ============================================================
// Op
// ============================================================

type Op int

const (
	OpGrad Op = iota
	OpCurl
	OpRot
	OpDiv
	OpLaplace
	OpHessian
	OpD
	OpDot
	OpInner
	OpCross
	OpConvect
	OpBracket
)

var opNames = [...]string{
	OpGrad:    "grad",
	OpCurl:    "curl",
	OpRot:     "rot",
	OpDiv:     "div",
	OpLaplace: "laplace",
	OpHessian: "hessian",
	OpD:       "D",
	OpDot:     "dot",
	OpInner:   "inner",
	OpCross:   "cross",
	OpConvect: "convect",
	OpBracket: "bracket",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Arity is 1 for differential operators and 2 for products.
func (o Op) Arity() int {
	if o >= OpDot {
		return 2
	}
	return 1
}

// ParseOp looks an operator up by name.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// admissible lists the kinds each differential operator accepts.
var admissible = map[Op][]topology.Kind{
	OpGrad:    {topology.KindH1, topology.KindUndefined},
	OpCurl:    {topology.KindH1, topology.KindHcurl, topology.KindUndefined},
	OpRot:     {topology.KindH1, topology.KindHcurl, topology.KindUndefined},
	OpDiv:     {topology.KindH1, topology.KindHdiv, topology.KindUndefined},
	OpLaplace: {topology.KindH1, topology.KindUndefined},
	OpHessian: {topology.KindH1, topology.KindUndefined},
}

// Admits reports whether op may be applied to elements of kind k.
func Admits(op Op, k topology.Kind) bool {
	allowed, ok := admissible[op]
	if !ok {
		return true
	}
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

// checkKind rejects e when op may not act on an element found in it,
// including the bases of indexed components. Nested operators are not
// searched since their value has a kind of its own.
func checkKind(op Op, e symbolic.Expr) error {
	var err error
	symbolic.Walk(e, func(n symbolic.Expr) bool {
		if err != nil {
			return false
		}
		switch v := n.(type) {
		case *topology.Element:
			if !Admits(op, v.Kind()) {
				err = &ArgumentTypeError{Op: op, Kind: v.Kind(), Element: v.Name()}
			}
			return false
		case *Operator, *Trace:
			return false
		}
		return true
	})
	return err
}

// ============================================================
// Operator: tagged calculus node
// ============================================================

// Operator is an unevaluated differential operator or product. It is only
// built by the constructors of this package, after normalization.
type Operator struct {
	op       Op
	operands []symbolic.Expr
}

func (o *Operator) Type() string                { return "operator" }
func (o *Operator) Op() Op                      { return o.op }
func (o *Operator) Args() []symbolic.Expr       { return o.operands }
func (o *Operator) Operand(i int) symbolic.Expr { return o.operands[i] }

// WithArgs re-applies the construction rules to new operands. Substitution
// keeps element kinds, so the constructors cannot reject the result; should
// they, the node is kept as is.
func (o *Operator) WithArgs(args []symbolic.Expr) symbolic.Expr {
	r, err := apply(o.op, args)
	if err != nil {
		return &Operator{op: o.op, operands: append([]symbolic.Expr(nil), args...)}
	}
	return r
}

func (o *Operator) String() string {
	parts := make([]string, len(o.operands))
	for i, a := range o.operands {
		parts[i] = a.String()
	}
	return o.op.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (o *Operator) LaTeX() string {
	a := o.operands[0].LaTeX()
	switch o.op {
	case OpGrad:
		return "\\nabla " + a
	case OpDiv:
		return "\\nabla \\cdot " + a
	case OpCurl:
		return "\\nabla \\times " + a
	case OpLaplace:
		return "\\Delta " + a
	case OpDot:
		return a + " \\cdot " + o.operands[1].LaTeX()
	case OpCross:
		return a + " \\times " + o.operands[1].LaTeX()
	case OpInner:
		return a + " : " + o.operands[1].LaTeX()
	}
	parts := make([]string, len(o.operands))
	for i, x := range o.operands {
		parts[i] = x.LaTeX()
	}
	return "\\operatorname{" + o.op.String() + "}\\left(" + strings.Join(parts, ", ") + "\\right)"
}

// Diff keeps a coordinate derivative of an operator as an atom; Atomize
// evaluates it.
func (o *Operator) Diff(varName string) symbolic.Expr {
	for _, a := range o.operands {
		if !symbolic.IsZero(a.Diff(varName)) {
			return symbolic.NewDerivative(o, varName)
		}
	}
	return symbolic.N(0)
}

func (o *Operator) Equal(other symbolic.Expr) bool {
	p, ok := other.(*Operator)
	if !ok || p.op != o.op || len(p.operands) != len(o.operands) {
		return false
	}
	for i := range o.operands {
		if !o.operands[i].Equal(p.operands[i]) {
			return false
		}
	}
	return true
}

// ============================================================
// Trace: boundary restriction
// ============================================================

// Trace is the restriction of an expression to the boundary: order 0 is the
// value itself, order 1 the normal derivative dot(grad(e), nn).
type Trace struct {
	expr  symbolic.Expr
	order int
}

func Trace0(e symbolic.Expr) symbolic.Expr { return &Trace{expr: e} }
func Trace1(e symbolic.Expr) symbolic.Expr { return &Trace{expr: e, order: 1} }

func (t *Trace) Type() string          { return "trace" }
func (t *Trace) Expr() symbolic.Expr   { return t.expr }
func (t *Trace) Order() int            { return t.order }
func (t *Trace) Args() []symbolic.Expr { return []symbolic.Expr{t.expr} }
func (t *Trace) String() string        { return fmt.Sprintf("trace_%d(%s)", t.order, t.expr) }
func (t *Trace) LaTeX() string {
	return fmt.Sprintf("\\operatorname{tr}_{%d}\\left(%s\\right)", t.order, t.expr.LaTeX())
}

func (t *Trace) WithArgs(args []symbolic.Expr) symbolic.Expr {
	return &Trace{expr: args[0], order: t.order}
}

func (t *Trace) Diff(varName string) symbolic.Expr {
	if symbolic.IsZero(t.expr.Diff(varName)) {
		return symbolic.N(0)
	}
	return symbolic.NewDerivative(t, varName)
}

func (t *Trace) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Trace)
	return ok && t.order == o.order && t.expr.Equal(o.expr)
}

// ============================================================
// Rank and dimension inference
// ============================================================

// Rank returns 0 for scalars, 1 for vectors and 2 for matrices.
func Rank(e symbolic.Expr) int {
	switch v := e.(type) {
	case *topology.Element:
		if v.IsVector() {
			return 1
		}
		return 0
	case *topology.BoundaryVector, *symbolic.Tuple:
		return 1
	case *symbolic.Matrix:
		return 2
	case *topology.Indexed:
		if r := Rank(v.Base()); r > 1 {
			return r - 1
		}
		return 0
	case *symbolic.Derivative:
		return Rank(v.Expr())
	case *Trace:
		return Rank(v.expr)
	case *symbolic.MatMul:
		if r := Rank(v.Left()) + Rank(v.Right()) - 2; r > 0 {
			return r
		}
		return 0
	case *symbolic.Add:
		r := 0
		for _, t := range v.Terms() {
			r = max(r, Rank(t))
		}
		return r
	case *symbolic.Mul:
		r := 0
		for _, f := range v.Factors() {
			r += Rank(f)
		}
		return r
	case *Operator:
		return operatorRank(v)
	}
	return 0
}

func operatorRank(o *Operator) int {
	a := Rank(o.operands[0])
	switch o.op {
	case OpGrad:
		return a + 1
	case OpCurl:
		if a == 0 {
			return 1
		}
		if d, ok := Dim(o); ok && d == 2 {
			return 0
		}
		return 1
	case OpRot, OpInner, OpBracket:
		return 0
	case OpDiv:
		return max(a-1, 0)
	case OpLaplace:
		return a
	case OpHessian, OpD:
		return 2
	case OpDot:
		return max(a+Rank(o.operands[1])-2, 0)
	case OpCross:
		if d, ok := Dim(o); ok && d == 2 {
			return 0
		}
		return 1
	case OpConvect:
		return Rank(o.operands[1])
	}
	return 0
}

// Dim infers the space dimension of e from the first element or boundary
// vector it contains.
func Dim(e symbolic.Expr) (int, bool) {
	dim, found := 0, false
	symbolic.Walk(e, func(n symbolic.Expr) bool {
		if found {
			return false
		}
		switch v := n.(type) {
		case *topology.Element:
			dim, found = v.Space().Domain().Dim(), true
		case *topology.BoundaryVector:
			dim, found = v.Dim(), true
		}
		return !found
	})
	return dim, found
}
