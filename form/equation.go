package form

import (
	"fmt"
	"slices"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// EssentialBC
// ============================================================

// EssentialBC constrains the trace of an unknown on a boundary. Its order,
// normal flag and constrained components are derived once from the shape of
// the constrained expression.
type EssentialBC struct {
	expr     symbolic.Expr
	value    symbolic.Expr
	boundary *topology.Boundary
	variable *topology.Element
	order    int
	normal   bool
	index    []int
}

// NewEssentialBC classifies expr = value on b. Accepted shapes are a bare
// element, a component w[i], dot(w, nn), dot(grad(u), nn) and the traces
// trace_0 and trace_1 of an element. A nil value means zero.
func NewEssentialBC(expr, value symbolic.Expr, b *topology.Boundary) (*EssentialBC, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: boundary condition without boundary", ErrWrongArgument)
	}
	if value == nil {
		value = symbolic.N(0)
	}
	bc := &EssentialBC{expr: expr, value: value, boundary: b}
	if err := bc.classify(expr); err != nil {
		return nil, err
	}
	return bc, nil
}

// DirichletBC is the homogeneous condition on every trial unknown of the
// equation it is attached to.
func DirichletBC(b *topology.Boundary) *EssentialBC {
	return &EssentialBC{value: symbolic.N(0), boundary: b}
}

func (bc *EssentialBC) classify(e symbolic.Expr) error {
	switch v := e.(type) {
	case *topology.Element:
		bc.variable = v
		if v.IsVector() {
			for i := 0; i < v.Space().Shape(); i++ {
				bc.index = append(bc.index, i)
			}
		}
		return nil
	case *topology.Indexed:
		if el, ok := v.Base().(*topology.Element); ok {
			bc.variable, bc.index = el, []int{v.Position()}
			return nil
		}
	case *calculus.Trace:
		if v.Order() == 0 {
			return bc.classify(v.Expr())
		}
		if el, ok := v.Expr().(*topology.Element); ok && !el.IsVector() {
			bc.variable, bc.order = el, 1
			return nil
		}
	case *calculus.Operator:
		if v.Op() != calculus.OpDot {
			break
		}
		other, ok := normalOperand(v)
		if !ok {
			break
		}
		if el, ok := other.(*topology.Element); ok && el.IsVector() {
			bc.variable, bc.normal = el, true
			return nil
		}
		if g, ok := other.(*calculus.Operator); ok && g.Op() == calculus.OpGrad {
			if el, ok := g.Operand(0).(*topology.Element); ok && !el.IsVector() {
				bc.variable, bc.order = el, 1
				return nil
			}
		}
	}
	return fmt.Errorf("%w: cannot constrain %s", ErrWrongArgument, e)
}

// normalOperand returns the operand of dot(a, nn) that is not the normal.
func normalOperand(o *calculus.Operator) (symbolic.Expr, bool) {
	for i := 0; i < 2; i++ {
		if n, ok := o.Operand(i).(*topology.BoundaryVector); ok && n.IsNormal() {
			return o.Operand(1 - i), true
		}
	}
	return nil, false
}

func (bc *EssentialBC) Expr() symbolic.Expr          { return bc.expr }
func (bc *EssentialBC) Value() symbolic.Expr         { return bc.value }
func (bc *EssentialBC) Boundary() *topology.Boundary { return bc.boundary }
func (bc *EssentialBC) Variable() *topology.Element  { return bc.variable }
func (bc *EssentialBC) Order() int                   { return bc.order }
func (bc *EssentialBC) NormalComponent() bool        { return bc.normal }

// IndexComponent lists the constrained vector components, or nil when the
// condition is scalar or on the normal component.
func (bc *EssentialBC) IndexComponent() []int { return slices.Clone(bc.index) }

func (bc *EssentialBC) String() string {
	if bc.expr == nil {
		return fmt.Sprintf("dirichlet(%s)", bc.boundary)
	}
	return fmt.Sprintf("%s = %s on %s", bc.expr, bc.value, bc.boundary)
}

// ============================================================
// Equation
// ============================================================

// Equation is a variational problem lhs(u, v) = rhs(v) with essential
// boundary conditions on the trial unknowns.
type Equation struct {
	lhs *FormCall
	rhs *FormCall
	bcs []*EssentialBC
}

// NewEquation checks that lhs is a call of a bilinear form, that rhs is a
// call of a linear form on the same test functions, and that every boundary
// condition constrains a trial unknown on a boundary of the lhs domain. A
// bare form stands for its call on its own arguments. DirichletBC markers are
// expanded into one homogeneous condition per trial unknown.
func NewEquation(lhs, rhs symbolic.Expr, bcs ...*EssentialBC) (*Equation, error) {
	l, ok := asCall(lhs)
	if !ok {
		return nil, &UnconsistentLhsError{Lhs: lhs, Reason: "not a form call"}
	}
	if l.form.Kind() != KindBilinear {
		return nil, &UnconsistentLhsError{Lhs: lhs, Reason: fmt.Sprintf("%s is a %s form", l.form.Name(), l.form.Kind())}
	}
	r, ok := asCall(rhs)
	if !ok {
		return nil, &UnconsistentRhsError{Rhs: rhs, Reason: "not a form call"}
	}
	if r.form.Kind() != KindLinear {
		return nil, &UnconsistentRhsError{Rhs: rhs, Reason: fmt.Sprintf("%s is a %s form", r.form.Name(), r.form.Kind())}
	}
	if !r.Tests().Equal(l.Tests()) {
		return nil, &UnconsistentRhsError{Rhs: rhs, Reason: fmt.Sprintf("test functions %s differ from %s", r.Tests(), l.Tests())}
	}

	eq := &Equation{lhs: l, rhs: r}
	trials := l.Trials()
	domain := l.form.Domain()
	for _, bc := range bcs {
		if bc == nil {
			continue
		}
		if bc.boundary == nil || !bc.boundary.BelongsTo(domain) {
			return nil, &UnconsistentBCError{BC: bc, Reason: fmt.Sprintf("boundary is not part of %s", domain)}
		}
		if bc.expr == nil {
			for _, u := range trials.elems {
				h, err := NewEssentialBC(u, bc.value, bc.boundary)
				if err != nil {
					return nil, err
				}
				eq.bcs = append(eq.bcs, h)
			}
			continue
		}
		if !trials.Contains(bc.variable) {
			return nil, &UnconsistentBCError{BC: bc, Reason: fmt.Sprintf("%s is not a trial function of %s", bc.variable, l)}
		}
		eq.bcs = append(eq.bcs, bc)
	}
	return eq, nil
}

func asCall(e symbolic.Expr) (*FormCall, bool) {
	switch v := e.(type) {
	case *FormCall:
		return v, true
	case *BilinearForm:
		c, err := v.Call(exprsOf(append(v.tests.Elements(), v.trials.Elements()...))...)
		return c, err == nil
	case *LinearForm:
		c, err := v.Call(exprsOf(v.tests.Elements())...)
		return c, err == nil
	}
	return nil, false
}

func exprsOf(es []*topology.Element) []symbolic.Expr {
	out := make([]symbolic.Expr, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

func (eq *Equation) Lhs() *FormCall { return eq.lhs }
func (eq *Equation) Rhs() *FormCall { return eq.rhs }

// BCs returns the expanded boundary conditions.
func (eq *Equation) BCs() []*EssentialBC { return slices.Clone(eq.bcs) }

func (eq *Equation) Tests() Arguments  { return eq.lhs.Tests() }
func (eq *Equation) Trials() Arguments { return eq.lhs.Trials() }

func (eq *Equation) String() string {
	return fmt.Sprintf("%s = %s", eq.lhs, eq.rhs)
}
