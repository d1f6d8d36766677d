// Package logical pulls expressions written on a mapped domain back to the
// reference domain of its mapping. Physical derivatives become logical
// derivatives contracted with the inverse Jacobian, elements are replaced by
// their logical counterparts through the transform matching their space
// kind, and the conforming operators pick up their Piola factors.
package logical

import (
	"errors"
	"fmt"
	"slices"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

var (
	// ErrUnmapped is returned for an element living on a physical domain
	// that no mapping was applied to.
	ErrUnmapped = errors.New("logical: element is not on a mapped domain")
	// ErrMapping is returned for an element whose domain was mapped by a
	// different mapping.
	ErrMapping = errors.New("logical: element is mapped by another mapping")
	// ErrMixed is returned when a derivative operator acts on logical and
	// physical functions at once.
	ErrMixed = errors.New("logical: operator mixes logical and physical functions")
)

type options struct {
	subs bool
}

// Option configures Expr.
type Option func(*options)

// WithSubs substitutes the analytic components of a built-in mapping and
// their derivatives into the result.
func WithSubs() Option { return func(o *options) { o.subs = true } }

// Expr rewrites e, given on the dim-dimensional image of m, in terms of the
// logical coordinates of m. Expressions already on the logical domain are
// returned unchanged.
func Expr(e symbolic.Expr, m *topology.Mapping, dim int, opts ...Option) (symbolic.Expr, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if dim != m.PDim() {
		return nil, fmt.Errorf("%w: %s maps into dimension %d, not %d", topology.ErrDimension, m, m.PDim(), dim)
	}
	p, err := newPuller(m, dim)
	if err != nil {
		return nil, err
	}
	r := p.run(e)
	if p.err != nil {
		return nil, p.err
	}
	if o.subs {
		return m.Subs(r)
	}
	return r, nil
}

// Det returns det J for a square mapping and the measure sqrt(det(J^T J))
// otherwise.
func Det(m *topology.Mapping) symbolic.Expr {
	if det, err := m.Det(); err == nil {
		return det
	}
	return m.Measure()
}

type puller struct {
	m        *topology.Mapping
	physical []string
	jac      *symbolic.Matrix
	jinv     *symbolic.Matrix
	det      symbolic.Expr
	err      error
}

func newPuller(m *topology.Mapping, dim int) (*puller, error) {
	jinv, err := m.InvJacobian()
	if err != nil {
		return nil, fmt.Errorf("logical: inverse jacobian of %s: %w", m, err)
	}
	return &puller{
		m:        m,
		physical: topology.PhysicalCoordinates[:dim],
		jac:      m.Jacobian(),
		jinv:     jinv,
		det:      Det(m),
	}, nil
}

func (p *puller) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *puller) run(e symbolic.Expr) symbolic.Expr {
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		if p.err != nil {
			return n, true
		}
		switch v := n.(type) {
		case *symbolic.Sym:
			if i := slices.Index(p.physical, v.Name()); i >= 0 {
				return p.m.Component(i), true
			}
			return v, true
		case *topology.Element:
			return p.element(v), true
		case *topology.MappingComponent:
			return v, true
		case *symbolic.Derivative:
			r := p.run(v.Expr())
			for _, x := range v.Vars() {
				r = p.diff(r, x)
			}
			return r, true
		case *calculus.Operator:
			return p.operator(v), true
		case *calculus.Trace:
			return p.atomized(v), true
		}
		return nil, false
	})
}

// diff differentiates e along coordinate x. A physical coordinate x_i
// becomes sum_j (J^-1)_{ji} d/dX_j.
func (p *puller) diff(e symbolic.Expr, x string) symbolic.Expr {
	i := slices.Index(p.physical, x)
	if i < 0 {
		return e.Diff(x)
	}
	terms := make([]symbolic.Expr, p.m.LDim())
	for j := range terms {
		terms[j] = symbolic.MulOf(p.jinv.Get(j, i), e.Diff(topology.LogicalCoordinates[j]))
	}
	return symbolic.AddOf(terms...)
}

// element applies the pullback of el's space kind to its logical
// counterpart.
func (p *puller) element(el *topology.Element) symbolic.Expr {
	l, err := p.logical(el)
	if err != nil {
		p.fail(err)
		return el
	}
	if l == el {
		return el
	}
	k := el.Kind()
	if (k == topology.KindHcurl || k == topology.KindHdiv) && el.IsVector() && p.m.LDim() != p.m.PDim() {
		p.fail(fmt.Errorf("%w: %s transform of %s needs a square mapping", topology.ErrDimension, k, el))
		return el
	}
	switch k {
	case topology.KindHcurl:
		if el.IsVector() {
			return p.jinv.Transpose().Apply(l.Components())
		}
	case topology.KindHdiv:
		if el.IsVector() {
			return p.jac.Scale(symbolic.Recip(p.det)).Apply(l.Components())
		}
	case topology.KindL2:
		return symbolic.DivOf(l, p.det)
	}
	return l
}

func (p *puller) logical(el *topology.Element) (*topology.Element, error) {
	d := el.Space().Domain()
	switch {
	case d.IsMapped():
		if !d.Mapping().Equal(p.m) {
			return nil, fmt.Errorf("%w: %s lives on %s", ErrMapping, el, d)
		}
		return el.Logical(), nil
	case isLogical(d):
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s lives on %s", ErrUnmapped, el, d)
}

func isLogical(d *topology.Domain) bool {
	coords := d.Coordinates()
	return len(coords) > 0 && slices.Contains(topology.LogicalCoordinates, coords[0])
}

func (p *puller) operator(o *calculus.Operator) symbolic.Expr {
	if phys, _ := p.content(o); !phys {
		return o
	}
	if r, ok := p.conforming(o); ok {
		return r
	}
	switch o.Op() {
	case calculus.OpDot, calculus.OpInner, calculus.OpCross:
		args := make([]symbolic.Expr, len(o.Args()))
		for i, a := range o.Args() {
			args[i] = p.run(a)
		}
		if p.err != nil {
			return o
		}
		r, err := calculus.Apply(o.Op(), args...)
		if err != nil {
			p.fail(fmt.Errorf("logical: %s: %w", o, err))
			return o
		}
		return r
	}
	return p.atomized(o)
}

// conforming handles the operators with a closed-form pullback: grad of an
// H1 scalar, curl and rot of an Hcurl field and div of an Hdiv field.
func (p *puller) conforming(o *calculus.Operator) (symbolic.Expr, bool) {
	if o.Op().Arity() != 1 {
		return nil, false
	}
	el, ok := o.Operand(0).(*topology.Element)
	if !ok {
		return nil, false
	}
	l, err := p.logical(el)
	if err != nil || l == el {
		return nil, false
	}
	dim := len(p.physical)
	var (
		build func(symbolic.Expr) (symbolic.Expr, error)
		wrap  func(symbolic.Expr) symbolic.Expr
	)
	switch k := el.Kind(); {
	case o.Op() == calculus.OpGrad && !el.IsVector() && (k == topology.KindH1 || k == topology.KindUndefined):
		build = calculus.Grad
		wrap = func(r symbolic.Expr) symbolic.Expr { return symbolic.MatMulOf(p.jinv.Transpose(), r) }
	case o.Op() == calculus.OpCurl && el.IsVector() && k == topology.KindHcurl && dim == 3:
		build = calculus.Curl
		wrap = func(r symbolic.Expr) symbolic.Expr {
			return symbolic.MatMulOf(p.jac.Scale(symbolic.Recip(p.det)), r)
		}
	case o.Op() == calculus.OpRot && k == topology.KindHcurl && dim == 2:
		build = calculus.Rot
		wrap = func(r symbolic.Expr) symbolic.Expr { return symbolic.DivOf(r, p.det) }
	case o.Op() == calculus.OpDiv && k == topology.KindHdiv:
		build = calculus.Div
		wrap = func(r symbolic.Expr) symbolic.Expr { return symbolic.DivOf(r, p.det) }
	default:
		return nil, false
	}
	r, err := build(l)
	if err != nil {
		p.fail(err)
		return o, true
	}
	return wrap(r), true
}

// atomized expands e into physical derivative atoms and pulls those back.
// An e without physical content is already logical and is kept.
func (p *puller) atomized(e symbolic.Expr) symbolic.Expr {
	switch phys, logi := p.content(e); {
	case !phys:
		return e
	case logi:
		p.fail(fmt.Errorf("%w: %s", ErrMixed, e))
		return e
	}
	a, err := calculus.AtomizeIn(e, p.physical)
	if err != nil {
		p.fail(fmt.Errorf("logical: %w", err))
		return e
	}
	return p.run(a)
}

// content reports whether e holds physical elements or coordinates, and
// whether it holds logical elements.
func (p *puller) content(e symbolic.Expr) (phys, logi bool) {
	symbolic.Walk(e, func(n symbolic.Expr) bool {
		if el, ok := n.(*topology.Element); ok {
			if isLogical(el.Space().Domain()) {
				logi = true
			} else {
				phys = true
			}
		}
		return true
	})
	for s := range symbolic.FreeSymbols(e) {
		if slices.Contains(p.physical, s) {
			phys = true
		}
	}
	return phys, logi
}
