package form

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// Default placeholder bases of test and trial functions.
const (
	TestBasis  = "Ni"
	TrialBasis = "Nj"
)

type evalOptions struct {
	basis    map[string]string
	logger   *slog.Logger
	boundary *topology.Boundary
}

// EvalOption configures Evaluate.
type EvalOption func(*evalOptions)

// WithBasis names the placeholder of each argument, keyed by element name.
func WithBasis(basis map[string]string) EvalOption {
	return func(o *evalOptions) { o.basis = basis }
}

// WithLogger traces every evaluation step at debug level.
func WithLogger(l *slog.Logger) EvalOption {
	return func(o *evalOptions) { o.logger = l }
}

// OnBoundary evaluates the integrals over b instead of the interior ones.
func OnBoundary(b *topology.Boundary) EvalOption {
	return func(o *evalOptions) { o.boundary = b }
}

// Evaluate returns the pointwise integrand of a form with its arguments
// replaced by basis placeholders: Ni, Ni_x, Nj_xy and so on.
//
// A bilinear form gives a matrix indexed by (trial slot, test slot), where a
// vector argument of dimension d occupies d slots; a 1x1 result is returned
// as a scalar. A linear form gives a tuple over its test slots, or a scalar.
// Functionals, norms and bare expressions are atomized only, so fields stay
// symbolic.
func Evaluate(e symbolic.Expr, opts ...EvalOption) (symbolic.Expr, error) {
	o := evalOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	switch f := e.(type) {
	case *BilinearForm:
		return o.bilinear(f.name, f.body, f.tests, f.trials)
	case *LinearForm:
		return o.linear(f.name, f.body, f.tests)
	case *Norm:
		return o.functional(f.name, f.body)
	case *Functional:
		return o.functional(f.name, f.body)
	case *FormCall:
		switch f.form.(type) {
		case *BilinearForm:
			return o.bilinear(f.String(), f.body, f.Tests(), f.Trials())
		case *LinearForm:
			return o.linear(f.String(), f.body, f.Tests())
		}
		return nil, fmt.Errorf("%w: call of %s form", ErrUnsupported, f.form.Kind())
	}
	o.logger.Debug("atomizing expression", "expr", e.String())
	return calculus.Atomize(e)
}

// pieces selects the integrated terms of body on the requested measure.
func (o *evalOptions) pieces(body symbolic.Expr) ([]piece, error) {
	all, err := integrands(Unfold(body))
	if err != nil {
		return nil, err
	}
	var out []piece
	for _, p := range all {
		switch {
		case o.boundary == nil && !p.integral.IsBoundary():
		case o.boundary != nil && p.integral.IsBoundary() && o.boundary.Equal(p.integral.boundary):
		default:
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (o *evalOptions) terms(name string, body symbolic.Expr) ([]symbolic.Expr, error) {
	pieces, err := o.pieces(body)
	if err != nil {
		return nil, err
	}
	var out []symbolic.Expr
	for _, p := range pieces {
		terms, err := atomizedTerms(p)
		if err != nil {
			return nil, fmt.Errorf("form: %s: %w", name, err)
		}
		o.logger.Debug("atomized integrand", "form", name, "integral", p.integral.target(), "terms", len(terms))
		for _, t := range terms {
			if !symbolic.IsZero(t) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// slot is one scalar degree of freedom of an argument list.
type slot struct {
	el    *topology.Element
	index int
}

func slotsOf(a Arguments) []slot {
	var out []slot
	for _, e := range a.elems {
		if !e.IsVector() {
			out = append(out, slot{el: e, index: -1})
			continue
		}
		for i := 0; i < e.Space().Shape(); i++ {
			out = append(out, slot{el: e, index: i})
		}
	}
	return out
}

func slotIndex(slots []slot, el *topology.Element, index int) int {
	for i, s := range slots {
		if s.el.Equal(el) && s.index == index {
			return i
		}
	}
	return -1
}

func (o *evalOptions) base(el *topology.Element, fallback string) string {
	if b, ok := o.basis[el.Name()]; ok {
		return b
	}
	return fallback
}

// placeholder names an argument atom after its basis and derivative
// variables.
func placeholder(base string, atom symbolic.Expr) symbolic.Expr {
	if d, ok := atom.(*symbolic.Derivative); ok {
		return symbolic.S(base + "_" + strings.Join(d.Vars(), ""))
	}
	return symbolic.S(base)
}

// bind replaces the argument atoms of a monomial found in slots and reports
// the slot of each.
func (o *evalOptions) bind(t symbolic.Expr, sides ...binding) (symbolic.Expr, []int) {
	found := make([]int, len(sides))
	for i := range found {
		found[i] = -1
	}
	factors := mulFactors(t)
	out := make([]symbolic.Expr, len(factors))
	for k, f := range factors {
		out[k] = f
		el, idx, ok := argumentAtom(f)
		if !ok {
			continue
		}
		for i, s := range sides {
			if j := slotIndex(s.slots, el, idx); j >= 0 {
				found[i] = j
				out[k] = placeholder(o.base(el, s.fallback), f)
				break
			}
		}
	}
	return symbolic.MulOf(out...), found
}

type binding struct {
	slots    []slot
	fallback string
}

func (o *evalOptions) bilinear(name string, body symbolic.Expr, tests, trials Arguments) (symbolic.Expr, error) {
	terms, err := o.terms(name, body)
	if err != nil {
		return nil, err
	}
	testSlots, trialSlots := slotsOf(tests), slotsOf(trials)
	m := symbolic.NewMatrix(len(trialSlots), len(testSlots))
	for _, t := range terms {
		r, found := o.bind(t, binding{testSlots, TestBasis}, binding{trialSlots, TrialBasis})
		ti, ui := found[0], found[1]
		if ti < 0 || ui < 0 {
			return nil, &UnconsistentLinearExpressionError{Form: name, Term: t}
		}
		o.logger.Debug("evaluated term", "form", name, "term", t.String(), "test_slot", ti, "trial_slot", ui, "value", r.String())
		m.Set(ui, ti, symbolic.AddOf(m.Get(ui, ti), r))
	}
	if m.Rows() == 1 && m.Cols() == 1 {
		return m.Get(0, 0), nil
	}
	return m, nil
}

func (o *evalOptions) linear(name string, body symbolic.Expr, tests Arguments) (symbolic.Expr, error) {
	terms, err := o.terms(name, body)
	if err != nil {
		return nil, err
	}
	testSlots := slotsOf(tests)
	out := make([]symbolic.Expr, len(testSlots))
	for i := range out {
		out[i] = symbolic.N(0)
	}
	for _, t := range terms {
		r, found := o.bind(t, binding{testSlots, TestBasis})
		if found[0] < 0 {
			return nil, &UnconsistentLinearExpressionError{Form: name, Term: t}
		}
		o.logger.Debug("evaluated term", "form", name, "term", t.String(), "test_slot", found[0], "value", r.String())
		out[found[0]] = symbolic.AddOf(out[found[0]], r)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return symbolic.TupleOf(out...), nil
}

func (o *evalOptions) functional(name string, body symbolic.Expr) (symbolic.Expr, error) {
	terms, err := o.terms(name, body)
	if err != nil {
		return nil, err
	}
	r := symbolic.AddOf(terms...)
	o.logger.Debug("evaluated functional", "form", name, "value", r.String())
	return r, nil
}
