package form

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// 1D kernels
// ============================================================

type KernelKind int

const (
	Mass       KernelKind = iota // v u
	Stiffness                    // v' u'
	Advection                    // v u'
	AdvectionT                   // v' u
)

var kernelNames = [...]string{
	Mass:       "Mass",
	Stiffness:  "Stiffness",
	Advection:  "Advection",
	AdvectionT: "AdvectionT",
}

func (k KernelKind) String() string { return kernelNames[k] }

// Kernel is a canonical 1D bilinear operator between a test and a trial
// function of one axis.
type Kernel struct {
	kind  KernelKind
	test  *topology.Element
	trial *topology.Element
}

func NewKernel(kind KernelKind, test, trial *topology.Element) *Kernel {
	return &Kernel{kind: kind, test: test, trial: trial}
}

func (k *Kernel) Type() string                           { return "kernel" }
func (k *Kernel) KernelKind() KernelKind                 { return k.kind }
func (k *Kernel) Test() *topology.Element                { return k.test }
func (k *Kernel) Trial() *topology.Element               { return k.trial }
func (k *Kernel) Args() []symbolic.Expr                  { return nil }
func (k *Kernel) WithArgs([]symbolic.Expr) symbolic.Expr { return k }
func (k *Kernel) Diff(string) symbolic.Expr              { return symbolic.N(0) }
func (k *Kernel) String() string {
	return fmt.Sprintf("%s(%s, %s)", k.kind, k.test, k.trial)
}
func (k *Kernel) LaTeX() string {
	return fmt.Sprintf("\\mathrm{%s}(%s, %s)", k.kind, k.test, k.trial)
}
func (k *Kernel) Key() string {
	return "kernel:" + k.kind.String() + ":" + k.test.Key() + ":" + k.trial.Key()
}

func (k *Kernel) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Kernel)
	return ok && o.kind == k.kind && o.test.Equal(k.test) && o.trial.Equal(k.trial)
}

// TensorProduct is the product of per-axis factors, constants first.
type TensorProduct struct {
	factors []symbolic.Expr
}

func NewTensorProduct(factors ...symbolic.Expr) *TensorProduct {
	return &TensorProduct{factors: append([]symbolic.Expr(nil), factors...)}
}

func (t *TensorProduct) Type() string { return "tensor_product" }
func (t *TensorProduct) Factors() []symbolic.Expr {
	return append([]symbolic.Expr(nil), t.factors...)
}
func (t *TensorProduct) Args() []symbolic.Expr     { return t.factors }
func (t *TensorProduct) Diff(string) symbolic.Expr { return symbolic.N(0) }

func (t *TensorProduct) WithArgs(args []symbolic.Expr) symbolic.Expr {
	return NewTensorProduct(args...)
}

func (t *TensorProduct) String() string {
	parts := make([]string, len(t.factors))
	for i, f := range t.factors {
		parts[i] = f.String()
	}
	return "TensorProduct(" + strings.Join(parts, ", ") + ")"
}

func (t *TensorProduct) LaTeX() string {
	parts := make([]string, len(t.factors))
	for i, f := range t.factors {
		parts[i] = f.LaTeX()
	}
	return strings.Join(parts, " \\otimes ")
}

func (t *TensorProduct) Equal(other symbolic.Expr) bool {
	o, ok := other.(*TensorProduct)
	if !ok || len(o.factors) != len(t.factors) {
		return false
	}
	for i := range t.factors {
		if !t.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

// ============================================================
// Tensorize
// ============================================================

// Tensorize factors a scalar bilinear form on an unmapped domain into a sum
// of tensor products of 1D kernels, last axis first. Axis i uses the space
// <V>_<i> restricted to coordinate i and the elements <v><i>. Every monomial
// of the integrand must split into constant coefficients, one test atom and
// one trial atom with at most one derivative per axis; otherwise
// ErrNonSeparable is returned.
func Tensorize(a *BilinearForm) (symbolic.Expr, error) {
	if a.tests.Len() != 1 || a.trials.Len() != 1 {
		return nil, fmt.Errorf("%w: tensorize of %s needs one test and one trial function", ErrUnsupported, a.name)
	}
	v, u := a.tests.At(0), a.trials.At(0)
	if v.IsVector() || u.IsVector() {
		return nil, fmt.Errorf("%w: tensorize of vector arguments", ErrUnsupported)
	}
	if a.domain.IsMapped() {
		return nil, fmt.Errorf("%w: tensorize on mapped domain %s", ErrUnsupported, a.domain)
	}
	all, err := integrands(Unfold(a.body))
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.integral.IsBoundary() {
			return nil, fmt.Errorf("%w: boundary integral %s", ErrNonSeparable, p.integral)
		}
	}
	o := evalOptions{logger: slog.New(slog.DiscardHandler)}
	terms, err := o.terms(a.name, a.body)
	if err != nil {
		return nil, err
	}

	coords := v.Space().Coordinates()
	tests, trials := axisElements(v, coords), axisElements(u, coords)
	out := make([]symbolic.Expr, 0, len(terms))
	for _, t := range terms {
		coeff, rest := symbolic.SplitCoeff(t)
		var consts []symbolic.Expr
		var testVars, trialVars []string
		hasTest, hasTrial := false, false
		for _, f := range symbolic.Factors(rest) {
			el, _, ok := argumentAtom(f)
			switch {
			case ok && el.Equal(v) && !hasTest:
				testVars, hasTest = varsOf(f), true
			case ok && el.Equal(u) && !hasTrial:
				trialVars, hasTrial = varsOf(f), true
			case !ok && symbolic.IsConstant(f):
				consts = append(consts, f)
			default:
				return nil, fmt.Errorf("%w: factor %s of %s", ErrNonSeparable, f, t)
			}
		}
		if !hasTest || !hasTrial {
			return nil, fmt.Errorf("%w: %s lacks a test or a trial function", ErrNonSeparable, t)
		}
		factors := consts
		for i := len(coords) - 1; i >= 0; i-- {
			k, err := kernelKind(count(testVars, coords[i]), count(trialVars, coords[i]))
			if err != nil {
				return nil, fmt.Errorf("%w along %s in %s", err, coords[i], t)
			}
			factors = append(factors, NewKernel(k, tests[i], trials[i]))
		}
		out = append(out, symbolic.MulOf(coeff, NewTensorProduct(factors...)))
	}
	return symbolic.AddOf(out...), nil
}

// axisElements returns e restricted to each coordinate axis.
func axisElements(e *topology.Element, coords []string) []*topology.Element {
	s := e.Space()
	out := make([]*topology.Element, len(coords))
	for i, c := range coords {
		sp := topology.ScalarFunctionSpace(s.Name()+"_"+strconv.Itoa(i), s.Domain(),
			topology.WithKind(s.Kind()), topology.WithCoordinates(c))
		out[i] = sp.Element(e.Name() + strconv.Itoa(i))
	}
	return out
}

func varsOf(atom symbolic.Expr) []string {
	if d, ok := atom.(*symbolic.Derivative); ok {
		return d.Vars()
	}
	return nil
}

func count(vars []string, c string) int {
	n := 0
	for _, v := range vars {
		if v == c {
			n++
		}
	}
	return n
}

func kernelKind(dv, du int) (KernelKind, error) {
	switch {
	case dv == 0 && du == 0:
		return Mass, nil
	case dv == 1 && du == 1:
		return Stiffness, nil
	case dv == 0 && du == 1:
		return Advection, nil
	case dv == 1 && du == 0:
		return AdvectionT, nil
	}
	return 0, fmt.Errorf("%w: derivative orders (%d, %d)", ErrNonSeparable, dv, du)
}
