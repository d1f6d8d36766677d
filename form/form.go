// Package form builds weak formulations on top of the calculus layer:
// integrals, bilinear and linear forms with their linearity checks, form
// calls, functionals and norms, equations with essential boundary
// conditions, and the evaluate and tensorize passes.
package form

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// Integral
// ============================================================

// Integral is the measure node: expr integrated over a domain or over one of
// its boundaries.
type Integral struct {
	expr     symbolic.Expr
	domain   *topology.Domain
	boundary *topology.Boundary
}

func Integrate(e symbolic.Expr, d *topology.Domain) *Integral {
	return &Integral{expr: e, domain: d}
}

func IntegrateBoundary(e symbolic.Expr, b *topology.Boundary) *Integral {
	return &Integral{expr: e, domain: b.Domain(), boundary: b}
}

func (i *Integral) Type() string                 { return "integral" }
func (i *Integral) Expr() symbolic.Expr          { return i.expr }
func (i *Integral) Domain() *topology.Domain     { return i.domain }
func (i *Integral) Boundary() *topology.Boundary { return i.boundary }
func (i *Integral) IsBoundary() bool             { return i.boundary != nil }
func (i *Integral) Args() []symbolic.Expr        { return []symbolic.Expr{i.expr} }
func (i *Integral) String() string {
	return "integral(" + i.target() + ", " + i.expr.String() + ")"
}
func (i *Integral) LaTeX() string {
	return "\\int_{" + i.target() + "} " + i.expr.LaTeX()
}
func (i *Integral) WithArgs(args []symbolic.Expr) symbolic.Expr {
	return &Integral{expr: args[0], domain: i.domain, boundary: i.boundary}
}

func (i *Integral) target() string {
	if i.boundary != nil {
		return i.boundary.Name()
	}
	return i.domain.Name()
}

// Diff vanishes along the integration coordinates and differentiates under
// the integral sign otherwise.
func (i *Integral) Diff(varName string) symbolic.Expr {
	if slices.Contains(i.domain.Coordinates(), varName) {
		return symbolic.N(0)
	}
	d := i.expr.Diff(varName)
	if symbolic.IsZero(d) {
		return d
	}
	return i.WithArgs([]symbolic.Expr{d})
}

func (i *Integral) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Integral)
	if !ok || !i.domain.Equal(o.domain) || (i.boundary == nil) != (o.boundary == nil) {
		return false
	}
	if i.boundary != nil && !i.boundary.Equal(o.boundary) {
		return false
	}
	return i.expr.Equal(o.expr)
}

// ============================================================
// Forms
// ============================================================

type Kind int

const (
	KindBilinear Kind = iota
	KindLinear
	KindFunctional
)

func (k Kind) String() string {
	switch k {
	case KindBilinear:
		return "bilinear"
	case KindLinear:
		return "linear"
	}
	return "functional"
}

// Form is implemented by BilinearForm, LinearForm, Functional and Norm.
// Forms are expression leaves so that equations can be checked on
// arbitrary user input.
type Form interface {
	symbolic.Expr
	Name() string
	Kind() Kind
	Body() symbolic.Expr
	Domain() *topology.Domain
}

type options struct {
	name string
}

// Option configures a form constructor.
type Option func(*options)

// WithName names the form. Unnamed forms get a generated name.
func WithName(name string) Option { return func(o *options) { o.name = name } }

func buildOptions(prefix string, opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return o
}

type base struct {
	name   string
	body   symbolic.Expr
	domain *topology.Domain
}

func (b *base) Name() string              { return b.name }
func (b *base) Body() symbolic.Expr       { return b.body }
func (b *base) Domain() *topology.Domain  { return b.domain }
func (b *base) String() string            { return b.name }
func (b *base) LaTeX() string             { return b.name }
func (b *base) Args() []symbolic.Expr     { return nil }
func (b *base) Diff(string) symbolic.Expr { return symbolic.N(0) }

// Key tells apart forms that share a name but not a body.
func (b *base) Key() string {
	return "form:" + b.name + "{" + symbolic.Key(b.body) + "}"
}

// BilinearForm is linear in its test and in its trial arguments.
type BilinearForm struct {
	base
	tests  Arguments
	trials Arguments
}

// NewBilinearForm checks the arguments and the linearity of body. A body
// without integrals is integrated over the domain of the first test
// function.
func NewBilinearForm(tests, trials Arguments, body symbolic.Expr, opts ...Option) (*BilinearForm, error) {
	if err := validatePair(tests, trials); err != nil {
		return nil, err
	}
	o := buildOptions("a", opts)
	body = withMeasure(body, tests.At(0).Space().Domain())
	unfolded := Unfold(body)
	if err := checkLinear(o.name, unfolded, tests, trials); err != nil {
		return nil, err
	}
	return &BilinearForm{
		base:   base{name: o.name, body: body, domain: domainOf(unfolded, tests.At(0))},
		tests:  tests,
		trials: trials,
	}, nil
}

func (a *BilinearForm) Type() string                           { return "bilinear_form" }
func (a *BilinearForm) Kind() Kind                             { return KindBilinear }
func (a *BilinearForm) Tests() Arguments                       { return a.tests }
func (a *BilinearForm) Trials() Arguments                      { return a.trials }
func (a *BilinearForm) WithArgs([]symbolic.Expr) symbolic.Expr { return a }

func (a *BilinearForm) Equal(other symbolic.Expr) bool {
	o, ok := other.(*BilinearForm)
	return ok && o.name == a.name && o.tests.Equal(a.tests) && o.trials.Equal(a.trials) && o.body.Equal(a.body)
}

// Call binds the form to new arguments, tests first then trials.
func (a *BilinearForm) Call(args ...symbolic.Expr) (*FormCall, error) {
	return call(a, append(a.tests.Elements(), a.trials.Elements()...), args)
}

// LinearForm is linear in its test arguments.
type LinearForm struct {
	base
	tests Arguments
}

func NewLinearForm(tests Arguments, body symbolic.Expr, opts ...Option) (*LinearForm, error) {
	if err := tests.validate("test"); err != nil {
		return nil, err
	}
	o := buildOptions("l", opts)
	body = withMeasure(body, tests.At(0).Space().Domain())
	unfolded := Unfold(body)
	if err := checkLinear(o.name, unfolded, tests); err != nil {
		return nil, err
	}
	return &LinearForm{
		base:  base{name: o.name, body: body, domain: domainOf(unfolded, tests.At(0))},
		tests: tests,
	}, nil
}

func (l *LinearForm) Type() string                           { return "linear_form" }
func (l *LinearForm) Kind() Kind                             { return KindLinear }
func (l *LinearForm) Tests() Arguments                       { return l.tests }
func (l *LinearForm) WithArgs([]symbolic.Expr) symbolic.Expr { return l }

func (l *LinearForm) Equal(other symbolic.Expr) bool {
	o, ok := other.(*LinearForm)
	return ok && o.name == l.name && o.tests.Equal(l.tests) && o.body.Equal(l.body)
}

func (l *LinearForm) Call(args ...symbolic.Expr) (*FormCall, error) {
	return call(l, l.tests.Elements(), args)
}

// Functional is a form without arguments; its elements are data.
type Functional struct {
	base
}

func NewFunctional(body symbolic.Expr, d *topology.Domain, opts ...Option) (*Functional, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: functional without domain", ErrWrongArgument)
	}
	o := buildOptions("f", opts)
	body = withMeasure(body, d)
	if _, err := integrands(Unfold(body)); err != nil {
		return nil, err
	}
	return &Functional{base: base{name: o.name, body: body, domain: d}}, nil
}

func (f *Functional) Type() string                           { return "functional" }
func (f *Functional) Kind() Kind                             { return KindFunctional }
func (f *Functional) WithArgs([]symbolic.Expr) symbolic.Expr { return f }

func (f *Functional) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Functional)
	return ok && o.name == f.name && o.body.Equal(f.body)
}

// ============================================================
// Norms
// ============================================================

type NormKind int

const (
	NormL2 NormKind = iota
	NormH1
	NormH2
)

func (k NormKind) String() string {
	switch k {
	case NormH1:
		return "h1"
	case NormH2:
		return "h2"
	}
	return "l2"
}

// ParseNormKind accepts l2, h1 and h2 in any case.
func ParseNormKind(s string) (NormKind, error) {
	switch strings.ToLower(s) {
	case "l2", "":
		return NormL2, nil
	case "h1":
		return NormH1, nil
	case "h2":
		return NormH2, nil
	}
	return 0, fmt.Errorf("%w: unknown norm %q", ErrWrongArgument, s)
}

// Norm is the functional whose integrand is the squared seminorm of expr.
type Norm struct {
	Functional
	kind NormKind
	expr symbolic.Expr
}

// NewNorm integrates e^2, dot(grad e, grad e) or inner(hessian e,
// hessian e) over d.
func NewNorm(e symbolic.Expr, d *topology.Domain, kind NormKind, opts ...Option) (*Norm, error) {
	integrand, err := normIntegrand(e, kind)
	if err != nil {
		return nil, err
	}
	f, err := NewFunctional(Integrate(integrand, d), d, opts...)
	if err != nil {
		return nil, err
	}
	return &Norm{Functional: *f, kind: kind, expr: e}, nil
}

func normIntegrand(e symbolic.Expr, kind NormKind) (symbolic.Expr, error) {
	vector := calculus.Rank(e) > 0
	switch kind {
	case NormL2:
		if vector {
			return calculus.Dot(e, e)
		}
		return symbolic.Square(e), nil
	case NormH1:
		g, err := calculus.Grad(e)
		if err != nil {
			return nil, err
		}
		if vector {
			return calculus.Inner(g, g)
		}
		return calculus.Dot(g, g)
	case NormH2:
		if vector {
			return nil, fmt.Errorf("%w: h2 norm of vector %s", ErrUnsupported, e)
		}
		h, err := calculus.Hessian(e)
		if err != nil {
			return nil, err
		}
		return calculus.Inner(h, h)
	}
	return nil, fmt.Errorf("%w: norm kind %d", ErrWrongArgument, kind)
}

func (n *Norm) Type() string                           { return "norm" }
func (n *Norm) NormKind() NormKind                     { return n.kind }
func (n *Norm) Expr() symbolic.Expr                    { return n.expr }
func (n *Norm) Exponent() int                          { return 2 }
func (n *Norm) WithArgs([]symbolic.Expr) symbolic.Expr { return n }

func (n *Norm) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Norm)
	return ok && o.kind == n.kind && o.name == n.name && o.expr.Equal(n.expr)
}

// ============================================================
// FormCall
// ============================================================

// FormCall is a form applied to arguments. Its body is the body of the form
// with the declared arguments replaced by the bound ones.
type FormCall struct {
	form Form
	args []*topology.Element
	body symbolic.Expr
}

func call(f Form, params []*topology.Element, args []symbolic.Expr) (*FormCall, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrWrongArgument, f.Name(), len(params), len(args))
	}
	bound := make([]*topology.Element, len(args))
	subs := make(map[string]symbolic.Expr, len(args))
	for i, a := range args {
		el, ok := a.(*topology.Element)
		if !ok {
			return nil, fmt.Errorf("%w: %s called with non-element %v", ErrWrongArgument, f.Name(), a)
		}
		if el.IsVector() != params[i].IsVector() || el.Space().Shape() != params[i].Space().Shape() {
			return nil, fmt.Errorf("%w: %s expects %s-shaped argument %d", ErrWrongArgument, f.Name(), params[i].Space(), i)
		}
		bound[i] = el
		subs[symbolic.Key(params[i])] = el
	}
	return &FormCall{form: f, args: bound, body: substitute(f.Body(), subs)}, nil
}

// substitute rebinds elements, including the arguments of nested calls.
func substitute(e symbolic.Expr, subs map[string]symbolic.Expr) symbolic.Expr {
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		if c, ok := n.(*FormCall); ok {
			args := make([]*topology.Element, len(c.args))
			for i, a := range c.args {
				args[i] = a
				if r, ok := subs[symbolic.Key(a)].(*topology.Element); ok {
					args[i] = r
				}
			}
			return &FormCall{form: c.form, args: args, body: substitute(c.body, subs)}, true
		}
		r, ok := subs[symbolic.Key(n)]
		return r, ok
	})
}

func (c *FormCall) Type() string                { return "form_call" }
func (c *FormCall) Form() Form                  { return c.form }
func (c *FormCall) Body() symbolic.Expr         { return c.body }
func (c *FormCall) Args() []symbolic.Expr       { return []symbolic.Expr{c.body} }
func (c *FormCall) Diff(v string) symbolic.Expr { return c.body.Diff(v) }

// Arguments returns the bound elements in call order.
func (c *FormCall) Arguments() []*topology.Element {
	return append([]*topology.Element(nil), c.args...)
}

// Tests returns the bound test functions.
func (c *FormCall) Tests() Arguments {
	switch f := c.form.(type) {
	case *BilinearForm:
		return rebind(f.tests, c.args[:f.tests.Len()])
	case *LinearForm:
		return rebind(f.tests, c.args)
	}
	return Arguments{}
}

// Trials returns the bound trial functions of a bilinear form call.
func (c *FormCall) Trials() Arguments {
	if f, ok := c.form.(*BilinearForm); ok {
		return rebind(f.trials, c.args[f.tests.Len():])
	}
	return Arguments{}
}

func rebind(decl Arguments, es []*topology.Element) Arguments {
	return Arguments{elems: append([]*topology.Element(nil), es...), tuple: decl.tuple}
}

func (c *FormCall) WithArgs(args []symbolic.Expr) symbolic.Expr {
	return &FormCall{form: c.form, args: c.args, body: args[0]}
}

func (c *FormCall) String() string {
	names := make([]string, len(c.args))
	for i, a := range c.args {
		names[i] = a.Name()
	}
	return c.form.Name() + "(" + strings.Join(names, ", ") + ")"
}

func (c *FormCall) LaTeX() string { return c.String() }

func (c *FormCall) Equal(other symbolic.Expr) bool {
	o, ok := other.(*FormCall)
	if !ok || o.form.Name() != c.form.Name() || len(o.args) != len(c.args) {
		return false
	}
	for i := range c.args {
		if !c.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return c.body.Equal(o.body)
}

// Unfold replaces every form call in e by its body.
func Unfold(e symbolic.Expr) symbolic.Expr {
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		if c, ok := n.(*FormCall); ok {
			return Unfold(c.body), true
		}
		return nil, false
	})
}

// ============================================================
// Integrands and linearity
// ============================================================

// piece is one integrated term of a form body.
type piece struct {
	integral *Integral
	expr     symbolic.Expr
}

func (p piece) coordinates() []string { return p.integral.domain.Coordinates() }

func withMeasure(body symbolic.Expr, d *topology.Domain) symbolic.Expr {
	integrated := symbolic.Has(body, func(n symbolic.Expr) bool {
		switch n.(type) {
		case *Integral, *FormCall:
			return true
		}
		return false
	})
	if integrated {
		return body
	}
	return Integrate(body, d)
}

func domainOf(body symbolic.Expr, fallback *topology.Element) *topology.Domain {
	var d *topology.Domain
	symbolic.Walk(body, func(n symbolic.Expr) bool {
		if i, ok := n.(*Integral); ok && d == nil {
			d = i.domain
		}
		return d == nil
	})
	if d == nil {
		return fallback.Space().Domain()
	}
	return d
}

// integrands splits an unfolded body into its integrated terms, moving the
// coefficients of each term into its integrand.
func integrands(body symbolic.Expr) ([]piece, error) {
	var out []piece
	for _, t := range symbolic.Terms(symbolic.Expand(body)) {
		var in *Integral
		var rest []symbolic.Expr
		for _, f := range mulFactors(t) {
			i, ok := f.(*Integral)
			if !ok {
				rest = append(rest, f)
				continue
			}
			if in != nil {
				return nil, fmt.Errorf("%w: product of integrals %s", ErrUnsupported, t)
			}
			in = i
		}
		if in == nil {
			if symbolic.IsZero(t) {
				continue
			}
			return nil, fmt.Errorf("%w: term %s is not integrated", ErrUnsupported, t)
		}
		out = append(out, piece{integral: in, expr: symbolic.MulOf(append(rest, in.expr)...)})
	}
	return out, nil
}

func mulFactors(e symbolic.Expr) []symbolic.Expr {
	if m, ok := e.(*symbolic.Mul); ok {
		return m.Factors()
	}
	return []symbolic.Expr{e}
}

// atomizedTerms atomizes and expands the integrand of p and returns its
// monomials.
func atomizedTerms(p piece) ([]symbolic.Expr, error) {
	a, err := calculus.AtomizeIn(p.expr, p.coordinates())
	if err != nil {
		return nil, err
	}
	switch a.(type) {
	case *symbolic.Tuple, *symbolic.Matrix:
		return nil, fmt.Errorf("%w: integrand %s is not a scalar", calculus.ErrShape, p.expr)
	}
	return symbolic.Terms(symbolic.Expand(a)), nil
}

func checkLinear(name string, body symbolic.Expr, args ...Arguments) error {
	pieces, err := integrands(body)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		return &UnconsistentLinearExpressionError{Form: name, Term: body}
	}
	for _, p := range pieces {
		terms, err := atomizedTerms(p)
		if err != nil {
			return fmt.Errorf("form: %s: %w", name, err)
		}
		for _, t := range terms {
			for _, a := range args {
				if n, ok := degree(t, a); !ok || n != 1 {
					return &UnconsistentLinearExpressionError{Form: name, Term: t}
				}
			}
		}
	}
	return nil
}

// degree counts the argument atoms of args in a monomial. It fails when an
// argument occurs anywhere but as a plain factor or an integer power.
func degree(term symbolic.Expr, args Arguments) (int, bool) {
	n := 0
	for _, f := range mulFactors(term) {
		if el, _, ok := argumentAtom(f); ok {
			if args.Contains(el) {
				n++
			}
			continue
		}
		if p, ok := f.(*symbolic.Pow); ok {
			if el, _, ok := argumentAtom(p.Base()); ok && args.Contains(el) {
				e, ok := p.ExpExpr().(*symbolic.Num)
				if !ok || !e.IsInteger() || e.Sign() < 0 {
					return 0, false
				}
				n += int(e.Rat().Num().Int64())
				continue
			}
		}
		if dependsOn(f, args) {
			return 0, false
		}
	}
	return n, true
}

func dependsOn(e symbolic.Expr, args Arguments) bool {
	return symbolic.Has(e, func(n symbolic.Expr) bool {
		el, ok := n.(*topology.Element)
		return ok && args.Contains(el)
	})
}
