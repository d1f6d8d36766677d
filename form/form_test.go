package form_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

var must = calculus.Must

func assertExprEqual(t *testing.T, want, got symbolic.Expr) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s", want, got)
}

// fixture is the usual Poisson setting on the unit square.
type fixture struct {
	omega *topology.Domain
	V     *topology.FunctionSpace
	W     *topology.FunctionSpace
	u, v  *topology.Element
	f     *topology.Element
}

func newFixture() fixture {
	omega := topology.Square("Omega")
	V := topology.ScalarFunctionSpace("V", omega, topology.WithKind(topology.KindH1))
	W := topology.VectorFunctionSpace("W", omega, topology.WithKind(topology.KindH1))
	return fixture{omega: omega, V: V, W: W, u: V.Element("u"), v: V.Element("v"), f: V.Field("f")}
}

func (fx fixture) laplace(t *testing.T) *form.BilinearForm {
	t.Helper()
	body := must(calculus.Dot(must(calculus.Grad(fx.u)), must(calculus.Grad(fx.v))))
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body, form.WithName("a"))
	require.NoError(t, err)
	return a
}

func (fx fixture) source(t *testing.T) *form.LinearForm {
	t.Helper()
	l, err := form.NewLinearForm(form.Single(fx.v), symbolic.MulOf(fx.f, fx.v), form.WithName("l"))
	require.NoError(t, err)
	return l
}

func assertNotLinear(t *testing.T, err error) {
	t.Helper()
	var target *form.UnconsistentLinearExpressionError
	assert.True(t, errors.As(err, &target), "got %v", err)
}

func TestBilinearForm_Construction(t *testing.T) {
	fx := newFixture()
	a := fx.laplace(t)

	assert.Equal(t, "a", a.Name())
	assert.Equal(t, form.KindBilinear, a.Kind())
	assert.True(t, a.Domain().Equal(fx.omega))
	assert.Equal(t, "v", a.Tests().String())
	assert.Equal(t, "u", a.Trials().String())

	integral, ok := a.Body().(*form.Integral)
	require.True(t, ok, "body is %s", a.Body())
	assert.False(t, integral.IsBoundary())
	assert.Equal(t, "integral(Omega, dot(grad(u), grad(v)))", integral.String())
}

func TestBilinearForm_GeneratedName(t *testing.T) {
	fx := newFixture()
	a1, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), symbolic.MulOf(fx.u, fx.v))
	require.NoError(t, err)
	a2, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), symbolic.MulOf(fx.u, fx.v))
	require.NoError(t, err)

	assert.Regexp(t, `^a_[0-9a-f]{8}$`, a1.Name())
	assert.NotEqual(t, a1.Name(), a2.Name())
	assert.False(t, a1.Equal(a2))
}

func TestBilinearForm_Linearity(t *testing.T) {
	fx := newFixture()
	u, v := fx.u, fx.v
	cases := map[string]symbolic.Expr{
		"quadratic in trial":  symbolic.MulOf(u, u, v),
		"quadratic in test":   symbolic.MulOf(u, v, v),
		"missing test":        symbolic.MulOf(fx.f, u),
		"constant term":       symbolic.AddOf(symbolic.MulOf(u, v), symbolic.N(1)),
		"nonlinear function":  symbolic.MulOf(symbolic.SinOf(u), v),
		"fractional power":    symbolic.MulOf(symbolic.SqrtOf(u), v),
		"trial in a quotient": symbolic.DivOf(v, u),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := form.NewBilinearForm(form.Single(v), form.Single(u), body)
			assertNotLinear(t, err)
		})
	}
}

func TestBilinearForm_FieldCoefficients(t *testing.T) {
	fx := newFixture()
	body := symbolic.AddOf(
		symbolic.MulOf(fx.f, fx.u, fx.v),
		symbolic.MulOf(symbolic.C("kappa"), topology.Dx(fx.u), topology.Dy(fx.v)),
	)
	_, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body)
	assert.NoError(t, err)
}

func TestLinearForm_Linearity(t *testing.T) {
	fx := newFixture()
	l := fx.source(t)
	assert.Equal(t, form.KindLinear, l.Kind())

	_, err := form.NewLinearForm(form.Single(fx.v), symbolic.MulOf(fx.v, fx.v))
	assertNotLinear(t, err)

	_, err = form.NewLinearForm(form.Single(fx.v), fx.f)
	assertNotLinear(t, err)
}

func TestArguments_Errors(t *testing.T) {
	fx := newFixture()
	body := symbolic.MulOf(fx.u, fx.v)

	_, err := form.NewBilinearForm(form.Single(fx.u), form.Single(fx.u), symbolic.MulOf(fx.u, fx.u))
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.NewBilinearForm(form.Tuple(), form.Single(fx.u), body)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.NewBilinearForm(form.Single(fx.v), form.Single(fx.f), symbolic.MulOf(fx.f, fx.v))
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.NewLinearForm(form.Tuple(fx.v, fx.v), fx.v)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.ArgumentsOf(fx.u, symbolic.S("x"))
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	args, err := form.ArgumentsOf(fx.u, fx.v)
	require.NoError(t, err)
	assert.True(t, args.IsTuple())
	assert.Equal(t, "(u, v)", args.String())
}

func TestFormCall(t *testing.T) {
	fx := newFixture()
	a := fx.laplace(t)
	p, q := fx.V.Element("p"), fx.V.Element("q")

	c, err := a.Call(q, p)
	require.NoError(t, err)
	assert.Equal(t, "a(q, p)", c.String())
	assert.Equal(t, "q", c.Tests().String())
	assert.Equal(t, "p", c.Trials().String())
	assert.True(t, symbolic.Has(c.Body(), func(n symbolic.Expr) bool { return n.Equal(p) }))
	assert.False(t, symbolic.Has(c.Body(), func(n symbolic.Expr) bool { return n.Equal(fx.u) }))

	_, err = a.Call(q)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = a.Call(q, symbolic.S("x"))
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = a.Call(q, fx.W.Element("w"))
	assert.ErrorIs(t, err, form.ErrWrongArgument)
}

func TestBilinearForm_OfCalls(t *testing.T) {
	fx := newFixture()
	a := fx.laplace(t)
	c, err := a.Call(fx.v, fx.u)
	require.NoError(t, err)

	body := symbolic.AddOf(symbolic.MulOf(symbolic.C("alpha"), c), form.Integrate(symbolic.MulOf(fx.u, fx.v), fx.omega))
	b, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body)
	require.NoError(t, err)

	got, err := form.Evaluate(b)
	require.NoError(t, err)
	alpha := symbolic.C("alpha")
	want := symbolic.AddOf(
		symbolic.MulOf(alpha, symbolic.S("Ni_x"), symbolic.S("Nj_x")),
		symbolic.MulOf(alpha, symbolic.S("Ni_y"), symbolic.S("Nj_y")),
		symbolic.MulOf(symbolic.S("Ni"), symbolic.S("Nj")),
	)
	assertExprEqual(t, want, got)
}

func TestIntegral_Diff(t *testing.T) {
	fx := newFixture()
	s := symbolic.S("s")
	i := form.Integrate(symbolic.MulOf(s, fx.f), fx.omega)

	assertExprEqual(t, symbolic.N(0), i.Diff("x"))
	assertExprEqual(t, form.Integrate(fx.f, fx.omega), i.Diff("s"))
	assertExprEqual(t, symbolic.N(0), i.Diff("t"))
}

func TestFunctional(t *testing.T) {
	fx := newFixture()
	_, err := form.NewFunctional(fx.f, nil)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	m, err := form.NewFunctional(symbolic.MulOf(fx.f, fx.f), fx.omega, form.WithName("m"))
	require.NoError(t, err)
	assert.Equal(t, form.KindFunctional, m.Kind())

	got, err := form.Evaluate(m)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.Square(fx.f), got)
}

func TestNorm(t *testing.T) {
	fx := newFixture()
	e := fx.f

	l2, err := form.NewNorm(e, fx.omega, form.NormL2)
	require.NoError(t, err)
	assert.Equal(t, 2, l2.Exponent())
	assert.Equal(t, form.NormL2, l2.NormKind())
	got, err := form.Evaluate(l2)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.Square(e), got)

	h1, err := form.NewNorm(e, fx.omega, form.NormH1)
	require.NoError(t, err)
	got, err = form.Evaluate(h1)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.AddOf(symbolic.Square(topology.Dx(e)), symbolic.Square(topology.Dy(e))), got)

	_, err = form.NewNorm(fx.W.Field("F"), fx.omega, form.NormH2)
	assert.ErrorIs(t, err, form.ErrUnsupported)

	assert.NotEqual(t, l2.Name(), h1.Name())
}

func TestParseNormKind(t *testing.T) {
	k, err := form.ParseNormKind("H1")
	require.NoError(t, err)
	assert.Equal(t, form.NormH1, k)

	k, err = form.ParseNormKind("")
	require.NoError(t, err)
	assert.Equal(t, form.NormL2, k)

	_, err = form.ParseNormKind("h3")
	assert.ErrorIs(t, err, form.ErrWrongArgument)
}
