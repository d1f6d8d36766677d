package form_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

var (
	ni, nj   = symbolic.S("Ni"), symbolic.S("Nj")
	nix, niy = symbolic.S("Ni_x"), symbolic.S("Ni_y")
	njx, njy = symbolic.S("Nj_x"), symbolic.S("Nj_y")
)

func TestEvaluate_Laplace(t *testing.T) {
	fx := newFixture()
	got, err := form.Evaluate(fx.laplace(t))
	require.NoError(t, err)

	want := symbolic.AddOf(symbolic.MulOf(nix, njx), symbolic.MulOf(niy, njy))
	assertExprEqual(t, want, got)
}

func TestEvaluate_WithBasis(t *testing.T) {
	fx := newFixture()
	got, err := form.Evaluate(fx.laplace(t), form.WithBasis(map[string]string{"u": "B", "v": "A"}))
	require.NoError(t, err)

	want := symbolic.AddOf(
		symbolic.MulOf(symbolic.S("A_x"), symbolic.S("B_x")),
		symbolic.MulOf(symbolic.S("A_y"), symbolic.S("B_y")),
	)
	assertExprEqual(t, want, got)
}

func TestEvaluate_MixedDerivative(t *testing.T) {
	fx := newFixture()
	body := symbolic.MulOf(topology.Dy(topology.Dx(fx.u)), fx.v)
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body)
	require.NoError(t, err)

	got, err := form.Evaluate(a)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.MulOf(ni, symbolic.S("Nj_xy")), got)
}

func TestEvaluate_BlockMatrix(t *testing.T) {
	fx := newFixture()
	u1, u2 := fx.V.Element("u1"), fx.V.Element("u2")
	v1, v2 := fx.V.Element("v1"), fx.V.Element("v2")
	body := symbolic.AddOf(
		symbolic.MulOf(u1, v1),
		symbolic.MulOf(topology.Dx(u2), v1),
		symbolic.MulOf(u2, topology.Dy(v2)),
	)
	a, err := form.NewBilinearForm(form.Tuple(v1, v2), form.Tuple(u1, u2), body)
	require.NoError(t, err)

	got, err := form.Evaluate(a)
	require.NoError(t, err)
	m, ok := got.(*symbolic.Matrix)
	require.True(t, ok, "got %s", got)
	require.Equal(t, 2, m.Rows())
	require.Equal(t, 2, m.Cols())

	// rows are trial slots, columns test slots
	assertExprEqual(t, symbolic.MulOf(ni, nj), m.Get(0, 0))
	assertExprEqual(t, symbolic.N(0), m.Get(0, 1))
	assertExprEqual(t, symbolic.MulOf(ni, njx), m.Get(1, 0))
	assertExprEqual(t, symbolic.MulOf(niy, nj), m.Get(1, 1))
}

func TestEvaluate_VectorArguments(t *testing.T) {
	fx := newFixture()
	u, v := fx.W.Element("u"), fx.W.Element("v")
	a, err := form.NewBilinearForm(form.Single(v), form.Single(u), must(calculus.Dot(u, v)))
	require.NoError(t, err)

	got, err := form.Evaluate(a)
	require.NoError(t, err)
	m, ok := got.(*symbolic.Matrix)
	require.True(t, ok, "got %s", got)

	assertExprEqual(t, symbolic.MulOf(ni, nj), m.Get(0, 0))
	assertExprEqual(t, symbolic.MulOf(ni, nj), m.Get(1, 1))
	assertExprEqual(t, symbolic.N(0), m.Get(0, 1))
	assertExprEqual(t, symbolic.N(0), m.Get(1, 0))
}

func TestEvaluate_LinearForm(t *testing.T) {
	fx := newFixture()
	got, err := form.Evaluate(fx.source(t))
	require.NoError(t, err)
	assertExprEqual(t, symbolic.MulOf(fx.f, ni), got)

	g := fx.W.Field("g")
	v := fx.W.Element("v")
	l, err := form.NewLinearForm(form.Single(v), must(calculus.Dot(g, v)))
	require.NoError(t, err)

	got, err = form.Evaluate(l)
	require.NoError(t, err)
	want := symbolic.TupleOf(
		symbolic.MulOf(topology.Index(g, 0), ni),
		symbolic.MulOf(topology.Index(g, 1), ni),
	)
	assertExprEqual(t, want, got)
}

func TestEvaluate_FormCall(t *testing.T) {
	fx := newFixture()
	p, q := fx.V.Element("p"), fx.V.Element("q")
	c, err := fx.laplace(t).Call(q, p)
	require.NoError(t, err)

	got, err := form.Evaluate(c, form.WithBasis(map[string]string{"q": "Q"}))
	require.NoError(t, err)

	want := symbolic.AddOf(
		symbolic.MulOf(symbolic.S("Q_x"), njx),
		symbolic.MulOf(symbolic.S("Q_y"), njy),
	)
	assertExprEqual(t, want, got)
}

func TestEvaluate_OnBoundary(t *testing.T) {
	fx := newFixture()
	gamma, ok := fx.omega.BoundaryByName("Gamma_1")
	require.True(t, ok)

	body := symbolic.AddOf(
		form.Integrate(must(calculus.Dot(must(calculus.Grad(fx.u)), must(calculus.Grad(fx.v)))), fx.omega),
		form.IntegrateBoundary(symbolic.MulOf(fx.u, fx.v), gamma),
	)
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body)
	require.NoError(t, err)

	interior, err := form.Evaluate(a)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.AddOf(symbolic.MulOf(nix, njx), symbolic.MulOf(niy, njy)), interior)

	boundary, err := form.Evaluate(a, form.OnBoundary(gamma))
	require.NoError(t, err)
	assertExprEqual(t, symbolic.MulOf(ni, nj), boundary)
}

func TestEvaluate_Expression(t *testing.T) {
	fx := newFixture()
	got, err := form.Evaluate(must(calculus.Grad(fx.u)))
	require.NoError(t, err)
	assertExprEqual(t, symbolic.TupleOf(topology.Dx(fx.u), topology.Dy(fx.u)), got)
}

func TestEvaluate_Logger(t *testing.T) {
	fx := newFixture()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := form.Evaluate(fx.laplace(t), form.WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "atomized integrand")
	assert.Contains(t, buf.String(), "form=a")
}
