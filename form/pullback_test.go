package form_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/logical"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

func mappedFixture(t *testing.T, m *topology.Mapping) fixture {
	t.Helper()
	omega, err := m.Apply(topology.Square("Omega"))
	require.NoError(t, err)
	V := topology.ScalarFunctionSpace("V", omega, topology.WithKind(topology.KindH1))
	W := topology.VectorFunctionSpace("W", omega, topology.WithKind(topology.KindH1))
	return fixture{omega: omega, V: V, W: W, u: V.Element("u"), v: V.Element("v"), f: V.Field("f")}
}

func TestLogical_Unmapped(t *testing.T) {
	fx := newFixture()
	a := fx.laplace(t)
	got, err := form.Logical(a)
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestLogical_IdentityMapping(t *testing.T) {
	fx := mappedFixture(t, topology.IdentityMapping("M", 2))
	body := symbolic.AddOf(symbolic.MulOf(fx.u, fx.v), symbolic.MulOf(topology.Dx(fx.u), topology.Dx(fx.v)))
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body, form.WithName("a"))
	require.NoError(t, err)

	got, err := form.Logical(a, logical.WithSubs())
	require.NoError(t, err)
	la, ok := got.(*form.BilinearForm)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "a_logical", la.Name())
	assert.True(t, la.Domain().Equal(fx.omega.Logical()))
	assert.True(t, la.Tests().At(0).Equal(fx.v.Logical()))
	assert.True(t, la.Trials().At(0).Equal(fx.u.Logical()))

	values, err := form.Evaluate(la)
	require.NoError(t, err)
	want := symbolic.AddOf(
		symbolic.MulOf(ni, nj),
		symbolic.MulOf(symbolic.S("Ni_x1"), symbolic.S("Nj_x1")),
	)
	assertExprEqual(t, want, values)
}

func TestLogical_Measure(t *testing.T) {
	M := topology.NewMapping("M", 2)
	fx := mappedFixture(t, M)
	l, err := form.NewLinearForm(form.Single(fx.v), fx.v)
	require.NoError(t, err)

	got, err := form.Logical(l)
	require.NoError(t, err)
	integral, ok := got.Body().(*form.Integral)
	require.True(t, ok, "body is %s", got.Body())

	want := symbolic.MulOf(fx.v.Logical(), M.Measure())
	assertExprEqual(t, want, integral.Expr())
}

func TestLogical_Norm(t *testing.T) {
	fx := mappedFixture(t, topology.IdentityMapping("M", 2))
	n, err := form.NewNorm(fx.f, fx.omega, form.NormL2, form.WithName("n"))
	require.NoError(t, err)

	got, err := form.Logical(n, logical.WithSubs())
	require.NoError(t, err)
	ln, ok := got.(*form.Norm)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, form.NormL2, ln.NormKind())
	assertExprEqual(t, fx.f.Logical(), ln.Expr())

	values, err := form.Evaluate(ln)
	require.NoError(t, err)
	assertExprEqual(t, symbolic.Square(fx.f.Logical()), values)
}

func TestLogical_BoundaryIntegral(t *testing.T) {
	fx := mappedFixture(t, topology.IdentityMapping("M", 2))
	gamma, ok := fx.omega.BoundaryByName("Gamma_1")
	require.True(t, ok)
	l, err := form.NewLinearForm(form.Single(fx.v), form.IntegrateBoundary(fx.v, gamma))
	require.NoError(t, err)

	_, err = form.Logical(l)
	assert.ErrorIs(t, err, form.ErrUnsupported)
}

func TestLogical_DoesNotLeakIntoPhysicalForms(t *testing.T) {
	mfx := mappedFixture(t, topology.IdentityMapping("M", 2))
	mass := symbolic.AddOf(symbolic.MulOf(mfx.u, mfx.v), symbolic.MulOf(topology.Dx(mfx.u), topology.Dx(mfx.v)))
	ma, err := form.NewBilinearForm(form.Single(mfx.v), form.Single(mfx.u), mass, form.WithName("a"))
	require.NoError(t, err)
	_, err = form.Logical(ma, logical.WithSubs())
	require.NoError(t, err)

	// Same names on a physical square, without clearing the expansion cache.
	fx := newFixture()
	body := symbolic.AddOf(symbolic.MulOf(fx.u, fx.v), symbolic.MulOf(topology.Dx(fx.u), topology.Dx(fx.v)))
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body, form.WithName("a"))
	require.NoError(t, err)
	values, err := form.Evaluate(a)
	require.NoError(t, err)
	want := symbolic.AddOf(
		symbolic.MulOf(ni, nj),
		symbolic.MulOf(nix, njx),
	)
	assertExprEqual(t, want, values)

	// Two mappings sharing a name.
	M := topology.NewMapping("M", 2)
	gfx := mappedFixture(t, M)
	l, err := form.NewLinearForm(form.Single(gfx.v), gfx.v)
	require.NoError(t, err)
	got, err := form.Logical(l)
	require.NoError(t, err)
	integral, ok := got.Body().(*form.Integral)
	require.True(t, ok, "body is %s", got.Body())
	assertExprEqual(t, symbolic.MulOf(gfx.v.Logical(), M.Measure()), integral.Expr())
}
