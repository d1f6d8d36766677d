package form_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// axis returns the 1D test and trial elements Tensorize builds for axis i.
func axis(fx fixture, i int) (*topology.Element, *topology.Element) {
	coord := fx.omega.Coordinates()[i]
	s := topology.ScalarFunctionSpace("V_"+strconv.Itoa(i), fx.omega,
		topology.WithKind(fx.V.Kind()), topology.WithCoordinates(coord))
	return s.Element("v" + strconv.Itoa(i)), s.Element("u" + strconv.Itoa(i))
}

func kernel(fx fixture, k form.KernelKind, i int) *form.Kernel {
	v, u := axis(fx, i)
	return form.NewKernel(k, v, u)
}

func tensorize(t *testing.T, fx fixture, body symbolic.Expr) (symbolic.Expr, error) {
	t.Helper()
	a, err := form.NewBilinearForm(form.Single(fx.v), form.Single(fx.u), body)
	require.NoError(t, err)
	return form.Tensorize(a)
}

func TestTensorize_Laplace(t *testing.T) {
	fx := newFixture()
	got, err := form.Tensorize(fx.laplace(t))
	require.NoError(t, err)

	want := symbolic.AddOf(
		form.NewTensorProduct(kernel(fx, form.Mass, 1), kernel(fx, form.Stiffness, 0)),
		form.NewTensorProduct(kernel(fx, form.Stiffness, 1), kernel(fx, form.Mass, 0)),
	)
	assertExprEqual(t, want, got)
	assert.Contains(t, got.String(), "TensorProduct(Mass(v1, u1), Stiffness(v0, u0))")
	assert.Contains(t, got.String(), "TensorProduct(Stiffness(v1, u1), Mass(v0, u0))")
}

func TestTensorize_Coefficients(t *testing.T) {
	fx := newFixture()
	alpha := symbolic.C("alpha")
	got, err := tensorize(t, fx, symbolic.MulOf(symbolic.N(3), alpha, fx.u, fx.v))
	require.NoError(t, err)

	want := symbolic.MulOf(symbolic.N(3),
		form.NewTensorProduct(alpha, kernel(fx, form.Mass, 1), kernel(fx, form.Mass, 0)))
	assertExprEqual(t, want, got)
}

func TestTensorize_Advection(t *testing.T) {
	fx := newFixture()
	body := symbolic.AddOf(
		symbolic.MulOf(topology.Dx(fx.u), fx.v),
		symbolic.MulOf(fx.u, topology.Dy(fx.v)),
	)
	got, err := tensorize(t, fx, body)
	require.NoError(t, err)

	want := symbolic.AddOf(
		form.NewTensorProduct(kernel(fx, form.Mass, 1), kernel(fx, form.Advection, 0)),
		form.NewTensorProduct(kernel(fx, form.AdvectionT, 1), kernel(fx, form.Mass, 0)),
	)
	assertExprEqual(t, want, got)
}

func TestTensorize_Line(t *testing.T) {
	omega := topology.Line("I")
	V := topology.ScalarFunctionSpace("V", omega)
	u, v := V.Element("u"), V.Element("v")
	body := symbolic.AddOf(symbolic.MulOf(topology.Dx(u), topology.Dx(v)), symbolic.MulOf(u, v))
	a, err := form.NewBilinearForm(form.Single(v), form.Single(u), body)
	require.NoError(t, err)

	got, err := form.Tensorize(a)
	require.NoError(t, err)

	s := topology.ScalarFunctionSpace("V_0", omega, topology.WithCoordinates("x"))
	v0, u0 := s.Element("v0"), s.Element("u0")
	want := symbolic.AddOf(
		form.NewTensorProduct(form.NewKernel(form.Stiffness, v0, u0)),
		form.NewTensorProduct(form.NewKernel(form.Mass, v0, u0)),
	)
	assertExprEqual(t, want, got)
}

func TestTensorize_NonSeparable(t *testing.T) {
	fx := newFixture()
	cases := map[string]symbolic.Expr{
		"field coefficient":      symbolic.MulOf(fx.f, fx.u, fx.v),
		"coordinate coefficient": symbolic.MulOf(symbolic.S("x"), fx.u, fx.v),
		"second derivative":      symbolic.MulOf(topology.Dx(topology.Dx(fx.u)), fx.v),
		"laplacian":              symbolic.MulOf(must(calculus.Laplace(fx.u)), fx.v),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tensorize(t, fx, body)
			assert.ErrorIs(t, err, form.ErrNonSeparable)
		})
	}
}

func TestTensorize_Unsupported(t *testing.T) {
	fx := newFixture()
	u, v := fx.W.Element("u"), fx.W.Element("v")
	a, err := form.NewBilinearForm(form.Single(v), form.Single(u), must(calculus.Dot(u, v)))
	require.NoError(t, err)
	_, err = form.Tensorize(a)
	assert.ErrorIs(t, err, form.ErrUnsupported)

	M := topology.IdentityMapping("M", 2)
	omega, err := M.Apply(topology.Square("Omega"))
	require.NoError(t, err)
	V := topology.ScalarFunctionSpace("V", omega)
	p, q := V.Element("p"), V.Element("q")
	b, err := form.NewBilinearForm(form.Single(q), form.Single(p), symbolic.MulOf(p, q))
	require.NoError(t, err)
	_, err = form.Tensorize(b)
	assert.ErrorIs(t, err, form.ErrUnsupported)
}

func TestKernel_String(t *testing.T) {
	fx := newFixture()
	k := kernel(fx, form.AdvectionT, 0)
	assert.Equal(t, "AdvectionT(v0, u0)", k.String())
	assert.Equal(t, form.AdvectionT, k.KernelKind())
	assert.True(t, k.Equal(kernel(fx, form.AdvectionT, 0)))
	assert.False(t, k.Equal(kernel(fx, form.Advection, 0)))
}
