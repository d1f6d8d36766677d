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

func TestEssentialBC_Classification(t *testing.T) {
	fx := newFixture()
	gamma, _ := fx.omega.BoundaryByName("Gamma_1")
	w := fx.W.Element("w")
	nn := topology.NormalVector(2)

	tests := []struct {
		name   string
		expr   symbolic.Expr
		order  int
		normal bool
		index  []int
	}{
		{"scalar", fx.u, 0, false, nil},
		{"vector", w, 0, false, []int{0, 1}},
		{"component", topology.Index(w, 1), 0, false, []int{1}},
		{"normal component", must(calculus.Dot(w, nn)), 0, true, nil},
		{"normal derivative", must(calculus.Dot(must(calculus.Grad(fx.u)), nn)), 1, false, nil},
		{"trace 0", calculus.Trace0(w), 0, false, []int{0, 1}},
		{"trace 1", calculus.Trace1(fx.u), 1, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc, err := form.NewEssentialBC(tt.expr, nil, gamma)
			require.NoError(t, err)
			assert.Equal(t, tt.order, bc.Order())
			assert.Equal(t, tt.normal, bc.NormalComponent())
			assert.Equal(t, tt.index, bc.IndexComponent())
			assert.True(t, symbolic.IsZero(bc.Value()))
			assert.Equal(t, "Gamma_1", bc.Boundary().Name())
		})
	}
}

func TestEssentialBC_Errors(t *testing.T) {
	fx := newFixture()
	gamma, _ := fx.omega.BoundaryByName("Gamma_1")

	_, err := form.NewEssentialBC(must(calculus.Laplace(fx.u)), nil, gamma)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.NewEssentialBC(fx.u, nil, nil)
	assert.ErrorIs(t, err, form.ErrWrongArgument)

	_, err = form.NewEssentialBC(symbolic.MulOf(symbolic.N(2), fx.u), nil, gamma)
	assert.ErrorIs(t, err, form.ErrWrongArgument)
}

func TestEquation(t *testing.T) {
	fx := newFixture()
	a, l := fx.laplace(t), fx.source(t)
	lhs, err := a.Call(fx.v, fx.u)
	require.NoError(t, err)
	rhs, err := l.Call(fx.v)
	require.NoError(t, err)
	gamma, _ := fx.omega.BoundaryByName("Gamma_2")
	bc, err := form.NewEssentialBC(fx.u, symbolic.N(1), gamma)
	require.NoError(t, err)

	eq, err := form.NewEquation(lhs, rhs, bc)
	require.NoError(t, err)
	assert.Equal(t, "a(v, u) = l(v)", eq.String())
	assert.Equal(t, "u", eq.Trials().String())
	require.Len(t, eq.BCs(), 1)
	assert.Equal(t, "u = 1 on Gamma_2", eq.BCs()[0].String())

	// bare forms stand for their calls
	eq, err = form.NewEquation(a, l)
	require.NoError(t, err)
	assert.Equal(t, "a(v, u) = l(v)", eq.String())
}

func TestEquation_DirichletExpansion(t *testing.T) {
	fx := newFixture()
	p, q := fx.V.Element("p"), fx.V.Element("q")
	w := fx.W.Element("w")
	body := symbolic.AddOf(symbolic.MulOf(p, q), symbolic.MulOf(must(calculus.Div(w)), q))
	a, err := form.NewBilinearForm(form.Single(q), form.Tuple(p, w), body)
	require.NoError(t, err)
	l, err := form.NewLinearForm(form.Single(q), symbolic.MulOf(fx.f, q))
	require.NoError(t, err)

	eq, err := form.NewEquation(a, l, form.DirichletBC(fx.omega.Boundary()))
	require.NoError(t, err)

	bcs := eq.BCs()
	require.Len(t, bcs, 2)
	assert.Equal(t, "p", bcs[0].Variable().Name())
	assert.Nil(t, bcs[0].IndexComponent())
	assert.Equal(t, "w", bcs[1].Variable().Name())
	assert.Equal(t, []int{0, 1}, bcs[1].IndexComponent())
}

func TestEquation_InconsistentLhs(t *testing.T) {
	fx := newFixture()
	l := fx.source(t)
	rhs, err := l.Call(fx.v)
	require.NoError(t, err)

	var target *form.UnconsistentLhsError
	_, err = form.NewEquation(rhs, rhs)
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Contains(t, err.Error(), "linear form")

	_, err = form.NewEquation(symbolic.MulOf(fx.u, fx.v), rhs)
	assert.True(t, errors.As(err, &target), "got %v", err)
}

func TestEquation_InconsistentRhs(t *testing.T) {
	fx := newFixture()
	a := fx.laplace(t)
	w := fx.V.Element("w")
	other, err := form.NewLinearForm(form.Single(w), symbolic.MulOf(fx.f, w))
	require.NoError(t, err)

	var target *form.UnconsistentRhsError
	_, err = form.NewEquation(a, other)
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Contains(t, err.Error(), "test functions")

	_, err = form.NewEquation(a, a)
	assert.True(t, errors.As(err, &target), "got %v", err)
}

func TestEquation_InconsistentBC(t *testing.T) {
	fx := newFixture()
	a, l := fx.laplace(t), fx.source(t)

	elsewhere, _ := topology.Square("Other").BoundaryByName("Gamma_1")
	bc, err := form.NewEssentialBC(fx.u, nil, elsewhere)
	require.NoError(t, err)
	var target *form.UnconsistentBCError
	_, err = form.NewEquation(a, l, bc)
	assert.True(t, errors.As(err, &target), "got %v", err)

	gamma, _ := fx.omega.BoundaryByName("Gamma_1")
	bc, err = form.NewEssentialBC(fx.v, nil, gamma)
	require.NoError(t, err)
	_, err = form.NewEquation(a, l, bc)
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Same(t, bc, target.BC)
}
