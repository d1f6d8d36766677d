package calculus

import (
	"fmt"

	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// Atomization
// ============================================================

// Atomize rewrites e in terms of coordinate derivatives of elements: every
// operator is replaced by its component formula, vector elements become
// tuples of their indexed components, and the product and quotient rules
// come from the kernel's differentiation. The coordinates are those of the
// first element found in e.
func Atomize(e symbolic.Expr) (symbolic.Expr, error) {
	coords, err := inferCoordinates(e)
	if err != nil {
		return nil, err
	}
	return AtomizeIn(e, coords)
}

// AtomizeIn atomizes e with respect to the given coordinates.
func AtomizeIn(e symbolic.Expr, coords []string) (symbolic.Expr, error) {
	a := &atomizer{coords: coords}
	r := a.run(e)
	if a.err != nil {
		return nil, a.err
	}
	return r, nil
}

// Coordinates returns the coordinates Atomize would use for e.
func Coordinates(e symbolic.Expr) ([]string, error) { return inferCoordinates(e) }

func inferCoordinates(e symbolic.Expr) ([]string, error) {
	var coords []string
	symbolic.Walk(e, func(n symbolic.Expr) bool {
		if coords != nil {
			return false
		}
		switch v := n.(type) {
		case *topology.Element:
			coords = v.Space().Domain().Coordinates()
		case *topology.BoundaryVector:
			coords = topology.PhysicalCoordinates[:v.Dim()]
		case *topology.MappingComponent:
			coords = topology.LogicalCoordinates[:v.Mapping().LDim()]
		}
		return coords == nil
	})
	if coords == nil {
		return nil, fmt.Errorf("%w: %s has no element", ErrDimension, e)
	}
	return coords, nil
}

type atomizer struct {
	coords []string
	err    error
}

func (a *atomizer) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *atomizer) run(e symbolic.Expr) symbolic.Expr {
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		if a.err != nil {
			return n, true
		}
		switch v := n.(type) {
		case *topology.Element:
			if v.IsVector() {
				return v.Components(), true
			}
			return v, true
		case *topology.BoundaryVector:
			return v.Components(), true
		case *symbolic.Derivative:
			return v.WithArgs([]symbolic.Expr{a.run(v.Expr())}), true
		case *Trace:
			if v.order == 0 {
				return a.run(v.expr), true
			}
			return a.normalDerivative(v.expr), true
		case *Operator:
			args := make([]symbolic.Expr, len(v.operands))
			for i, x := range v.operands {
				args[i] = a.run(x)
			}
			if a.err != nil {
				return n, true
			}
			r, err := a.eval(v.op, args)
			if err != nil {
				a.fail(fmt.Errorf("%w: %s", err, v))
				return n, true
			}
			return r, true
		}
		return nil, false
	})
}

// normalDerivative atomizes dot(grad(e), nn).
func (a *atomizer) normalDerivative(e symbolic.Expr) symbolic.Expr {
	g, err := a.eval(OpGrad, []symbolic.Expr{a.run(e)})
	if err != nil {
		a.fail(err)
		return e
	}
	r, err := a.eval(OpDot, []symbolic.Expr{g, topology.NormalVector(len(a.coords)).Components()})
	if err != nil {
		a.fail(err)
		return e
	}
	return r
}

func (a *atomizer) diff(e symbolic.Expr, i int) symbolic.Expr {
	return e.Diff(a.coords[i])
}

// eval applies the component formula of op to atomized operands.
func (a *atomizer) eval(op Op, args []symbolic.Expr) (symbolic.Expr, error) {
	dim := len(a.coords)
	x := args[0]
	switch op {
	case OpGrad:
		return a.grad(x)
	case OpDiv:
		switch v := x.(type) {
		case *symbolic.Tuple:
			if v.Len() != dim {
				return nil, ErrShape
			}
			terms := make([]symbolic.Expr, dim)
			for i := range terms {
				terms[i] = a.diff(v.At(i), i)
			}
			return symbolic.AddOf(terms...), nil
		case *symbolic.Matrix:
			if v.Cols() != dim {
				return nil, ErrShape
			}
			out := make([]symbolic.Expr, v.Rows())
			for i := range out {
				terms := make([]symbolic.Expr, dim)
				for j := range terms {
					terms[j] = a.diff(v.Get(i, j), j)
				}
				out[i] = symbolic.AddOf(terms...)
			}
			return symbolic.TupleOf(out...), nil
		}
		return nil, ErrShape
	case OpCurl:
		return a.curl(x)
	case OpRot:
		v, ok := x.(*symbolic.Tuple)
		if !ok || dim != 2 || v.Len() != 2 {
			return nil, ErrShape
		}
		return symbolic.Minus(a.diff(v.At(0), 1), a.diff(v.At(1), 0)), nil
	case OpLaplace:
		return a.laplace(x)
	case OpHessian:
		if isContainer(x) {
			return nil, ErrShape
		}
		m := symbolic.NewMatrix(dim, dim)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				m.Set(i, j, a.diff(a.diff(x, i), j))
			}
		}
		return m, nil
	case OpD:
		v, ok := x.(*symbolic.Tuple)
		if !ok || v.Len() != dim {
			return nil, ErrShape
		}
		half := symbolic.F(1, 2)
		m := symbolic.NewMatrix(dim, dim)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				m.Set(i, j, symbolic.MulOf(half, symbolic.AddOf(a.diff(v.At(i), j), a.diff(v.At(j), i))))
			}
		}
		return m, nil
	}
	return a.evalBinary(op, x, args[1])
}

func (a *atomizer) grad(x symbolic.Expr) (symbolic.Expr, error) {
	dim := len(a.coords)
	switch v := x.(type) {
	case *symbolic.Matrix:
		return nil, ErrShape
	case *symbolic.Tuple:
		m := symbolic.NewMatrix(v.Len(), dim)
		for i := 0; i < v.Len(); i++ {
			for j := 0; j < dim; j++ {
				m.Set(i, j, a.diff(v.At(i), j))
			}
		}
		return m, nil
	}
	out := make([]symbolic.Expr, dim)
	for i := range out {
		out[i] = a.diff(x, i)
	}
	return symbolic.TupleOf(out...), nil
}

// curl follows the 3D formula; in 2D the curl of a vector is the scalar
// dx(v1) - dy(v0) and the curl of a scalar s is (dy(s), -dx(s)).
func (a *atomizer) curl(x symbolic.Expr) (symbolic.Expr, error) {
	dim := len(a.coords)
	v, isTuple := x.(*symbolic.Tuple)
	switch {
	case dim == 3 && isTuple && v.Len() == 3:
		return symbolic.TupleOf(
			symbolic.Minus(a.diff(v.At(2), 1), a.diff(v.At(1), 2)),
			symbolic.Minus(a.diff(v.At(0), 2), a.diff(v.At(2), 0)),
			symbolic.Minus(a.diff(v.At(1), 0), a.diff(v.At(0), 1)),
		), nil
	case dim == 2 && isTuple && v.Len() == 2:
		return symbolic.Minus(a.diff(v.At(1), 0), a.diff(v.At(0), 1)), nil
	case dim == 2 && !isContainer(x):
		return symbolic.TupleOf(a.diff(x, 1), symbolic.Neg(a.diff(x, 0))), nil
	}
	return nil, ErrShape
}

func (a *atomizer) laplace(x symbolic.Expr) (symbolic.Expr, error) {
	switch v := x.(type) {
	case *symbolic.Matrix:
		return nil, ErrShape
	case *symbolic.Tuple:
		out := make([]symbolic.Expr, v.Len())
		for i := range out {
			r, err := a.laplace(v.At(i))
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return symbolic.TupleOf(out...), nil
	}
	terms := make([]symbolic.Expr, len(a.coords))
	for i := range terms {
		terms[i] = a.diff(a.diff(x, i), i)
	}
	return symbolic.AddOf(terms...), nil
}

func (a *atomizer) evalBinary(op Op, x, y symbolic.Expr) (symbolic.Expr, error) {
	switch op {
	case OpDot, OpInner, OpCross:
		if !isContainer(x) && !isContainer(y) {
			if op == OpCross {
				return nil, ErrShape
			}
			return symbolic.MulOf(x, y), nil
		}
		if r, ok, err := evalConcrete(op, x, y); ok || err != nil {
			return r, err
		}
		if op == OpDot {
			if t, ok := x.(*symbolic.Tuple); ok {
				if m, ok := y.(*symbolic.Matrix); ok {
					return m.Transpose().Apply(t), nil
				}
			}
		}
		return nil, ErrShape
	case OpConvect:
		t, ok := x.(*symbolic.Tuple)
		if !ok || t.Len() != len(a.coords) {
			return nil, ErrShape
		}
		directional := func(e symbolic.Expr) symbolic.Expr {
			terms := make([]symbolic.Expr, t.Len())
			for j := range terms {
				terms[j] = symbolic.MulOf(t.At(j), a.diff(e, j))
			}
			return symbolic.AddOf(terms...)
		}
		switch w := y.(type) {
		case *symbolic.Matrix:
			return nil, ErrShape
		case *symbolic.Tuple:
			out := make([]symbolic.Expr, w.Len())
			for i := range out {
				out[i] = directional(w.At(i))
			}
			return symbolic.TupleOf(out...), nil
		}
		return directional(y), nil
	case OpBracket:
		if len(a.coords) != 2 || isContainer(x) || isContainer(y) {
			return nil, ErrShape
		}
		return symbolic.Minus(
			symbolic.MulOf(a.diff(x, 0), a.diff(y, 1)),
			symbolic.MulOf(a.diff(x, 1), a.diff(y, 0)),
		), nil
	}
	return nil, ErrShape
}

func isContainer(e symbolic.Expr) bool {
	switch e.(type) {
	case *symbolic.Tuple, *symbolic.Matrix:
		return true
	}
	return false
}
