package calculus

import (
	"sort"

	"github.com/njchilds90/gosympde/symbolic"
)

// ============================================================
// Public constructors
// ============================================================

func Grad(e symbolic.Expr) (symbolic.Expr, error)    { return unary(OpGrad, e) }
func Curl(e symbolic.Expr) (symbolic.Expr, error)    { return unary(OpCurl, e) }
func Rot(e symbolic.Expr) (symbolic.Expr, error)     { return unary(OpRot, e) }
func Div(e symbolic.Expr) (symbolic.Expr, error)     { return unary(OpDiv, e) }
func Laplace(e symbolic.Expr) (symbolic.Expr, error) { return unary(OpLaplace, e) }
func Hessian(e symbolic.Expr) (symbolic.Expr, error) { return unary(OpHessian, e) }

// D is the symmetric gradient (rate of strain) of a vector field.
func D(e symbolic.Expr) (symbolic.Expr, error) { return unary(OpD, e) }

func Dot(a, b symbolic.Expr) (symbolic.Expr, error)   { return binary(OpDot, a, b) }
func Inner(a, b symbolic.Expr) (symbolic.Expr, error) { return binary(OpInner, a, b) }
func Cross(a, b symbolic.Expr) (symbolic.Expr, error) { return binary(OpCross, a, b) }

// Convect is the convective derivative (a . grad) b.
func Convect(a, b symbolic.Expr) (symbolic.Expr, error) { return binary(OpConvect, a, b) }

// Bracket is the Poisson bracket dx(a) dy(b) - dy(a) dx(b).
func Bracket(a, b symbolic.Expr) (symbolic.Expr, error) { return binary(OpBracket, a, b) }

// Must panics if err is non-nil. It is meant for expression literals in
// tests and examples.
func Must(e symbolic.Expr, err error) symbolic.Expr {
	if err != nil {
		panic(err)
	}
	return e
}

// Apply builds the operator op on args, e.g. from a decoded problem file.
func Apply(op Op, args ...symbolic.Expr) (symbolic.Expr, error) {
	if len(args) != op.Arity() {
		return nil, ErrShape
	}
	return apply(op, args)
}

func apply(op Op, args []symbolic.Expr) (symbolic.Expr, error) {
	if op.Arity() == 2 {
		return binary(op, args[0], args[1])
	}
	return unary(op, args[0])
}

func raw(op Op, args ...symbolic.Expr) symbolic.Expr {
	return &Operator{op: op, operands: args}
}

// ============================================================
// Unary operators
// ============================================================

// unary distributes op over sums, pulls constant factors out and hands the
// remaining term to the operator-specific rules.
func unary(op Op, e symbolic.Expr) (symbolic.Expr, error) {
	if terms := symbolic.Terms(e); len(terms) > 1 {
		out := make([]symbolic.Expr, len(terms))
		for i, t := range terms {
			r, err := unary(op, t)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return symbolic.AddOf(out...), nil
	}
	coeff, rest := splitConstant(e)
	if symbolic.IsOne(rest) {
		return symbolic.N(0), nil
	}
	if !symbolic.IsOne(coeff) {
		r, err := unary(op, rest)
		if err != nil {
			return nil, err
		}
		return symbolic.MulOf(coeff, r), nil
	}
	if err := checkKind(op, rest); err != nil {
		return nil, err
	}
	switch op {
	case OpGrad:
		return gradRules(rest)
	case OpCurl:
		return curlRules(rest)
	case OpRot:
		return rotRules(rest)
	case OpDiv:
		return divRules(rest)
	case OpLaplace:
		return laplaceRules(rest)
	}
	return raw(op, rest), nil
}

func gradRules(e symbolic.Expr) (symbolic.Expr, error) {
	switch v := e.(type) {
	case *symbolic.Mul:
		factors := v.Factors()
		for _, f := range factors {
			if Rank(f) > 0 {
				return raw(OpGrad, e), nil
			}
		}
		terms := make([]symbolic.Expr, len(factors))
		for i, f := range factors {
			g, err := Grad(f)
			if err != nil {
				return nil, err
			}
			terms[i] = symbolic.MulOf(append(without(factors, i), g)...)
		}
		return symbolic.AddOf(terms...), nil
	case *symbolic.Pow:
		n := v.ExpExpr()
		if !symbolic.IsConstant(n) || Rank(v.Base()) > 0 {
			break
		}
		g, err := Grad(v.Base())
		if err != nil {
			return nil, err
		}
		return symbolic.MulOf(n, symbolic.PowOf(v.Base(), symbolic.AddOf(n, symbolic.N(-1))), g), nil
	case *Operator:
		if v.op == OpDot && isVector3(v) {
			return gradDot(v.operands[0], v.operands[1])
		}
	}
	return raw(OpGrad, e), nil
}

// gradDot expands grad(dot(F, G)) in 3D.
func gradDot(f, g symbolic.Expr) (symbolic.Expr, error) {
	curlF, err := Curl(f)
	if err != nil {
		return raw(OpGrad, raw(OpDot, f, g)), nil
	}
	curlG, err := Curl(g)
	if err != nil {
		return raw(OpGrad, raw(OpDot, f, g)), nil
	}
	return sumOf(
		func() (symbolic.Expr, error) { return Convect(f, g) },
		func() (symbolic.Expr, error) { return Convect(g, f) },
		func() (symbolic.Expr, error) { return Cross(f, curlG) },
		func() (symbolic.Expr, error) { return negated(Cross(curlF, g)) },
	)
}

func curlRules(e symbolic.Expr) (symbolic.Expr, error) {
	switch v := e.(type) {
	case *Operator:
		switch v.op {
		case OpGrad:
			return symbolic.N(0), nil
		case OpCurl:
			f := v.operands[0]
			if Rank(f) != 1 {
				break
			}
			gd, err := Div(f)
			if err != nil {
				break
			}
			lap, err := Laplace(f)
			if err != nil {
				break
			}
			g, err := Grad(gd)
			if err != nil {
				return nil, err
			}
			return symbolic.Minus(g, lap), nil
		case OpCross:
			f, g := v.operands[0], v.operands[1]
			return sumOf(
				func() (symbolic.Expr, error) { return scaled(f, OpDiv, g) },
				func() (symbolic.Expr, error) { return negated(scaled(g, OpDiv, f)) },
				func() (symbolic.Expr, error) { return negated(Convect(f, g)) },
				func() (symbolic.Expr, error) { return Convect(g, f) },
			)
		}
	case *symbolic.Mul:
		if s, vec, ok := splitScalarVector(v); ok {
			return sumOf(
				func() (symbolic.Expr, error) { return scaled(s, OpCurl, vec) },
				func() (symbolic.Expr, error) { return crossGrad(s, vec) },
			)
		}
	}
	return raw(OpCurl, e), nil
}

func rotRules(e symbolic.Expr) (symbolic.Expr, error) {
	switch v := e.(type) {
	case *Operator:
		if v.op == OpGrad {
			return symbolic.N(0), nil
		}
	case *symbolic.Mul:
		if s, vec, ok := splitScalarVector(v); ok {
			return sumOf(
				func() (symbolic.Expr, error) { return scaled(s, OpRot, vec) },
				func() (symbolic.Expr, error) { return negated(crossGrad(s, vec)) },
			)
		}
	}
	return raw(OpRot, e), nil
}

func divRules(e symbolic.Expr) (symbolic.Expr, error) {
	switch v := e.(type) {
	case *Operator:
		switch v.op {
		case OpCurl:
			return symbolic.N(0), nil
		case OpCross:
			f, g := v.operands[0], v.operands[1]
			return sumOf(
				func() (symbolic.Expr, error) { return dotCurl(g, f) },
				func() (symbolic.Expr, error) { return negated(dotCurl(f, g)) },
			)
		}
	case *symbolic.Mul:
		if s, vec, ok := splitScalarVector(v); ok {
			return sumOf(
				func() (symbolic.Expr, error) { return scaled(s, OpDiv, vec) },
				func() (symbolic.Expr, error) {
					gs, err := Grad(s)
					if err != nil {
						return nil, err
					}
					return Dot(vec, gs)
				},
			)
		}
	}
	return raw(OpDiv, e), nil
}

func laplaceRules(e symbolic.Expr) (symbolic.Expr, error) {
	m, ok := e.(*symbolic.Mul)
	if !ok {
		return raw(OpLaplace, e), nil
	}
	factors := m.Factors()
	for _, f := range factors {
		if Rank(f) > 0 {
			return raw(OpLaplace, e), nil
		}
	}
	f, g := factors[0], symbolic.MulOf(factors[1:]...)
	gf, err := Grad(f)
	if err != nil {
		return nil, err
	}
	gg, err := Grad(g)
	if err != nil {
		return nil, err
	}
	return sumOf(
		func() (symbolic.Expr, error) { return scaled(f, OpLaplace, g) },
		func() (symbolic.Expr, error) { return scaled(g, OpLaplace, f) },
		func() (symbolic.Expr, error) {
			d, err := Dot(gf, gg)
			if err != nil {
				return nil, err
			}
			return symbolic.MulOf(symbolic.N(2), d), nil
		},
	)
}

// crossGrad returns cross(grad(s), vec).
func crossGrad(s, vec symbolic.Expr) (symbolic.Expr, error) {
	gs, err := Grad(s)
	if err != nil {
		return nil, err
	}
	return Cross(gs, vec)
}

// dotCurl returns dot(a, curl(b)).
func dotCurl(a, b symbolic.Expr) (symbolic.Expr, error) {
	c, err := Curl(b)
	if err != nil {
		return nil, err
	}
	return Dot(a, c)
}

// ============================================================
// Binary operators
// ============================================================

func binary(op Op, a, b symbolic.Expr) (symbolic.Expr, error) {
	ta, tb := symbolic.Terms(a), symbolic.Terms(b)
	if len(ta) > 1 || len(tb) > 1 {
		out := make([]symbolic.Expr, 0, len(ta)*len(tb))
		for _, x := range ta {
			for _, y := range tb {
				r, err := binary(op, x, y)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
		}
		return symbolic.AddOf(out...), nil
	}
	if symbolic.IsZero(a) || symbolic.IsZero(b) {
		return symbolic.N(0), nil
	}
	ca, ra := splitFirst(op, a)
	cb, rb := splitSecond(op, b)
	if coeff := symbolic.MulOf(ca, cb); !symbolic.IsOne(coeff) {
		r, err := binary(op, ra, rb)
		if err != nil {
			return nil, err
		}
		return symbolic.MulOf(coeff, r), nil
	}
	if r, ok, err := evalConcrete(op, ra, rb); ok || err != nil {
		return r, err
	}
	switch op {
	case OpDot:
		if Rank(ra) == 1 && Rank(rb) == 1 {
			ra, rb = ordered(ra, rb)
		}
	case OpInner:
		if Rank(ra) == Rank(rb) {
			ra, rb = ordered(ra, rb)
		}
	case OpCross, OpBracket:
		if ra.Equal(rb) {
			return symbolic.N(0), nil
		}
	}
	return raw(op, ra, rb), nil
}

// splitFirst pulls factors out of the first operand: scalar factors for the
// products and for convect, constants only for bracket.
func splitFirst(op Op, e symbolic.Expr) (symbolic.Expr, symbolic.Expr) {
	if op == OpBracket {
		return splitConstant(e)
	}
	return splitScalars(e)
}

// splitSecond pulls factors out of the second operand. convect
// differentiates its second operand, so only constants come out.
func splitSecond(op Op, e symbolic.Expr) (symbolic.Expr, symbolic.Expr) {
	if op == OpBracket || op == OpConvect {
		return splitConstant(e)
	}
	return splitScalars(e)
}

// evalConcrete evaluates a product of two explicit tuples or matrices.
func evalConcrete(op Op, a, b symbolic.Expr) (symbolic.Expr, bool, error) {
	switch x := a.(type) {
	case *symbolic.Tuple:
		y, ok := b.(*symbolic.Tuple)
		if !ok {
			return nil, false, nil
		}
		switch op {
		case OpDot, OpInner:
			r, err := tupleDot(x, y)
			return r, true, err
		case OpCross:
			r, err := tupleCross(x, y)
			return r, true, err
		}
	case *symbolic.Matrix:
		switch y := b.(type) {
		case *symbolic.Matrix:
			if op == OpInner {
				r, err := matrixInner(x, y)
				return r, true, err
			}
		case *symbolic.Tuple:
			if op == OpDot {
				if x.Cols() != y.Len() {
					return nil, true, ErrShape
				}
				return x.Apply(y), true, nil
			}
		}
	}
	return nil, false, nil
}

func tupleDot(a, b *symbolic.Tuple) (symbolic.Expr, error) {
	if a.Len() != b.Len() {
		return nil, ErrShape
	}
	terms := make([]symbolic.Expr, a.Len())
	for i := range terms {
		terms[i] = symbolic.MulOf(a.At(i), b.At(i))
	}
	return symbolic.AddOf(terms...), nil
}

// tupleCross is the usual cross product in 3D and the scalar a0 b1 - a1 b0
// in 2D.
func tupleCross(a, b *symbolic.Tuple) (symbolic.Expr, error) {
	if a.Len() != b.Len() {
		return nil, ErrShape
	}
	det := func(i, j int) symbolic.Expr {
		return symbolic.Minus(symbolic.MulOf(a.At(i), b.At(j)), symbolic.MulOf(a.At(j), b.At(i)))
	}
	switch a.Len() {
	case 2:
		return det(0, 1), nil
	case 3:
		return symbolic.TupleOf(det(1, 2), det(2, 0), det(0, 1)), nil
	}
	return nil, ErrShape
}

func matrixInner(a, b *symbolic.Matrix) (symbolic.Expr, error) {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return nil, ErrShape
	}
	terms := make([]symbolic.Expr, 0, a.Rows()*a.Cols())
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			terms = append(terms, symbolic.MulOf(a.Get(i, j), b.Get(i, j)))
		}
	}
	return symbolic.AddOf(terms...), nil
}

// ============================================================
// Helpers
// ============================================================

// splitConstant separates the constant factors of e from the rest.
func splitConstant(e symbolic.Expr) (symbolic.Expr, symbolic.Expr) {
	return splitBy(e, symbolic.IsConstant)
}

// splitScalars separates the scalar factors of a product holding one
// vector or matrix factor. Products of scalars only give up their constants.
func splitScalars(e symbolic.Expr) (symbolic.Expr, symbolic.Expr) {
	if Rank(e) == 0 {
		return splitConstant(e)
	}
	return splitBy(e, func(f symbolic.Expr) bool { return Rank(f) == 0 })
}

func splitBy(e symbolic.Expr, pull func(symbolic.Expr) bool) (symbolic.Expr, symbolic.Expr) {
	m, ok := e.(*symbolic.Mul)
	if !ok {
		if pull(e) {
			return e, symbolic.N(1)
		}
		return symbolic.N(1), e
	}
	var out, in []symbolic.Expr
	for _, f := range m.Factors() {
		if pull(f) {
			out = append(out, f)
		} else {
			in = append(in, f)
		}
	}
	return symbolic.MulOf(out...), symbolic.MulOf(in...)
}

// splitScalarVector splits a product into its scalar part and its single
// vector factor.
func splitScalarVector(m *symbolic.Mul) (symbolic.Expr, symbolic.Expr, bool) {
	var scalars []symbolic.Expr
	var vec symbolic.Expr
	for _, f := range m.Factors() {
		switch Rank(f) {
		case 0:
			scalars = append(scalars, f)
		case 1:
			if vec != nil {
				return nil, nil, false
			}
			vec = f
		default:
			return nil, nil, false
		}
	}
	if vec == nil {
		return nil, nil, false
	}
	return symbolic.MulOf(scalars...), vec, true
}

func without(factors []symbolic.Expr, i int) []symbolic.Expr {
	out := make([]symbolic.Expr, 0, len(factors))
	out = append(out, factors[:i]...)
	return append(out, factors[i+1:]...)
}

func ordered(a, b symbolic.Expr) (symbolic.Expr, symbolic.Expr) {
	pair := []symbolic.Expr{a, b}
	sort.SliceStable(pair, func(i, j int) bool {
		si, sj := pair[i].String(), pair[j].String()
		if si != sj {
			return si < sj
		}
		return symbolic.Key(pair[i]) < symbolic.Key(pair[j])
	})
	return pair[0], pair[1]
}

func isVector3(o *Operator) bool {
	d, ok := Dim(o)
	return ok && d == 3 && Rank(o.operands[0]) == 1 && Rank(o.operands[1]) == 1
}

// scaled returns s * op(arg).
func scaled(s symbolic.Expr, op Op, arg symbolic.Expr) (symbolic.Expr, error) {
	r, err := unary(op, arg)
	if err != nil {
		return nil, err
	}
	return symbolic.MulOf(s, r), nil
}

func negated(e symbolic.Expr, err error) (symbolic.Expr, error) {
	if err != nil {
		return nil, err
	}
	return symbolic.Neg(e), nil
}

func sumOf(parts ...func() (symbolic.Expr, error)) (symbolic.Expr, error) {
	terms := make([]symbolic.Expr, len(parts))
	for i, p := range parts {
		t, err := p()
		if err != nil {
			return nil, err
		}
		terms[i] = t
	}
	return symbolic.AddOf(terms...), nil
}
