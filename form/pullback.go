package form

import (
	"fmt"

	"github.com/njchilds90/gosympde/logical"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// Logical pulls f back onto the logical domain of its mapping. Each
// integrand is pulled back and multiplied by the measure sqrt(det(J^T J)),
// and the arguments become their logical counterparts. Forms on unmapped
// domains are returned as they are. Boundary integrals are not supported.
func Logical(f Form, opts ...logical.Option) (Form, error) {
	d := f.Domain()
	m := d.Mapping()
	if m == nil {
		return f, nil
	}
	pieces, err := integrands(Unfold(f.Body()))
	if err != nil {
		return nil, err
	}
	ld := d.Logical()
	out := make([]symbolic.Expr, 0, len(pieces))
	for _, p := range pieces {
		if p.integral.IsBoundary() {
			return nil, fmt.Errorf("%w: pullback of boundary integral %s", ErrUnsupported, p.integral)
		}
		e, err := logical.Expr(symbolic.MulOf(p.expr, m.Measure()), m, m.PDim(), opts...)
		if err != nil {
			return nil, fmt.Errorf("form: %s: %w", f.Name(), err)
		}
		out = append(out, Integrate(e, ld))
	}
	b := base{name: f.Name() + "_logical", body: symbolic.AddOf(out...), domain: ld}

	switch v := f.(type) {
	case *BilinearForm:
		return &BilinearForm{base: b, tests: logicalArgs(v.tests), trials: logicalArgs(v.trials)}, nil
	case *LinearForm:
		return &LinearForm{base: b, tests: logicalArgs(v.tests)}, nil
	case *Norm:
		e, err := logical.Expr(v.expr, m, m.PDim(), opts...)
		if err != nil {
			return nil, fmt.Errorf("form: %s: %w", f.Name(), err)
		}
		return &Norm{Functional: Functional{base: b}, kind: v.kind, expr: e}, nil
	case *Functional:
		return &Functional{base: b}, nil
	}
	return nil, fmt.Errorf("%w: pullback of %T", ErrUnsupported, f)
}

func logicalArgs(a Arguments) Arguments {
	out := make([]*topology.Element, len(a.elems))
	for i, e := range a.elems {
		out[i] = e.Logical()
	}
	return Arguments{elems: out, tuple: a.tuple}
}
