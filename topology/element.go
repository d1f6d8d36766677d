package topology

import (
	"strconv"

	"github.com/njchilds90/gosympde/symbolic"
)

// Role distinguishes form arguments from free coefficients.
type Role int

const (
	RoleFunction Role = iota
	RoleField
	RoleUnknown
)

func (r Role) String() string {
	switch r {
	case RoleField:
		return "field"
	case RoleUnknown:
		return "unknown"
	}
	return "function"
}

// ============================================================
// Element: member of a function space
// ============================================================

// Element is a scalar or vector function bound to a space. Two elements are
// equal when they share role, space and name.
type Element struct {
	space *FunctionSpace
	name  string
	role  Role
}

// NewUnknown returns an element of an anonymous scalar space of undefined
// kind on d.
func NewUnknown(name string, d *Domain) *Element {
	return &Element{space: ScalarFunctionSpace("", d), name: name, role: RoleUnknown}
}

func (e *Element) Type() string                           { return "element" }
func (e *Element) String() string                         { return e.name }
func (e *Element) LaTeX() string                          { return e.name }
func (e *Element) Name() string                           { return e.name }
func (e *Element) Space() *FunctionSpace                  { return e.space }
func (e *Element) Role() Role                             { return e.role }
func (e *Element) Kind() Kind                             { return e.space.kind }
func (e *Element) IsVector() bool                         { return e.space.vector }
func (e *Element) IsField() bool                          { return e.role == RoleField }
func (e *Element) Args() []symbolic.Expr                  { return nil }
func (e *Element) WithArgs([]symbolic.Expr) symbolic.Expr { return e }
func (e *Element) Key() string {
	return "element:" + e.role.String() + ":" + e.space.key() + ":" + e.name
}

func (e *Element) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Element)
	return ok && e.role == o.role && e.name == o.name && e.space.Equal(o.space)
}

// Diff keeps the derivative as an atom along the coordinates of the
// element's space and vanishes along any other variable.
func (e *Element) Diff(varName string) symbolic.Expr {
	if !e.space.hasCoordinate(varName) {
		return symbolic.N(0)
	}
	return symbolic.NewDerivative(e, varName)
}

// Logical returns the same element on the logical counterpart of its space.
func (e *Element) Logical() *Element {
	ls := e.space.Logical()
	if ls == e.space {
		return e
	}
	return &Element{space: ls, name: e.name, role: e.role}
}

// Components returns a vector element as the tuple (e[0], ..., e[d-1]).
func (e *Element) Components() *symbolic.Tuple {
	out := make([]symbolic.Expr, e.space.shape)
	for i := range out {
		out[i] = &Indexed{base: e, index: i}
	}
	return symbolic.TupleOf(out...)
}

// ============================================================
// Indexed: component of a vector quantity
// ============================================================

type Indexed struct {
	base  symbolic.Expr
	index int
}

// Index returns component i of e. Concrete tuples are indexed directly and
// derivatives of vector elements commute with indexing.
func Index(e symbolic.Expr, i int) symbolic.Expr {
	switch v := e.(type) {
	case *symbolic.Tuple:
		return v.At(i)
	case *symbolic.Derivative:
		return symbolic.NewDerivative(Index(v.Expr(), i), v.Vars()...)
	case *symbolic.Add:
		terms := v.Terms()
		out := make([]symbolic.Expr, len(terms))
		for k, t := range terms {
			out[k] = Index(t, i)
		}
		return symbolic.AddOf(out...)
	}
	return &Indexed{base: e, index: i}
}

func (ix *Indexed) Type() string          { return "indexed" }
func (ix *Indexed) Base() symbolic.Expr   { return ix.base }
func (ix *Indexed) Position() int         { return ix.index }
func (ix *Indexed) Args() []symbolic.Expr { return []symbolic.Expr{ix.base} }

func (ix *Indexed) WithArgs(args []symbolic.Expr) symbolic.Expr {
	return Index(args[0], ix.index)
}

func (ix *Indexed) String() string {
	b := ix.base.String()
	switch ix.base.(type) {
	case *Element, *BoundaryVector:
	default:
		b = "(" + b + ")"
	}
	return b + "[" + strconv.Itoa(ix.index) + "]"
}

func (ix *Indexed) LaTeX() string {
	return ix.base.LaTeX() + "_{" + strconv.Itoa(ix.index) + "}"
}

func (ix *Indexed) Diff(varName string) symbolic.Expr {
	if symbolic.IsZero(ix.base.Diff(varName)) {
		return symbolic.N(0)
	}
	return symbolic.NewDerivative(ix, varName)
}

func (ix *Indexed) Equal(other symbolic.Expr) bool {
	o, ok := other.(*Indexed)
	return ok && ix.index == o.index && ix.base.Equal(o.base)
}

// ============================================================
// Coordinate derivatives
// ============================================================

func Dx(e symbolic.Expr) symbolic.Expr  { return e.Diff("x") }
func Dy(e symbolic.Expr) symbolic.Expr  { return e.Diff("y") }
func Dz(e symbolic.Expr) symbolic.Expr  { return e.Diff("z") }
func Dx1(e symbolic.Expr) symbolic.Expr { return e.Diff("x1") }
func Dx2(e symbolic.Expr) symbolic.Expr { return e.Diff("x2") }
func Dx3(e symbolic.Expr) symbolic.Expr { return e.Diff("x3") }

// ElementsOf returns the distinct elements occurring in e, in order of first
// appearance.
func ElementsOf(e symbolic.Expr) []*Element {
	atoms := symbolic.Atoms(e, func(n symbolic.Expr) bool {
		_, ok := n.(*Element)
		return ok
	})
	out := make([]*Element, len(atoms))
	for i, a := range atoms {
		out[i] = a.(*Element)
	}
	return out
}
