package form

import (
	"fmt"
	"strings"

	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// Arguments is the test or trial argument list of a form: either a single
// element or an ordered tuple of elements.
type Arguments struct {
	elems []*topology.Element
	tuple bool
}

// Single binds one element.
func Single(e *topology.Element) Arguments {
	return Arguments{elems: []*topology.Element{e}}
}

// Tuple binds an ordered list of elements, e.g. the components of a product
// space.
func Tuple(es ...*topology.Element) Arguments {
	return Arguments{elems: append([]*topology.Element(nil), es...), tuple: true}
}

// ArgumentsOf builds an argument list from decoded expressions; every entry
// must be an element.
func ArgumentsOf(es ...symbolic.Expr) (Arguments, error) {
	out := make([]*topology.Element, len(es))
	for i, e := range es {
		el, ok := e.(*topology.Element)
		if !ok {
			return Arguments{}, fmt.Errorf("%w: %v is not an element", ErrWrongArgument, e)
		}
		out[i] = el
	}
	if len(out) == 1 {
		return Single(out[0]), nil
	}
	return Tuple(out...), nil
}

func (a Arguments) Elements() []*topology.Element {
	return append([]*topology.Element(nil), a.elems...)
}
func (a Arguments) Len() int                   { return len(a.elems) }
func (a Arguments) IsTuple() bool              { return a.tuple }
func (a Arguments) At(i int) *topology.Element { return a.elems[i] }

func (a Arguments) String() string {
	names := make([]string, len(a.elems))
	for i, e := range a.elems {
		names[i] = e.Name()
	}
	if a.tuple {
		return "(" + strings.Join(names, ", ") + ")"
	}
	return strings.Join(names, ", ")
}

// Contains reports whether e is one of the arguments.
func (a Arguments) Contains(e *topology.Element) bool {
	return a.index(e) >= 0
}

func (a Arguments) index(e *topology.Element) int {
	for i, x := range a.elems {
		if x.Equal(e) {
			return i
		}
	}
	return -1
}

// Equal compares element by element.
func (a Arguments) Equal(o Arguments) bool {
	if len(a.elems) != len(o.elems) {
		return false
	}
	for i := range a.elems {
		if !a.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

func (a Arguments) validate(what string) error {
	if len(a.elems) == 0 {
		return fmt.Errorf("%w: empty %s arguments", ErrWrongArgument, what)
	}
	seen := make(map[string]bool, len(a.elems))
	for _, e := range a.elems {
		switch {
		case e == nil:
			return fmt.Errorf("%w: nil %s argument", ErrWrongArgument, what)
		case e.IsField():
			return fmt.Errorf("%w: field %s cannot be a %s argument", ErrWrongArgument, e, what)
		case seen[e.Name()]:
			return fmt.Errorf("%w: duplicated %s argument %s", ErrWrongArgument, what, e)
		}
		seen[e.Name()] = true
	}
	return nil
}

func validatePair(tests, trials Arguments) error {
	if err := tests.validate("test"); err != nil {
		return err
	}
	if err := trials.validate("trial"); err != nil {
		return err
	}
	for _, u := range trials.elems {
		for _, v := range tests.elems {
			if u.Name() == v.Name() {
				return fmt.Errorf("%w: %s is both a test and a trial argument", ErrWrongArgument, u)
			}
		}
	}
	return nil
}

// argumentAtom returns the argument element an atomized factor refers to:
// the element itself, one of its components, or a derivative of either.
func argumentAtom(e symbolic.Expr) (*topology.Element, int, bool) {
	if d, ok := e.(*symbolic.Derivative); ok {
		e = d.Expr()
	}
	switch v := e.(type) {
	case *topology.Element:
		return v, -1, true
	case *topology.Indexed:
		if el, ok := v.Base().(*topology.Element); ok {
			return el, v.Position(), true
		}
	}
	return nil, 0, false
}
