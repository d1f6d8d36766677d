package topology

import (
	"fmt"
	"slices"
	"strings"
)

// ============================================================
// Kind: Sobolev space of a function space
// ============================================================

type Kind int

const (
	KindUndefined Kind = iota
	KindH1
	KindHcurl
	KindHdiv
	KindL2
)

func (k Kind) String() string {
	switch k {
	case KindH1:
		return "H1"
	case KindHcurl:
		return "Hcurl"
	case KindHdiv:
		return "Hdiv"
	case KindL2:
		return "L2"
	}
	return "undefined"
}

// ParseKind accepts h1, hcurl, hdiv, l2 (any case) and "" or "undefined".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "undefined", "none":
		return KindUndefined, nil
	case "h1":
		return KindH1, nil
	case "hcurl":
		return KindHcurl, nil
	case "hdiv":
		return KindHdiv, nil
	case "l2":
		return KindL2, nil
	}
	return KindUndefined, fmt.Errorf("topology: unknown space kind %q", s)
}

// ============================================================
// FunctionSpace
// ============================================================

type FunctionSpace struct {
	name        string
	domain      *Domain
	kind        Kind
	shape       int
	vector      bool
	coordinates []string
}

type SpaceOption func(*FunctionSpace)

func WithKind(k Kind) SpaceOption { return func(s *FunctionSpace) { s.kind = k } }

// WithCoordinates restricts the space to a subset of the domain
// coordinates, e.g. the 1D factors of a tensor-product space.
func WithCoordinates(coords ...string) SpaceOption {
	return func(s *FunctionSpace) { s.coordinates = slices.Clone(coords) }
}

func ScalarFunctionSpace(name string, d *Domain, opts ...SpaceOption) *FunctionSpace {
	s := &FunctionSpace{name: name, domain: d, shape: 1}
	for _, o := range opts {
		o(s)
	}
	return s
}

func VectorFunctionSpace(name string, d *Domain, opts ...SpaceOption) *FunctionSpace {
	s := &FunctionSpace{name: name, domain: d, shape: d.Dim(), vector: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FunctionSpace) Name() string    { return s.name }
func (s *FunctionSpace) Domain() *Domain { return s.domain }
func (s *FunctionSpace) Kind() Kind      { return s.kind }
func (s *FunctionSpace) Shape() int      { return s.shape }
func (s *FunctionSpace) IsVector() bool  { return s.vector }
func (s *FunctionSpace) String() string  { return s.name }

// Coordinates returns the coordinate subset of s, defaulting to the
// domain's coordinates.
func (s *FunctionSpace) Coordinates() []string {
	if len(s.coordinates) > 0 {
		return slices.Clone(s.coordinates)
	}
	return s.domain.Coordinates()
}

func (s *FunctionSpace) hasCoordinate(c string) bool {
	if len(s.coordinates) > 0 {
		return slices.Contains(s.coordinates, c)
	}
	return slices.Contains(s.domain.coordinates, c)
}

// Logical returns the counterpart of s on the logical domain of its mapped
// domain, or s itself on an unmapped domain.
func (s *FunctionSpace) Logical() *FunctionSpace {
	if !s.domain.IsMapped() {
		return s
	}
	return &FunctionSpace{
		name:        s.name,
		domain:      s.domain.Logical(),
		kind:        s.kind,
		shape:       s.shape,
		vector:      s.vector,
		coordinates: logicalSubset(s),
	}
}

// logicalSubset renames a coordinate subset of s onto the logical axes.
func logicalSubset(s *FunctionSpace) []string {
	if len(s.coordinates) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.coordinates))
	for _, c := range s.coordinates {
		if i := slices.Index(s.domain.coordinates, c); i >= 0 {
			out = append(out, LogicalCoordinates[i])
		}
	}
	return out
}

func (s *FunctionSpace) Equal(o *FunctionSpace) bool {
	return s.name == o.name && s.kind == o.kind && s.shape == o.shape &&
		s.vector == o.vector && s.domain.Equal(o.domain) &&
		slices.Equal(s.coordinates, o.coordinates)
}

// key identifies s in element keys. Two spaces with equal keys are Equal.
func (s *FunctionSpace) key() string {
	return fmt.Sprintf("%s@%s/%s/%d/%t/[%s]", s.name, s.domain.key(), s.kind, s.shape, s.vector,
		strings.Join(s.coordinates, ","))
}

// Element returns an argument function (test or trial, depending on where
// it is used) of s.
func (s *FunctionSpace) Element(name string) *Element {
	return &Element{space: s, name: name, role: RoleFunction}
}

// Elements returns one argument function per name.
func (s *FunctionSpace) Elements(names ...string) []*Element {
	out := make([]*Element, len(names))
	for i, n := range names {
		out[i] = s.Element(n)
	}
	return out
}

// Field returns a free coefficient of s; fields are never form arguments.
func (s *FunctionSpace) Field(name string) *Element {
	return &Element{space: s, name: name, role: RoleField}
}

// ============================================================
// ProductSpace
// ============================================================

type ProductSpace struct{ spaces []*FunctionSpace }

func NewProductSpace(spaces ...*FunctionSpace) *ProductSpace {
	return &ProductSpace{spaces: slices.Clone(spaces)}
}

func (p *ProductSpace) Spaces() []*FunctionSpace { return slices.Clone(p.spaces) }

func (p *ProductSpace) Kinds() []Kind {
	out := make([]Kind, len(p.spaces))
	for i, s := range p.spaces {
		out[i] = s.kind
	}
	return out
}

func (p *ProductSpace) Name() string {
	names := make([]string, len(p.spaces))
	for i, s := range p.spaces {
		names[i] = s.name
	}
	return strings.Join(names, "x")
}

// Elements returns one element per component space.
func (p *ProductSpace) Elements(names ...string) ([]*Element, error) {
	if len(names) != len(p.spaces) {
		return nil, fmt.Errorf("topology: product space %s has %d components, got %d names",
			p.Name(), len(p.spaces), len(names))
	}
	out := make([]*Element, len(names))
	for i, n := range names {
		out[i] = p.spaces[i].Element(n)
	}
	return out, nil
}
