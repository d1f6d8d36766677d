// Package topology holds the geometric and functional-analytic vocabulary
// of the weak-form layer: domains and boundaries, typed function spaces and
// their elements, mappings from a logical to a physical domain, and the
// coordinate derivatives acting on all of them.
package topology

import (
	"fmt"
	"slices"
	"strings"

	"github.com/njchilds90/gosympde/symbolic"
)

// PhysicalCoordinates and LogicalCoordinates name the coordinate axes of
// physical and logical (reference) domains.
var (
	PhysicalCoordinates = []string{"x", "y", "z"}
	LogicalCoordinates  = []string{"x1", "x2", "x3"}
)

// ============================================================
// Domain
// ============================================================

type Domain struct {
	name        string
	dim         int
	coordinates []string
	boundaries  []*Boundary
	mapping     *Mapping
	logical     *Domain
}

// NewDomain returns a physical domain of the given dimension with
// coordinates x, y, z.
func NewDomain(name string, dim int) *Domain {
	return newDomain(name, dim, PhysicalCoordinates)
}

// NewLogicalDomain returns a reference domain with coordinates x1, x2, x3.
func NewLogicalDomain(name string, dim int) *Domain {
	return newDomain(name, dim, LogicalCoordinates)
}

func newDomain(name string, dim int, coords []string) *Domain {
	if dim < 1 || dim > 3 {
		panic(fmt.Sprintf("topology: unsupported dimension %d", dim))
	}
	return &Domain{name: name, dim: dim, coordinates: coords[:dim]}
}

// Line, Square and Cube are unit boxes whose sides are labelled Gamma_1,
// Gamma_2, ... in (axis, extremity) order: Gamma_1 is x = 0, Gamma_2 is x = 1.
func Line(name string) *Domain   { return box(name, 1) }
func Square(name string) *Domain { return box(name, 2) }
func Cube(name string) *Domain   { return box(name, 3) }

func box(name string, dim int) *Domain {
	d := NewDomain(name, dim)
	for axis := 0; axis < dim; axis++ {
		for ext := -1; ext <= 1; ext += 2 {
			label := fmt.Sprintf("Gamma_%d", len(d.boundaries)+1)
			d.boundaries = append(d.boundaries, &Boundary{name: label, domain: d, axis: axis, ext: ext})
		}
	}
	return d
}

func (d *Domain) Name() string      { return d.name }
func (d *Domain) Dim() int          { return d.dim }
func (d *Domain) Mapping() *Mapping { return d.mapping }
func (d *Domain) IsMapped() bool    { return d.mapping != nil }

func (d *Domain) Coordinates() []string { return slices.Clone(d.coordinates) }

// CoordinateSymbols returns the coordinates as kernel symbols.
func (d *Domain) CoordinateSymbols() []symbolic.Expr {
	return symbolic.Symbols(d.coordinates...)
}

// Logical returns the reference domain of a mapped domain, or d itself.
func (d *Domain) Logical() *Domain {
	if d.logical == nil {
		return d
	}
	return d.logical
}

func (d *Domain) Boundaries() []*Boundary { return slices.Clone(d.boundaries) }

// Boundary returns the whole boundary of d.
func (d *Domain) Boundary() *Boundary {
	return &Boundary{name: "boundary", domain: d, axis: -1}
}

// BoundaryByName looks up a labelled side.
func (d *Domain) BoundaryByName(name string) (*Boundary, bool) {
	if name == "boundary" {
		return d.Boundary(), true
	}
	for _, b := range d.boundaries {
		if b.name == name {
			return b, true
		}
	}
	return nil, false
}

func (d *Domain) Equal(o *Domain) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.name == o.name && d.dim == o.dim && slices.Equal(d.coordinates, o.coordinates) &&
		d.mapping.Equal(o.mapping)
}

// key identifies d by name, coordinates and mapping.
func (d *Domain) key() string {
	k := d.name + "(" + strings.Join(d.coordinates, ",") + ")"
	if d.mapping != nil {
		k += "<-" + d.mapping.key()
	}
	return k
}

func (d *Domain) String() string { return d.name }

// ============================================================
// Boundary
// ============================================================

// Boundary is a labelled part of the boundary of a domain. Axis is -1 for
// the whole boundary.
type Boundary struct {
	name   string
	domain *Domain
	axis   int
	ext    int
}

// NewBoundary attaches a free-form boundary label to d.
func NewBoundary(name string, d *Domain) *Boundary {
	return &Boundary{name: name, domain: d, axis: -1}
}

func (b *Boundary) Name() string    { return b.name }
func (b *Boundary) Domain() *Domain { return b.domain }
func (b *Boundary) Axis() int       { return b.axis }
func (b *Boundary) Ext() int        { return b.ext }
func (b *Boundary) String() string  { return b.name }

// BelongsTo reports whether b lies on the boundary of d.
func (b *Boundary) BelongsTo(d *Domain) bool { return b.domain.Equal(d) }

func (b *Boundary) Equal(o *Boundary) bool {
	return b.name == o.name && b.domain.Equal(o.domain)
}

// ============================================================
// BoundaryVector: unit normal / tangent
// ============================================================

type BoundaryVector struct {
	name string
	dim  int
}

// NormalVector is the outward unit normal, printed nn.
func NormalVector(dim int) *BoundaryVector {
	return &BoundaryVector{name: "nn", dim: dim}
}

// TangentVector is the unit tangent, printed tt.
func TangentVector(dim int) *BoundaryVector {
	return &BoundaryVector{name: "tt", dim: dim}
}

func (v *BoundaryVector) Type() string                           { return "boundary_vector" }
func (v *BoundaryVector) String() string                         { return v.name }
func (v *BoundaryVector) LaTeX() string                          { return "\\mathbf{" + v.name[:1] + "}" }
func (v *BoundaryVector) Args() []symbolic.Expr                  { return nil }
func (v *BoundaryVector) WithArgs([]symbolic.Expr) symbolic.Expr { return v }
func (v *BoundaryVector) Diff(string) symbolic.Expr              { return symbolic.N(0) }
func (v *BoundaryVector) Dim() int                               { return v.dim }
func (v *BoundaryVector) IsNormal() bool                         { return v.name == "nn" }

func (v *BoundaryVector) Equal(other symbolic.Expr) bool {
	o, ok := other.(*BoundaryVector)
	return ok && v.name == o.name && v.dim == o.dim
}

// Components returns the vector as a tuple of its indexed components.
func (v *BoundaryVector) Components() *symbolic.Tuple {
	out := make([]symbolic.Expr, v.dim)
	for i := range out {
		out[i] = &Indexed{base: v, index: i}
	}
	return symbolic.TupleOf(out...)
}
