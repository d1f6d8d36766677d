package topology

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/gosympde/symbolic"
)

var (
	// ErrNoAnalytic is returned when closed-form expressions of a generic
	// mapping are requested.
	ErrNoAnalytic = errors.New("topology: mapping has no analytic expression")
	ErrDimension  = errors.New("topology: dimension mismatch")
)

// ============================================================
// MappingKind
// ============================================================

type MappingKind string

const (
	MappingGeneric       MappingKind = "generic"
	MappingIdentity      MappingKind = "identity"
	MappingPolar         MappingKind = "polar"
	MappingTarget        MappingKind = "target"
	MappingCzarny        MappingKind = "czarny"
	MappingCollela       MappingKind = "collela"
	MappingTorus         MappingKind = "torus"
	MappingTwistedTarget MappingKind = "twisted_target"
)

// mappingParams lists the parameters of each analytic mapping, in the order
// they appear in its formula.
var mappingParams = map[MappingKind][]string{
	MappingPolar:         {"c1", "c2", "rmin", "rmax"},
	MappingTarget:        {"c1", "c2", "k", "D"},
	MappingCzarny:        {"c2", "eps", "b"},
	MappingCollela:       {"eps", "k1", "k2"},
	MappingTorus:         {"R0"},
	MappingTwistedTarget: {"c1", "c2", "c3", "k", "D"},
}

var mappingDims = map[MappingKind]int{
	MappingPolar:         2,
	MappingTarget:        2,
	MappingCzarny:        2,
	MappingCollela:       2,
	MappingTorus:         3,
	MappingTwistedTarget: 3,
}

// ============================================================
// Mapping
// ============================================================

// Mapping is a parametric map from a logical domain of dimension ldim onto a
// physical domain of dimension pdim. Its components M[i] are symbolic leaves
// whose logical derivatives stay as atoms; analytic mappings can substitute
// their closed form with Subs.
type Mapping struct {
	name   string
	kind   MappingKind
	ldim   int
	pdim   int
	params map[string]symbolic.Expr
}

type MappingOption func(*Mapping)

// WithParam overrides a parameter of an analytic mapping. Parameters default
// to constants of the same name.
func WithParam(name string, value symbolic.Expr) MappingOption {
	return func(m *Mapping) { m.params[name] = value }
}

// NewMapping returns a generic mapping of equal logical and physical
// dimension.
func NewMapping(name string, dim int) *Mapping {
	return NewMappingDims(name, dim, dim)
}

// NewMappingDims returns a generic mapping from ldim logical onto pdim
// physical coordinates, e.g. a surface embedded in 3D.
func NewMappingDims(name string, ldim, pdim int) *Mapping {
	if ldim < 1 || ldim > 3 || pdim < ldim || pdim > 3 {
		panic(fmt.Sprintf("topology: unsupported mapping dimensions %d -> %d", ldim, pdim))
	}
	return &Mapping{name: name, kind: MappingGeneric, ldim: ldim, pdim: pdim, params: map[string]symbolic.Expr{}}
}

func IdentityMapping(name string, dim int) *Mapping {
	m := NewMapping(name, dim)
	m.kind = MappingIdentity
	return m
}

func PolarMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingPolar, opts)
}

func TargetMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingTarget, opts)
}

func CzarnyMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingCzarny, opts)
}

func CollelaMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingCollela, opts)
}

func TorusMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingTorus, opts)
}

func TwistedTargetMapping(name string, opts ...MappingOption) *Mapping {
	return analyticMapping(name, MappingTwistedTarget, opts)
}

// MappingByKind builds a mapping from its kind name. dim is only used by
// generic and identity mappings.
func MappingByKind(kind, name string, dim int, opts ...MappingOption) (*Mapping, error) {
	k := MappingKind(strings.ToLower(strings.TrimSpace(kind)))
	switch k {
	case "", MappingGeneric:
		return NewMapping(name, dim), nil
	case MappingIdentity:
		return IdentityMapping(name, dim), nil
	}
	if _, ok := mappingDims[k]; !ok {
		return nil, fmt.Errorf("topology: unknown mapping kind %q", kind)
	}
	return analyticMapping(name, k, opts), nil
}

func analyticMapping(name string, kind MappingKind, opts []MappingOption) *Mapping {
	dim := mappingDims[kind]
	m := &Mapping{name: name, kind: kind, ldim: dim, pdim: dim, params: map[string]symbolic.Expr{}}
	for _, p := range mappingParams[kind] {
		m.params[p] = symbolic.C(p)
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mapping) Name() string      { return m.name }
func (m *Mapping) Kind() MappingKind { return m.kind }
func (m *Mapping) LDim() int         { return m.ldim }
func (m *Mapping) PDim() int         { return m.pdim }
func (m *Mapping) String() string    { return m.name }

// IsAnalytic reports whether Expressions is available.
func (m *Mapping) IsAnalytic() bool { return m.kind != MappingGeneric }

func (m *Mapping) Param(name string) (symbolic.Expr, bool) {
	p, ok := m.params[name]
	return p, ok
}

// ParamNames returns the parameter names in sorted order.
func (m *Mapping) ParamNames() []string {
	names := make([]string, 0, len(m.params))
	for n := range m.params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Mapping) Equal(o *Mapping) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.name == o.name && m.kind == o.kind && m.ldim == o.ldim && m.pdim == o.pdim
}

func (m *Mapping) key() string {
	k := fmt.Sprintf("%s:%s:%d:%d", m.name, m.kind, m.ldim, m.pdim)
	for _, n := range m.ParamNames() {
		k += ":" + n + "=" + symbolic.Key(m.params[n])
	}
	return k
}

// Component returns the leaf M[i].
func (m *Mapping) Component(i int) *MappingComponent {
	if i < 0 || i >= m.pdim {
		panic(fmt.Sprintf("topology: mapping %s has no component %d", m.name, i))
	}
	return &MappingComponent{mapping: m, index: i}
}

// Components returns (M[0], ..., M[pdim-1]).
func (m *Mapping) Components() *symbolic.Tuple {
	out := make([]symbolic.Expr, m.pdim)
	for i := range out {
		out[i] = m.Component(i)
	}
	return symbolic.TupleOf(out...)
}

// Jacobian returns the pdim x ldim matrix of atoms d_{x_j} M[i].
func (m *Mapping) Jacobian() *symbolic.Matrix {
	jac := symbolic.NewMatrix(m.pdim, m.ldim)
	for i := 0; i < m.pdim; i++ {
		c := m.Component(i)
		for j := 0; j < m.ldim; j++ {
			jac.Set(i, j, c.Diff(LogicalCoordinates[j]))
		}
	}
	return jac
}

// Det returns det J; it fails for non-square mappings.
func (m *Mapping) Det() (symbolic.Expr, error) {
	if m.ldim != m.pdim {
		return nil, fmt.Errorf("%w: det of a %dx%d jacobian", ErrDimension, m.pdim, m.ldim)
	}
	return m.Jacobian().Det(), nil
}

// Measure returns sqrt(det(J^T J)), the volume element of the mapping.
func (m *Mapping) Measure() symbolic.Expr {
	jac := m.Jacobian()
	return symbolic.SqrtOf(jac.Transpose().MatMul(jac).Det())
}

// InvJacobian returns J^-1, or the pseudo-inverse (J^T J)^-1 J^T when the
// mapping is not square. Entry (j, i) is d x_j / d X_i.
func (m *Mapping) InvJacobian() (*symbolic.Matrix, error) {
	jac := m.Jacobian()
	if m.ldim == m.pdim {
		return jac.Inverse()
	}
	jt := jac.Transpose()
	gram, err := jt.MatMul(jac).Inverse()
	if err != nil {
		return nil, err
	}
	return gram.MatMul(jt), nil
}

// Expressions returns the closed form of each component in terms of the
// logical coordinates x1, x2, x3.
func (m *Mapping) Expressions() ([]symbolic.Expr, error) {
	xs := symbolic.Symbols(LogicalCoordinates[:m.ldim]...)
	p := m.params
	one, two := symbolic.N(1), symbolic.N(2)
	switch m.kind {
	case MappingIdentity:
		out := make([]symbolic.Expr, m.pdim)
		copy(out, xs)
		return out, nil
	case MappingPolar:
		x1, x2 := xs[0], xs[1]
		r := symbolic.AddOf(symbolic.MulOf(p["rmin"], symbolic.Minus(one, x1)), symbolic.MulOf(p["rmax"], x1))
		return []symbolic.Expr{
			symbolic.AddOf(p["c1"], symbolic.MulOf(r, symbolic.CosOf(x2))),
			symbolic.AddOf(p["c2"], symbolic.MulOf(r, symbolic.SinOf(x2))),
		}, nil
	case MappingTarget:
		return targetExpressions(p, xs[0], xs[1]), nil
	case MappingCzarny:
		x1, x2 := xs[0], xs[1]
		eps := p["eps"]
		s := symbolic.SqrtOf(symbolic.AddOf(one, symbolic.MulOf(eps,
			symbolic.AddOf(eps, symbolic.MulOf(two, x1, symbolic.CosOf(x2))))))
		xi := symbolic.SqrtOf(symbolic.Minus(one, symbolic.MulOf(symbolic.F(1, 4), symbolic.Square(eps))))
		return []symbolic.Expr{
			symbolic.DivOf(symbolic.Minus(one, s), eps),
			symbolic.AddOf(p["c2"], symbolic.DivOf(
				symbolic.MulOf(p["b"], x1, symbolic.SinOf(x2)),
				symbolic.MulOf(xi, symbolic.Minus(two, s)))),
		}, nil
	case MappingCollela:
		x1, x2 := xs[0], xs[1]
		bump := symbolic.MulOf(two, p["eps"],
			symbolic.SinOf(symbolic.MulOf(two, symbolic.Pi, p["k1"], x1)),
			symbolic.SinOf(symbolic.MulOf(two, symbolic.Pi, p["k2"], x2)))
		return []symbolic.Expr{
			symbolic.AddOf(bump, symbolic.MulOf(two, x1), symbolic.N(-1)),
			symbolic.AddOf(bump, symbolic.MulOf(two, x2), symbolic.N(-1)),
		}, nil
	case MappingTorus:
		x1, x2, x3 := xs[0], xs[1], xs[2]
		r := symbolic.AddOf(p["R0"], symbolic.MulOf(x1, symbolic.CosOf(x2)))
		return []symbolic.Expr{
			symbolic.MulOf(r, symbolic.CosOf(x3)),
			symbolic.MulOf(r, symbolic.SinOf(x3)),
			symbolic.MulOf(x1, symbolic.SinOf(x2)),
		}, nil
	case MappingTwistedTarget:
		x1, x2, x3 := xs[0], xs[1], xs[2]
		out := targetExpressions(p, x1, x2)
		z := symbolic.AddOf(p["c3"], symbolic.MulOf(symbolic.Square(x1), x3, symbolic.SinOf(symbolic.MulOf(two, x2))))
		return append(out, z), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAnalytic, m.name)
}

func targetExpressions(p map[string]symbolic.Expr, x1, x2 symbolic.Expr) []symbolic.Expr {
	one := symbolic.N(1)
	return []symbolic.Expr{
		symbolic.AddOf(p["c1"],
			symbolic.MulOf(symbolic.Minus(one, p["k"]), x1, symbolic.CosOf(x2)),
			symbolic.Neg(symbolic.MulOf(p["D"], symbolic.Square(x1)))),
		symbolic.AddOf(p["c2"], symbolic.MulOf(symbolic.AddOf(one, p["k"]), x1, symbolic.SinOf(x2))),
	}
}

// Subs replaces the components of m occurring in e, and their derivatives,
// by the analytic expressions of m.
func (m *Mapping) Subs(e symbolic.Expr) (symbolic.Expr, error) {
	exprs, err := m.Expressions()
	if err != nil {
		return nil, err
	}
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		c, ok := n.(*MappingComponent)
		if !ok || !c.mapping.Equal(m) {
			return nil, false
		}
		return exprs[c.index], true
	}), nil
}

// Apply maps d onto a new physical domain named name(d). The result keeps
// d's boundary labels and remembers the logical domain it comes from.
func (m *Mapping) Apply(d *Domain) (*Domain, error) {
	if d.dim != m.ldim {
		return nil, fmt.Errorf("%w: mapping %s expects a %dD domain, got %dD", ErrDimension, m.name, m.ldim, d.dim)
	}
	logical := NewLogicalDomain(d.name, d.dim)
	mapped := NewDomain(m.name+"("+d.name+")", m.pdim)
	mapped.mapping = m
	mapped.logical = logical
	for _, b := range d.boundaries {
		logical.boundaries = append(logical.boundaries, &Boundary{name: b.name, domain: logical, axis: b.axis, ext: b.ext})
		mapped.boundaries = append(mapped.boundaries, &Boundary{name: b.name, domain: mapped, axis: b.axis, ext: b.ext})
	}
	return mapped, nil
}

// ============================================================
// Numeric Jacobian
// ============================================================

func (m *Mapping) numericEnv(point []float64, params map[string]float64) (map[string]float64, error) {
	if len(point) != m.ldim {
		return nil, fmt.Errorf("%w: point has %d coordinates, mapping %s needs %d", ErrDimension, len(point), m.name, m.ldim)
	}
	env := make(map[string]float64, len(point)+len(params))
	for k, v := range params {
		env[k] = v
	}
	for i, v := range point {
		env[LogicalCoordinates[i]] = v
	}
	return env, nil
}

// JacobianAt evaluates the analytic Jacobian at a logical point. params
// supplies values for the constant parameters of m.
func (m *Mapping) JacobianAt(point []float64, params map[string]float64) (*mat.Dense, error) {
	exprs, err := m.Expressions()
	if err != nil {
		return nil, err
	}
	env, err := m.numericEnv(point, params)
	if err != nil {
		return nil, err
	}
	data := make([]float64, m.pdim*m.ldim)
	for i, e := range exprs {
		for j := 0; j < m.ldim; j++ {
			v, err := symbolic.EvalFloat(e.Diff(LogicalCoordinates[j]), env)
			if err != nil {
				return nil, fmt.Errorf("topology: jacobian entry (%d,%d): %w", i, j, err)
			}
			data[i*m.ldim+j] = v
		}
	}
	return mat.NewDense(m.pdim, m.ldim, data), nil
}

// DetAt evaluates det J (sqrt(det(J^T J)) for non-square mappings) at a
// logical point.
func (m *Mapping) DetAt(point []float64, params map[string]float64) (float64, error) {
	jac, err := m.JacobianAt(point, params)
	if err != nil {
		return 0, err
	}
	if m.ldim == m.pdim {
		return mat.Det(jac), nil
	}
	var gram mat.Dense
	gram.Mul(jac.T(), jac)
	return math.Sqrt(mat.Det(&gram)), nil
}

// ============================================================
// MappingComponent: leaf M[i]
// ============================================================

type MappingComponent struct {
	mapping *Mapping
	index   int
}

func (c *MappingComponent) Type() string { return "mapping_component" }
func (c *MappingComponent) String() string {
	return c.mapping.name + "[" + strconv.Itoa(c.index) + "]"
}
func (c *MappingComponent) LaTeX() string {
	return c.mapping.name + "_{" + strconv.Itoa(c.index) + "}"
}
func (c *MappingComponent) Args() []symbolic.Expr                  { return nil }
func (c *MappingComponent) WithArgs([]symbolic.Expr) symbolic.Expr { return c }
func (c *MappingComponent) Mapping() *Mapping                      { return c.mapping }
func (c *MappingComponent) Index() int                             { return c.index }
func (c *MappingComponent) Key() string {
	return "mapping:" + c.mapping.key() + "[" + strconv.Itoa(c.index) + "]"
}

// Diff keeps logical derivatives as atoms; a component does not depend on
// any other variable.
func (c *MappingComponent) Diff(varName string) symbolic.Expr {
	for _, x := range LogicalCoordinates[:c.mapping.ldim] {
		if x == varName {
			return symbolic.NewDerivative(c, varName)
		}
	}
	return symbolic.N(0)
}

func (c *MappingComponent) Equal(other symbolic.Expr) bool {
	o, ok := other.(*MappingComponent)
	return ok && c.index == o.index && c.mapping.Equal(o.mapping)
}
