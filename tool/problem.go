// Package tool decodes weak-form problems from YAML or JSON documents and
// dispatches the tool calls shared by the sympde CLI and the HTTP tool
// server.
package tool

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ErrProblem is returned for malformed problem documents.
var ErrProblem = errors.New("tool: invalid problem")

// ============================================================
// Problem documents
// ============================================================

// Problem declares a domain, its spaces and elements, a list of forms and
// optionally a bare expression and an equation. JSON is accepted wherever
// YAML is.
type Problem struct {
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Domain   DomainSpec        `json:"domain" yaml:"domain"`
	Spaces   []SpaceSpec       `json:"spaces,omitempty" yaml:"spaces,omitempty"`
	Elements []ElementSpec     `json:"elements,omitempty" yaml:"elements,omitempty"`
	Forms    []FormSpec        `json:"forms,omitempty" yaml:"forms,omitempty"`
	Expr     *Node             `json:"expr,omitempty" yaml:"expr,omitempty"`
	Equation *EquationSpec     `json:"equation,omitempty" yaml:"equation,omitempty"`
	Basis    map[string]string `json:"basis,omitempty" yaml:"basis,omitempty"`
}

type DomainSpec struct {
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
	Dim     int          `json:"dim,omitempty" yaml:"dim,omitempty"`
	Mapping *MappingSpec `json:"mapping,omitempty" yaml:"mapping,omitempty"`
}

type MappingSpec struct {
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Kind   string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Params map[string]Rat `json:"params,omitempty" yaml:"params,omitempty"`
}

type SpaceSpec struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Vector bool   `json:"vector,omitempty" yaml:"vector,omitempty"`
}

type ElementSpec struct {
	Name  string `json:"name" yaml:"name"`
	Space string `json:"space" yaml:"space"`
	Field bool   `json:"field,omitempty" yaml:"field,omitempty"`
}

// FormSpec declares a bilinear, linear, functional or norm form. For a norm
// the body is the normed expression.
type FormSpec struct {
	Name   string   `json:"name" yaml:"name"`
	Kind   string   `json:"kind" yaml:"kind"`
	Tests  []string `json:"tests,omitempty" yaml:"tests,omitempty"`
	Trials []string `json:"trials,omitempty" yaml:"trials,omitempty"`
	Norm   string   `json:"norm,omitempty" yaml:"norm,omitempty"`
	Body   *Node    `json:"body" yaml:"body"`
}

type EquationSpec struct {
	Lhs *Node    `json:"lhs" yaml:"lhs"`
	Rhs *Node    `json:"rhs" yaml:"rhs"`
	BCs []BCSpec `json:"bcs,omitempty" yaml:"bcs,omitempty"`
}

// BCSpec is an essential boundary condition; Dirichlet constrains every
// trial unknown to zero.
type BCSpec struct {
	Boundary  string `json:"boundary" yaml:"boundary"`
	Expr      *Node  `json:"expr,omitempty" yaml:"expr,omitempty"`
	Value     *Node  `json:"value,omitempty" yaml:"value,omitempty"`
	Dirichlet bool   `json:"dirichlet,omitempty" yaml:"dirichlet,omitempty"`
}

// ParseProblem decodes a YAML or JSON document.
func ParseProblem(data []byte) (*Problem, error) {
	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProblem, err)
	}
	return &p, nil
}

// LoadProblem reads and decodes a problem file.
func LoadProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProblem(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ============================================================
// Model
// ============================================================

// Model is a problem with every declaration resolved.
type Model struct {
	Name     string
	Domain   *topology.Domain
	Mapping  *topology.Mapping
	Expr     symbolic.Expr
	Equation *form.Equation
	Basis    map[string]string

	spaces   map[string]*topology.FunctionSpace
	elements map[string]*topology.Element
	forms    map[string]form.Form
	order    []string
}

// Build resolves p: the domain and its mapping, then spaces, elements and
// forms in declaration order, then the expression and the equation.
func Build(p *Problem) (*Model, error) {
	m := &Model{
		Name:     p.Name,
		Basis:    p.Basis,
		spaces:   map[string]*topology.FunctionSpace{},
		elements: map[string]*topology.Element{},
		forms:    map[string]form.Form{},
	}
	if err := m.domain(p.Domain); err != nil {
		return nil, err
	}
	for _, s := range p.Spaces {
		if err := m.space(s); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Elements {
		if err := m.element(e); err != nil {
			return nil, err
		}
	}
	for _, f := range p.Forms {
		if err := m.form(f); err != nil {
			return nil, fmt.Errorf("form %s: %w", f.Name, err)
		}
	}
	if p.Expr != nil {
		e, err := m.Decode(p.Expr)
		if err != nil {
			return nil, err
		}
		m.Expr = e
	}
	if p.Equation != nil {
		if err := m.equation(p.Equation); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) domain(s DomainSpec) error {
	name, dim := s.Name, s.Dim
	if name == "" {
		name = "Omega"
	}
	if dim == 0 {
		dim = 2
	}
	var d *topology.Domain
	switch dim {
	case 1:
		d = topology.Line(name)
	case 2:
		d = topology.Square(name)
	case 3:
		d = topology.Cube(name)
	default:
		return fmt.Errorf("%w: unsupported dimension %d", ErrProblem, dim)
	}
	if s.Mapping != nil {
		var opts []topology.MappingOption
		for k, v := range s.Mapping.Params {
			n, err := v.num()
			if err != nil {
				return err
			}
			opts = append(opts, topology.WithParam(k, n))
		}
		mname := s.Mapping.Name
		if mname == "" {
			mname = "M"
		}
		mp, err := topology.MappingByKind(s.Mapping.Kind, mname, dim, opts...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProblem, err)
		}
		if d, err = mp.Apply(d); err != nil {
			return err
		}
		m.Mapping = mp
	}
	m.Domain = d
	return nil
}

func (m *Model) space(s SpaceSpec) error {
	if _, dup := m.spaces[s.Name]; dup || s.Name == "" {
		return fmt.Errorf("%w: bad or duplicated space name %q", ErrProblem, s.Name)
	}
	kind, err := topology.ParseKind(s.Kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProblem, err)
	}
	if s.Vector {
		m.spaces[s.Name] = topology.VectorFunctionSpace(s.Name, m.Domain, topology.WithKind(kind))
	} else {
		m.spaces[s.Name] = topology.ScalarFunctionSpace(s.Name, m.Domain, topology.WithKind(kind))
	}
	return nil
}

func (m *Model) element(s ElementSpec) error {
	sp, ok := m.spaces[s.Space]
	if !ok {
		return fmt.Errorf("%w: element %s: unknown space %q", ErrProblem, s.Name, s.Space)
	}
	if _, dup := m.elements[s.Name]; dup || s.Name == "" {
		return fmt.Errorf("%w: bad or duplicated element name %q", ErrProblem, s.Name)
	}
	if s.Field {
		m.elements[s.Name] = sp.Field(s.Name)
	} else {
		m.elements[s.Name] = sp.Element(s.Name)
	}
	return nil
}

func (m *Model) arguments(names []string) (form.Arguments, error) {
	es := make([]symbolic.Expr, len(names))
	for i, n := range names {
		el, ok := m.elements[n]
		if !ok {
			return form.Arguments{}, fmt.Errorf("%w: unknown element %q", ErrProblem, n)
		}
		es[i] = el
	}
	if len(es) == 0 {
		return form.Tuple(), nil
	}
	return form.ArgumentsOf(es...)
}

func (m *Model) form(s FormSpec) error {
	if _, dup := m.forms[s.Name]; dup || s.Name == "" {
		return fmt.Errorf("%w: bad or duplicated form name %q", ErrProblem, s.Name)
	}
	body, err := m.Decode(s.Body)
	if err != nil {
		return err
	}
	opt := form.WithName(s.Name)
	var f form.Form
	switch s.Kind {
	case "bilinear":
		tests, err := m.arguments(s.Tests)
		if err != nil {
			return err
		}
		trials, err := m.arguments(s.Trials)
		if err != nil {
			return err
		}
		f, err = form.NewBilinearForm(tests, trials, body, opt)
		if err != nil {
			return err
		}
	case "linear":
		tests, err := m.arguments(s.Tests)
		if err != nil {
			return err
		}
		f, err = form.NewLinearForm(tests, body, opt)
		if err != nil {
			return err
		}
	case "functional":
		f, err = form.NewFunctional(body, m.Domain, opt)
		if err != nil {
			return err
		}
	case "norm":
		kind, err := form.ParseNormKind(s.Norm)
		if err != nil {
			return err
		}
		f, err = form.NewNorm(body, m.Domain, kind, opt)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown form kind %q", ErrProblem, s.Kind)
	}
	m.forms[s.Name] = f
	m.order = append(m.order, s.Name)
	return nil
}

func (m *Model) boundary(name string) (*topology.Boundary, error) {
	b, ok := m.Domain.BoundaryByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown boundary %q", ErrProblem, name)
	}
	return b, nil
}

func (m *Model) equation(s *EquationSpec) error {
	lhs, err := m.Decode(s.Lhs)
	if err != nil {
		return err
	}
	rhs, err := m.Decode(s.Rhs)
	if err != nil {
		return err
	}
	bcs := make([]*form.EssentialBC, 0, len(s.BCs))
	for _, spec := range s.BCs {
		b, err := m.boundary(spec.Boundary)
		if err != nil {
			return err
		}
		if spec.Dirichlet {
			bcs = append(bcs, form.DirichletBC(b))
			continue
		}
		e, err := m.Decode(spec.Expr)
		if err != nil {
			return err
		}
		var value symbolic.Expr
		if spec.Value != nil {
			if value, err = m.Decode(spec.Value); err != nil {
				return err
			}
		}
		bc, err := form.NewEssentialBC(e, value, b)
		if err != nil {
			return err
		}
		bcs = append(bcs, bc)
	}
	eq, err := form.NewEquation(lhs, rhs, bcs...)
	if err != nil {
		return err
	}
	m.Equation = eq
	return nil
}

// Form returns a declared form by name.
func (m *Model) Form(name string) (form.Form, bool) {
	f, ok := m.forms[name]
	return f, ok
}

// Forms returns the declared forms in declaration order.
func (m *Model) Forms() []form.Form {
	out := make([]form.Form, len(m.order))
	for i, n := range m.order {
		out[i] = m.forms[n]
	}
	return out
}

func (m *Model) Element(name string) (*topology.Element, bool) {
	el, ok := m.elements[name]
	return el, ok
}
