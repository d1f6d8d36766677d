package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/gosympde/calculus"
	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/logical"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/topology"
)

// ============================================================
// MCP Tool Interface
// ============================================================

type ToolRequest struct {
	Tool    string   `json:"tool" yaml:"tool"`
	Problem *Problem `json:"problem,omitempty" yaml:"problem,omitempty"`
	// Form names the form a tool acts on; the first declared form by default.
	Form     string `json:"form,omitempty" yaml:"form,omitempty"`
	Boundary string `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	// Subs substitutes the closed form of an analytic mapping.
	Subs bool `json:"subs,omitempty" yaml:"subs,omitempty"`
	// Flat renders atoms as flat symbols such as u_xy.
	Flat bool      `json:"flat,omitempty" yaml:"flat,omitempty"`
	At   []float64 `json:"at,omitempty" yaml:"at,omitempty"`
}

type ToolResponse struct {
	Result any    `json:"result,omitempty"`
	LaTeX  string `json:"latex,omitempty"`
	String string `json:"string,omitempty"`
	Error  string `json:"error,omitempty"`
}

type handler func(m *Model, req ToolRequest) (ToolResponse, error)

var handlers = map[string]handler{
	"atomize":   atomizeTool,
	"evaluate":  evaluateTool,
	"tensorize": tensorizeTool,
	"logical":   logicalTool,
	"check":     checkTool,
	"jacobian":  jacobianTool,
}

// Tools lists the tool names HandleToolCall accepts.
func Tools() []string {
	names := make([]string, 0, len(handlers)+1)
	for n := range handlers {
		names = append(names, n)
	}
	names = append(names, "mcp_spec")
	sort.Strings(names)
	return names
}

func HandleToolCall(req ToolRequest) ToolResponse {
	if req.Tool == "mcp_spec" {
		return ToolResponse{Result: json.RawMessage(MCPToolSpec())}
	}
	h, ok := handlers[req.Tool]
	if !ok {
		return ToolResponse{Error: fmt.Sprintf("unknown tool: %s", req.Tool)}
	}
	if req.Problem == nil {
		return ToolResponse{Error: "missing param: problem"}
	}
	m, err := Build(req.Problem)
	if err != nil {
		return ToolResponse{Error: err.Error()}
	}
	resp, err := h(m, req)
	if err != nil {
		return ToolResponse{Error: err.Error()}
	}
	return resp
}

func (m *Model) target(req ToolRequest) (form.Form, error) {
	if req.Form != "" {
		f, ok := m.Form(req.Form)
		if !ok {
			return nil, fmt.Errorf("%w: unknown form %q", ErrProblem, req.Form)
		}
		return f, nil
	}
	if len(m.order) == 0 {
		return nil, fmt.Errorf("%w: no form declared", ErrProblem)
	}
	return m.forms[m.order[0]], nil
}

func (m *Model) expr() (symbolic.Expr, error) {
	if m.Expr == nil {
		return nil, fmt.Errorf("%w: missing expr", ErrProblem)
	}
	return m.Expr, nil
}

func respond(e symbolic.Expr, req ToolRequest) ToolResponse {
	if req.Flat {
		e = topology.SymbolicExpr(e)
	}
	return ToolResponse{Result: resultOf(e), LaTeX: e.LaTeX(), String: e.String()}
}

// resultOf renders tuples as string lists and matrices as rows of strings.
func resultOf(e symbolic.Expr) any {
	switch v := e.(type) {
	case *symbolic.Tuple:
		out := make([]string, v.Len())
		for i := range out {
			out[i] = v.At(i).String()
		}
		return out
	case *symbolic.Matrix:
		rows := make([][]string, v.Rows())
		for i := range rows {
			rows[i] = make([]string, v.Cols())
			for j := range rows[i] {
				rows[i][j] = v.Get(i, j).String()
			}
		}
		return rows
	}
	return e.String()
}

func atomizeTool(m *Model, req ToolRequest) (ToolResponse, error) {
	e, err := m.expr()
	if err != nil {
		return ToolResponse{}, err
	}
	a, err := calculus.Atomize(e)
	if err != nil {
		return ToolResponse{}, err
	}
	return respond(a, req), nil
}

func evaluateTool(m *Model, req ToolRequest) (ToolResponse, error) {
	f, err := m.target(req)
	if err != nil {
		return ToolResponse{}, err
	}
	opts := []form.EvalOption{form.WithBasis(m.Basis)}
	if req.Boundary != "" {
		b, err := m.boundary(req.Boundary)
		if err != nil {
			return ToolResponse{}, err
		}
		opts = append(opts, form.OnBoundary(b))
	}
	r, err := form.Evaluate(f, opts...)
	if err != nil {
		return ToolResponse{}, err
	}
	return respond(r, req), nil
}

func tensorizeTool(m *Model, req ToolRequest) (ToolResponse, error) {
	f, err := m.target(req)
	if err != nil {
		return ToolResponse{}, err
	}
	a, ok := f.(*form.BilinearForm)
	if !ok {
		return ToolResponse{}, fmt.Errorf("%w: tensorize needs a bilinear form, %s is %s", form.ErrUnsupported, f.Name(), f.Kind())
	}
	r, err := form.Tensorize(a)
	if err != nil {
		return ToolResponse{}, err
	}
	return respond(r, req), nil
}

// logicalTool pulls back the bare expression if there is one, the target
// form otherwise.
func logicalTool(m *Model, req ToolRequest) (ToolResponse, error) {
	if m.Mapping == nil {
		return ToolResponse{}, fmt.Errorf("%w: domain %s", logical.ErrUnmapped, m.Domain)
	}
	var opts []logical.Option
	if req.Subs {
		opts = append(opts, logical.WithSubs())
	}
	if m.Expr != nil {
		r, err := logical.Expr(m.Expr, m.Mapping, m.Mapping.PDim(), opts...)
		if err != nil {
			return ToolResponse{}, err
		}
		return respond(r, req), nil
	}
	f, err := m.target(req)
	if err != nil {
		return ToolResponse{}, err
	}
	lf, err := form.Logical(f, opts...)
	if err != nil {
		return ToolResponse{}, err
	}
	resp := respond(lf.Body(), req)
	resp.Result = map[string]any{"name": lf.Name(), "body": resp.String}
	return resp, nil
}

// checkTool reports the forms of a problem, the free symbols of its
// expression and the classification of the boundary conditions of its
// equation.
func checkTool(m *Model, req ToolRequest) (ToolResponse, error) {
	forms := make([]map[string]string, 0, len(m.order))
	for _, f := range m.Forms() {
		forms = append(forms, map[string]string{"name": f.Name(), "kind": f.Kind().String(), "domain": f.Domain().Name()})
	}
	result := map[string]any{"forms": forms}
	lines := []string{fmt.Sprintf("%d forms", len(forms))}
	if m.Expr != nil {
		syms := make([]string, 0)
		for s := range symbolic.FreeSymbols(m.Expr) {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		result["free_symbols"] = syms
	}
	if eq := m.Equation; eq != nil {
		bcs := make([]map[string]any, 0, len(eq.BCs()))
		for _, bc := range eq.BCs() {
			bcs = append(bcs, map[string]any{
				"bc":               bc.String(),
				"variable":         bc.Variable().Name(),
				"order":            bc.Order(),
				"normal_component": bc.NormalComponent(),
				"index_component":  bc.IndexComponent(),
			})
		}
		result["equation"] = eq.String()
		result["bcs"] = bcs
		lines = append(lines, eq.String())
	}
	return ToolResponse{Result: result, String: strings.Join(lines, "; ")}, nil
}

// jacobianTool evaluates the Jacobian of an analytic mapping and its
// determinant at a logical point.
func jacobianTool(m *Model, req ToolRequest) (ToolResponse, error) {
	if m.Mapping == nil {
		return ToolResponse{}, fmt.Errorf("%w: domain %s", logical.ErrUnmapped, m.Domain)
	}
	jac, err := m.Mapping.JacobianAt(req.At, nil)
	if err != nil {
		return ToolResponse{}, err
	}
	det, err := m.Mapping.DetAt(req.At, nil)
	if err != nil {
		return ToolResponse{}, err
	}
	r, c := jac.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, jac)
	}
	return ToolResponse{
		Result: map[string]any{"jacobian": rows, "det": det, "rows": r, "cols": c},
		String: fmt.Sprintf("det J = %.10g", det),
	}, nil
}

// MCPToolSpec returns the JSON schema of the tools for agent registration.
func MCPToolSpec() string {
	problem := map[string]string{"problem": "object"}
	with := func(extra map[string]string) map[string]string {
		out := map[string]string{"problem": "object", "flat": "boolean"}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
	tools := []map[string]any{
		ts("atomize", "Rewrite problem.expr in coordinate-derivative atoms", []string{"problem"}, with(nil)),
		ts("evaluate", "Replace test and trial functions of a form by basis placeholders Ni, Nj", []string{"problem"}, with(map[string]string{"form": "string", "boundary": "string"})),
		ts("tensorize", "Factor a bilinear form into tensor products of 1D kernels", []string{"problem"}, with(map[string]string{"form": "string"})),
		ts("logical", "Pull problem.expr or a form back onto the logical domain", []string{"problem"}, with(map[string]string{"form": "string", "subs": "boolean"})),
		ts("check", "Validate forms and the equation, classify boundary conditions", []string{"problem"}, problem),
		ts("jacobian", "Numeric Jacobian and determinant of an analytic mapping at a logical point", []string{"problem", "at"}, map[string]string{"problem": "object", "at": "array"}),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]any{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]any {
	properties := map[string]any{}
	for k, typ := range props {
		properties[k] = map[string]any{"type": typ}
	}
	return map[string]any{
		"name":        name,
		"description": description,
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
