package tool_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/form"
	"github.com/njchilds90/gosympde/symbolic"
	"github.com/njchilds90/gosympde/tool"
)

const poisson = `
name: poisson
domain: {name: Omega, dim: 2}
spaces:
  - {name: V, kind: h1}
elements:
  - {name: u, space: V}
  - {name: v, space: V}
  - {name: f, space: V, field: true}
forms:
  - name: a
    kind: bilinear
    tests: [v]
    trials: [u]
    body:
      type: op
      op: dot
      args:
        - {type: op, op: grad, args: [{type: element, name: u}]}
        - {type: op, op: grad, args: [{type: element, name: v}]}
  - name: l
    kind: linear
    tests: [v]
    body: {type: mul, args: [{type: element, name: f}, {type: element, name: v}]}
expr: {type: op, op: grad, args: [{type: element, name: u}]}
equation:
  lhs: {type: call, name: a, args: [{type: element, name: v}, {type: element, name: u}]}
  rhs: {type: call, name: l, args: [{type: element, name: v}]}
  bcs:
    - {boundary: Gamma_1, dirichlet: true}
    - {boundary: Gamma_2, expr: {type: element, name: u}, value: {type: num, value: 1/2}}
`

func parse(t *testing.T, doc string) *tool.Problem {
	t.Helper()
	p, err := tool.ParseProblem([]byte(doc))
	require.NoError(t, err)
	return p
}

func call(t *testing.T, req tool.ToolRequest) tool.ToolResponse {
	t.Helper()
	resp := tool.HandleToolCall(req)
	require.Empty(t, resp.Error)
	return resp
}

func TestBuild_Poisson(t *testing.T) {
	m, err := tool.Build(parse(t, poisson))
	require.NoError(t, err)
	assert.Equal(t, "poisson", m.Name)
	assert.Equal(t, "Omega", m.Domain.Name())
	assert.Nil(t, m.Mapping)

	forms := m.Forms()
	require.Len(t, forms, 2)
	assert.Equal(t, "a", forms[0].Name())
	assert.Equal(t, form.KindBilinear, forms[0].Kind())
	assert.Equal(t, form.KindLinear, forms[1].Kind())

	f, ok := m.Element("f")
	require.True(t, ok)
	assert.True(t, f.IsField())

	require.NotNil(t, m.Equation)
	assert.Equal(t, "a(v, u) = l(v)", m.Equation.String())
	bcs := m.Equation.BCs()
	require.Len(t, bcs, 2)
	assert.Equal(t, "u = 0 on Gamma_1", bcs[0].String())
	assert.True(t, symbolic.F(1, 2).Equal(bcs[1].Value()))
}

func TestBuild_Errors(t *testing.T) {
	cases := map[string]string{
		"dimension": `domain: {dim: 4}`,
		"space kind": `
spaces: [{name: V, kind: h7}]`,
		"unknown space": `
elements: [{name: u, space: W}]`,
		"unknown element": `
spaces: [{name: V}]
forms: [{name: l, kind: linear, tests: [v], body: {type: num, value: 1}}]`,
		"form kind": `
spaces: [{name: V}]
elements: [{name: v, space: V}]
forms: [{name: l, kind: trilinear, body: {type: element, name: v}}]`,
		"expression type": `
expr: {type: matrix}`,
		"bad number": `
expr: {type: num, value: one}`,
		"mapping kind": `
domain: {mapping: {kind: hyperbolic}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tool.Build(parse(t, doc))
			assert.ErrorIs(t, err, tool.ErrProblem)
		})
	}
}

func TestBuild_NonLinearForm(t *testing.T) {
	doc := `
spaces: [{name: V}]
elements: [{name: v, space: V}]
forms:
  - name: l
    kind: linear
    tests: [v]
    body: {type: pow, args: [{type: element, name: v}, {type: num, value: 2}]}
`
	_, err := tool.Build(parse(t, doc))
	var target *form.UnconsistentLinearExpressionError
	assert.ErrorAs(t, err, &target)
}

func TestParseProblem_JSON(t *testing.T) {
	doc := `{
		"domain": {"dim": 1},
		"spaces": [{"name": "V"}],
		"elements": [{"name": "u", "space": "V"}],
		"expr": {"type": "mul", "args": [{"type": "num", "value": "3/4"}, {"type": "element", "name": "u"}]}
	}`
	m, err := tool.Build(parse(t, doc))
	require.NoError(t, err)
	u, ok := m.Element("u")
	require.True(t, ok)
	assert.True(t, symbolic.MulOf(symbolic.F(3, 4), u).Equal(m.Expr), "got %s", m.Expr)
}

func TestHandleToolCall_Atomize(t *testing.T) {
	p := parse(t, poisson)
	resp := call(t, tool.ToolRequest{Tool: "atomize", Problem: p})
	assert.Equal(t, []string{"dx(u)", "dy(u)"}, resp.Result)

	resp = call(t, tool.ToolRequest{Tool: "atomize", Problem: p, Flat: true})
	assert.Equal(t, []string{"u_x", "u_y"}, resp.Result)
}

func TestHandleToolCall_Evaluate(t *testing.T) {
	p := parse(t, poisson)
	resp := call(t, tool.ToolRequest{Tool: "evaluate", Problem: p})
	want := symbolic.AddOf(
		symbolic.MulOf(symbolic.S("Ni_x"), symbolic.S("Nj_x")),
		symbolic.MulOf(symbolic.S("Ni_y"), symbolic.S("Nj_y")),
	)
	assert.Equal(t, want.String(), resp.String)
	assert.NotEmpty(t, resp.LaTeX)

	p.Basis = map[string]string{"v": "A", "u": "B"}
	resp = call(t, tool.ToolRequest{Tool: "evaluate", Problem: p, Form: "l"})
	assert.Equal(t, symbolic.MulOf(p2f(t, p), symbolic.S("A")).String(), resp.String)

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "evaluate", Problem: p, Boundary: "Gamma_9"})
	assert.Contains(t, resp.Error, "unknown boundary")
}

// p2f returns the field f of p.
func p2f(t *testing.T, p *tool.Problem) symbolic.Expr {
	m, err := tool.Build(p)
	require.NoError(t, err)
	f, ok := m.Element("f")
	require.True(t, ok)
	return f
}

func TestHandleToolCall_Tensorize(t *testing.T) {
	p := parse(t, poisson)
	resp := call(t, tool.ToolRequest{Tool: "tensorize", Problem: p, Form: "a"})
	assert.Contains(t, resp.String, "TensorProduct(Mass(v1, u1), Stiffness(v0, u0))")
	assert.Contains(t, resp.String, "TensorProduct(Stiffness(v1, u1), Mass(v0, u0))")

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "tensorize", Problem: p, Form: "l"})
	assert.Contains(t, resp.Error, "bilinear")
}

const polar = `
domain:
  name: Omega
  mapping:
    name: P
    kind: polar
    params: {c1: 0, c2: 0, rmin: 0, rmax: 1}
spaces: [{name: V, kind: h1}]
elements:
  - {name: u, space: V}
  - {name: v, space: V}
forms:
  - name: m
    kind: bilinear
    tests: [v]
    trials: [u]
    body: {type: mul, args: [{type: element, name: u}, {type: element, name: v}]}
`

func TestHandleToolCall_Logical(t *testing.T) {
	p := parse(t, polar)
	resp := call(t, tool.ToolRequest{Tool: "logical", Problem: p})
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok, "result is %T", resp.Result)
	assert.Equal(t, "m_logical", result["name"])
	assert.Contains(t, resp.String, "u")

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "logical", Problem: parse(t, poisson)})
	assert.Contains(t, resp.Error, "mapped domain")
}

func TestHandleToolCall_LogicalExpr(t *testing.T) {
	p := parse(t, polar)
	p.Expr = &tool.Node{Type: "element", Name: "u"}
	resp := call(t, tool.ToolRequest{Tool: "logical", Problem: p})
	assert.Equal(t, "u", resp.String)
}

func TestHandleToolCall_Jacobian(t *testing.T) {
	resp := call(t, tool.ToolRequest{Tool: "jacobian", Problem: parse(t, polar), At: []float64{0.5, 0.3}})
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.5, result["det"], 1e-12)
	assert.Equal(t, 2, result["rows"])

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "jacobian", Problem: parse(t, polar), At: []float64{0.5}})
	assert.NotEmpty(t, resp.Error)
}

func TestHandleToolCall_Check(t *testing.T) {
	resp := call(t, tool.ToolRequest{Tool: "check", Problem: parse(t, poisson)})
	assert.Equal(t, "2 forms; a(v, u) = l(v)", resp.String)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	bcs, ok := result["bcs"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, bcs, 2)
	assert.Equal(t, "u", bcs[1]["variable"])
	assert.Equal(t, 0, bcs[1]["order"])
}

func TestHandleToolCall_CheckFreeSymbols(t *testing.T) {
	doc := `
spaces: [{name: V}]
elements: [{name: u, space: V}]
expr:
  type: mul
  args:
    - {type: sym, name: kappa}
    - {type: sym, name: x}
    - {type: diff, vars: [y], args: [{type: element, name: u}]}
`
	resp := call(t, tool.ToolRequest{Tool: "check", Problem: parse(t, doc)})
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"kappa", "x"}, result["free_symbols"])
}

func TestModel_Decode(t *testing.T) {
	m, err := tool.Build(parse(t, poisson))
	require.NoError(t, err)
	u, ok := m.Element("u")
	require.True(t, ok)

	got, err := m.Decode(&tool.Node{Type: "op", Op: "grad", Args: []*tool.Node{{Type: "element", Name: "u"}}})
	require.NoError(t, err)
	assert.Equal(t, "grad(u)", got.String())
	assert.True(t, m.Expr.Equal(got), "field holds %s", m.Expr)

	got, err = m.Decode(&tool.Node{Type: "neg", Args: []*tool.Node{{Type: "element", Name: "u"}}})
	require.NoError(t, err)
	assert.True(t, symbolic.Neg(u).Equal(got))

	_, err = m.Decode(&tool.Node{Type: "element", Name: "w"})
	assert.ErrorIs(t, err, tool.ErrProblem)
	_, err = m.Decode(nil)
	assert.ErrorIs(t, err, tool.ErrProblem)
}

func TestHandleToolCall_Errors(t *testing.T) {
	resp := tool.HandleToolCall(tool.ToolRequest{Tool: "integrate"})
	assert.Equal(t, "unknown tool: integrate", resp.Error)

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "atomize"})
	assert.Equal(t, "missing param: problem", resp.Error)

	resp = tool.HandleToolCall(tool.ToolRequest{Tool: "evaluate", Problem: parse(t, poisson), Form: "b"})
	assert.Contains(t, resp.Error, `unknown form "b"`)
}

func TestMCPToolSpec(t *testing.T) {
	var spec struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(tool.MCPToolSpec()), &spec))
	names := make([]string, len(spec.Tools))
	for i, s := range spec.Tools {
		names[i] = s.Name
	}
	assert.ElementsMatch(t, tool.Tools(), names)

	resp := call(t, tool.ToolRequest{Tool: "mcp_spec"})
	assert.NotNil(t, resp.Result)
}
