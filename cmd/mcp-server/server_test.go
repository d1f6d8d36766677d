package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gosympde/internal/config"
	"github.com/njchilds90/gosympde/tool"
)

const atomizeRequest = `{
  "tool": "atomize",
  "flat": true,
  "problem": {
    "spaces": [{"name": "V", "kind": "h1"}],
    "elements": [{"name": "u", "space": "V"}],
    "expr": {"type": "op", "op": "grad", "args": [{"type": "element", "name": "u"}]}
  }
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newMux(config.Default(), slog.New(slog.DiscardHandler)))
	t.Cleanup(srv.Close)
	return srv
}

func TestTool(t *testing.T) {
	srv := newServer(t)
	res, err := http.Post(srv.URL+"/tool", "application/json", strings.NewReader(atomizeRequest))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	_, err = uuid.Parse(res.Header.Get("X-Request-Id"))
	assert.NoError(t, err)

	var resp struct {
		Result []string `json:"result"`
		Error  string   `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{"u_x", "u_y"}, resp.Result)
}

func TestTool_BadRequests(t *testing.T) {
	srv := newServer(t)
	cases := map[string]string{
		"unknown field": `{"tool": "atomize", "bogus": 1}`,
		"trailing data": `{"tool": "atomize"} {}`,
		"not json":      `tool=atomize`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := http.Post(srv.URL+"/tool", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}

	res, err := http.Get(srv.URL + "/tool")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestTool_ErrorResponse(t *testing.T) {
	srv := newServer(t)
	res, err := http.Post(srv.URL+"/tool", "application/json", strings.NewReader(`{"tool": "integrate"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	var resp tool.ToolResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, "unknown tool: integrate", resp.Error)
}

func TestSchemaHealthMetrics(t *testing.T) {
	srv := newServer(t)

	res, err := http.Get(srv.URL + "/schema")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, tool.MCPToolSpec(), string(body))

	res, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	res.Body.Close()
	assert.Equal(t, "ok", health["status"])

	res, err = http.Post(srv.URL+"/tool", "application/json", strings.NewReader(atomizeRequest))
	require.NoError(t, err)
	res.Body.Close()

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `sympde_tool_calls_total{status="ok",tool="atomize"}`)
	assert.Contains(t, string(body), "sympde_tool_duration_seconds_bucket")
}
