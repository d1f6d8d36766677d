package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/njchilds90/gosympde/internal/config"
	"github.com/njchilds90/gosympde/tool"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sympde_tool_calls_total",
		Help: "Tool calls by tool and outcome.",
	}, []string{"tool", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sympde_tool_duration_seconds",
		Help:    "Time spent in a tool call.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"tool"})
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newMux(cfg config.Config, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// POST /tool: handle a tool call
	mux.HandleFunc("/tool", func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		log := log.With(slog.String("request_id", id))
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in /tool", slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.Server.MaxBodyBytes)
		defer r.Body.Close()

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req tool.ToolRequest
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		// Ensure there's no trailing junk.
		if dec.More() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: trailing data"})
			return
		}

		start := time.Now()
		resp := tool.HandleToolCall(req)
		elapsed := time.Since(start)

		status := "ok"
		if resp.Error != "" {
			status = "error"
		}
		toolCalls.WithLabelValues(req.Tool, status).Inc()
		toolDuration.WithLabelValues(req.Tool).Observe(elapsed.Seconds())
		log.Debug("tool call", slog.String("tool", req.Tool), slog.String("status", status), slog.Duration("elapsed", elapsed))

		writeJSON(w, http.StatusOK, resp)
	})

	// GET /schema: return tool schema for agent registration
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tool.MCPToolSpec())
	})

	// GET /health: liveness check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
			"tools":  tool.Tools(),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
