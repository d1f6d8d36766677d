// cmd/mcp-server/main.go: Standalone HTTP MCP server for gosympde
//
// Exposes the weak-form tools as an HTTP endpoint for AI agent frameworks.
//
// Usage:
//
//	go run ./cmd/mcp-server -config sympde.yaml
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
// Metrics endpoint:   GET  /metrics
package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/njchilds90/gosympde/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or JSON config file")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log := cfg.Log.Logger(os.Stderr)

	log.Info("gosympde MCP server listening",
		slog.String("addr", cfg.Server.Addr),
		slog.Any("endpoints", []string{"POST /tool", "GET /schema", "GET /health", "GET /metrics"}))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(cfg, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
