// Package server exposes the Deep-Focus HTTP API: the hybrid chat endpoint,
// library management, health probes, and the Prometheus metrics scrape
// target. The router owns no conversation state; the server keeps per-session
// history and hands the full transcript to the router on every turn.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepfocus-ai/deepfocus/internal/health"
	"github.com/deepfocus-ai/deepfocus/internal/library"
	"github.com/deepfocus-ai/deepfocus/internal/observe"
	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/internal/tools"
)

// Server wires the routing engine, tool registry, and library behind the
// HTTP API.
type Server struct {
	router   *router.Router
	registry *tools.Registry
	lib      *library.Library
	metrics  *observe.Metrics
	health   *health.Handler
	sessions *sessionStore

	certFile string
	keyFile  string

	httpServer *http.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics overrides the metrics sink, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth installs the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithTLS makes Start serve HTTPS using the given PEM certificate pair.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// New creates a Server listening on addr once [Server.Start] is called.
func New(addr string, r *router.Router, reg *tools.Registry, lib *library.Library, opts ...Option) *Server {
	s := &Server{
		router:   r,
		registry: reg,
		lib:      lib,
		metrics:  observe.DefaultMetrics(),
		sessions: newSessionStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the full route table wrapped in the tracing/metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)

	mux.HandleFunc("GET /api/library/root", s.handleGetRoot)
	mux.HandleFunc("PUT /api/library/root", s.handlePutRoot)
	mux.HandleFunc("POST /api/library/validate", s.handleValidate)
	mux.HandleFunc("GET /api/library/suggested-roots", s.handleSuggestedRoots)
	mux.HandleFunc("POST /api/library/index", s.handleIndex)
	mux.HandleFunc("GET /api/library/status", s.handleStatus)

	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)

	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}

	return observe.Middleware(s.metrics)(mux)
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	if s.certFile != "" {
		return s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// errorBody is the JSON shape of all error responses.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
