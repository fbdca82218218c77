// Package httpapi exposes the workflow registry over HTTP with JSON
// request and response bodies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackforge/conductor/workflow"
)

const (
	readHeaderTimeout = 10 * time.Second
	maxRequestBody    = 1 << 20 // 1 MiB
)

// ServiceName appears in the root and health endpoints.
const ServiceName = "conductor"

// StartRequest is the body of POST /workflow/start.
type StartRequest struct {
	Task      string `json:"task"`
	Framework string `json:"framework"`
}

// StartResponse acknowledges an accepted workflow.
type StartResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type progressResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Server serves the workflow API.
type Server struct {
	registry *workflow.Registry
	logger   *slog.Logger
	version  string
	srv      *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported on the root endpoint.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates the API server for a registry.
func NewServer(registry *workflow.Registry, addr string, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		logger:   slog.Default(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /workflow/start", s.handleStart)
	mux.HandleFunc("GET /workflow/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /workflow/{id}/result", s.handleResult)
	mux.HandleFunc("GET /workflows", s.handleList)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the configured mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks serving requests until Shutdown or a listener
// error. A closed-server error is reported as nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.registry.Start(req.Task, req.Framework)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, StartResponse{
		WorkflowID: id,
		Status:     workflow.StatusStarted.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.Status(r.PathValue("id"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.registry.Result(r.PathValue("id"))
	if err != nil {
		var inProgress *workflow.InProgressError
		if errors.As(err, &inProgress) {
			s.writeJSON(w, http.StatusAccepted, progressResponse{
				Status: inProgress.Status.String(),
				Detail: inProgress.Error(),
			})
			return
		}
		s.writeRegistryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	summaries := s.registry.List()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"workflows": summaries,
		"count":     len(summaries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": s.version,
		"status":  "running",
		"endpoints": []string{
			"POST /workflow/start",
			"GET /workflow/{id}/status",
			"GET /workflow/{id}/result",
			"GET /workflows",
			"GET /health",
			"GET /metrics",
		},
	})
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	if errors.Is(err, workflow.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", code, "error", err)
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encoding failed", "error", err)
	}
}
