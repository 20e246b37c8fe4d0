// Package server exposes pipelines over HTTP: listing, running, lifecycle
// events as SSE, and Prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/metrics"
	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/pubsub"
)

const defaultHeartbeat = 30 * time.Second

// Handler provides HTTP endpoints for the pipeline registry.
type Handler struct {
	registry       *pipeline.Registry
	runner         *pipeline.Runner
	events         pubsub.Subscriber[pipeline.RunEvent]
	version        string
	heartbeat      time.Duration
	allowedOrigins []string
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Registry holds the pipelines that can be listed and run (required).
	Registry *pipeline.Registry
	// Runner drives runs. Defaults to a plain pipeline.NewRunner().
	Runner *pipeline.Runner
	// Events feeds /events. Without it /events returns 503.
	Events  pubsub.Subscriber[pipeline.RunEvent]
	Version string
	// Heartbeat is the SSE keep-alive interval (default 30s).
	Heartbeat time.Duration
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// NewHandler creates an API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		registry:       cfg.Registry,
		runner:         cfg.Runner,
		events:         cfg.Events,
		version:        cfg.Version,
		heartbeat:      cfg.Heartbeat,
		allowedOrigins: cfg.AllowedOrigins,
	}
	if h.registry == nil {
		h.registry = pipeline.NewRegistry()
	}
	if h.runner == nil {
		h.runner = pipeline.NewRunner()
	}
	if h.heartbeat <= 0 {
		h.heartbeat = defaultHeartbeat
	}
	if h.version == "" {
		h.version = "dev"
	}
	if len(h.allowedOrigins) == 0 {
		h.allowedOrigins = []string{"*"}
	}
	return h
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Get("/pipelines", h.ListPipelines)
	r.Get("/pipelines/{name}", h.GetPipeline)
	r.Post("/pipelines/{name}/run", h.RunPipeline)

	r.Get("/events", h.StreamEvents)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// === Request/Response Types ===

// RootResponse is the body of GET /.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// PipelineResponse describes one registered pipeline.
type PipelineResponse struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RequiredConfig []string `json:"required_config"`
}

// ListPipelinesResponse is the body of GET /pipelines.
type ListPipelinesResponse struct {
	Pipelines []PipelineResponse `json:"pipelines"`
	Total     int                `json:"total"`
}

// RunRequest is the optional body of POST /pipelines/{name}/run.
type RunRequest struct {
	Config map[string]any `json:"config,omitempty"`
}

// ErrorResponse is the response body for errors. Result is set when a run
// started and failed.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Code    string           `json:"code,omitempty"`
	Details string           `json:"details,omitempty"`
	Missing []string         `json:"missing,omitempty"`
	Result  *pipeline.Result `json:"result,omitempty"`
}

// === Handlers ===

// Root reports the service name and version.
// GET /
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, RootResponse{Name: "Redditor API", Version: h.version, Status: "operational"})
}

// Health is a liveness probe.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// ListPipelines returns every registered pipeline sorted by name.
// GET /pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, _ *http.Request) {
	resp := ListPipelinesResponse{Pipelines: []PipelineResponse{}}
	for _, name := range h.registry.Names() {
		if def, ok := h.registry.Get(name); ok {
			resp.Pipelines = append(resp.Pipelines, toResponse(def))
		}
	}
	resp.Total = len(resp.Pipelines)
	h.writeJSON(w, http.StatusOK, resp)
}

// GetPipeline describes one pipeline.
// GET /pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, ErrorResponse{Code: "not_found", Error: fmt.Sprintf("Pipeline '%s' not found.", name)})
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(def))
}

// RunPipeline builds and runs a pipeline synchronously.
// POST /pipelines/{name}/run
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, ErrorResponse{Code: "not_found", Error: fmt.Sprintf("Pipeline '%s' not found.", name)})
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, ErrorResponse{Code: "invalid_json", Error: "Invalid JSON body", Details: err.Error()})
		return
	}

	p, err := def.Build(pipeline.Config(req.Config))
	if err != nil {
		resp := ErrorResponse{Code: "invalid_config", Error: err.Error()}
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			resp.Code = "configuration_error"
			resp.Missing = cfgErr.Missing
		}
		h.writeError(w, http.StatusBadRequest, resp)
		return
	}

	res, err := h.runner.Run(r.Context(), p)
	if err != nil {
		resp := ErrorResponse{Code: "execution_failed", Error: err.Error(), Result: &res}
		var execErr *pipeline.ExecutionError
		if errors.As(err, &execErr) {
			resp.Details = string(execErr.Phase)
		}
		h.writeError(w, http.StatusInternalServerError, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// StreamEvents streams run lifecycle events as server-sent events.
// GET /events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeError(w, http.StatusServiceUnavailable, ErrorResponse{Code: "events_unavailable", Error: "Event stream not configured"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, ErrorResponse{Code: "streaming_unsupported", Error: "Streaming not supported"})
		return
	}

	ctx := r.Context()
	events := h.events.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.Error(log.CatServer, "Failed to marshal event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// === Helpers ===

func toResponse(def pipeline.Definition) PipelineResponse {
	required := def.RequiredConfig
	if required == nil {
		required = []string{}
	}
	return PipelineResponse{Name: def.Name, Description: def.Description, RequiredConfig: required}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatServer, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	h.writeJSON(w, status, resp)
}

// requestLogger logs each request at debug level through the category logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if strings.HasPrefix(r.URL.Path, "/metrics") {
			return
		}
		log.Debug(log.CatServer, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
