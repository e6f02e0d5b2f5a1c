// Package httpapi implements the HTTP/SSE API: the REST surface that
// enqueues jobs, streams their progress, and serves session and
// feedback data, routed with github.com/go-chi/chi/v5 and streamed with
// http.Flusher-based SSE.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/internal/observability"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/feedback"
	"github.com/qagraph/qagraph/pkg/session"
)

// DefaultHeartbeatInterval is how often the stream handler writes a
// comment-line heartbeat to an idle SSE connection.
const DefaultHeartbeatInterval = 15 * time.Second

// Handler bundles every dependency the API surface needs. It holds no
// per-request state; one Handler serves the whole process.
type Handler struct {
	broker    broker.Broker
	sessions  session.Service
	feedback  feedback.Store
	adapters  *adapters.Registry
	llm       llmclient.Client
	health    *observability.HealthChecker
	logger    *slog.Logger

	heartbeatInterval time.Duration
}

// Config configures a Handler.
type Config struct {
	Broker   broker.Broker
	Sessions session.Service
	Feedback feedback.Store
	Adapters *adapters.Registry
	LLM      llmclient.Client
	Logger   *slog.Logger

	HeartbeatInterval time.Duration
}

// NewHandler builds a Handler and registers its health checks.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}

	h := &Handler{
		broker:            cfg.Broker,
		sessions:          cfg.Sessions,
		feedback:          cfg.Feedback,
		adapters:          cfg.Adapters,
		llm:               cfg.LLM,
		health:            observability.NewHealthChecker(),
		logger:            cfg.Logger,
		heartbeatInterval: cfg.HeartbeatInterval,
	}
	h.registerHealthChecks()
	return h
}

// Routes builds the chi.Router serving every endpoint this API exposes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(h.metricsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/queue", h.handleQueue)
		r.Get("/stream/{request_id}", h.handleStream)
		r.Get("/sessions", h.handleListSessions)
		r.Get("/sessions/{id}", h.handleGetSession)
		r.Delete("/sessions/{id}", h.handleDeleteSession)
		r.Post("/feedback", h.handleAppendFeedback)
		r.Get("/analytics/feedback", h.handleFeedbackAnalytics)
	})
	r.Get("/health", h.handleHealth)
	r.Get("/metrics", observability.MetricsHandler().ServeHTTP)

	return r
}

// metricsMiddleware records every request's outcome and latency as
// Prometheus metrics via internal/observability and writes one
// structured log line per request. It starts no trace span.
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		observability.RecordHTTPRequest(r.Method, routePattern(r), http.StatusText(ww.status), time.Since(start))
		h.logger.Info("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the embedded writer so statusWriter still satisfies
// http.Flusher, which the SSE stream handler depends on.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController (and anything else using
// errors.As-style unwrapping) see through to the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func newRequestID() string { return uuid.New().String() }
