// Package api provides the operational HTTP endpoints of the synchronizer:
// liveness, readiness, sync status, version and metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/pgsearch-sync/internal/status"
)

// DefaultCheckTimeout bounds each readiness check
const DefaultCheckTimeout = 2 * time.Second

// Pinger is a dependency the readiness endpoint probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping implements Pinger
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Check is a named readiness probe
type Check struct {
	Name   string
	Pinger Pinger
}

// StatusProvider returns the current sync status
type StatusProvider interface {
	Get() status.SyncStatus
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares  []func(http.Handler) http.Handler
	checks       []Check
	checkTimeout time.Duration
	status       StatusProvider
	metrics      http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithChecks adds readiness checks
func WithChecks(checks ...Check) ServerOption {
	return func(cfg *serverConfig) {
		cfg.checks = append(cfg.checks, checks...)
	}
}

// WithCheckTimeout sets the per-check readiness timeout
func WithCheckTimeout(timeout time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		if timeout > 0 {
			cfg.checkTimeout = timeout
		}
	}
}

// WithStatus serves provider on /status
func WithStatus(provider StatusProvider) ServerOption {
	return func(cfg *serverConfig) {
		cfg.status = provider
	}
}

// WithMetricsHandler serves handler on /metrics. A nil handler is ignored.
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = handler
	}
}

// NewServer creates and configures the HTTP router
func NewServer(opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(cfg.checks, cfg.checkTimeout))
	r.Get("/version", versionHandler)
	if cfg.status != nil {
		r.Get("/status", statusHandler(cfg.status))
	}
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
