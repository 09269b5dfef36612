// Package server provides the HTTP API of the tzresolve service.
// It serves zone queries, zone listings, health checks and metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/atlet99/tzresolve/internal/errors"
	"github.com/atlet99/tzresolve/internal/monitoring"
	"github.com/atlet99/tzresolve/internal/timezone"
)

const (
	// Server configuration constants
	serverDefaultRate  = 20.0 // 20 requests per second
	serverDefaultBurst = 40   // burst of 40 requests

	// Server timeout constants
	readHeaderTimeout = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second

	zonesPattern = "GET /v1/zones/{rest...}"
)

// Options configures a Server. Service is required.
type Options struct {
	Port      string
	Service   *timezone.Service
	Metrics   *monitoring.PrometheusMetrics
	Health    *monitoring.HealthMonitor
	Tracer    *monitoring.Tracer
	RateLimit *RateLimiterConfig
	Debug     bool
	Logger    *slog.Logger
}

// Server represents the main application server
type Server struct {
	*http.Server
	service     *timezone.Service
	metrics     *monitoring.PrometheusMetrics
	tracer      *monitoring.Tracer
	errors      *apperrors.Handler
	rateLimiter *HTTPRateLimiter
	logger      *slog.Logger
}

// New creates a new server instance
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewPrometheusMetrics(logger)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = monitoring.NewNoopTracer()
	}
	health := opts.Health
	if health == nil {
		health = monitoring.NewHealthMonitor(logger, "")
	}
	rateConfig := opts.RateLimit
	if rateConfig == nil {
		rateConfig = &RateLimiterConfig{
			DefaultRate:  serverDefaultRate,
			DefaultBurst: serverDefaultBurst,
			PerIP:        true,
			PerEndpoint:  true,
		}
	}

	s := &Server{
		service:     opts.Service,
		metrics:     metrics,
		tracer:      tracer,
		errors:      apperrors.NewHandler(logger, metrics, opts.Debug),
		rateLimiter: NewHTTPRateLimiter(rateConfig),
		logger:      logger,
	}

	healthHandler := monitoring.NewHTTPHealthHandler(health)

	mux := http.NewServeMux()

	// Register API routes with rate limiting
	mux.Handle("GET /v1/zones", s.limit(http.HandlerFunc(s.handleZones)))
	mux.Handle(zonesPattern, s.limit(http.HandlerFunc(s.handleZone)))
	mux.Handle("GET /v1/links", s.limit(http.HandlerFunc(s.handleLinks)))
	mux.Handle("GET /v1/current-zone", s.limit(http.HandlerFunc(s.handleCurrentZone)))

	// Register monitoring routes (no rate limiting for internal monitoring)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /health/ready", healthHandler.HandleReadiness)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.errors.HandleError(w, r, apperrors.NotFound(r.URL.Path))
	})

	var handler http.Handler = mux
	handler = s.errors.ErrorMiddleware(handler)
	handler = monitoring.PrometheusMiddleware(metrics, routeLabel)(handler)
	handler = monitoring.TracingMiddleware(tracer)(handler)

	s.Server = &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.Addr)
	return s.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.Server.Shutdown(ctx)
}

// limit applies rate limiting to next
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := routeLabel(r)
		if allowed, retryAfter := s.rateLimiter.Allow(r, endpoint); !allowed {
			s.metrics.RecordRateLimitBlock(endpoint)
			s.errors.HandleError(w, r, apperrors.RateLimited(retryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routeLabel returns the endpoint label of a routed request. Zone names
// never appear in the label.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	_, path, _ := strings.Cut(r.Pattern, " ")
	if r.Pattern != zonesPattern {
		return path
	}
	if _, op, ok := splitZonePath(r.PathValue("rest")); ok {
		return "/v1/zones/{zone}/" + op
	}
	return "/v1/zones/{zone}"
}
