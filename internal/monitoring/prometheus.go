package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlet99/tzresolve/internal/cache"
	"github.com/atlet99/tzresolve/internal/tz"
)

const (
	// Default timeout for HTTP server
	defaultReadHeaderTimeout = 30 * time.Second
)

// CacheStatsFunc returns the current statistics of a cache.
type CacheStatsFunc func() cache.Stats

// PrometheusMetrics provides Prometheus integration for monitoring. It
// implements tz.Observer and errors.Recorder.
type PrometheusMetrics struct {
	// Resolver metrics
	probesTotal       *prometheus.CounterVec
	resolutionsTotal  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Rate limiting metrics
	rateLimitBlocks *prometheus.CounterVec

	// Registry
	registry *prometheus.Registry

	// HTTP server
	server *http.Server
	logger *slog.Logger
}

// NewPrometheusMetrics creates a new Prometheus metrics collector
func NewPrometheusMetrics(logger *slog.Logger) *PrometheusMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	pm.initResolverMetrics()
	pm.initHTTPMetrics()
	pm.initRateLimitMetrics()

	pm.registerMetrics()
	return pm
}

// initResolverMetrics initializes time zone resolver metrics
func (pm *PrometheusMetrics) initResolverMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_probes_total",
			Help: "Total number of transition probes",
		},
		[]string{"zone"},
	)

	pm.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_resolutions_total",
			Help: "Total number of civil time resolutions by category",
		},
		[]string{"category"},
	)

	pm.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)

	pm.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tz_operation_duration_seconds",
			Help:    "Time zone operation duration in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"operation"},
	)
}

// initHTTPMetrics initializes HTTP-related metrics
func (pm *PrometheusMetrics) initHTTPMetrics() {
	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	pm.httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)
}

// initRateLimitMetrics initializes rate limiting metrics
func (pm *PrometheusMetrics) initRateLimitMetrics() {
	pm.rateLimitBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_blocks_total",
			Help: "Total number of requests blocked by rate limiting",
		},
		[]string{"endpoint"},
	)
}

// registerMetrics registers all metrics with the registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.probesTotal,
		pm.resolutionsTotal,
		pm.errorsTotal,
		pm.operationDuration,
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.httpRequestsInFlight,
		pm.rateLimitBlocks,
	)
}

// RegisterCache exports the statistics of a cache as
// <name>_hits_total, <name>_misses_total, <name>_evictions_total and
// <name>_size.
func (pm *PrometheusMetrics) RegisterCache(name string, stats CacheStatsFunc) {
	pm.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name + "_hits_total",
			Help: "Total number of cache hits",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name + "_misses_total",
			Help: "Total number of cache misses",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name + "_evictions_total",
			Help: "Total number of cache evictions",
		}, func() float64 { return float64(stats().Evictions) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name + "_size",
			Help: "Current number of items in cache",
		}, func() float64 { return float64(stats().Size) }),
	)
}

// Probed implements tz.Observer.
func (pm *PrometheusMetrics) Probed(zone string) {
	pm.probesTotal.WithLabelValues(zone).Inc()
}

// Resolved implements tz.Observer.
func (pm *PrometheusMetrics) Resolved(_ string, c tz.Category) {
	pm.resolutionsTotal.WithLabelValues(c.String()).Inc()
}

// RecordError implements errors.Recorder.
func (pm *PrometheusMetrics) RecordError(kind string) {
	pm.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordOperation records the duration of a time zone operation
func (pm *PrometheusMetrics) RecordOperation(operation string, duration time.Duration) {
	pm.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	pm.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitBlock records a rate limit block
func (pm *PrometheusMetrics) RecordRateLimitBlock(endpoint string) {
	pm.rateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an http.Handler serving the registry
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Start starts a dedicated Prometheus metrics server
func (pm *PrometheusMetrics) Start(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pm.Handler())

	pm.server = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout, // Protection against Slowloris attack
	}

	pm.logger.Info("Starting Prometheus metrics server", "port", port)
	return pm.server.ListenAndServe()
}

// Stop stops the Prometheus metrics server
func (pm *PrometheusMetrics) Stop(ctx context.Context) error {
	if pm.server != nil {
		return pm.server.Shutdown(ctx)
	}
	return nil
}

// PrometheusMiddleware creates a middleware that records Prometheus metrics.
// route maps a request to its endpoint label so that zone names do not end
// up as label values.
func PrometheusMiddleware(metrics *PrometheusMetrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			metrics.httpRequestsInFlight.Inc()
			defer metrics.httpRequestsInFlight.Dec()

			// Create a response writer that captures the status code
			rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			metrics.RecordHTTPRequest(r.Method, route(r), rw.StatusCode, time.Since(start))
		})
	}
}
