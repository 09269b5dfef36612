package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/atlet99/tzresolve/internal/tz"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a health check for a specific component
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Critical    bool                   `json:"critical"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration_ms"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	OverallStatus HealthStatus           `json:"overall_status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version"`
	Checks        map[string]HealthCheck `json:"checks"`
	SystemInfo    map[string]interface{} `json:"system_info"`
}

// HealthChecker interface for implementing health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) (HealthStatus, string, map[string]interface{}, error)
}

type registeredChecker struct {
	checker  HealthChecker
	critical bool
}

// HealthMonitor manages health checks for all components
type HealthMonitor struct {
	logger    *slog.Logger
	checks    map[string]registeredChecker
	results   map[string]HealthCheck
	mu        sync.RWMutex
	version   string
	startTime time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger *slog.Logger, version string) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		logger:    logger,
		checks:    make(map[string]registeredChecker),
		results:   make(map[string]HealthCheck),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterChecker registers a health checker for a component. Critical
// components decide readiness.
func (hm *HealthMonitor) RegisterChecker(name string, checker HealthChecker, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = registeredChecker{checker: checker, critical: critical}
	hm.logger.Info("Registered health checker", "checker", name, "critical", critical)
}

// RunHealthChecks runs all registered health checks
func (hm *HealthMonitor) RunHealthChecks(ctx context.Context) HealthReport {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	report := HealthReport{
		OverallStatus: HealthStatusHealthy,
		Timestamp:     time.Now(),
		Version:       hm.version,
		Checks:        make(map[string]HealthCheck),
		SystemInfo:    hm.collectSystemInfo(),
	}

	for name, rc := range hm.checks {
		start := time.Now()
		status, message, details, err := rc.checker.CheckHealth(ctx)

		check := HealthCheck{
			Name:        name,
			Status:      status,
			Critical:    rc.critical,
			Message:     message,
			Details:     details,
			LastChecked: time.Now(),
			Duration:    time.Since(start),
		}
		if err != nil {
			check.Message = fmt.Sprintf("Health check failed: %v", err)
			check.Status = HealthStatusUnhealthy
		}

		report.Checks[name] = check
		hm.results[name] = check

		switch {
		case check.Status == HealthStatusUnhealthy && rc.critical:
			report.OverallStatus = HealthStatusUnhealthy
		case check.Status != HealthStatusHealthy && report.OverallStatus == HealthStatusHealthy:
			report.OverallStatus = HealthStatusDegraded
		}
	}

	return report
}

// IsReady reports whether every critical component passed its last check
func (hm *HealthMonitor) IsReady() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for name, rc := range hm.checks {
		if !rc.critical {
			continue
		}
		check, ok := hm.results[name]
		if !ok || check.Status == HealthStatusUnhealthy {
			return false
		}
	}
	return true
}

// collectSystemInfo collects system information for health reports
func (hm *HealthMonitor) collectSystemInfo() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"memory": map[string]interface{}{
			"allocated_mb":     m.Alloc / 1024 / 1024,
			"system_memory_mb": m.Sys / 1024 / 1024,
			"gc_count":         m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
		"uptime":     time.Since(hm.startTime).String(),
		"go_version": runtime.Version(),
	}
}

// SimpleHealthChecker provides a basic health checker implementation
type SimpleHealthChecker struct {
	checkFunc func(ctx context.Context) (HealthStatus, string, map[string]interface{}, error)
}

// NewSimpleHealthChecker creates a new simple health checker
func NewSimpleHealthChecker(checkFunc func(ctx context.Context) (HealthStatus, string, map[string]interface{}, error)) *SimpleHealthChecker {
	return &SimpleHealthChecker{checkFunc: checkFunc}
}

// CheckHealth performs the health check
func (s *SimpleHealthChecker) CheckHealth(ctx context.Context) (HealthStatus, string, map[string]interface{}, error) {
	return s.checkFunc(ctx)
}

// BackendState reports the initialization state of a calendar backend.
type BackendState interface {
	State() tz.InitState
}

// BackendHealthChecker checks the calendar backend. An uninitialized
// backend is reported as degraded since it is acquired on first use.
type BackendHealthChecker struct {
	backend BackendState
	// probe, if set, is run once the backend is ready.
	probe func(ctx context.Context) error
}

// NewBackendHealthChecker creates a new backend health checker
func NewBackendHealthChecker(backend BackendState, probe func(ctx context.Context) error) *BackendHealthChecker {
	return &BackendHealthChecker{backend: backend, probe: probe}
}

// CheckHealth checks the backend initialization state
func (c *BackendHealthChecker) CheckHealth(ctx context.Context) (HealthStatus, string, map[string]interface{}, error) {
	state := c.backend.State()
	details := map[string]interface{}{"state": state.String()}

	switch state {
	case tz.Failed:
		return HealthStatusUnhealthy, "Calendar backend failed to initialize", details, nil
	case tz.Uninitialized, tz.Initializing:
		return HealthStatusDegraded, "Calendar backend not initialized yet", details, nil
	}
	if c.probe != nil {
		if err := c.probe(ctx); err != nil {
			return HealthStatusUnhealthy, "Calendar backend probe failed", details, err
		}
	}
	return HealthStatusHealthy, "Calendar backend is ready", details, nil
}

// CacheHealthChecker reports cache statistics
type CacheHealthChecker struct {
	stats CacheStatsFunc
}

// NewCacheHealthChecker creates a new cache health checker
func NewCacheHealthChecker(stats CacheStatsFunc) *CacheHealthChecker {
	return &CacheHealthChecker{stats: stats}
}

// CheckHealth reports the cache statistics. A full cache is degraded.
func (c *CacheHealthChecker) CheckHealth(context.Context) (HealthStatus, string, map[string]interface{}, error) {
	stats := c.stats()
	details := map[string]interface{}{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_rate":  stats.HitRate,
	}
	if stats.MaxSize > 0 && stats.Size >= stats.MaxSize {
		return HealthStatusDegraded, "Cache is full", details, nil
	}
	return HealthStatusHealthy, "Cache is healthy", details, nil
}

// HTTPHealthHandler handles HTTP health check requests
type HTTPHealthHandler struct {
	monitor *HealthMonitor
}

// NewHTTPHealthHandler creates a new HTTP health handler
func NewHTTPHealthHandler(monitor *HealthMonitor) *HTTPHealthHandler {
	return &HTTPHealthHandler{monitor: monitor}
}

// HandleHealth runs all checks and reports the overall health
func (h *HTTPHealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.RunHealthChecks(r.Context())

	statusCode := http.StatusOK
	if report.OverallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, statusCode, report)
}

// HandleReadiness runs all checks and reports whether the critical
// components are usable
func (h *HTTPHealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.RunHealthChecks(r.Context())

	critical := make([]string, 0, len(report.Checks))
	for name, check := range report.Checks {
		if check.Critical {
			critical = append(critical, name)
		}
	}
	sort.Strings(critical)

	ready := h.monitor.IsReady()
	response := map[string]interface{}{
		"ready":    ready,
		"critical": critical,
		"version":  h.monitor.version,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (h *HTTPHealthHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.monitor.logger.Error("Failed to encode health response", "error", err)
	}
}
