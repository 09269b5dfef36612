package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	// Default rate limiting values
	defaultRate  = 10.0 // 10 requests per second
	defaultBurst = 20   // burst of 20 requests

	// Limiters unused for this long are dropped
	defaultIdleTTL = 10 * time.Minute
	// sweepThreshold is the number of limiters above which idle ones are
	// dropped
	sweepThreshold = 1024
)

// HTTPRateLimiter provides rate limiting for HTTP requests
type HTTPRateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	config   *RateLimiterConfig
	clock    clockwork.Clock
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	DefaultRate  float64 // requests per second
	DefaultBurst int     // burst limit
	PerIP        bool    // whether to limit per IP address
	PerEndpoint  bool    // whether to limit per endpoint
	IdleTTL      time.Duration
	Clock        clockwork.Clock
}

// NewHTTPRateLimiter creates a new HTTP rate limiter
func NewHTTPRateLimiter(config *RateLimiterConfig) *HTTPRateLimiter {
	if config == nil {
		config = &RateLimiterConfig{
			DefaultRate:  defaultRate,
			DefaultBurst: defaultBurst,
			PerIP:        true,
			PerEndpoint:  true,
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaultIdleTTL
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &HTTPRateLimiter{
		limiters: make(map[string]*clientLimiter),
		config:   config,
		clock:    clock,
	}
}

// getLimiterKey generates a key for the rate limiter based on configuration
func (rl *HTTPRateLimiter) getLimiterKey(r *http.Request, endpoint string) string {
	key := "global"
	if rl.config.PerEndpoint {
		key = endpoint
	}
	if rl.config.PerIP {
		key += ":" + getClientIP(r)
	}
	return key
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check for X-Forwarded-For header (for proxy scenarios)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	// Check for X-Real-IP header
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getOrCreateLimiter gets or creates a rate limiter for the given key
func (rl *HTTPRateLimiter) getOrCreateLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if cl, exists := rl.limiters[key]; exists {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(rl.limiters) >= sweepThreshold {
		rl.sweep(now)
	}
	cl := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(rl.config.DefaultRate), rl.config.DefaultBurst),
		lastSeen: now,
	}
	rl.limiters[key] = cl
	return cl.limiter
}

// sweep drops limiters that have been idle for longer than IdleTTL.
// The caller must hold rl.mu.
func (rl *HTTPRateLimiter) sweep(now time.Time) {
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.config.IdleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Allow checks if the request to endpoint is allowed. When it is not,
// retryAfter is the time until a token becomes available.
func (rl *HTTPRateLimiter) Allow(r *http.Request, endpoint string) (allowed bool, retryAfter time.Duration) {
	limiter := rl.getOrCreateLimiter(rl.getLimiterKey(r, endpoint))

	now := rl.clock.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Size returns the number of tracked limiters
func (rl *HTTPRateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
