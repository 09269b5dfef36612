package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.2:80", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestHTTPRateLimiter_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewHTTPRateLimiter(&RateLimiterConfig{
		DefaultRate:  2,
		DefaultBurst: 2,
		PerIP:        true,
		PerEndpoint:  true,
		Clock:        clock,
	})

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "192.0.2.1:1000"
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "192.0.2.2:1000"

	for i := 0; i < 2; i++ {
		allowed, _ := rl.Allow(a, "/v1/links")
		assert.True(t, allowed)
	}
	allowed, retryAfter := rl.Allow(a, "/v1/links")
	assert.False(t, allowed)
	assert.Equal(t, 500*time.Millisecond, retryAfter)

	// Rejected requests do not consume tokens.
	clock.Advance(500 * time.Millisecond)
	allowed, _ = rl.Allow(a, "/v1/links")
	assert.True(t, allowed)

	allowed, _ = rl.Allow(b, "/v1/links")
	assert.True(t, allowed, "other clients are not affected")
	allowed, _ = rl.Allow(a, "/v1/zones")
	assert.True(t, allowed, "other endpoints are not affected")
	assert.Equal(t, 3, rl.Size())
}

func TestHTTPRateLimiter_Global(t *testing.T) {
	rl := NewHTTPRateLimiter(&RateLimiterConfig{
		DefaultRate:  1,
		DefaultBurst: 1,
		Clock:        clockwork.NewFakeClock(),
	})
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	allowed, _ := rl.Allow(r, "/v1/links")
	assert.True(t, allowed)
	allowed, _ = rl.Allow(r, "/v1/zones")
	assert.False(t, allowed)
	assert.Equal(t, 1, rl.Size())
}

func TestHTTPRateLimiter_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewHTTPRateLimiter(&RateLimiterConfig{
		DefaultRate:  1,
		DefaultBurst: 1,
		PerIP:        true,
		IdleTTL:      time.Minute,
		Clock:        clock,
	})

	for i := 0; i < sweepThreshold; i++ {
		rl.getOrCreateLimiter(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	assert.Equal(t, sweepThreshold, rl.Size())

	clock.Advance(2 * time.Minute)
	rl.getOrCreateLimiter("fresh")
	assert.Equal(t, 1, rl.Size())
}
