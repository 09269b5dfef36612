package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlet99/tzresolve/internal/tz"
)

func TestServiceError_Defaults(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category ErrorCategory
		severity Severity
		status   int
	}{
		{ErrCodeInvalidRequest, CategoryClientError, SeverityLow, http.StatusBadRequest},
		{ErrCodeZoneNotFound, CategoryClientError, SeverityLow, http.StatusNotFound},
		{ErrCodeNotFound, CategoryClientError, SeverityLow, http.StatusNotFound},
		{ErrCodeAmbiguousLocalTime, CategoryConflictError, SeverityLow, http.StatusConflict},
		{ErrCodeNonexistentLocalTime, CategoryConflictError, SeverityLow, http.StatusConflict},
		{ErrCodeRateLimited, CategoryRateLimitError, SeverityMedium, http.StatusTooManyRequests},
		{ErrCodeBackendUnavailable, CategoryBackendError, SeverityCritical, http.StatusServiceUnavailable},
		{ErrCodeBackendError, CategoryBackendError, SeverityHigh, http.StatusBadGateway},
		{ErrCodeTimeout, CategoryTimeoutError, SeverityMedium, http.StatusGatewayTimeout},
		{ErrCodeInternalError, CategoryServerError, SeverityCritical, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewError(tt.code).WithMessage("test").Build()
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.status, err.HTTPStatusCode())
			assert.NotEmpty(t, err.ToErrorResponse().UserMessage)
		})
	}
}

func TestServiceError_Builder(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewError(ErrCodeBackendError).
		WithSeverity(SeverityLow).
		WithMessage("failed").
		WithDetails("details").
		WithCause(cause).
		WithContext("zone", "Europe/Oslo").
		WithRetryAfter(1500 * time.Millisecond).
		Build()

	assert.Equal(t, CategoryBackendError, err.Category)
	assert.Equal(t, SeverityLow, err.Severity)
	assert.True(t, err.IsServerError())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "BACKEND_ERROR: failed (caused by: boom)", err.Error())

	resp := err.ToErrorResponse()
	assert.Equal(t, getUserFriendlyMessage(ErrCodeBackendError), resp.UserMessage)
	assert.Equal(t, "Europe/Oslo", resp.Context["zone"])
	require.NotNil(t, resp.RetryAfter)
	assert.Equal(t, 2, *resp.RetryAfter)

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.Contains(t, string(data), `"error":"BACKEND_ERROR"`)
}

func TestFromTZ(t *testing.T) {
	overlap := tz.LocalResolution{
		Category: tz.Ambiguous,
		First:    tz.Transition{Abbrev: "PDT"},
		Second:   tz.Transition{Abbrev: "PST"},
	}

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"zone error", &tz.ZoneError{Name: "PDT"}, ErrCodeZoneNotFound},
		{"wrapped zone error", fmt.Errorf("lookup: %w", &tz.ZoneError{Name: "AEST"}), ErrCodeZoneNotFound},
		{"zone sentinel", tz.ErrZoneNotFound, ErrCodeZoneNotFound},
		{"ambiguous", &tz.LocalTimeError{Zone: "America/Los_Angeles", Resolution: overlap, Kind: tz.ErrAmbiguousLocalTime}, ErrCodeAmbiguousLocalTime},
		{"nonexistent", &tz.LocalTimeError{Zone: "America/Los_Angeles", Kind: tz.ErrNonexistentLocalTime}, ErrCodeNonexistentLocalTime},
		{"unavailable", fmt.Errorf("%w: no zoneinfo", tz.ErrBackendUnavailable), ErrCodeBackendUnavailable},
		{"backend", &tz.BackendError{Op: "raw offset", Zone: "Europe/Oslo", Err: stderrors.New("x")}, ErrCodeBackendError},
		{"policy", fmt.Errorf("%w: 7", tz.ErrInvalidPolicy), ErrCodeInvalidRequest},
		{"out of range", fmt.Errorf("%w: +inf", tz.ErrInstantOutOfRange), ErrCodeInvalidRequest},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"other", stderrors.New("unexpected"), ErrCodeInternalError},
		{"service error", InvalidParameter("at", nil), ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTZ(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
		})
	}

	assert.Nil(t, FromTZ(nil))

	got := FromTZ(&tz.LocalTimeError{Zone: "America/Los_Angeles", Resolution: overlap, Kind: tz.ErrAmbiguousLocalTime})
	assert.Equal(t, "America/Los_Angeles", got.Context["zone"])
	assert.Equal(t, "PDT", got.Context["first"])
	assert.Equal(t, "PST", got.Context["second"])
}

type recorderFunc func(string)

func (f recorderFunc) RecordError(code string) { f(code) }

func newTestHandler(recorder Recorder, debug bool) *Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(logger, recorder, debug)
}

func TestHandler_HandleError(t *testing.T) {
	var recorded []string
	h := newTestHandler(recorderFunc(func(code string) { recorded = append(recorded, code) }), false)

	req := httptest.NewRequest(http.MethodGet, "/v1/zones/PDT/sys-info?at=now", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, &tz.ZoneError{Name: "PDT"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ErrCodeZoneNotFound, resp.Error)
	assert.Equal(t, "abc", resp.RequestID)
	assert.Equal(t, "/v1/zones/PDT/sys-info", resp.Context["request_path"])
	assert.Equal(t, []string{"ZONE_NOT_FOUND"}, recorded)
}

func TestHandler_RetryAfter(t *testing.T) {
	h := newTestHandler(nil, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/v1/zones", nil), RateLimited(3*time.Second))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestHandler_ErrorMiddleware(t *testing.T) {
	h := newTestHandler(nil, true)
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("zone table corrupted")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/zones", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ErrorMiddleware(panicking).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ErrCodeInternalError, resp.Error)
	assert.Equal(t, "zone table corrupted", resp.Details)
	headers, ok := resp.Context["headers"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", headers["Authorization"])
	assert.Contains(t, resp.Context, "stack_trace")
}

func TestHandler_DebugClientError(t *testing.T) {
	h := newTestHandler(nil, true)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/v1/zones/PDT/sys-info", nil), &tz.ZoneError{Name: "PDT"})

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Context, "headers")
	assert.NotContains(t, resp.Context, "stack_trace", "client errors carry no stack trace")
}

func TestInvalidParameter(t *testing.T) {
	err := InvalidParameter("civil", stderrors.New(`parsing time "x"`))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatusCode())
	assert.Equal(t, "civil", err.Context["parameter"])
	assert.Contains(t, err.Details, "parsing time")
}
