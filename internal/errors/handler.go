package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
)

// Recorder receives the code of every error rendered by a Handler.
type Recorder interface {
	RecordError(code string)
}

// Handler provides centralized error handling and response formatting
type Handler struct {
	logger   *slog.Logger
	recorder Recorder
	debug    bool
}

// NewHandler creates a new error handler. recorder may be nil.
func NewHandler(logger *slog.Logger, recorder Recorder, debug bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		recorder: recorder,
		debug:    debug,
	}
}

// HandleError processes and responds to errors with appropriate HTTP status and JSON response
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := h.enhanceWithRequestContext(FromTZ(err), r)

	h.logError(serviceErr, r)

	if h.recorder != nil {
		h.recorder.RecordError(string(serviceErr.Code))
	}

	w.Header().Set("Content-Type", "application/json")
	if serviceErr.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(*serviceErr.RetryAfter)))
	}
	w.WriteHeader(serviceErr.HTTPStatusCode())

	if err := json.NewEncoder(w).Encode(serviceErr.ToErrorResponse()); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

// enhanceWithRequestContext adds request-specific context to ServiceError
func (h *Handler) enhanceWithRequestContext(serviceErr *ServiceError, r *http.Request) *ServiceError {
	if serviceErr.Context == nil {
		serviceErr.Context = make(map[string]interface{})
	}

	serviceErr.Context["request_method"] = r.Method
	serviceErr.Context["request_path"] = r.URL.Path
	if r.URL.RawQuery != "" {
		serviceErr.Context["request_query"] = r.URL.RawQuery
	}

	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		serviceErr.RequestID = requestID
	}

	if h.debug {
		serviceErr.Context["headers"] = sanitizeHeaders(r.Header)
		if serviceErr.IsServerError() {
			serviceErr.Context["stack_trace"] = getStackTrace()
		}
	}

	return serviceErr
}

// logError logs the error with appropriate level and context
func (h *Handler) logError(serviceErr *ServiceError, r *http.Request) {
	attrs := []slog.Attr{
		slog.String("error_code", string(serviceErr.Code)),
		slog.String("error_category", string(serviceErr.Category)),
		slog.String("error_severity", string(serviceErr.Severity)),
		slog.String("error_message", serviceErr.Message),
		slog.String("request_method", r.Method),
		slog.String("request_path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.Int("http_status", serviceErr.HTTPStatusCode()),
	}

	if serviceErr.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", serviceErr.RequestID))
	}
	if serviceErr.Details != "" {
		attrs = append(attrs, slog.String("error_details", serviceErr.Details))
	}
	if serviceErr.Cause != nil {
		attrs = append(attrs, slog.String("underlying_error", serviceErr.Cause.Error()))
	}
	if zone, ok := serviceErr.Context["zone"].(string); ok {
		attrs = append(attrs, slog.String("zone", zone))
	}

	h.logger.LogAttrs(context.Background(), logLevel(serviceErr.Severity), "Request failed", attrs...)
}

// logLevel determines appropriate log level based on error severity
func logLevel(severity Severity) slog.Level {
	switch severity {
	case SeverityCritical, SeverityHigh:
		return slog.LevelError
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// ErrorMiddleware recovers from panics in next and renders them as
// INTERNAL_ERROR responses
func (h *Handler) ErrorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.HandleError(w, r, NewError(ErrCodeInternalError).
					WithSeverity(SeverityCritical).
					WithMessage("Panic occurred during request processing").
					WithDetails(formatPanic(rec)).
					Build())
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// getStackTrace captures stack trace for debugging
func getStackTrace() string {
	const stackTraceBufferSize = 4096
	buf := make([]byte, stackTraceBufferSize)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// sanitizeHeaders removes sensitive headers from logging
func sanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string)
	sensitiveHeaders := map[string]bool{
		"authorization": true,
		"x-api-key":     true,
		"x-auth-token":  true,
		"cookie":        true,
	}

	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = "[REDACTED]"
		} else {
			sanitized[key] = values[0]
		}
	}
	return sanitized
}

// formatPanic formats panic information for logging
func formatPanic(rec interface{}) string {
	switch v := rec.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
