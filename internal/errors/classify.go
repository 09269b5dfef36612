package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/atlet99/tzresolve/internal/tz"
)

// FromTZ converts an error returned by the tz package, or by the layers
// built on it, to a ServiceError. A ServiceError is returned unchanged.
func FromTZ(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var serviceErr *ServiceError
	if stderrors.As(err, &serviceErr) {
		return serviceErr
	}

	var lerr *tz.LocalTimeError
	var zerr *tz.ZoneError
	var berr *tz.BackendError
	switch {
	case stderrors.As(err, &lerr):
		code := ErrCodeAmbiguousLocalTime
		if stderrors.Is(err, tz.ErrNonexistentLocalTime) {
			code = ErrCodeNonexistentLocalTime
		}
		return NewError(code).
			WithMessage(lerr.Error()).
			WithCause(err).
			WithContext("zone", lerr.Zone).
			WithContext("civil", lerr.Civil.String()).
			WithContext("first", lerr.Resolution.First.Abbrev).
			WithContext("second", lerr.Resolution.Second.Abbrev).
			Build()
	case stderrors.As(err, &zerr):
		return NewError(ErrCodeZoneNotFound).
			WithMessage(fmt.Sprintf("Unknown time zone %q", zerr.Name)).
			WithCause(err).
			WithContext("zone", zerr.Name).
			Build()
	case stderrors.Is(err, tz.ErrZoneNotFound):
		return NewError(ErrCodeZoneNotFound).
			WithMessage("Unknown time zone").
			WithCause(err).
			Build()
	case stderrors.Is(err, tz.ErrBackendUnavailable):
		return NewError(ErrCodeBackendUnavailable).
			WithMessage("Calendar backend unavailable").
			WithCause(err).
			Build()
	case stderrors.As(err, &berr):
		return NewError(ErrCodeBackendError).
			WithMessage(fmt.Sprintf("Calendar backend failed during %s", berr.Op)).
			WithCause(err).
			WithContext("zone", berr.Zone).
			WithContext("operation", berr.Op).
			Build()
	case stderrors.Is(err, tz.ErrBackend):
		return NewError(ErrCodeBackendError).
			WithMessage("Calendar backend failed").
			WithCause(err).
			Build()
	case stderrors.Is(err, tz.ErrInvalidPolicy):
		return InvalidParameter("choose", err)
	case stderrors.Is(err, tz.ErrInstantOutOfRange):
		return NewError(ErrCodeInvalidRequest).
			WithMessage("Instant outside the supported range").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return NewError(ErrCodeTimeout).
			WithMessage("Request cancelled before completion").
			WithCause(err).
			Build()
	}

	return NewError(ErrCodeInternalError).
		WithMessage("Internal server error").
		WithCause(err).
		Build()
}

// InvalidParameter creates a structured error for a malformed request
// parameter
func InvalidParameter(name string, cause error) *ServiceError {
	b := NewError(ErrCodeInvalidRequest).
		WithMessage(fmt.Sprintf("Invalid parameter: %s", name)).
		WithContext("parameter", name).
		WithCause(cause)
	if cause != nil {
		b.WithDetails(cause.Error())
	}
	return b.Build()
}

// RateLimited creates a structured error for a rejected request
func RateLimited(retryAfter time.Duration) *ServiceError {
	return NewError(ErrCodeRateLimited).
		WithMessage("Rate limit exceeded").
		WithRetryAfter(retryAfter).
		Build()
}

// NotFound creates a structured error for an unknown route
func NotFound(path string) *ServiceError {
	return NewError(ErrCodeNotFound).
		WithMessage(fmt.Sprintf("No route for %s", path)).
		Build()
}
