package tz

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to test for them.
var (
	// ErrBackendUnavailable is returned when the calendar backend could not
	// be initialized. It is permanent for the life of the process.
	ErrBackendUnavailable = errors.New("calendar backend unavailable")
	// ErrZoneNotFound is returned when a zone name does not resolve.
	ErrZoneNotFound = errors.New("time zone not found")
	// ErrBackend is returned when a backend call fails for a zone and
	// instant.
	ErrBackend = errors.New("calendar backend error")
	// ErrAmbiguousLocalTime is returned by ToSys under RequireUnique for
	// civil instants inside a fall-back overlap.
	ErrAmbiguousLocalTime = errors.New("ambiguous local time")
	// ErrNonexistentLocalTime is returned by ToSys under RequireUnique for
	// civil instants inside a spring-forward gap.
	ErrNonexistentLocalTime = errors.New("nonexistent local time")
	// ErrInvalidPolicy is returned for unknown Policy values.
	ErrInvalidPolicy = errors.New("invalid disambiguation policy")
	// ErrInstantOutOfRange is returned for instants that only stand for a
	// saturated value and denote no real point in time.
	ErrInstantOutOfRange = errors.New("instant out of range")
)

// BackendError records a failed backend call.
type BackendError struct {
	Op      string
	Zone    string
	Instant SysInstant
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s at %s: %v", e.Op, e.Zone, e.Instant, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error { return e.Err }

// Is makes every BackendError match ErrBackend.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// ZoneError reports a zone name that could not be resolved.
type ZoneError struct {
	Name string
	Err  error
}

func (e *ZoneError) Error() string {
	if e.Err == nil || e.Err == ErrZoneNotFound {
		return fmt.Sprintf("unknown time zone %q", e.Name)
	}
	return fmt.Sprintf("unknown time zone %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ZoneError) Unwrap() error { return e.Err }

// Is makes every ZoneError match ErrZoneNotFound.
func (e *ZoneError) Is(target error) bool { return target == ErrZoneNotFound }

// LocalTimeError is returned by ToSys under RequireUnique when a civil
// instant is not Unique. Kind is ErrAmbiguousLocalTime or
// ErrNonexistentLocalTime.
type LocalTimeError struct {
	Zone       string
	Civil      CivilInstant
	Resolution LocalResolution
	Kind       error
}

func (e *LocalTimeError) Error() string {
	r := e.Resolution
	switch e.Kind {
	case ErrAmbiguousLocalTime:
		return fmt.Sprintf("%s is ambiguous in %s: could be %s or %s",
			e.Civil, e.Zone, r.First.Abbrev, r.Second.Abbrev)
	case ErrNonexistentLocalTime:
		return fmt.Sprintf("%s does not exist in %s: falls in the gap between %s and %s at %s",
			e.Civil, e.Zone, r.First.Abbrev, r.Second.Abbrev, r.First.End)
	}
	return fmt.Sprintf("%s in %s: %v", e.Civil, e.Zone, e.Kind)
}

// Unwrap returns the error kind.
func (e *LocalTimeError) Unwrap() error { return e.Kind }
