// Package timezone provides the time zone service used by the application.
// It wraps the resolver with tracing and metrics and adds zone enumeration.
package timezone

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atlet99/tzresolve/internal/monitoring"
	"github.com/atlet99/tzresolve/internal/tz"
)

// Operation names used for spans and metrics
const (
	OpSysInfo   = "sys_info"
	OpLocalInfo = "local_info"
	OpToSys     = "to_sys"
	OpToLocal   = "to_local"
)

// ErrNoZoneData is returned by Zones when no zoneinfo tree was found.
var ErrNoZoneData = errors.New("no time zone list available")

// Directory enumerates zones and reports the host zone.
type Directory interface {
	Zones() []string
	Links() map[string]string
	Current(ctx context.Context) (string, error)
}

// Metrics records operation durations.
type Metrics interface {
	RecordOperation(operation string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, time.Duration) {}

// Config configures a Service. Resolver and Directory are required.
type Config struct {
	Resolver  *tz.Resolver
	Directory Directory
	Tracer    *monitoring.Tracer
	Metrics   Metrics
	Logger    *slog.Logger
}

// Service answers time zone queries. It is safe for concurrent use.
type Service struct {
	resolver  *tz.Resolver
	directory Directory
	tracer    *monitoring.Tracer
	metrics   Metrics
	logger    *slog.Logger
}

// NewService creates a new time zone service
func NewService(cfg Config) *Service {
	s := &Service{
		resolver:  cfg.Resolver,
		directory: cfg.Directory,
		tracer:    cfg.Tracer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if s.tracer == nil {
		s.tracer = monitoring.NewNoopTracer()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// finish records the outcome of op.
func (s *Service) finish(op string, start time.Time, err error) {
	s.metrics.RecordOperation(op, time.Since(start))
	if err != nil && !expected(err) {
		s.logger.Warn("time zone operation failed", "operation", op, "error", err)
	}
}

// expected reports whether err is caused by the request rather than by
// the backend.
func expected(err error) bool {
	return errors.Is(err, tz.ErrZoneNotFound) ||
		errors.Is(err, tz.ErrAmbiguousLocalTime) ||
		errors.Is(err, tz.ErrNonexistentLocalTime) ||
		errors.Is(err, tz.ErrInvalidPolicy) ||
		errors.Is(err, tz.ErrInstantOutOfRange) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// SysInfo returns the transition of zone covering the UTC instant at.
func (s *Service) SysInfo(ctx context.Context, zone string, at tz.SysInstant) (t tz.Transition, err error) {
	_, span := s.tracer.StartZoneSpan(ctx, "tz."+OpSysInfo, zone, monitoring.InstantAttr(at.String()))
	defer func(start time.Time) {
		s.finish(OpSysInfo, start, err)
		monitoring.EndSpan(span, err)
	}(time.Now())

	if err = ctx.Err(); err != nil {
		return tz.Transition{}, err
	}
	return s.resolver.SysInfo(zone, at)
}

// LocalInfo classifies the civil instant civil in zone.
func (s *Service) LocalInfo(ctx context.Context, zone string, civil tz.CivilInstant) (res tz.LocalResolution, err error) {
	_, span := s.tracer.StartZoneSpan(ctx, "tz."+OpLocalInfo, zone, monitoring.CivilAttr(civil.String()))
	defer func(start time.Time) {
		if err == nil {
			span.SetAttributes(monitoring.CategoryAttr(res.Category.String()))
		}
		s.finish(OpLocalInfo, start, err)
		monitoring.EndSpan(span, err)
	}(time.Now())

	if err = ctx.Err(); err != nil {
		return tz.LocalResolution{}, err
	}
	return s.resolver.LocalInfo(zone, civil)
}

// ToSys converts civil in zone to a UTC instant using policy p.
func (s *Service) ToSys(ctx context.Context, zone string, civil tz.CivilInstant, p tz.Policy) (at tz.SysInstant, err error) {
	_, span := s.tracer.StartZoneSpan(ctx, "tz."+OpToSys, zone,
		monitoring.CivilAttr(civil.String()), monitoring.PolicyAttr(p.String()))
	defer func(start time.Time) {
		s.finish(OpToSys, start, err)
		monitoring.EndSpan(span, err)
	}(time.Now())

	if err = ctx.Err(); err != nil {
		return 0, err
	}
	return s.resolver.ToSys(zone, civil, p)
}

// ToLocal returns the wall clock reading of zone at the UTC instant at.
func (s *Service) ToLocal(ctx context.Context, zone string, at tz.SysInstant) (civil tz.CivilInstant, err error) {
	_, span := s.tracer.StartZoneSpan(ctx, "tz."+OpToLocal, zone, monitoring.InstantAttr(at.String()))
	defer func(start time.Time) {
		s.finish(OpToLocal, start, err)
		monitoring.EndSpan(span, err)
	}(time.Now())

	if err = ctx.Err(); err != nil {
		return 0, err
	}
	return s.resolver.ToLocal(zone, at)
}

// Zones returns the sorted canonical zone names, excluding links.
func (s *Service) Zones() ([]string, error) {
	zones := s.directory.Zones()
	if len(zones) == 0 {
		return nil, ErrNoZoneData
	}
	return zones, nil
}

// Links returns the link and alias names mapped to their targets.
func (s *Service) Links() map[string]string {
	return s.directory.Links()
}

// CurrentZone returns the host's time zone name.
func (s *Service) CurrentZone(ctx context.Context) (string, error) {
	return s.directory.Current(ctx)
}
