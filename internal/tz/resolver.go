package tz

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultGuardBand is the distance from a transition boundary beyond which
// a civil instant cannot be affected by that boundary. Real offset changes
// are a few hours at most.
const DefaultGuardBand = 24 * time.Hour

// Resolver answers transition and civil time queries for named zones.
// It is safe for concurrent use; every query opens its own Handle.
type Resolver struct {
	backend  CalendarBackend
	locator  Locator
	logger   *slog.Logger
	guard    time.Duration
	observer Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithGuardBand sets the guard band around transition boundaries. Values
// that are not positive are ignored.
func WithGuardBand(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.guard = d
		}
	}
}

// WithObserver registers an Observer for probe and resolution events.
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewResolver returns a Resolver using backend for calendar facts and
// locator for zone names.
func NewResolver(backend CalendarBackend, locator Locator, opts ...Option) *Resolver {
	r := &Resolver{
		backend:  backend,
		locator:  locator,
		logger:   slog.Default(),
		guard:    DefaultGuardBand,
		observer: nopObserver{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// open locates and opens zone. The returned name is the canonical zone
// name.
var errNoHandle = errors.New("nil handle")

func (r *Resolver) open(zone string) (string, Handle, error) {
	name, err := r.locator.Locate(zone)
	if err != nil {
		if !errors.Is(err, ErrZoneNotFound) {
			err = &ZoneError{Name: zone, Err: err}
		}
		return "", nil, err
	}
	h, err := r.backend.Open(name)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrZoneNotFound) || errors.Is(err, ErrBackend) {
			return "", nil, err
		}
		return "", nil, &BackendError{Op: "open", Zone: name, Err: err}
	}
	if h == nil {
		return "", nil, &BackendError{Op: "open", Zone: name, Err: errNoHandle}
	}
	return name, h, nil
}

func (r *Resolver) close(zone string, h Handle) {
	err := h.Close()
	if err != nil {
		r.logger.Warn("failed to close calendar handle", "zone", zone, "error", err)
	}
}

func (r *Resolver) probe(zone string, h Handle, at SysInstant) (Transition, error) {
	t, err := probe(zone, h, at)
	if err != nil {
		return Transition{}, err
	}
	r.observer.Probed(zone)
	return t, nil
}

// SysInfo returns the Transition of zone covering the UTC instant at.
// MaxSysInstant is not covered by any transition and is rejected with
// ErrInstantOutOfRange.
func (r *Resolver) SysInfo(zone string, at SysInstant) (Transition, error) {
	if at.IsMax() {
		return Transition{}, fmt.Errorf("%w: %s", ErrInstantOutOfRange, at)
	}
	name, h, err := r.open(zone)
	if err != nil {
		return Transition{}, err
	}
	defer r.close(name, h)
	return r.probe(name, h, at)
}

// ToLocal returns the wall clock reading of zone at the UTC instant at.
func (r *Resolver) ToLocal(zone string, at SysInstant) (CivilInstant, error) {
	t, err := r.SysInfo(zone, at)
	if err != nil {
		return 0, err
	}
	return CivilInstant(addSat(int64(at), int64(t.Offset))), nil
}

// LocalInfo classifies the civil instant civil in zone. At most two probes
// are made. Saturated civil instants are rejected with ErrInstantOutOfRange.
func (r *Resolver) LocalInfo(zone string, civil CivilInstant) (LocalResolution, error) {
	if civil.Saturated() {
		return LocalResolution{}, fmt.Errorf("%w: %s", ErrInstantOutOfRange, civil)
	}
	name, h, err := r.open(zone)
	if err != nil {
		return LocalResolution{}, err
	}
	defer r.close(name, h)

	res, err := r.classify(name, h, civil)
	if err != nil {
		return LocalResolution{}, err
	}
	r.observer.Resolved(name, res.Category)
	r.logger.Debug("resolved local time",
		"zone", name,
		"civil", civil,
		"category", res.Category,
		"first", res.First.Abbrev,
		"second", res.Second.Abbrev,
	)
	return res, nil
}

func (r *Resolver) classify(zone string, h Handle, civil CivilInstant) (LocalResolution, error) {
	// The backend reports the covering period of any instant, so the civil
	// value itself is a safe first guess.
	curr, err := r.probe(zone, h, civil.AsSys())
	if err != nil {
		return LocalResolution{}, err
	}
	currSys := civil.Sub(curr.Offset)

	if !curr.Begin.IsMin() && currSys < curr.Begin.Add(r.guard) {
		prev, err := r.probe(zone, h, curr.Begin-1)
		if err != nil {
			return LocalResolution{}, err
		}
		prevSys := civil.Sub(prev.Offset)
		edge := curr.Begin
		switch {
		case currSys >= edge && prevSys < edge:
			return LocalResolution{Category: Ambiguous, First: prev, Second: curr}, nil
		case currSys >= edge:
			return LocalResolution{Category: Unique, First: curr}, nil
		case prevSys >= edge:
			return LocalResolution{Category: Nonexistent, First: prev, Second: curr}, nil
		default:
			return LocalResolution{Category: Unique, First: prev}, nil
		}
	}

	if !curr.End.IsMax() && currSys > curr.End.Add(-r.guard) {
		next, err := r.probe(zone, h, curr.End+1)
		if err != nil {
			return LocalResolution{}, err
		}
		nextSys := civil.Sub(next.Offset)
		edge := curr.End
		switch {
		case currSys < edge && nextSys >= edge:
			return LocalResolution{Category: Ambiguous, First: curr, Second: next}, nil
		case currSys < edge:
			return LocalResolution{Category: Unique, First: curr}, nil
		case nextSys < edge:
			return LocalResolution{Category: Nonexistent, First: curr, Second: next}, nil
		default:
			return LocalResolution{Category: Unique, First: next}, nil
		}
	}

	return LocalResolution{Category: Unique, First: curr}, nil
}

// ToSys converts civil in zone to a UTC instant, using p to choose between
// candidates when civil is not Unique.
func (r *Resolver) ToSys(zone string, civil CivilInstant, p Policy) (SysInstant, error) {
	if p < EarliestValid || p > RequireUnique {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPolicy, int(p))
	}
	res, err := r.LocalInfo(zone, civil)
	if err != nil {
		return 0, err
	}
	s, err := Choose(res, civil, p)
	var lerr *LocalTimeError
	if errors.As(err, &lerr) {
		lerr.Zone = zone
	}
	return s, err
}

// Choose applies p to a resolution of civil.
func Choose(res LocalResolution, civil CivilInstant, p Policy) (SysInstant, error) {
	if p < EarliestValid || p > RequireUnique {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPolicy, int(p))
	}
	switch res.Category {
	case Unique:
		return civil.Sub(res.First.Offset), nil
	case Ambiguous:
		switch p {
		case EarliestValid:
			return civil.Sub(res.First.Offset), nil
		case LatestValid:
			return civil.Sub(res.Second.Offset), nil
		}
		return 0, &LocalTimeError{Civil: civil, Resolution: res, Kind: ErrAmbiguousLocalTime}
	case Nonexistent:
		if p == RequireUnique {
			return 0, &LocalTimeError{Civil: civil, Resolution: res, Kind: ErrNonexistentLocalTime}
		}
		return res.First.End, nil
	}
	return 0, fmt.Errorf("invalid resolution category %v", res.Category)
}
