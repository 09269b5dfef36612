// Package backend provides calendar backends for the tz package.
//
// Location reads the Go runtime time zone database; Table serves explicit
// period lists, which is useful for fixed-offset zones and tests.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/atlet99/tzresolve/internal/cache"
	"github.com/atlet99/tzresolve/internal/tz"
)

const (
	// Default location cache configuration
	DefaultCacheSize = 512
	DefaultCacheTTL  = time.Hour

	// maxWalk bounds the number of neighbouring zone periods inspected when
	// merging identical periods or looking for a standard offset.
	maxWalk = 32
)

var errNoInstant = errors.New("instant not set")

// LocationConfig holds configuration for a Location backend.
type LocationConfig struct {
	CacheSize int
	CacheTTL  time.Duration

	// Load loads a zone by name. It defaults to time.LoadLocation.
	Load func(name string) (*time.Location, error)

	Logger *slog.Logger
}

// Location is a tz.CalendarBackend over the Go runtime time zone database.
// Loaded zones are cached. It is safe for concurrent use.
type Location struct {
	load   func(string) (*time.Location, error)
	cache  *cache.MemoryCache[*time.Location]
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewLocation creates a new Location backend. A nil config uses defaults.
func NewLocation(cfg *LocationConfig) *Location {
	if cfg == nil {
		cfg = &LocationConfig{}
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	load := cfg.Load
	if load == nil {
		load = time.LoadLocation
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Location{
		load:   load,
		cache:  cache.NewMemoryCache[*time.Location](size),
		ttl:    ttl,
		logger: logger,
	}
}

// Check verifies that the time zone database can serve zone.
func (b *Location) Check(zone string) error {
	_, err := b.Load(zone)
	return err
}

// Has reports whether zone can be loaded.
func (b *Location) Has(zone string) bool {
	_, err := b.Load(zone)
	return err == nil
}

// Load returns the *time.Location for zone. Errors match tz.ErrZoneNotFound.
func (b *Location) Load(zone string) (*time.Location, error) {
	// The runtime treats these names specially; they are not zones.
	if zone == "" || zone == "Local" {
		return nil, &tz.ZoneError{Name: zone}
	}
	if loc, ok := b.cache.Get(zone); ok {
		return loc, nil
	}
	v, err, _ := b.group.Do(zone, func() (interface{}, error) {
		loc, err := b.load(zone)
		if err != nil {
			return nil, err
		}
		b.cache.Set(zone, loc, b.ttl)
		b.logger.Debug("loaded time zone", "zone", zone)
		return loc, nil
	})
	if err != nil {
		return nil, &tz.ZoneError{Name: zone, Err: err}
	}
	return v.(*time.Location), nil
}

// Stats returns the location cache statistics.
func (b *Location) Stats() cache.Stats {
	return b.cache.GetStats()
}

// Close releases the location cache.
func (b *Location) Close() {
	b.cache.Close()
}

// Open implements tz.CalendarBackend.
func (b *Location) Open(zone string) (tz.Handle, error) {
	loc, err := b.Load(zone)
	if err != nil {
		return nil, err
	}
	return &locationHandle{loc: loc}, nil
}

// locationHandle is a tz.Handle over a *time.Location. Go's time zone
// database exposes a zone period through time.Time.Zone, IsDST and
// ZoneBounds; the standard offset of a daylight period is found by
// inspecting neighbouring periods.
type locationHandle struct {
	loc *time.Location
	at  time.Time
	set bool
}

// period describes the zone period containing a time.
type period struct {
	name   string
	offset int
	dst    bool
}

func periodOf(t time.Time) period {
	name, offset := t.Zone()
	return period{name: name, offset: offset, dst: t.IsDST()}
}

func (h *locationHandle) SetInstant(s tz.SysInstant) error {
	if h.loc == nil {
		return errors.New("handle closed")
	}
	h.at = time.Unix(0, int64(s)).In(h.loc)
	h.set = true
	return nil
}

func (h *locationHandle) IsDaylight() (bool, error) {
	if !h.set {
		return false, errNoInstant
	}
	return h.at.IsDST(), nil
}

func (h *locationHandle) RawOffset() (time.Duration, error) {
	if !h.set {
		return 0, errNoInstant
	}
	p := periodOf(h.at)
	if !p.dst {
		return seconds(p.offset), nil
	}
	if std, ok := h.nearest(false); ok {
		return seconds(std.offset), nil
	}
	// No standard period anywhere near; assume the conventional hour.
	return seconds(p.offset) - time.Hour, nil
}

func (h *locationHandle) DSTOffset() (time.Duration, error) {
	if !h.set {
		return 0, errNoInstant
	}
	if !h.at.IsDST() {
		return 0, nil
	}
	raw, err := h.RawOffset()
	if err != nil {
		return 0, err
	}
	_, offset := h.at.Zone()
	return seconds(offset) - raw, nil
}

func (h *locationHandle) TransitionBoundary(dir tz.Direction) (tz.SysInstant, bool, error) {
	if !h.set {
		return 0, false, errNoInstant
	}
	cur := periodOf(h.at)
	start, end := h.at.ZoneBounds()
	switch dir {
	case tz.Previous:
		// Periods that differ only in the database's bookkeeping are
		// merged so that the transition is maximal.
		for i := 0; i < maxWalk && !start.IsZero(); i++ {
			before := start.Add(-time.Nanosecond).In(h.loc)
			if periodOf(before) != cur {
				break
			}
			start, _ = before.ZoneBounds()
		}
		return boundary(start)
	case tz.Next:
		for i := 0; i < maxWalk && !end.IsZero(); i++ {
			after := end.In(h.loc)
			if periodOf(after) != cur {
				break
			}
			_, end = after.ZoneBounds()
		}
		return boundary(end)
	default:
		return 0, false, fmt.Errorf("invalid direction %v", dir)
	}
}

func (h *locationHandle) DisplayName(daylight bool) (string, error) {
	if !h.set {
		return "", errNoInstant
	}
	p := periodOf(h.at)
	if p.dst == daylight {
		return p.name, nil
	}
	if q, ok := h.nearest(daylight); ok {
		return q.name, nil
	}
	return p.name, nil
}

func (h *locationHandle) Close() error {
	h.loc = nil
	h.set = false
	return nil
}

// nearest returns the closest period with the given daylight state,
// searching backwards first and then forwards from the current instant.
func (h *locationHandle) nearest(dst bool) (period, bool) {
	start, end := h.at.ZoneBounds()
	for i := 0; i < maxWalk && !start.IsZero(); i++ {
		t := start.Add(-time.Nanosecond).In(h.loc)
		if p := periodOf(t); p.dst == dst {
			return p, true
		}
		start, _ = t.ZoneBounds()
	}
	for i := 0; i < maxWalk && !end.IsZero(); i++ {
		t := end.In(h.loc)
		if p := periodOf(t); p.dst == dst {
			return p, true
		}
		_, end = t.ZoneBounds()
	}
	return period{}, false
}

// boundary converts a ZoneBounds result to a SysInstant. Zero times and
// times beyond the representable range mean there is no boundary.
func boundary(t time.Time) (tz.SysInstant, bool, error) {
	if t.IsZero() {
		return 0, false, nil
	}
	s := tz.SysFromTime(t)
	if s.IsMin() || s.IsMax() {
		return 0, false, nil
	}
	return s, true, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
