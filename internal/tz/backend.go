package tz

import "time"

// CalendarBackend opens per-zone calendar handles.
type CalendarBackend interface {
	// Open returns a handle for the named zone. The caller must Close it.
	Open(zone string) (Handle, error)
}

// Handle is an open calendar for one zone. It holds a current instant that
// is mutated by SetInstant, so a Handle must not be used concurrently.
type Handle interface {
	// SetInstant sets the current instant of the calendar.
	SetInstant(SysInstant) error
	// IsDaylight reports whether daylight-saving time is in effect at the
	// current instant.
	IsDaylight() (bool, error)
	// RawOffset returns the standard offset from UTC at the current
	// instant, excluding any daylight-saving adjustment.
	RawOffset() (time.Duration, error)
	// DSTOffset returns the daylight-saving adjustment at the current
	// instant.
	DSTOffset() (time.Duration, error)
	// TransitionBoundary returns the nearest transition in the given
	// direction from the current instant. Previous is inclusive of the
	// current instant, Next is strictly after it. ok is false when there
	// is no transition in that direction.
	TransitionBoundary(dir Direction) (at SysInstant, ok bool, err error)
	// DisplayName returns the abbreviation used for standard time, or for
	// daylight-saving time if daylight is true.
	DisplayName(daylight bool) (string, error)
	// Close releases the handle.
	Close() error
}

// Direction selects a transition boundary relative to the current instant.
type Direction int

const (
	// Previous selects the most recent transition at or before the
	// current instant.
	Previous Direction = iota
	// Next selects the first transition strictly after the current
	// instant.
	Next
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return "invalid"
	}
}

// Locator resolves zone names to the canonical name understood by a
// CalendarBackend.
type Locator interface {
	// Locate returns the canonical zone name for name, or an error
	// matching ErrZoneNotFound.
	Locate(name string) (string, error)
}

// LocatorFunc is an adapter to allow the use of ordinary functions as
// Locators.
type LocatorFunc func(name string) (string, error)

// Locate returns f(name).
func (f LocatorFunc) Locate(name string) (string, error) { return f(name) }

// Observer receives notifications about resolver activity. Implementations
// must be safe for concurrent use.
type Observer interface {
	// Probed is called after every successful probe.
	Probed(zone string)
	// Resolved is called after every successful civil time
	// classification.
	Resolved(zone string, c Category)
}

type nopObserver struct{}

func (nopObserver) Probed(string)             {}
func (nopObserver) Resolved(string, Category) {}
