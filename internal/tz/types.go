// Package tz resolves UTC offsets and daylight-saving state for named time
// zones and classifies civil (wall clock) timestamps against the offset
// periods of a zone.
//
// The package only depends on a CalendarBackend capability for the raw
// per-instant facts of a zone and on a Locator for zone names. Everything
// else (transition assembly, civil time disambiguation, conversion policies)
// lives here.
package tz

import (
	"fmt"
	"math"
	"time"
)

// SysInstant is an absolute UTC instant in nanoseconds since the Unix epoch.
type SysInstant int64

// CivilInstant is a wall clock reading with no attached offset, in
// nanoseconds since 1970-01-01T00:00:00 of the same (unspecified) clock.
type CivilInstant int64

// Sentinels for transitions that have no earlier or later boundary.
const (
	MinSysInstant SysInstant = math.MinInt64
	MaxSysInstant SysInstant = math.MaxInt64
)

// SysFromTime returns the SysInstant of t. Times outside the representable
// range saturate to the sentinels.
func SysFromTime(t time.Time) SysInstant {
	return SysInstant(saturatedUnixNano(t))
}

// CivilFromTime returns the wall clock reading of t as a CivilInstant. The
// location of t is ignored, only its clock fields are used.
func CivilFromTime(t time.Time) CivilInstant {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return CivilDate(y, mo, d, h, mi, s, t.Nanosecond())
}

// CivilDate returns the CivilInstant for the given wall clock fields. The
// fields are normalized in the same way as time.Date.
func CivilDate(year int, month time.Month, day, hour, minute, sec, nsec int) CivilInstant {
	return CivilInstant(saturatedUnixNano(time.Date(year, month, day, hour, minute, sec, nsec, time.UTC)))
}

func saturatedUnixNano(t time.Time) int64 {
	// UnixNano is undefined outside this range.
	switch {
	case t.Before(time.Unix(0, math.MinInt64)):
		return math.MinInt64
	case t.After(time.Unix(0, math.MaxInt64)):
		return math.MaxInt64
	}
	return t.UnixNano()
}

// Time returns s as a UTC time.Time.
func (s SysInstant) Time() time.Time {
	return time.Unix(0, int64(s)).UTC()
}

// Add returns s+d, saturating at the sentinels.
func (s SysInstant) Add(d time.Duration) SysInstant {
	return SysInstant(addSat(int64(s), int64(d)))
}

// IsMin reports whether s is the "no earlier transition" sentinel.
func (s SysInstant) IsMin() bool { return s == MinSysInstant }

// IsMax reports whether s is the "no later transition" sentinel.
func (s SysInstant) IsMax() bool { return s == MaxSysInstant }

func (s SysInstant) String() string {
	switch s {
	case MinSysInstant:
		return "-inf"
	case MaxSysInstant:
		return "+inf"
	}
	return s.Time().Format(time.RFC3339Nano)
}

// Saturated reports whether c is one of the values that out of range wall
// clock readings saturate to.
func (c CivilInstant) Saturated() bool {
	return c == math.MinInt64 || c == math.MaxInt64
}

// Time returns the clock fields of c in a time.Time with location UTC.
// The location carries no meaning.
func (c CivilInstant) Time() time.Time {
	return time.Unix(0, int64(c)).UTC()
}

// Add returns c+d, saturating at the representable range.
func (c CivilInstant) Add(d time.Duration) CivilInstant {
	return CivilInstant(addSat(int64(c), int64(d)))
}

// AsSys reinterprets the wall clock reading as if it were already UTC. It
// is only meaningful as a first guess when probing a zone.
func (c CivilInstant) AsSys() SysInstant {
	return SysInstant(c)
}

// Sub returns the UTC instant implied by reading c in a period with the
// given total offset.
func (c CivilInstant) Sub(offset time.Duration) SysInstant {
	return SysInstant(addSat(int64(c), -int64(offset)))
}

func (c CivilInstant) String() string {
	return c.Time().Format("2006-01-02T15:04:05.999999999")
}

func addSat(a, b int64) int64 {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return s
}

// Transition is the maximal half-open interval [Begin, End) over which the
// offset, daylight-saving state and abbreviation of a zone are constant.
type Transition struct {
	Begin SysInstant
	End   SysInstant

	// Offset is the total offset from UTC, including Save.
	Offset time.Duration
	// Save is the daylight-saving contribution to Offset, zero when
	// daylight-saving time is not in effect.
	Save time.Duration

	Abbrev string
}

// IsDaylight reports whether daylight-saving time is in effect.
func (t Transition) IsDaylight() bool { return t.Save != 0 }

// Contains reports whether s lies within [t.Begin, t.End).
func (t Transition) Contains(s SysInstant) bool {
	return t.Begin <= s && s < t.End
}

// LocalBegin returns the wall clock reading at t.Begin.
func (t Transition) LocalBegin() CivilInstant {
	return CivilInstant(addSat(int64(t.Begin), int64(t.Offset)))
}

// LocalEnd returns the wall clock reading at t.End.
func (t Transition) LocalEnd() CivilInstant {
	return CivilInstant(addSat(int64(t.End), int64(t.Offset)))
}

// Equal reports whether t and u describe the same period.
func (t Transition) Equal(u Transition) bool {
	return t == u
}

func (t Transition) String() string {
	return fmt.Sprintf("[%s, %s) %s offset=%s save=%s", t.Begin, t.End, t.Abbrev, t.Offset, t.Save)
}

// Category classifies a civil instant against the periods of a zone.
type Category int

const (
	// Unique civil instants map to exactly one UTC instant.
	Unique Category = iota
	// Ambiguous civil instants occur twice, in a fall-back overlap.
	Ambiguous
	// Nonexistent civil instants are skipped by a spring-forward gap.
	Nonexistent
)

var categoryNames = [...]string{
	Unique:      "unique",
	Ambiguous:   "ambiguous",
	Nonexistent: "nonexistent",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	for i, n := range categoryNames {
		if n == string(b) {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("invalid category %q", b)
}

// LocalResolution is the classification of a civil instant.
//
// First and Second are ordered chronologically: for Ambiguous results
// First is the period in effect before the overlap, so that
// civil-First.Offset < civil-Second.Offset. For Nonexistent results First
// ends exactly where the gap begins and Second begins exactly there.
// Second is the zero Transition for Unique results.
type LocalResolution struct {
	Category Category
	First    Transition
	Second   Transition
}

// Policy chooses a UTC instant for a civil instant that is not Unique.
type Policy int

const (
	// EarliestValid picks the earlier of two candidates, or the end of a
	// gap.
	EarliestValid Policy = iota
	// LatestValid picks the later of two candidates, or the end of a gap.
	LatestValid
	// RequireUnique fails for anything but Unique civil instants.
	RequireUnique
)

var policyNames = [...]string{
	EarliestValid: "earliest",
	LatestValid:   "latest",
	RequireUnique: "unique",
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(policyNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolicy, int(p))
	}
	return []byte(policyNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	for i, n := range policyNames {
		if n == string(b) {
			*p = Policy(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidPolicy, b)
}
