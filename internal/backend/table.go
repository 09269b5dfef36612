package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlet99/tzresolve/internal/tz"
)

// Period is one entry of a Table zone. A period lasts from Begin until the
// Begin of the following period. The Begin of the first period of a zone is
// ignored; it extends back without limit.
type Period struct {
	Begin  tz.SysInstant
	Offset time.Duration
	Save   time.Duration
	Abbrev string
}

// Table is a tz.CalendarBackend serving explicit period lists. It is safe
// for concurrent use.
type Table struct {
	mu    sync.RWMutex
	zones map[string][]Period
	open  atomic.Int64
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{zones: make(map[string][]Period)}
}

// FixedZone returns a Table holding a single zone with one unbroken offset.
func FixedZone(name, abbrev string, offset time.Duration) *Table {
	t := NewTable()
	// A single period cannot fail validation.
	_ = t.Add(name, Period{Offset: offset, Abbrev: abbrev})
	return t
}

// Add defines the zone name. Periods must be in strictly increasing Begin
// order, and consecutive periods must differ in offset, save or
// abbreviation.
func (t *Table) Add(name string, periods ...Period) error {
	if name == "" {
		return errors.New("empty zone name")
	}
	if len(periods) == 0 {
		return fmt.Errorf("zone %s: no periods", name)
	}
	for i := 1; i < len(periods); i++ {
		prev, p := periods[i-1], periods[i]
		if i > 1 && p.Begin <= prev.Begin {
			return fmt.Errorf("zone %s: period %d does not begin after period %d", name, i, i-1)
		}
		if p.Begin.IsMin() || p.Begin.IsMax() {
			return fmt.Errorf("zone %s: period %d begins at a sentinel", name, i)
		}
		if p.Offset == prev.Offset && p.Save == prev.Save && p.Abbrev == prev.Abbrev {
			return fmt.Errorf("zone %s: period %d repeats period %d", name, i, i-1)
		}
	}
	t.mu.Lock()
	t.zones[name] = append([]Period(nil), periods...)
	t.mu.Unlock()
	return nil
}

// Has reports whether zone is defined.
func (t *Table) Has(zone string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.zones[zone]
	return ok
}

// Zones returns the defined zone names in sorted order.
func (t *Table) Zones() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.zones))
	for n := range t.zones {
		names = append(names, n)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// OpenHandles returns the number of handles that have been opened and not
// yet closed.
func (t *Table) OpenHandles() int {
	return int(t.open.Load())
}

// Open implements tz.CalendarBackend.
func (t *Table) Open(zone string) (tz.Handle, error) {
	t.mu.RLock()
	periods, ok := t.zones[zone]
	t.mu.RUnlock()
	if !ok {
		return nil, &tz.ZoneError{Name: zone}
	}
	t.open.Add(1)
	return &tableHandle{table: t, periods: periods, idx: -1}, nil
}

type tableHandle struct {
	table   *Table
	periods []Period
	idx     int
}

func (h *tableHandle) current() (Period, error) {
	if h.periods == nil {
		return Period{}, errors.New("handle closed")
	}
	if h.idx < 0 {
		return Period{}, errNoInstant
	}
	return h.periods[h.idx], nil
}

func (h *tableHandle) SetInstant(s tz.SysInstant) error {
	if h.periods == nil {
		return errors.New("handle closed")
	}
	// The first period covers everything before the second.
	i := sort.Search(len(h.periods)-1, func(i int) bool {
		return h.periods[i+1].Begin > s
	})
	h.idx = i
	return nil
}

func (h *tableHandle) IsDaylight() (bool, error) {
	p, err := h.current()
	return p.Save != 0, err
}

func (h *tableHandle) RawOffset() (time.Duration, error) {
	p, err := h.current()
	return p.Offset - p.Save, err
}

func (h *tableHandle) DSTOffset() (time.Duration, error) {
	p, err := h.current()
	return p.Save, err
}

func (h *tableHandle) TransitionBoundary(dir tz.Direction) (tz.SysInstant, bool, error) {
	if _, err := h.current(); err != nil {
		return 0, false, err
	}
	switch dir {
	case tz.Previous:
		if h.idx == 0 {
			return 0, false, nil
		}
		return h.periods[h.idx].Begin, true, nil
	case tz.Next:
		if h.idx == len(h.periods)-1 {
			return 0, false, nil
		}
		return h.periods[h.idx+1].Begin, true, nil
	default:
		return 0, false, fmt.Errorf("invalid direction %v", dir)
	}
}

func (h *tableHandle) DisplayName(daylight bool) (string, error) {
	p, err := h.current()
	if err != nil {
		return "", err
	}
	if (p.Save != 0) == daylight {
		return p.Abbrev, nil
	}
	// Nearest period in the requested state, looking backwards first.
	for i := h.idx - 1; i >= 0; i-- {
		if (h.periods[i].Save != 0) == daylight {
			return h.periods[i].Abbrev, nil
		}
	}
	for i := h.idx + 1; i < len(h.periods); i++ {
		if (h.periods[i].Save != 0) == daylight {
			return h.periods[i].Abbrev, nil
		}
	}
	return p.Abbrev, nil
}

func (h *tableHandle) Close() error {
	if h.periods == nil {
		return errors.New("handle already closed")
	}
	h.periods = nil
	h.table.open.Add(-1)
	return nil
}
