package tz

import "fmt"

// Probe returns the Transition covering at, reading the facts from h.
// It leaves the current instant of h at at. Any backend failure aborts the
// probe and is returned as a *BackendError.
func Probe(h Handle, at SysInstant) (Transition, error) {
	return probe("", h, at)
}

func probe(zone string, h Handle, at SysInstant) (Transition, error) {
	fail := func(op string, err error) (Transition, error) {
		return Transition{}, &BackendError{Op: op, Zone: zone, Instant: at, Err: err}
	}

	err := h.SetInstant(at)
	if err != nil {
		return fail("set instant", err)
	}

	daylight, err := h.IsDaylight()
	if err != nil {
		return fail("is daylight", err)
	}
	raw, err := h.RawOffset()
	if err != nil {
		return fail("raw offset", err)
	}
	t := Transition{Offset: raw}
	if daylight {
		save, err := h.DSTOffset()
		if err != nil {
			return fail("dst offset", err)
		}
		t.Save = save
		t.Offset += save
	}

	begin, ok, err := h.TransitionBoundary(Previous)
	if err != nil {
		return fail("previous transition", err)
	}
	if !ok {
		begin = MinSysInstant
	}
	end, ok, err := h.TransitionBoundary(Next)
	if err != nil {
		return fail("next transition", err)
	}
	if !ok {
		end = MaxSysInstant
	}
	t.Begin, t.End = begin, end

	// Zero save selects the standard name even when the backend reports
	// daylight.
	t.Abbrev, err = h.DisplayName(t.Save != 0)
	if err != nil {
		return fail("display name", err)
	}

	if !(t.Begin <= at && at < t.End) {
		return fail("validate", fmt.Errorf("transition %s does not cover instant", t))
	}
	return t, nil
}
