// Package timeutil provides parsing and formatting of UTC and civil instants
// for the HTTP API
package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/atlet99/tzresolve/internal/tz"
)

// CivilFormat is the layout of civil instants: an ISO 8601 local date and
// time with an optional fraction of up to nine digits and no offset
const CivilFormat = "2006-01-02T15:04:05.999999999"

// supportedRange describes the years instants can represent
const supportedRange = "1677-09-21 to 2262-04-11"

// civilLayouts are accepted by ParseCivil in order
var civilLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses an RFC 3339 timestamp into a UTC instant. The
// timestamp must carry an offset or Z and lie within the supported range.
func ParseInstant(s string) (tz.SysInstant, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid RFC 3339 timestamp %q", s)
	}
	at := tz.SysFromTime(t)
	if at.IsMin() || at.IsMax() {
		return 0, fmt.Errorf("timestamp %q is outside the supported range %s", s, supportedRange)
	}
	return at, nil
}

// FormatInstant formats a UTC instant as RFC 3339 with nanoseconds.
// The sentinels format as an empty string.
func FormatInstant(s tz.SysInstant) string {
	if s.IsMin() || s.IsMax() {
		return ""
	}
	return s.Time().Format(time.RFC3339Nano)
}

// ParseCivil parses a civil date and time within the supported range.
// Offsets and zone designators are rejected since a civil instant is not
// tied to any zone.
func ParseCivil(s string) (tz.CivilInstant, error) {
	s = strings.TrimSpace(s)
	for _, layout := range civilLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		civil := tz.CivilFromTime(t)
		if civil.Saturated() {
			return 0, fmt.Errorf("civil time %q is outside the supported range %s", s, supportedRange)
		}
		return civil, nil
	}
	return 0, fmt.Errorf("invalid civil time %q, expected YYYY-MM-DDTHH:MM:SS[.fffffffff]", s)
}

// FormatCivil formats a civil instant using CivilFormat
func FormatCivil(c tz.CivilInstant) string {
	return c.Time().Format(CivilFormat)
}

// FormatOffset formats an offset from UTC as ±HH:MM, with seconds
// appended when they are not zero
func FormatOffset(d time.Duration) string {
	sign := '+'
	if d < 0 {
		sign = '-'
		d = -d
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if s != 0 {
		return fmt.Sprintf("%c%02d:%02d:%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%c%02d:%02d", sign, h, m)
}
