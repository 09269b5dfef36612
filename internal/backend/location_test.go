package backend

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlet99/tzresolve/internal/tz"
)

func utc(year int, month time.Month, day, hour int) tz.SysInstant {
	return tz.SysFromTime(time.Date(year, month, day, hour, 0, 0, 0, time.UTC))
}

func newTestLocation(t *testing.T, cfg *LocationConfig) *Location {
	t.Helper()
	b := NewLocation(cfg)
	t.Cleanup(b.Close)
	return b
}

func newTestResolver(t *testing.T) *tz.Resolver {
	b := newTestLocation(t, nil)
	return tz.NewResolver(b, tz.LocatorFunc(func(name string) (string, error) { return name, nil }))
}

func TestLocation_SysInfo(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name string
		zone string
		at   tz.SysInstant
		want tz.Transition
	}{
		{
			name: "Sydney daylight",
			zone: "Australia/Sydney",
			at:   utc(2020, time.January, 15, 0),
			want: tz.Transition{
				Begin:  utc(2019, time.October, 5, 16),
				End:    utc(2020, time.April, 4, 16),
				Offset: 11 * time.Hour,
				Save:   time.Hour,
				Abbrev: "AEDT",
			},
		},
		{
			name: "Sydney standard",
			zone: "Australia/Sydney",
			at:   utc(2020, time.April, 4, 16),
			want: tz.Transition{
				Begin:  utc(2020, time.April, 4, 16),
				End:    utc(2020, time.October, 3, 16),
				Offset: 10 * time.Hour,
				Abbrev: "AEST",
			},
		},
		{
			name: "Los Angeles daylight",
			zone: "America/Los_Angeles",
			at:   utc(2020, time.July, 4, 0),
			want: tz.Transition{
				Begin:  utc(2020, time.March, 8, 10),
				End:    utc(2020, time.November, 1, 9),
				Offset: -7 * time.Hour,
				Save:   time.Hour,
				Abbrev: "PDT",
			},
		},
		{
			name: "Los Angeles standard",
			zone: "America/Los_Angeles",
			at:   utc(2020, time.November, 1, 9),
			want: tz.Transition{
				Begin:  utc(2020, time.November, 1, 9),
				End:    utc(2021, time.March, 14, 10),
				Offset: -8 * time.Hour,
				Abbrev: "PST",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SysInfo(tt.zone, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocation_LocalInfo(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name        string
		zone        string
		civil       tz.CivilInstant
		want        tz.Category
		firstAbbrev string
		secondEnd   tz.SysInstant
	}{
		{"Sydney overlap", "Australia/Sydney", tz.CivilDate(2020, time.April, 5, 2, 30, 0, 0), tz.Ambiguous, "AEDT", utc(2020, time.October, 3, 16)},
		{"Sydney gap", "Australia/Sydney", tz.CivilDate(2020, time.October, 4, 2, 30, 0, 0), tz.Nonexistent, "AEST", utc(2021, time.April, 3, 16)},
		{"Los Angeles gap", "America/Los_Angeles", tz.CivilDate(2020, time.March, 8, 2, 30, 0, 0), tz.Nonexistent, "PST", utc(2020, time.November, 1, 9)},
		{"Los Angeles overlap", "America/Los_Angeles", tz.CivilDate(2020, time.November, 1, 1, 30, 0, 0), tz.Ambiguous, "PDT", utc(2021, time.March, 14, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.LocalInfo(tt.zone, tt.civil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Category)
			assert.Equal(t, tt.firstAbbrev, res.First.Abbrev)
			assert.Equal(t, res.First.End, res.Second.Begin)
			assert.Equal(t, tt.secondEnd, res.Second.End)
		})
	}
}

func TestLocation_UTC(t *testing.T) {
	r := newTestResolver(t)

	lo, err := r.SysInfo("Etc/UTC", tz.MinSysInstant)
	require.NoError(t, err)
	hi, err := r.SysInfo("Etc/UTC", tz.MaxSysInstant-1)
	require.NoError(t, err)

	assert.Equal(t, lo, hi)
	assert.True(t, lo.Begin.IsMin())
	assert.True(t, lo.End.IsMax())
	assert.Equal(t, time.Duration(0), lo.Offset)
	assert.Equal(t, "UTC", lo.Abbrev)
}

func TestLocation_WarTime(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.SysInfo("America/Los_Angeles", utc(1943, time.January, 1, 0))
	require.NoError(t, err)
	assert.True(t, got.IsDaylight())
	assert.Equal(t, -7*time.Hour, got.Offset)
	assert.Equal(t, time.Hour, got.Save)
}

func TestLocation_Extremes(t *testing.T) {
	r := newTestResolver(t)

	for _, zone := range []string{"Australia/Sydney", "America/Los_Angeles", "Europe/Berlin"} {
		lo, err := r.SysInfo(zone, tz.MinSysInstant)
		require.NoError(t, err, zone)
		assert.True(t, lo.Begin.IsMin(), zone)
		assert.True(t, lo.Contains(tz.MinSysInstant), zone)

		hi, err := r.SysInfo(zone, tz.MaxSysInstant-1)
		require.NoError(t, err, zone)
		assert.True(t, hi.Contains(tz.MaxSysInstant-1), zone)
	}
}

func TestLocation_Load(t *testing.T) {
	var calls int
	b := newTestLocation(t, &LocationConfig{
		Load: func(name string) (*time.Location, error) {
			calls++
			return time.LoadLocation(name)
		},
	})

	for _, name := range []string{"", "Local", "Non/Existent", "PDT", "AEST"} {
		_, err := b.Load(name)
		assert.ErrorIs(t, err, tz.ErrZoneNotFound, name)
		assert.False(t, b.Has(name), name)
	}

	require.NoError(t, b.Check("Europe/Berlin"))
	loc, err := b.Load("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, DefaultCacheSize, stats.MaxSize)
	assert.Equal(t, 7, calls)
}

func TestLocation_LoadCachesOnlySuccess(t *testing.T) {
	fail := true
	var calls int
	b := newTestLocation(t, &LocationConfig{
		CacheSize: 4,
		Load: func(name string) (*time.Location, error) {
			calls++
			if fail {
				return nil, errors.New("zoneinfo missing")
			}
			return time.UTC, nil
		},
	})

	_, err := b.Load("Etc/UTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoneinfo missing")

	fail = false
	_, err = b.Load("Etc/UTC")
	require.NoError(t, err)
	_, err = b.Load("Etc/UTC")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLocationHandle_Errors(t *testing.T) {
	b := newTestLocation(t, nil)
	h, err := b.Open("Europe/Berlin")
	require.NoError(t, err)

	_, err = h.IsDaylight()
	assert.Error(t, err)
	_, err = h.RawOffset()
	assert.Error(t, err)
	_, _, err = h.TransitionBoundary(tz.Next)
	assert.Error(t, err)

	require.NoError(t, h.SetInstant(utc(2020, time.June, 1, 0)))
	_, _, err = h.TransitionBoundary(tz.Direction(7))
	assert.Error(t, err)

	std, err := h.DisplayName(false)
	require.NoError(t, err)
	assert.Equal(t, "CET", std)
	dst, err := h.DisplayName(true)
	require.NoError(t, err)
	assert.Equal(t, "CEST", dst)

	require.NoError(t, h.Close())
	assert.Error(t, h.SetInstant(0))
	_, err = h.IsDaylight()
	assert.Error(t, err)
}

func TestLocationHandle_RawAndDSTOffset(t *testing.T) {
	b := newTestLocation(t, nil)
	h, err := b.Open("Europe/Berlin")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.SetInstant(utc(2020, time.July, 1, 0)))
	raw, err := h.RawOffset()
	require.NoError(t, err)
	save, err := h.DSTOffset()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, raw)
	assert.Equal(t, time.Hour, save)

	require.NoError(t, h.SetInstant(utc(2020, time.January, 1, 0)))
	save, err = h.DSTOffset()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), save)
}
