package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlet99/tzresolve/internal/tz"
)

func TestTable_Add(t *testing.T) {
	tests := []struct {
		name    string
		zone    string
		periods []Period
		wantErr string
	}{
		{
			name:    "single period",
			zone:    "Etc/GMT+3",
			periods: []Period{{Offset: -3 * time.Hour, Abbrev: "-03"}},
		},
		{
			name:    "empty name",
			periods: []Period{{}},
			wantErr: "empty zone name",
		},
		{
			name:    "no periods",
			zone:    "Test/Empty",
			wantErr: "no periods",
		},
		{
			name: "out of order",
			zone: "Test/Order",
			periods: []Period{
				{Abbrev: "A"},
				{Begin: 200, Abbrev: "B"},
				{Begin: 100, Abbrev: "C"},
			},
			wantErr: "does not begin after",
		},
		{
			name: "repeated period",
			zone: "Test/Repeat",
			periods: []Period{
				{Offset: time.Hour, Abbrev: "A"},
				{Begin: 100, Offset: time.Hour, Abbrev: "A"},
			},
			wantErr: "repeats",
		},
		{
			name: "sentinel begin",
			zone: "Test/Sentinel",
			periods: []Period{
				{Abbrev: "A"},
				{Begin: tz.MaxSysInstant, Abbrev: "B"},
			},
			wantErr: "sentinel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTable().Add(tt.zone, tt.periods...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTable_Zones(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Add("Europe/Oslo", Period{Offset: time.Hour, Abbrev: "CET"}))
	require.NoError(t, table.Add("America/Lima", Period{Offset: -5 * time.Hour, Abbrev: "-05"}))

	assert.Equal(t, []string{"America/Lima", "Europe/Oslo"}, table.Zones())
	assert.True(t, table.Has("Europe/Oslo"))
	assert.False(t, table.Has("Europe/Paris"))

	_, err := table.Open("Europe/Paris")
	assert.ErrorIs(t, err, tz.ErrZoneNotFound)
	assert.Equal(t, 0, table.OpenHandles())
}

func TestTableHandle(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Add("Test/Zone",
		Period{Offset: time.Hour, Abbrev: "STD"},
		Period{Begin: 1000, Offset: 2 * time.Hour, Save: time.Hour, Abbrev: "DST"},
		Period{Begin: 2000, Offset: time.Hour, Abbrev: "STD"},
	))

	h, err := table.Open("Test/Zone")
	require.NoError(t, err)
	assert.Equal(t, 1, table.OpenHandles())

	_, err = h.IsDaylight()
	assert.Error(t, err, "no instant set")

	tests := []struct {
		at       tz.SysInstant
		daylight bool
		raw      time.Duration
		prev     tz.SysInstant
		hasPrev  bool
		next     tz.SysInstant
		hasNext  bool
	}{
		{at: tz.MinSysInstant, raw: time.Hour, next: 1000, hasNext: true},
		{at: 999, raw: time.Hour, next: 1000, hasNext: true},
		{at: 1000, daylight: true, raw: time.Hour, prev: 1000, hasPrev: true, next: 2000, hasNext: true},
		{at: 1999, daylight: true, raw: time.Hour, prev: 1000, hasPrev: true, next: 2000, hasNext: true},
		{at: 2000, raw: time.Hour, prev: 2000, hasPrev: true},
		{at: tz.MaxSysInstant, raw: time.Hour, prev: 2000, hasPrev: true},
	}
	for _, tt := range tests {
		require.NoError(t, h.SetInstant(tt.at))
		daylight, err := h.IsDaylight()
		require.NoError(t, err)
		assert.Equal(t, tt.daylight, daylight, "at %s", tt.at)
		raw, err := h.RawOffset()
		require.NoError(t, err)
		assert.Equal(t, tt.raw, raw, "at %s", tt.at)

		prev, ok, err := h.TransitionBoundary(tz.Previous)
		require.NoError(t, err)
		assert.Equal(t, tt.hasPrev, ok, "at %s", tt.at)
		if ok {
			assert.Equal(t, tt.prev, prev, "at %s", tt.at)
		}
		next, ok, err := h.TransitionBoundary(tz.Next)
		require.NoError(t, err)
		assert.Equal(t, tt.hasNext, ok, "at %s", tt.at)
		if ok {
			assert.Equal(t, tt.next, next, "at %s", tt.at)
		}
	}

	require.NoError(t, h.SetInstant(1500))
	name, err := h.DisplayName(false)
	require.NoError(t, err)
	assert.Equal(t, "STD", name)
	name, err = h.DisplayName(true)
	require.NoError(t, err)
	assert.Equal(t, "DST", name)

	require.NoError(t, h.Close())
	assert.Equal(t, 0, table.OpenHandles())
	assert.Error(t, h.Close())
	assert.Error(t, h.SetInstant(0))
}

func TestFixedZone(t *testing.T) {
	table := FixedZone("Etc/GMT-14", "+14", 14*time.Hour)

	h, err := table.Open("Etc/GMT-14")
	require.NoError(t, err)
	defer h.Close()

	tr, err := tz.Probe(h, 0)
	require.NoError(t, err)
	assert.Equal(t, tz.Transition{
		Begin:  tz.MinSysInstant,
		End:    tz.MaxSysInstant,
		Offset: 14 * time.Hour,
		Abbrev: "+14",
	}, tr)
}
