package timezone

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/atlet99/tzresolve/internal/backend"
	"github.com/atlet99/tzresolve/internal/monitoring"
	"github.com/atlet99/tzresolve/internal/tz"
)

const losAngeles = "America/Los_Angeles"

func utc(year int, month time.Month, day, hour, minute int) tz.SysInstant {
	return tz.SysFromTime(time.Date(year, month, day, hour, minute, 0, 0, time.UTC))
}

type recordedMetrics struct {
	mu  sync.Mutex
	ops []string
}

func (m *recordedMetrics) RecordOperation(op string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

type fakeDirectory struct {
	zones   []string
	links   map[string]string
	current string
}

func (d *fakeDirectory) Zones() []string          { return d.zones }
func (d *fakeDirectory) Links() map[string]string { return d.links }
func (d *fakeDirectory) Current(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.current, nil
}

type fixture struct {
	service  *Service
	metrics  *recordedMetrics
	recorder *tracetest.SpanRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table := backend.NewTable()
	require.NoError(t, table.Add(losAngeles,
		backend.Period{Offset: -8 * time.Hour, Abbrev: "PST"},
		backend.Period{Begin: utc(2020, time.March, 8, 10, 0), Offset: -7 * time.Hour, Save: time.Hour, Abbrev: "PDT"},
		backend.Period{Begin: utc(2020, time.November, 1, 9, 0), Offset: -8 * time.Hour, Abbrev: "PST"},
	))
	locator := tz.LocatorFunc(func(name string) (string, error) {
		if !table.Has(name) {
			return "", &tz.ZoneError{Name: name}
		}
		return name, nil
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics := &recordedMetrics{}
	service := NewService(Config{
		Resolver: tz.NewResolver(table, locator, tz.WithLogger(logger)),
		Directory: &fakeDirectory{
			zones:   []string{losAngeles},
			links:   map[string]string{"US/Pacific": losAngeles},
			current: losAngeles,
		},
		Tracer:  monitoring.NewTracerWithProvider(provider, "test", logger),
		Metrics: metrics,
		Logger:  logger,
	})
	return &fixture{service: service, metrics: metrics, recorder: recorder}
}

func TestService_SysInfo(t *testing.T) {
	f := newFixture(t)

	tr, err := f.service.SysInfo(context.Background(), losAngeles, utc(2020, time.July, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "PDT", tr.Abbrev)
	assert.Equal(t, utc(2020, time.March, 8, 10, 0), tr.Begin)
	assert.Equal(t, utc(2020, time.November, 1, 9, 0), tr.End)

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tz.sys_info", spans[0].Name())
	assert.Equal(t, []string{OpSysInfo}, f.metrics.ops)
}

func TestService_LocalInfo(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.LocalInfo(context.Background(), losAngeles,
		tz.CivilDate(2020, time.November, 1, 1, 30, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, tz.Ambiguous, res.Category)
	assert.Equal(t, "PDT", res.First.Abbrev)
	assert.Equal(t, "PST", res.Second.Abbrev)

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	var category string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "tz.category" {
			category = kv.Value.AsString()
		}
	}
	assert.Equal(t, "ambiguous", category)
}

func TestService_ToSysAndToLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	civil := tz.CivilDate(2020, time.November, 1, 1, 30, 0, 0)

	earliest, err := f.service.ToSys(ctx, losAngeles, civil, tz.EarliestValid)
	require.NoError(t, err)
	assert.Equal(t, utc(2020, time.November, 1, 8, 30), earliest)

	latest, err := f.service.ToSys(ctx, losAngeles, civil, tz.LatestValid)
	require.NoError(t, err)
	assert.Equal(t, utc(2020, time.November, 1, 9, 30), latest)

	_, err = f.service.ToSys(ctx, losAngeles, civil, tz.RequireUnique)
	assert.ErrorIs(t, err, tz.ErrAmbiguousLocalTime)

	for _, at := range []tz.SysInstant{earliest, latest} {
		back, err := f.service.ToLocal(ctx, losAngeles, at)
		require.NoError(t, err)
		assert.Equal(t, civil, back)
	}

	assert.Equal(t, []string{OpToSys, OpToSys, OpToSys, OpToLocal, OpToLocal}, f.metrics.ops)
}

func TestService_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SysInfo(context.Background(), "Non/Existent", 0)
	assert.ErrorIs(t, err, tz.ErrZoneNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.service.LocalInfo(ctx, losAngeles, 0)
	assert.ErrorIs(t, err, context.Canceled)

	spans := f.recorder.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "Error", span.Status().Code.String())
	}
}

func TestService_Directory(t *testing.T) {
	f := newFixture(t)

	zones, err := f.service.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{losAngeles}, zones)
	assert.Equal(t, losAngeles, f.service.Links()["US/Pacific"])

	current, err := f.service.CurrentZone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, losAngeles, current)

	empty := NewService(Config{Directory: &fakeDirectory{}})
	_, err = empty.Zones()
	assert.ErrorIs(t, err, ErrNoZoneData)
}
