package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aliasRecorder struct {
	mu    sync.Mutex
	loads []map[string]string
	err   error
}

func (r *aliasRecorder) OnAliasesReload(aliases map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, aliases)
	return r.err
}

func (r *aliasRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loads)
}

func (r *aliasRecorder) last() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads[len(r.loads)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAliasWatcher_Disabled(t *testing.T) {
	w := NewAliasWatcher(nil, testLogger())
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.Equal(t, defaultCheckInterval, w.config.CheckInterval)
}

func TestAliasWatcher_MissingFile(t *testing.T) {
	w := NewAliasWatcher(&HotReloadConfig{
		AliasesFile: filepath.Join(t.TempDir(), "missing"),
	}, testLogger())
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}

func TestAliasWatcher_Reload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "aliases")
	require.NoError(t, os.WriteFile(file, []byte("# site aliases\nHome=Europe/Oslo\n"), 0o600))

	clock := clockwork.NewFakeClock()
	w := NewAliasWatcher(&HotReloadConfig{
		AliasesFile:   file,
		CheckInterval: time.Minute,
		Clock:         clock,
	}, testLogger())
	rec := &aliasRecorder{err: errors.New("ignored")}
	w.RegisterHandler(rec)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Equal(t, 1, rec.count())
	assert.Equal(t, map[string]string{"Home": "Europe/Oslo"}, rec.last())

	// Unchanged file is not reloaded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	content := "Home=America/Los_Angeles\nOffice = Asia/Thimphu\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]string{
		"Home":   "America/Los_Angeles",
		"Office": "Asia/Thimphu",
	}, rec.last())
}

func TestParseAliases(t *testing.T) {
	aliases, err := parseAliases(strings.NewReader("\n# comment\nA=Etc/UTC\n  B = Europe/Oslo  \n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "Etc/UTC", "B": "Europe/Oslo"}, aliases)

	_, err = parseAliases(strings.NewReader("A=Etc/UTC\nnot an alias\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
