package config

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultCheckInterval = 30 * time.Second
)

// HotReloadConfig holds configuration for alias file reloading
type HotReloadConfig struct {
	AliasesFile   string
	CheckInterval time.Duration
	Clock         clockwork.Clock
}

// AliasReloadHandler is notified with the complete alias map each time the
// aliases file changes
type AliasReloadHandler interface {
	OnAliasesReload(aliases map[string]string) error
}

// AliasWatcher polls an aliases file and notifies handlers when it changes.
type AliasWatcher struct {
	config *HotReloadConfig
	logger *slog.Logger
	clock  clockwork.Clock

	mu       sync.Mutex
	handlers []AliasReloadHandler
	modTime  time.Time
	size     int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAliasWatcher creates a new alias file watcher
func NewAliasWatcher(cfg *HotReloadConfig, logger *slog.Logger) *AliasWatcher {
	if cfg == nil {
		cfg = &HotReloadConfig{}
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AliasWatcher{
		config: cfg,
		logger: logger,
		clock:  clock,
	}
}

// RegisterHandler registers a handler for alias reloads
func (w *AliasWatcher) RegisterHandler(handler AliasReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start loads the aliases file once, notifies handlers and begins polling
// for changes. It does nothing when no file is configured.
func (w *AliasWatcher) Start(ctx context.Context) error {
	if w.config.AliasesFile == "" {
		w.logger.Info("Alias hot reload disabled")
		return nil
	}
	if _, err := w.reload(); err != nil {
		return fmt.Errorf("failed to load aliases file: %w", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	w.logger.Info("Starting alias watcher",
		"aliases_file", w.config.AliasesFile,
		"check_interval", w.config.CheckInterval)

	ticker := w.clock.NewTicker(w.config.CheckInterval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if _, err := w.reload(); err != nil {
					w.logger.Error("Error checking aliases file", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the watcher and waits for it to exit
func (w *AliasWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.logger.Info("Stopping alias watcher")
	w.cancel()
	<-w.done
}

// reload reads the aliases file if it changed since the last read and
// notifies the handlers. It reports whether the file was read.
func (w *AliasWatcher) reload() (bool, error) {
	info, err := os.Stat(w.config.AliasesFile)
	if err != nil {
		return false, fmt.Errorf("failed to stat aliases file: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false, nil
	}

	aliases, err := LoadAliasesFile(w.config.AliasesFile)
	if err != nil {
		return false, err
	}
	w.modTime, w.size = info.ModTime(), info.Size()

	w.logger.Info("Aliases file loaded", "file", w.config.AliasesFile, "aliases", len(aliases))
	for _, handler := range w.handlers {
		if err := handler.OnAliasesReload(aliases); err != nil {
			w.logger.Error("Handler failed to process alias reload", "error", err)
		}
	}
	return true, nil
}

// LoadAliasesFile reads alias=target lines from path. Blank lines and lines
// starting with # are ignored.
func LoadAliasesFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseAliases(f)
}

func parseAliases(r io.Reader) (map[string]string, error) {
	aliases := make(map[string]string)
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		alias, target, ok := parseAlias(line)
		if !ok {
			return nil, fmt.Errorf("line %d: expected alias=target, got %q", n, line)
		}
		aliases[alias] = target
	}
	return aliases, sc.Err()
}
