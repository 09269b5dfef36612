// Package main provides the entry point for the tzresolve server.
// The server answers time zone offset and civil time resolution queries over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/atlet99/tzresolve/internal/backend"
	"github.com/atlet99/tzresolve/internal/config"
	"github.com/atlet99/tzresolve/internal/monitoring"
	"github.com/atlet99/tzresolve/internal/server"
	"github.com/atlet99/tzresolve/internal/timezone"
	"github.com/atlet99/tzresolve/internal/tz"
	"github.com/atlet99/tzresolve/internal/version"
	"github.com/atlet99/tzresolve/internal/zones"
	"github.com/atlet99/tzresolve/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second

	// backendCheckZone must be served by any usable time zone database.
	backendCheckZone = "Etc/UTC"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	flags.SetOutput(stdout)
	showVersion := flags.Bool("version", false, "Show version information")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.GetFullVersionInfo())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLoggerWithLevel(cfg.LogLevel, os.Stdout)
	log.Info("Starting tzresolve", "build", version.Get(), "environment", cfg.Environment)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	return a.serve(ctx)
}

// app holds the wired components of the server.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	location  *backend.Location
	directory *zones.Directory
	metrics   *monitoring.PrometheusMetrics
	watcher   *config.AliasWatcher
	tracer    *monitoring.Tracer
	server    *server.Server
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	location := backend.NewLocation(&backend.LocationConfig{
		CacheSize: cfg.LocationCacheSize,
		CacheTTL:  cfg.LocationCacheTTL(),
		Logger:    log,
	})
	lazy := tz.Lazy(func() (tz.CalendarBackend, error) {
		if err := location.Check(backendCheckZone); err != nil {
			return nil, fmt.Errorf("time zone database unusable: %w", err)
		}
		log.Info("Calendar backend initialized")
		return location, nil
	})

	directory, err := zones.New(zones.Config{
		Root:    cfg.ZoneinfoDir,
		Aliases: cfg.ZoneAliases,
		Has:     location.Has,
		Logger:  log,
	})
	if err != nil {
		location.Close()
		return nil, fmt.Errorf("failed to read zoneinfo directory: %w", err)
	}
	log.Info("Zone directory loaded",
		"root", directory.Root(),
		"zones", len(directory.Zones()),
		"links", len(directory.Links()))

	metrics := monitoring.NewPrometheusMetrics(log)
	metrics.RegisterCache("location_cache", location.Stats)

	tracer := monitoring.NewNoopTracer()
	if cfg.TracingEnabled {
		tracer, err = monitoring.NewTracer(&monitoring.TracingConfig{
			ServiceName:    version.Name,
			ServiceVersion: version.GetVersion(),
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			EnableConsole:  cfg.TracingConsole,
			SampleRate:     cfg.TraceSampleRate,
		}, log)
		if err != nil {
			location.Close()
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	resolver := tz.NewResolver(lazy, directory,
		tz.WithLogger(log),
		tz.WithGuardBand(cfg.GuardBand()),
		tz.WithObserver(metrics),
	)
	service := timezone.NewService(timezone.Config{
		Resolver:  resolver,
		Directory: directory,
		Tracer:    tracer,
		Metrics:   metrics,
		Logger:    log,
	})

	// Health checks go to the backend directly so that they stay out of the
	// request metrics.
	health := monitoring.NewHealthMonitor(log, version.GetVersion())
	health.RegisterChecker("calendar_backend", monitoring.NewBackendHealthChecker(lazy,
		func(context.Context) error {
			return checkBackend(lazy)
		}), true)
	health.RegisterChecker("location_cache", monitoring.NewCacheHealthChecker(location.Stats), false)
	health.RegisterChecker("zone_directory", monitoring.NewSimpleHealthChecker(directoryHealth(directory)), false)

	watcher := config.NewAliasWatcher(&config.HotReloadConfig{
		AliasesFile:   cfg.ZoneAliasesFile,
		CheckInterval: time.Duration(cfg.AliasesCheckInterval) * time.Second,
	}, log)
	watcher.RegisterHandler(&aliasMerger{static: cfg.ZoneAliases, directory: directory})

	srv := server.New(server.Options{
		Port:    cfg.Port,
		Service: service,
		Metrics: metrics,
		Health:  health,
		Tracer:  tracer,
		RateLimit: &server.RateLimiterConfig{
			DefaultRate:  float64(cfg.RateLimit),
			DefaultBurst: cfg.RateBurst,
			PerIP:        true,
			PerEndpoint:  true,
		},
		Debug:  strings.EqualFold(cfg.LogLevel, "debug"),
		Logger: log,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		location:  location,
		directory: directory,
		metrics:   metrics,
		watcher:   watcher,
		tracer:    tracer,
		server:    srv,
	}, nil
}

// checkBackend reads the current transition of backendCheckZone straight
// from backend.
func checkBackend(backend tz.CalendarBackend) error {
	h, err := backend.Open(backendCheckZone)
	if err != nil {
		return err
	}
	_, err = tz.Probe(h, tz.SysFromTime(time.Now()))
	if cerr := h.Close(); err == nil {
		err = cerr
	}
	return err
}

// directoryHealth reports a zoneinfo tree without any zones as degraded.
// Lookups then fall back to the calendar backend alone.
func directoryHealth(dir *zones.Directory) func(context.Context) (monitoring.HealthStatus, string, map[string]interface{}, error) {
	return func(context.Context) (monitoring.HealthStatus, string, map[string]interface{}, error) {
		count := len(dir.Zones())
		details := map[string]interface{}{
			"root":  dir.Root(),
			"zones": count,
			"links": len(dir.Links()),
		}
		if count == 0 {
			return monitoring.HealthStatusDegraded, "No zoneinfo tree found", details, nil
		}
		return monitoring.HealthStatusHealthy, "Zone directory loaded", details, nil
	}
}

// serve runs the server until ctx is done and then shuts everything down.
func (a *app) serve(ctx context.Context) error {
	defer a.location.Close()

	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	defer a.watcher.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server forced to shutdown", "error", err)
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Failed to shut down tracer", "error", err)
	}

	a.log.Info("Server exited")
	return nil
}

// aliasMerger layers aliases read from the aliases file over the ones
// configured in the environment.
type aliasMerger struct {
	static    map[string]string
	directory *zones.Directory
}

// OnAliasesReload implements config.AliasReloadHandler.
func (m *aliasMerger) OnAliasesReload(aliases map[string]string) error {
	merged := maps.Clone(m.static)
	if merged == nil {
		merged = make(map[string]string, len(aliases))
	}
	maps.Copy(merged, aliases)
	m.directory.SetAliases(merged)
	return nil
}
