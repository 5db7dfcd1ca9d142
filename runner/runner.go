// Package runner selects and wires the process run modes: worker,
// scheduler, web and migrate.
package runner

import (
	"context"
	"errors"
	"flag"
	"sync"

	"github.com/laikahq/sync-engine/config"
	"github.com/laikahq/sync-engine/tlmt"
	"github.com/laikahq/sync-engine/tlmt/gonoop"
	"github.com/laikahq/sync-engine/tlmt/goposthog"
)

// Run modes.
const (
	RunModeWorker = iota + 1
	RunModeScheduler
	RunModeWeb
	RunModeMigrate
)

var ErrInvalidRunMode = errors.New("invalid run mode")

// Runner is one process personality.
type Runner interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options are the command line selections layered on top of the
// environment config.
type Options struct {
	RunMode       int
	Addr          string
	MigrationsDir string
}

// ParseOptions reads the command line.
func ParseOptions() (*Options, error) {
	var (
		mode          string
		addr          string
		migrationsDir string
	)

	flag.StringVar(&mode, "mode", "worker", "run mode: worker, scheduler, web or migrate")
	flag.StringVar(&addr, "addr", "", "listen address for web mode (overrides LAIKA_LISTEN_ADDR)")
	flag.StringVar(&migrationsDir, "migrations", "", "migrations directory for migrate mode")
	flag.Parse()

	opts := &Options{Addr: addr, MigrationsDir: migrationsDir}

	switch mode {
	case "worker":
		opts.RunMode = RunModeWorker
	case "scheduler":
		opts.RunMode = RunModeScheduler
	case "web":
		opts.RunMode = RunModeWeb
	case "migrate":
		opts.RunMode = RunModeMigrate
	default:
		return nil, ErrInvalidRunMode
	}

	return opts, nil
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

// Telemetry returns the process-wide telemetry backend: PostHog when an
// API key is configured, a no-op otherwise.
func Telemetry(cfg *config.Config) tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if cfg.DisableTelemetry || cfg.PostHogAPIKey == "" {
			telemetry = gonoop.New()
			return
		}

		backend, err := goposthog.New(cfg.PostHogAPIKey, "https://us.i.posthog.com")
		if err != nil {
			telemetry = gonoop.New()
			return
		}
		telemetry = backend
	})

	return telemetry
}
