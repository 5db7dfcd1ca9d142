package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/config"
	"github.com/laikahq/sync-engine/runner"
	"github.com/laikahq/sync-engine/runner/migraterunner"
	"github.com/laikahq/sync-engine/runner/schedulerrunner"
	"github.com/laikahq/sync-engine/runner/webrunner"
	"github.com/laikahq/sync-engine/runner/workerrunner"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	opts, err := runner.ParseOptions()
	if err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	instance, err := buildRunner(ctx, opts, cfg, logger)
	if err != nil {
		return err
	}
	defer instance.Close(context.Background())
	defer runner.Telemetry(cfg).Close()

	return instance.Run(ctx)
}

func buildRunner(ctx context.Context, opts *runner.Options, cfg *config.Config, logger *zap.Logger) (runner.Runner, error) {
	if opts.RunMode == runner.RunModeMigrate {
		return migraterunner.New(cfg, opts.MigrationsDir, logger)
	}

	engine, err := runner.BuildEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	switch opts.RunMode {
	case runner.RunModeWorker:
		return workerrunner.New(engine)
	case runner.RunModeScheduler:
		return schedulerrunner.New(engine)
	case runner.RunModeWeb:
		return webrunner.New(engine, opts.Addr)
	default:
		return nil, runner.ErrInvalidRunMode
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
