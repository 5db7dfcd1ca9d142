// Package migraterunner applies the database schema migrations and
// exits.
package migraterunner

import (
	"context"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/config"
	"github.com/laikahq/sync-engine/postgres"
)

type Runner struct {
	migrations *postgres.MigrationRunner
}

func New(cfg *config.Config, migrationsDir string, logger *zap.Logger) (*Runner, error) {
	migrations := postgres.NewMigrationRunner(cfg.DatabaseURL, logger)
	if migrationsDir != "" {
		if err := migrations.SetMigrationsDir(migrationsDir); err != nil {
			return nil, err
		}
	}
	return &Runner{migrations: migrations}, nil
}

func (r *Runner) Run(_ context.Context) error {
	return r.migrations.RunMigrations()
}

func (r *Runner) Close(_ context.Context) error {
	return nil
}
