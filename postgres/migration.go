package postgres

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// MigrationRunner applies the schema migrations under scripts/migrations.
// Files follow {version}_{description}.up.sql / .down.sql; applied
// versions are tracked in schema_migrations.
type MigrationRunner struct {
	dsn           string
	migrationsDir string
	logger        *zap.Logger
	timeout       time.Duration
}

func NewMigrationRunner(dsn string, logger *zap.Logger) *MigrationRunner {
	return &MigrationRunner{
		dsn:     dsn,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// SetMigrationsDir overrides the migration file location.
func (m *MigrationRunner) SetMigrationsDir(dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid directory path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	m.migrationsDir = absPath
	return nil
}

// RunMigrations applies all pending migrations.
func (m *MigrationRunner) RunMigrations() error {
	dir, err := m.findMigrationsDir()
	if err != nil {
		return fmt.Errorf("find migrations directory: %w", err)
	}

	m.logger.Info("applying migrations", zap.String("dir", dir))

	db, err := Open(m.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	migrator.LockTimeout = m.timeout

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("schema is up to date")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	m.logger.Info("migrations applied")
	return nil
}

func (m *MigrationRunner) findMigrationsDir() (string, error) {
	if m.migrationsDir != "" {
		return m.migrationsDir, nil
	}

	candidates := []string{filepath.Join("scripts", "migrations")}
	if workingDir, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(workingDir, "scripts", "migrations"))
	}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "scripts", "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return filepath.Abs(dir)
		}
	}

	return "", fmt.Errorf("no migrations directory found")
}
