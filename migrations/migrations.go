// Package migrations manages the schema of the remote authorization source.
package migrations

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/Gartalgart/cri-novadis/internal/config"
)

// Manager runs schema migrations against the configured database.
type Manager struct {
	cfg    config.DatabaseConfig
	logger *zap.Logger
}

// NewManager creates a new migration Manager.
func NewManager(cfg config.DatabaseConfig, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

func (m *Manager) newMigrator() (*migrate.Migrate, error) {
	databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(m.cfg.User), url.QueryEscape(m.cfg.Password),
		m.cfg.Host, m.cfg.Port, m.cfg.DBName, m.cfg.SSLMode)

	migrator, err := migrate.New(fmt.Sprintf("file://%s", m.cfg.MigrationsPath), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return migrator, nil
}

// MigrateUp applies all pending migrations.
func (m *Manager) MigrateUp() error {
	migrator, err := m.newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close()

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		m.logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply")
	} else {
		m.logger.Info("Migrations applied successfully")
	}
	return nil
}

// MigrateDown rolls back all migrations.
func (m *Manager) MigrateDown() error {
	migrator, err := m.newMigrator()
	if err != nil {
		return err
	}
	defer migrator.Close()

	err = migrator.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		m.logger.Error("Failed to rollback migrations", zap.Error(err))
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// Version returns the current migration version and whether it is dirty.
func (m *Manager) Version() (uint, bool, error) {
	migrator, err := m.newMigrator()
	if err != nil {
		return 0, false, err
	}
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}
