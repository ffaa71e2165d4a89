package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Already being current is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	err := m.m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// Status returns the applied version, or 0 when nothing has been applied.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// RunMigrations opens a migrator, applies pending migrations and closes it.
func RunMigrations(dsn, migrationsPath string) (uint, error) {
	migrator, err := NewMigrator(dsn, migrationsPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return 0, err
	}
	version, _, err := migrator.Status()
	return version, err
}
