package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"ms-gigs/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded Postgres migrations over its own
// connection, which Close releases.
type Migrator struct {
	dsn      string
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewMigrator(dsn string, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Migrator{dsn: dsn, log: log}
}

func (m *Migrator) init() error {
	if m.migrator != nil {
		return nil
	}
	sqldb, err := sql.Open("postgres", m.dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := postgres.WithInstance(sqldb, &postgres.Config{})
	if err != nil {
		sqldb.Close()
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.migrator = migrator
	return nil
}

// Up runs every pending migration. A dirty version is forced clean first.
func (m *Migrator) Up() error {
	if err := m.init(); err != nil {
		return err
	}
	version, dirty, err := m.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		m.log.Warn("ARCHIVE", fmt.Sprintf("migration version %d is dirty, forcing", version))
		if err := m.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}
	if err := m.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, err = m.migrator.Version()
	if err == nil {
		m.log.LogDatabase("MIGRATE", "gig_archives", fmt.Sprintf("schema version %d", version))
	}
	return nil
}

func (m *Migrator) Close() error {
	if m.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := m.migrator.Close()
	m.migrator = nil
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
