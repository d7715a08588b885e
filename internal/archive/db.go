// Package archive keeps a relational summary of every ended gig: headline
// numbers plus per-song votes and played flags.
package archive

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-gigs/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the archive database. driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	var db *bun.DB
	switch driver {
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection so in-memory databases are shared by every query.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the archive tables from the models when they are
// missing. Postgres deployments use Migrator instead.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range []interface{}{(*models.GigArchive)(nil), (*models.ArchivedSong)(nil)} {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	_, err := db.NewCreateIndex().Model((*models.ArchivedSong)(nil)).
		Index("idx_gig_archive_songs_gig").IfNotExists().Column("gig_id").Exec(ctx)
	if err != nil {
		return fmt.Errorf("create song index: %w", err)
	}
	return nil
}
