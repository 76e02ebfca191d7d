package database

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// applyMigrations brings the schema up to date and returns its version. The
// migrate library opens its own connection from the DSN; the pool is not used.
func (db *DB) applyMigrations() (uint, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(db.dsn))
	if err != nil {
		return 0, fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			db.log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("closing migrate")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, &MigrationError{err: err}
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, &MigrationError{err: fmt.Errorf("schema version %d is dirty", version)}
	}
	return version, nil
}

// migrateURL rewrites a postgres DSN to the scheme registered by the pgx/v5
// migrate driver.
func migrateURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn
	}
	u.Scheme = "pgx5"
	return u.String()
}

// MigrationError is returned when a migration fails.
type MigrationError struct {
	err error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("schema migration failed: %v\n\nFix the transcript_words table by hand or drop it, then restart transcript-server.", e.err)
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
