package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	applicationName = "transcript-server"
	connectTimeout  = 10 * time.Second
)

// DB is the snapshot database. It holds one table with the last saved
// sequence and is only written by the Snapshotter.
type DB struct {
	Pool *pgxpool.Pool
	dsn  string
	log  zerolog.Logger
}

// Open connects to the snapshot database and applies pending migrations.
// The returned DB is ready for LoadWords and SaveWords.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url %s: %w", maskDSN(dsn), err)
	}

	// One snapshot write at a time plus health checks.
	cfg.MaxConns = 2
	cfg.MinConns = 1
	cfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool %s: %w", maskDSN(dsn), err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", maskDSN(dsn), err)
	}

	db := &DB{Pool: pool, dsn: dsn, log: log}
	version, err := db.applyMigrations()
	if err != nil {
		pool.Close()
		return nil, err
	}

	var stored int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM transcript_words`).Scan(&stored); err != nil {
		pool.Close()
		return nil, fmt.Errorf("count stored words: %w", err)
	}

	log.Info().
		Str("url", maskDSN(dsn)).
		Uint("schema_version", version).
		Int("stored_words", stored).
		Msg("snapshot database ready")

	return db, nil
}

func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// maskDSN hides the password in a URL-form DSN for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func (db *DB) Close() {
	db.log.Info().Msg("closing snapshot database")
	db.Pool.Close()
}
