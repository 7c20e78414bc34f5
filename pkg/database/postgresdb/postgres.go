package postgresdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/storacha/silo/pkg/config/app"
)

var log = logging.Logger("database")

// Pool defaults. A silo opens one pool for the membership directory and one
// per storage binding, five pools of five connections at most.
const (
	DefaultMaxOpenConns    = 5
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

// PoolSettings fills the zero fields of cfg with the defaults. Idle
// connections never exceed open ones.
func PoolSettings(cfg app.PoolConfig) app.PoolConfig {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	cfg.MaxIdleConns = min(cfg.MaxIdleConns, cfg.MaxOpenConns)
	return cfg
}

// DSN scopes connURL to schema: search_path points at the schema (public stays
// reachable for built-in functions) and application_name names the pool in
// pg_stat_activity.
func DSN(connURL, schema string) (string, error) {
	if schema == "" {
		return connURL, nil
	}
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parsing connection URL: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	if q.Get("application_name") == "" {
		q.Set("application_name", schema)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// New opens a pgx backed pool for connURL, creates schema when set and
// applies the pool settings. The server is pinged before New returns.
func New(ctx context.Context, connURL, schema string, pool app.PoolConfig) (*sql.DB, error) {
	dsn, err := DSN(connURL, schema)
	if err != nil {
		return nil, err
	}
	pool = PoolSettings(pool)
	log.Debugw("connecting to postgres", "schema", schema, "max_open_conns", pool.MaxOpenConns)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if schema != "" {
		// search_path is already part of every connection of the pool
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}
	return db, nil
}
