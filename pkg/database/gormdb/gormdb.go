package gormdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	logging "github.com/ipfs/go-log/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
	"github.com/storacha/silo/pkg/database/postgresdb"
)

var log = logging.Logger("database/gorm")

// printer routes gorm's own logging into the database/gorm subsystem.
type printer struct{}

func (printer) Printf(format string, args ...any) {
	log.Warnf(format, args...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(printer{}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// New opens a SQLite database at path through the pure Go driver. The pool is
// limited to a single connection, an in-memory database only lives as long as
// its connection does.
func New(path string, opts ...database.Option) (*gorm.DB, error) {
	var cfg database.Options
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := path
	if pragmas := cfg.Pragmas().Encode(); pragmas != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + pragmas
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return db, nil
}

// NewPostgres opens a postgres pool scoped to schema and wraps it with gorm.
func NewPostgres(ctx context.Context, connURL, schema string, pool app.PoolConfig) (*gorm.DB, error) {
	sqlDB, err := postgresdb.New(ctx, connURL, schema, pool)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opening gorm on postgres: %w", err)
	}
	return db, nil
}

// Open opens a gorm database for a SQL connection string. For postgres each
// caller gets its own pool and schema, for SQLite schema is ignored.
func Open(ctx context.Context, cs database.ConnectionString, schema string, pool app.PoolConfig) (*gorm.DB, error) {
	switch cs.Kind {
	case database.KindPostgres:
		return NewPostgres(ctx, cs.DSN, schema, pool)
	case database.KindSQLite:
		opts := []database.Option{database.WithTimeout(5 * time.Second)}
		if cs.IsMemory() {
			opts = append(opts, database.WithJournalMode(database.JournalModeMEMORY))
		} else {
			opts = append(opts,
				database.WithJournalMode(database.JournalModeWAL),
				database.WithSyncMode(database.SyncModeNORMAL),
			)
		}
		db, err := New(cs.DSN, opts...)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("pinging sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%s is not a SQL store", cs.Kind)
	}
}

// Close closes the pool underneath db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// SchemaName derives a postgres schema name from a binding or component name.
func SchemaName(name string) string {
	return "silo_" + strings.NewReplacer("-", "_", ":", "_", ".", "_").Replace(strings.ToLower(name))
}
