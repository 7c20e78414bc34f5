package membership

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
	"github.com/storacha/silo/pkg/database/gormdb"
	"github.com/storacha/silo/pkg/database/redisdb"
)

var log = logging.Logger("membership")

var (
	ErrAlreadyJoined = errors.New("silo incarnation already joined")
	ErrUnknownSilo   = errors.New("silo is not a member")
)

// Directory is the cluster membership table shared by every silo of a cluster.
type Directory interface {
	// Join registers a new incarnation. Older incarnations at the same
	// address are declared dead.
	Join(ctx context.Context, e Entry) error
	UpdateStatus(ctx context.Context, id SiloIdentity, status Status) error
	// Heartbeat refreshes the IAmAlive time of a member.
	Heartbeat(ctx context.Context, id SiloIdentity) error
	Members(ctx context.Context, clusterID string) ([]Entry, error)
	Close() error
}

// OpenDirectory connects to the directory addressed by the storage connection string.
func OpenDirectory(ctx context.Context, conn database.ConnectionString, pool app.PoolConfig) (Directory, error) {
	log.Debugw("opening membership directory", "store", conn.String())

	switch conn.Kind {
	case database.KindPostgres, database.KindSQLite:
		db, err := gormdb.Open(ctx, conn, gormdb.SchemaName("membership"), pool)
		if err != nil {
			return nil, fmt.Errorf("opening membership directory: %w", err)
		}
		dir, err := NewGormDirectory(ctx, db)
		if err != nil {
			_ = gormdb.Close(db)
			return nil, err
		}
		return dir, nil
	case database.KindRedis:
		client, err := redisdb.New(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("opening membership directory: %w", err)
		}
		return NewRedisDirectory(client), nil
	default:
		return nil, fmt.Errorf("opening membership directory: %w: %s", database.ErrUnsupportedScheme, conn.Kind)
	}
}
