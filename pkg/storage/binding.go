package storage

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
	"github.com/storacha/silo/pkg/database/gormdb"
	"github.com/storacha/silo/pkg/database/redisdb"
)

var log = logging.Logger("storage")

// Role is what a storage binding is used for.
type Role string

const (
	RoleGrainState         Role = "grain-state"
	RoleReminders          Role = "reminders"
	RoleTransactionalState Role = "transactional-state"
	RolePubSub             Role = "pubsub"
)

// Binding attaches one storage role to the shared connection string.
type Binding struct {
	Role Role
	// Name is the provider name the binding is registered under.
	Name string
	// Table is the SQL table or redis namespace the binding persists into.
	Table string
}

// StepName is the name of the startup step opening the binding.
func (b Binding) StepName() string {
	return "storage:" + string(b.Role)
}

func (b Binding) String() string {
	return fmt.Sprintf("%s(%s)", b.Role, b.Name)
}

// Opener opens the record store behind a binding. Every binding gets its own
// connection so one can be closed without touching the others.
type Opener interface {
	OpenStore(ctx context.Context, b Binding) (RecordStore, error)
}

// ConnectionOpener opens bindings against a single connection string.
type ConnectionOpener struct {
	conn database.ConnectionString
	pool app.PoolConfig
}

var _ Opener = (*ConnectionOpener)(nil)

func NewConnectionOpener(conn database.ConnectionString, pool app.PoolConfig) *ConnectionOpener {
	return &ConnectionOpener{conn: conn, pool: pool}
}

func (o *ConnectionOpener) OpenStore(ctx context.Context, b Binding) (RecordStore, error) {
	log.Debugw("opening storage binding", "binding", b.String(), "store", o.conn.String())

	switch o.conn.Kind {
	case database.KindPostgres, database.KindSQLite:
		db, err := gormdb.Open(ctx, o.conn, gormdb.SchemaName(string(b.Role)), o.pool)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", b, err)
		}
		store, err := NewGormStore(ctx, db, b.Table)
		if err != nil {
			_ = gormdb.Close(db)
			return nil, fmt.Errorf("opening %s: %w", b, err)
		}
		return store, nil
	case database.KindRedis:
		client, err := redisdb.New(ctx, o.conn)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", b, err)
		}
		return NewRedisStore(client, "silo:"+b.Table), nil
	default:
		return nil, fmt.Errorf("opening %s: %w: %s", b, database.ErrUnsupportedScheme, o.conn.Kind)
	}
}
