package redisdb

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/redis/go-redis/v9"

	"github.com/storacha/silo/pkg/database"
)

var log = logging.Logger("database/redis")

const pingTimeout = 5 * time.Second

// New connects to the redis server addressed by cs and verifies it answers.
func New(ctx context.Context, cs database.ConnectionString) (*redis.Client, error) {
	if cs.Kind != database.KindRedis {
		return nil, fmt.Errorf("%s is not a redis store", cs.Kind)
	}
	opt, err := redis.ParseURL(cs.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cs, err)
	}
	log.Debugw("connected to redis", "addr", opt.Addr, "db", opt.DB)
	return client, nil
}
