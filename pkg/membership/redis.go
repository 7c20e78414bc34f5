package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDirectory keeps one hash per cluster, field = incarnation id,
// value = JSON encoded entry.
type RedisDirectory struct {
	client *redis.Client
	now    func() time.Time
}

var _ Directory = (*RedisDirectory)(nil)

// NewRedisDirectory returns a directory on client. The directory owns client.
func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client, now: time.Now}
}

func clusterKey(clusterID string) string {
	return "silo:membership:" + clusterID
}

func (d *RedisDirectory) Join(ctx context.Context, e Entry) error {
	key := clusterKey(e.Identity.ClusterID)
	id := e.Identity.ID()

	err := d.client.Watch(ctx, func(tx *redis.Tx) error {
		all, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if _, ok := all[id]; ok {
			return fmt.Errorf("%s: %w", id, ErrAlreadyJoined)
		}

		updates := map[string]any{}
		for field, raw := range all {
			var old Entry
			if err := json.Unmarshal([]byte(raw), &old); err != nil {
				return fmt.Errorf("decoding member %s: %w", field, err)
			}
			if old.Identity.SiloAddress == e.Identity.SiloAddress &&
				old.Identity.Generation < e.Identity.Generation &&
				old.Status != StatusDead {
				old.Status = StatusDead
				b, err := json.Marshal(old)
				if err != nil {
					return err
				}
				updates[field] = string(b)
			}
		}
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		updates[id] = string(b)

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, updates)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("joining as %s: %w", id, err)
	}
	return nil
}

// update applies fn to the entry of id under optimistic locking.
func (d *RedisDirectory) update(ctx context.Context, id SiloIdentity, fn func(*Entry)) error {
	key := clusterKey(id.ClusterID)
	return d.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id.ID()).Result()
		if errors.Is(err, redis.Nil) {
			return ErrUnknownSilo
		}
		if err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return fmt.Errorf("decoding member %s: %w", id.ID(), err)
		}
		fn(&e)
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, id.ID(), string(b))
			return nil
		})
		return err
	}, key)
}

func (d *RedisDirectory) UpdateStatus(ctx context.Context, id SiloIdentity, status Status) error {
	err := d.update(ctx, id, func(e *Entry) {
		e.Status = status
		e.IAmAliveTime = d.now().UTC()
	})
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", id.ID(), err)
	}
	return nil
}

func (d *RedisDirectory) Heartbeat(ctx context.Context, id SiloIdentity) error {
	err := d.update(ctx, id, func(e *Entry) {
		e.IAmAliveTime = d.now().UTC()
	})
	if err != nil {
		return fmt.Errorf("heartbeat of %s: %w", id.ID(), err)
	}
	return nil
}

func (d *RedisDirectory) Members(ctx context.Context, clusterID string) ([]Entry, error) {
	all, err := d.client.HGetAll(ctx, clusterKey(clusterID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", clusterID, err)
	}
	out := make([]Entry, 0, len(all))
	for field, raw := range all {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding member %s: %w", field, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Identity, out[j].Identity
		if a.SiloAddress != b.SiloAddress {
			return a.SiloAddress < b.SiloAddress
		}
		return a.Generation < b.Generation
	})
	return out, nil
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
