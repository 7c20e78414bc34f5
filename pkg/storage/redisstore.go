package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldETag    = "etag"
	fieldPayload = "payload"
	fieldUpdated = "updated"
)

// redisStore keeps each record in a hash and the table's keys in a sorted set
// scored 0, so prefix listing is a lexicographic range.
type redisStore struct {
	client    *redis.Client
	namespace string
}

var _ RecordStore = (*redisStore)(nil)

// NewRedisStore returns a store whose keys live under namespace. The store
// owns client and closes it on Close.
func NewRedisStore(client *redis.Client, namespace string) RecordStore {
	return &redisStore{client: client, namespace: namespace}
}

func (s *redisStore) recordKey(key string) string {
	return s.namespace + ":r:" + key
}

func (s *redisStore) indexKey() string {
	return s.namespace + ":keys"
}

func (s *redisStore) Get(ctx context.Context, key string) (Record, error) {
	vals, err := s.client.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("reading %s/%s: %w", s.namespace, key, err)
	}
	if len(vals) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeHash(key, vals)
}

func decodeHash(key string, vals map[string]string) (Record, error) {
	updated, err := time.Parse(time.RFC3339Nano, vals[fieldUpdated])
	if err != nil {
		return Record{}, fmt.Errorf("parsing update time of %s: %w", key, err)
	}
	return Record{
		Key:       key,
		ETag:      vals[fieldETag],
		Payload:   json.RawMessage(vals[fieldPayload]),
		UpdatedAt: updated,
	}, nil
}

func (s *redisStore) Put(ctx context.Context, key string, payload json.RawMessage, etag string) (string, error) {
	rk := s.recordKey(key)
	next := uuid.NewString()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, rk, fieldETag).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if etag != "" {
				return ErrETagMismatch
			}
		case err != nil:
			return err
		case current != etag:
			return ErrETagMismatch
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			s.write(ctx, p, key, next, payload)
			return nil
		})
		return err
	}, rk)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrETagMismatch
	}
	if err != nil {
		return "", fmt.Errorf("writing %s/%s: %w", s.namespace, key, err)
	}
	return next, nil
}

func (s *redisStore) write(ctx context.Context, p redis.Pipeliner, key, etag string, payload json.RawMessage) {
	p.HSet(ctx, s.recordKey(key),
		fieldETag, etag,
		fieldPayload, string(payload),
		fieldUpdated, time.Now().UTC().Format(time.RFC3339Nano),
	)
	p.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: key})
}

func (s *redisStore) Upsert(ctx context.Context, key string, payload json.RawMessage) (string, error) {
	next := uuid.NewString()
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		s.write(ctx, p, key, next, payload)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upserting %s/%s: %w", s.namespace, key, err)
	}
	return next, nil
}

func (s *redisStore) Delete(ctx context.Context, key string, etag string) error {
	rk := s.recordKey(key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		if etag != "" {
			current, err := tx.HGet(ctx, rk, fieldETag).Result()
			if errors.Is(err, redis.Nil) || (err == nil && current != etag) {
				return ErrETagMismatch
			}
			if err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, rk)
			p.ZRem(ctx, s.indexKey(), key)
			return nil
		})
		return err
	}, rk)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrETagMismatch
	}
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

func (s *redisStore) List(ctx context.Context, prefix string) ([]Record, error) {
	rng := &redis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		rng = &redis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	}
	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s*: %w", s.namespace, prefix, err)
	}

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, err := s.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			// deleted between the range read and the hash read
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
