package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrETagMismatch = errors.New("etag mismatch")
)

// Record is one stored payload and the ETag of its current version.
type Record struct {
	Key       string
	ETag      string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// RecordStore is the table a single storage binding persists into. Writes are
// optimistic: a non-empty etag must match the stored version, an empty etag
// requires the key to be absent.
type RecordStore interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, key string, payload json.RawMessage, etag string) (string, error)
	// Upsert writes unconditionally and returns the new etag.
	Upsert(ctx context.Context, key string, payload json.RawMessage) (string, error)
	// Delete with an empty etag removes the key if present.
	Delete(ctx context.Context, key string, etag string) error
	// List returns the records whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Record, error)
	Close() error
}

// joinKey builds a record key from its parts, the separator is escaped inside parts.
func joinKey(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}

// keyPrefix is the prefix shared by every key starting with parts.
func keyPrefix(parts ...string) string {
	return joinKey(parts...) + "/"
}

func unescapeKeyPart(part string) (string, error) {
	return url.PathUnescape(part)
}
