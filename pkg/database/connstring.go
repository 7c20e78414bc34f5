package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind is the family of store a connection string addresses.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindRedis    Kind = "redis"
)

// MemoryDSN is the SQLite DSN of a private in-memory database.
const MemoryDSN = ":memory:"

var ErrUnsupportedScheme = errors.New("unsupported connection string scheme")

// ConnectionString is a parsed storage connection string. The same value is
// shared by the membership directory and every storage binding.
type ConnectionString struct {
	Kind Kind
	// DSN is what the driver for Kind is opened with.
	DSN string
	raw string
}

// ParseConnectionString recognizes
//
//	postgres://... and postgresql://...
//	sqlite:<path>, sqlite::memory:, file:<path>[?query] and :memory:
//	redis://... and rediss://...
func ParseConnectionString(s string) (ConnectionString, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ConnectionString{}, errors.New("connection string is empty")
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		if _, err := url.Parse(s); err != nil {
			return ConnectionString{}, fmt.Errorf("parsing postgres connection string: %w", err)
		}
		return ConnectionString{Kind: KindPostgres, DSN: s, raw: s}, nil
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		if _, err := url.Parse(s); err != nil {
			return ConnectionString{}, fmt.Errorf("parsing redis connection string: %w", err)
		}
		return ConnectionString{Kind: KindRedis, DSN: s, raw: s}, nil
	case strings.HasPrefix(lower, "sqlite:"):
		dsn := strings.TrimPrefix(s[len("sqlite:"):], "//")
		if dsn == "" {
			return ConnectionString{}, errors.New("sqlite connection string has no path")
		}
		return ConnectionString{Kind: KindSQLite, DSN: dsn, raw: s}, nil
	case strings.HasPrefix(lower, "file:"), s == MemoryDSN:
		return ConnectionString{Kind: KindSQLite, DSN: s, raw: s}, nil
	}

	scheme, _, _ := strings.Cut(s, ":")
	return ConnectionString{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
}

// IsMemory reports whether the connection string addresses an in-memory SQLite database.
func (c ConnectionString) IsMemory() bool {
	return c.Kind == KindSQLite && (c.DSN == MemoryDSN || strings.Contains(c.DSN, "mode=memory"))
}

// Redacted returns the connection string with any password masked.
func (c ConnectionString) Redacted() string {
	if c.Kind == KindSQLite {
		return c.raw
	}
	u, err := url.Parse(c.raw)
	if err != nil {
		return string(c.Kind) + "://[redacted]"
	}
	return u.Redacted()
}

// String never includes credentials.
func (c ConnectionString) String() string {
	return c.Redacted()
}
