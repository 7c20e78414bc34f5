package database

import (
	"fmt"
	"net/url"
	"time"
)

type JournalMode string

const (
	JournalModeDELETE JournalMode = "DELETE"
	JournalModeWAL    JournalMode = "WAL"
	JournalModeMEMORY JournalMode = "MEMORY"
)

type SyncMode string

const (
	SyncModeOFF    SyncMode = "OFF"
	SyncModeNORMAL SyncMode = "NORMAL"
	SyncModeFULL   SyncMode = "FULL"
)

// Options configures a SQLite connection through pragmas.
type Options struct {
	JournalMode JournalMode
	SyncMode    SyncMode
	// Timeout is the busy timeout, how long a writer waits on a locked database.
	Timeout     time.Duration
	ForeignKeys bool
}

type Option func(*Options)

func WithJournalMode(mode JournalMode) Option {
	return func(o *Options) {
		o.JournalMode = mode
	}
}

func WithSyncMode(mode SyncMode) Option {
	return func(o *Options) {
		o.SyncMode = mode
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

func WithForeignKeyConstraintsEnable(enabled bool) Option {
	return func(o *Options) {
		o.ForeignKeys = enabled
	}
}

// Pragmas renders the options as DSN query parameters understood by the
// pure Go sqlite driver.
func (o Options) Pragmas() url.Values {
	q := url.Values{}
	if o.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", o.JournalMode))
	}
	if o.SyncMode != "" {
		q.Add("_pragma", fmt.Sprintf("synchronous(%s)", o.SyncMode))
	}
	if o.Timeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.Timeout.Milliseconds()))
	}
	if o.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	return q
}
