package membership

import (
	"context"
	"fmt"
	"time"
)

// Member is this silo's presence in the cluster directory.
type Member struct {
	dir      Directory
	identity SiloIdentity
	now      func() time.Time
}

type Option func(*Member)

func WithClock(now func() time.Time) Option {
	return func(m *Member) {
		m.now = now
	}
}

func NewMember(dir Directory, identity SiloIdentity, opts ...Option) *Member {
	m := &Member{
		dir:      dir,
		identity: identity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Member) Identity() SiloIdentity {
	return m.identity
}

// Join registers the silo as Joining. The directory is contacted once, an
// unreachable directory is reported to the caller as is.
func (m *Member) Join(ctx context.Context) error {
	started := m.now().UTC()
	entry := Entry{
		Identity:     m.identity,
		Status:       StatusJoining,
		StartTime:    started,
		IAmAliveTime: started,
	}
	if err := m.dir.Join(ctx, entry); err != nil {
		return fmt.Errorf("joining cluster %s: %w", m.identity.ClusterID, err)
	}
	log.Infow("joined cluster", "silo", m.identity.String(), "status", StatusJoining)
	return nil
}

// SetStatus publishes a new status for this silo.
func (m *Member) SetStatus(ctx context.Context, status Status) error {
	if err := m.dir.UpdateStatus(ctx, m.identity, status); err != nil {
		return err
	}
	log.Infow("membership status changed", "silo", m.identity.ID(), "status", status)
	return nil
}

// Heartbeater returns the IAmAlive loop of this silo.
func (m *Member) Heartbeater(interval time.Duration) *Heartbeater {
	return &Heartbeater{dir: m.dir, identity: m.identity, interval: interval, maxFailures: DefaultMaxHeartbeatFailures}
}
