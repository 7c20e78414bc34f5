package membership

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxHeartbeatFailures is how many heartbeats in a row may fail before
// the silo gives up on its membership.
const DefaultMaxHeartbeatFailures = 3

// Heartbeater periodically refreshes the IAmAlive time of a member.
type Heartbeater struct {
	dir         Directory
	identity    SiloIdentity
	interval    time.Duration
	maxFailures int
}

// Run beats until ctx is done. It returns an error once maxFailures beats in
// a row failed.
func (h *Heartbeater) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := h.dir.Heartbeat(ctx, h.identity); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			log.Warnw("heartbeat failed", "silo", h.identity.ID(), "failures", failures, "error", err)
			if failures >= h.maxFailures {
				return fmt.Errorf("membership heartbeat failed %d times in a row: %w", failures, err)
			}
			continue
		}
		failures = 0
	}
}
