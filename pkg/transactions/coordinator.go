package transactions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"

	"github.com/storacha/silo/pkg/storage"
)

var log = logging.Logger("transactions")

// Namespace is the transactional state name the coordinator log lives under.
const Namespace = "tm"

type Status string

const (
	StatusActive    Status = "Active"
	StatusCommitted Status = "Committed"
	StatusAborted   Status = "Aborted"
)

var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrNotActive          = errors.New("transaction is not active")
	ErrStopped            = errors.New("transaction coordinator is stopped")
)

// Record is the coordinator log entry of one transaction.
type Record struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Participants []string  `json:"participants,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	ResolvedAt   time.Time `json:"resolvedAt,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// sequence ids of the two log writes a transaction makes
const (
	seqBegin    int64 = 1
	seqResolved int64 = 2
)

// Coordinator records transaction outcomes in the transactional state store so
// a restarted silo can resolve what was left in doubt.
type Coordinator struct {
	store   *storage.TransactionalStateStore
	now     func() time.Time
	stopped atomic.Bool
}

func NewCoordinator(store *storage.TransactionalStateStore) *Coordinator {
	return &Coordinator{store: store, now: time.Now}
}

// Begin starts a transaction spanning participants and returns its id.
func (c *Coordinator) Begin(ctx context.Context, participants ...string) (string, error) {
	if c.stopped.Load() {
		return "", ErrStopped
	}
	rec := Record{
		ID:           uuid.NewString(),
		Status:       StatusActive,
		Participants: lo.Uniq(participants),
		StartedAt:    c.now().UTC(),
	}
	if _, err := c.store.Store(ctx, Namespace, rec.ID, "", seqBegin, rec); err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	return rec.ID, nil
}

func (c *Coordinator) Commit(ctx context.Context, id string) error {
	return c.resolve(ctx, id, StatusCommitted, "")
}

func (c *Coordinator) Abort(ctx context.Context, id, reason string) error {
	return c.resolve(ctx, id, StatusAborted, reason)
}

func (c *Coordinator) resolve(ctx context.Context, id string, to Status, reason string) error {
	rec, etag, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != StatusActive {
		return fmt.Errorf("%s is %s: %w", id, rec.Status, ErrNotActive)
	}
	rec.Status = to
	rec.Reason = reason
	rec.ResolvedAt = c.now().UTC()
	if _, err := c.store.Store(ctx, Namespace, id, etag, seqResolved, rec); err != nil {
		return fmt.Errorf("resolving %s as %s: %w", id, to, err)
	}
	log.Debugw("transaction resolved", "id", id, "status", to)
	return nil
}

// Status returns the recorded outcome of a transaction.
func (c *Coordinator) Status(ctx context.Context, id string) (Status, error) {
	rec, _, err := c.load(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

func (c *Coordinator) load(ctx context.Context, id string) (Record, string, error) {
	st, err := c.store.Load(ctx, Namespace, id)
	if err != nil {
		return Record{}, "", fmt.Errorf("loading transaction %s: %w", id, err)
	}
	if st.CommittedSequenceID == 0 {
		return Record{}, "", fmt.Errorf("%s: %w", id, ErrUnknownTransaction)
	}
	var rec Record
	if err := c.store.Serializer().Unmarshal(st.State, &rec); err != nil {
		return Record{}, "", fmt.Errorf("decoding transaction %s: %w", id, err)
	}
	return rec, st.ETag, nil
}

// InDoubt lists the transactions still active in the log, oldest first.
func (c *Coordinator) InDoubt(ctx context.Context) ([]Record, error) {
	all, err := c.store.List(ctx, Namespace)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	var out []Record
	for id, st := range all {
		var rec Record
		if err := c.store.Serializer().Unmarshal(st.State, &rec); err != nil {
			return nil, fmt.Errorf("decoding transaction %s: %w", id, err)
		}
		if rec.Status == StatusActive {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// Recover aborts every transaction left active by a previous incarnation,
// transactions with no recorded commit are presumed aborted.
func (c *Coordinator) Recover(ctx context.Context) (int, error) {
	pending, err := c.InDoubt(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range pending {
		if err := c.Abort(ctx, rec.ID, "coordinator restarted"); err != nil && !errors.Is(err, ErrNotActive) {
			return 0, err
		}
	}
	if len(pending) > 0 {
		log.Infow("aborted in-doubt transactions", "count", len(pending))
	}
	return len(pending), nil
}

// Stop rejects new transactions, resolving existing ones still works.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
}
