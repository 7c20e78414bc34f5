package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Binding names the providers are registered under.
const (
	DefaultProviderName     = "Default"
	TransactionStoreName    = "TransactionStore"
	PubSubStoreProviderName = "PubSubStore"
)

// Wirer binds every storage role to the same backing store and serializer.
// Bindings are opened and closed one at a time by the startup sequence.
type Wirer struct {
	opener        Opener
	serializer    *Serializer
	serviceID     string
	provider      string
	transactional bool

	mu     sync.Mutex
	stores map[Role]RecordStore

	grainState   *GrainStateStore
	reminders    *ReminderTable
	transactions *TransactionalStateStore
	pubsub       *PubSubStore
}

// NewWirer returns a wirer for a service. providerName scopes the pub/sub
// binding, transactional enables the transactional state binding.
func NewWirer(opener Opener, serviceID, providerName string, transactional bool) *Wirer {
	return &Wirer{
		opener:        opener,
		serializer:    NewSerializer(),
		serviceID:     serviceID,
		provider:      providerName,
		transactional: transactional,
		stores:        make(map[Role]RecordStore),
	}
}

// Serializer returns the policy shared by every binding.
func (w *Wirer) Serializer() *Serializer {
	return w.serializer
}

// Bindings returns the bindings in the order they are opened.
func (w *Wirer) Bindings() []Binding {
	bindings := []Binding{
		{Role: RoleGrainState, Name: DefaultProviderName, Table: "grain_state"},
		{Role: RoleReminders, Name: "Reminders", Table: "reminders"},
	}
	if w.transactional {
		bindings = append(bindings, Binding{Role: RoleTransactionalState, Name: TransactionStoreName, Table: "transactional_state"})
	}
	bindings = append(bindings, Binding{Role: RolePubSub, Name: PubSubStoreProviderName, Table: "pubsub_" + tableSuffix(w.provider)})
	return bindings
}

// Open opens the store of b and makes its typed facade available.
func (w *Wirer) Open(ctx context.Context, b Binding) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.stores[b.Role]; ok {
		return fmt.Errorf("%s is already open", b)
	}
	store, err := w.opener.OpenStore(ctx, b)
	if err != nil {
		return err
	}

	switch b.Role {
	case RoleGrainState:
		w.grainState = NewGrainStateStore(store, w.serializer, w.serviceID)
	case RoleReminders:
		w.reminders = NewReminderTable(store, w.serializer, w.serviceID)
	case RoleTransactionalState:
		w.transactions = NewTransactionalStateStore(store, w.serializer, w.serviceID)
	case RolePubSub:
		w.pubsub = NewPubSubStore(store, w.serializer, w.serviceID, w.provider)
	default:
		_ = store.Close()
		return fmt.Errorf("unknown storage role %q", b.Role)
	}
	w.stores[b.Role] = store
	log.Infow("storage binding opened", "binding", b.String(), "table", b.Table)
	return nil
}

// Close closes the store of b. Closing a binding that is not open is a no-op.
func (w *Wirer) Close(b Binding) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	store, ok := w.stores[b.Role]
	if !ok {
		return nil
	}
	delete(w.stores, b.Role)
	switch b.Role {
	case RoleGrainState:
		w.grainState = nil
	case RoleReminders:
		w.reminders = nil
	case RoleTransactionalState:
		w.transactions = nil
	case RolePubSub:
		w.pubsub = nil
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", b, err)
	}
	log.Infow("storage binding closed", "binding", b.String())
	return nil
}

// CloseAll closes every open binding and reports all failures.
func (w *Wirer) CloseAll() error {
	var errs *multierror.Error
	for _, b := range w.Bindings() {
		if err := w.Close(b); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (w *Wirer) GrainState() *GrainStateStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grainState
}

func (w *Wirer) Reminders() *ReminderTable {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reminders
}

func (w *Wirer) TransactionalState() *TransactionalStateStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.transactions
}

func (w *Wirer) PubSub() *PubSubStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pubsub
}

func tableSuffix(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range CamelCase(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, '_', r+('a'-'A'))
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
