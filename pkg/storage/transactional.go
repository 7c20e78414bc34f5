package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStaleSequence is returned when a store would move the committed sequence backwards.
var ErrStaleSequence = errors.New("committed sequence id moves backwards")

// TransactionalState is the committed state of one transactional grain state.
type TransactionalState struct {
	ETag                string          `json:"-"`
	CommittedSequenceID int64           `json:"committedSequenceId"`
	State               json.RawMessage `json:"state,omitempty"`
}

// TransactionalStateStore backs transactional grain state and the
// transaction coordinator log.
type TransactionalStateStore struct {
	records    RecordStore
	serializer *Serializer
	serviceID  string
}

func NewTransactionalStateStore(records RecordStore, serializer *Serializer, serviceID string) *TransactionalStateStore {
	return &TransactionalStateStore{records: records, serializer: serializer, serviceID: serviceID}
}

// Serializer is the policy the store encodes state with.
func (s *TransactionalStateStore) Serializer() *Serializer {
	return s.serializer
}

// Load returns the committed state stored under stateName for grainID. A
// missing entry loads as the zero state with sequence 0 and no etag.
func (s *TransactionalStateStore) Load(ctx context.Context, stateName, grainID string) (TransactionalState, error) {
	rec, err := s.records.Get(ctx, joinKey(s.serviceID, stateName, grainID))
	if errors.Is(err, ErrNotFound) {
		return TransactionalState{}, nil
	}
	if err != nil {
		return TransactionalState{}, err
	}
	return s.decode(rec)
}

// Store commits state at sequenceID. etag must match the loaded state and
// sequenceID must not be lower than the committed one.
func (s *TransactionalStateStore) Store(ctx context.Context, stateName, grainID, etag string, sequenceID int64, state any) (string, error) {
	current, err := s.Load(ctx, stateName, grainID)
	if err != nil {
		return "", err
	}
	if sequenceID < current.CommittedSequenceID {
		return "", fmt.Errorf("storing %s/%s at %d, committed %d: %w",
			stateName, grainID, sequenceID, current.CommittedSequenceID, ErrStaleSequence)
	}

	body, err := s.serializer.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("storing %s/%s: %w", stateName, grainID, err)
	}
	payload, err := s.serializer.Marshal(TransactionalState{CommittedSequenceID: sequenceID, State: body})
	if err != nil {
		return "", fmt.Errorf("storing %s/%s: %w", stateName, grainID, err)
	}
	return s.records.Put(ctx, joinKey(s.serviceID, stateName, grainID), payload, etag)
}

// List returns every state stored under stateName, ordered by grain id.
func (s *TransactionalStateStore) List(ctx context.Context, stateName string) (map[string]TransactionalState, error) {
	prefix := keyPrefix(s.serviceID, stateName)
	recs, err := s.records.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TransactionalState, len(recs))
	for _, rec := range recs {
		st, err := s.decode(rec)
		if err != nil {
			return nil, err
		}
		id, err := unescapeKeyPart(rec.Key[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", rec.Key, err)
		}
		out[id] = st
	}
	return out, nil
}

func (s *TransactionalStateStore) decode(rec Record) (TransactionalState, error) {
	var st TransactionalState
	if err := s.serializer.Unmarshal(rec.Payload, &st); err != nil {
		return TransactionalState{}, fmt.Errorf("reading transactional state %s: %w", rec.Key, err)
	}
	st.ETag = rec.ETag
	return st, nil
}
