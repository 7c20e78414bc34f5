package storage

import (
	"context"
	"errors"
	"fmt"
)

// Subscription is one consumer of a stream.
type Subscription struct {
	SubscriptionID string `json:"subscriptionId"`
	Consumer       string `json:"consumer"`
	Filter         string `json:"filter,omitempty"`
}

// PubSubState is the rendezvous record of a stream: who produces and who consumes.
type PubSubState struct {
	ETag          string         `json:"-"`
	Producers     []string       `json:"producers,omitempty"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
}

// PubSubStore keeps stream pub/sub metadata for one named stream provider.
type PubSubStore struct {
	records    RecordStore
	serializer *Serializer
	serviceID  string
	provider   string
}

func NewPubSubStore(records RecordStore, serializer *Serializer, serviceID, provider string) *PubSubStore {
	return &PubSubStore{records: records, serializer: serializer, serviceID: serviceID, provider: provider}
}

// Provider returns the stream provider name the store is scoped to.
func (s *PubSubStore) Provider() string {
	return s.provider
}

func (s *PubSubStore) key(streamNamespace, streamID string) string {
	return joinKey(s.serviceID, s.provider, streamNamespace, streamID)
}

// Read returns the rendezvous state of a stream. A stream nobody registered
// with yet reads as the empty state.
func (s *PubSubStore) Read(ctx context.Context, streamNamespace, streamID string) (PubSubState, error) {
	rec, err := s.records.Get(ctx, s.key(streamNamespace, streamID))
	if errors.Is(err, ErrNotFound) {
		return PubSubState{}, nil
	}
	if err != nil {
		return PubSubState{}, err
	}
	var st PubSubState
	if err := s.serializer.Unmarshal(rec.Payload, &st); err != nil {
		return PubSubState{}, fmt.Errorf("reading pubsub state %s/%s: %w", streamNamespace, streamID, err)
	}
	st.ETag = rec.ETag
	return st, nil
}

// Write stores state, state.ETag must match the stored version.
func (s *PubSubStore) Write(ctx context.Context, streamNamespace, streamID string, state PubSubState) (string, error) {
	payload, err := s.serializer.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("writing pubsub state %s/%s: %w", streamNamespace, streamID, err)
	}
	return s.records.Put(ctx, s.key(streamNamespace, streamID), payload, state.ETag)
}

func (s *PubSubStore) Clear(ctx context.Context, streamNamespace, streamID, etag string) error {
	return s.records.Delete(ctx, s.key(streamNamespace, streamID), etag)
}
