package storage

import (
	"context"
	"errors"
	"fmt"
)

// GrainStateStore is the default grain state binding. State is keyed by
// service, grain type and grain id so clusters of the same service share it.
type GrainStateStore struct {
	records    RecordStore
	serializer *Serializer
	serviceID  string
}

func NewGrainStateStore(records RecordStore, serializer *Serializer, serviceID string) *GrainStateStore {
	return &GrainStateStore{records: records, serializer: serializer, serviceID: serviceID}
}

func (s *GrainStateStore) key(grainType, grainID string) string {
	return joinKey(s.serviceID, grainType, grainID)
}

// Read loads the state of a grain into into and returns its etag. A grain
// that never wrote state returns found == false and leaves into untouched.
func (s *GrainStateStore) Read(ctx context.Context, grainType, grainID string, into any) (etag string, found bool, err error) {
	rec, err := s.records.Get(ctx, s.key(grainType, grainID))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.serializer.Unmarshal(rec.Payload, into); err != nil {
		return "", false, fmt.Errorf("reading state of %s/%s: %w", grainType, grainID, err)
	}
	return rec.ETag, true, nil
}

// Write stores state when etag matches the stored version. An empty etag
// writes the first version.
func (s *GrainStateStore) Write(ctx context.Context, grainType, grainID string, state any, etag string) (string, error) {
	payload, err := s.serializer.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("writing state of %s/%s: %w", grainType, grainID, err)
	}
	return s.records.Put(ctx, s.key(grainType, grainID), payload, etag)
}

// Clear removes the state of a grain.
func (s *GrainStateStore) Clear(ctx context.Context, grainType, grainID string, etag string) error {
	return s.records.Delete(ctx, s.key(grainType, grainID), etag)
}
