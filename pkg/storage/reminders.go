package storage

import (
	"context"
	"fmt"
	"time"
)

// Reminder is a durable timer registered by a grain.
type Reminder struct {
	GrainID string        `json:"grainId"`
	Name    string        `json:"name"`
	StartAt time.Time     `json:"startAt"`
	Period  time.Duration `json:"period"`
	ETag    string        `json:"-"`
}

// ReminderTable persists reminders for one service.
type ReminderTable struct {
	records    RecordStore
	serializer *Serializer
	serviceID  string
}

func NewReminderTable(records RecordStore, serializer *Serializer, serviceID string) *ReminderTable {
	return &ReminderTable{records: records, serializer: serializer, serviceID: serviceID}
}

// Upsert stores r, replacing any reminder of the same grain and name.
func (t *ReminderTable) Upsert(ctx context.Context, r Reminder) (string, error) {
	if r.GrainID == "" || r.Name == "" {
		return "", fmt.Errorf("reminder needs a grain id and a name")
	}
	payload, err := t.serializer.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("writing reminder %s/%s: %w", r.GrainID, r.Name, err)
	}
	return t.records.Upsert(ctx, joinKey(t.serviceID, r.GrainID, r.Name), payload)
}

func (t *ReminderTable) Read(ctx context.Context, grainID, name string) (Reminder, error) {
	rec, err := t.records.Get(ctx, joinKey(t.serviceID, grainID, name))
	if err != nil {
		return Reminder{}, err
	}
	return t.decode(rec)
}

// ReadForGrain returns every reminder of a grain ordered by name.
func (t *ReminderTable) ReadForGrain(ctx context.Context, grainID string) ([]Reminder, error) {
	recs, err := t.records.List(ctx, keyPrefix(t.serviceID, grainID))
	if err != nil {
		return nil, err
	}
	out := make([]Reminder, 0, len(recs))
	for _, rec := range recs {
		r, err := t.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Remove deletes a reminder if etag still matches.
func (t *ReminderTable) Remove(ctx context.Context, grainID, name, etag string) error {
	return t.records.Delete(ctx, joinKey(t.serviceID, grainID, name), etag)
}

func (t *ReminderTable) decode(rec Record) (Reminder, error) {
	var r Reminder
	if err := t.serializer.Unmarshal(rec.Payload, &r); err != nil {
		return Reminder{}, fmt.Errorf("reading reminder %s: %w", rec.Key, err)
	}
	r.ETag = rec.ETag
	return r, nil
}
