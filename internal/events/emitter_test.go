package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records []Record
	err     error
}

func (m *memStore) InsertEvent(_ context.Context, rec Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func TestEmitWritesLogAndPublishes(t *testing.T) {
	store := &memStore{}
	rec := &Recorder{}
	em := NewEmitter(store, rec)
	id := uuid.New()

	em.Emit(context.Background(), "appointment", id, AppointmentScheduled, map[string]any{"status": "pending"})

	require.Len(t, store.records, 1)
	got := store.records[0]
	assert.Equal(t, AppointmentScheduled, got.EventType)
	assert.Equal(t, "appointment", got.Aggregate)
	assert.Equal(t, id, got.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "pending", payload["status"])

	assert.Equal(t, []string{AppointmentScheduled}, rec.Types())
	assert.Equal(t, id, rec.Messages()[0].AggregateID)
}

func TestEmitSurvivesStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	rec := &Recorder{}

	NewEmitter(store, rec).Emit(context.Background(), "adoption", uuid.New(), AdoptionRequested, nil)

	assert.Empty(t, store.records)
	assert.Equal(t, []string{AdoptionRequested}, rec.Types())
}

func TestNilPublisherFallsBackToNop(t *testing.T) {
	store := &memStore{}
	NewEmitter(store, nil).Emit(context.Background(), "pet", uuid.New(), PetStatusChanged, map[string]any{})
	assert.Len(t, store.records, 1)
}
