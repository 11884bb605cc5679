package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Store persists event log rows.
type Store interface {
	InsertEvent(ctx context.Context, rec Record) error
}

// Emitter writes an event log row and then publishes the event. Both steps
// run after the state change has been committed; failures are logged and
// never surface to the caller.
type Emitter struct {
	store Store
	pub   Publisher
	now   func() time.Time
}

func NewEmitter(store Store, pub Publisher) *Emitter {
	if pub == nil {
		pub = Nop()
	}
	return &Emitter{store: store, pub: pub, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, aggregate string, id uuid.UUID, eventType string, data map[string]any) {
	now := e.now()

	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		payload = nil
	}

	rec := Record{
		EventType:   eventType,
		Aggregate:   aggregate,
		AggregateID: id,
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := e.store.InsertEvent(ctx, rec); err != nil {
		log.Printf("failed to insert event log %s for %s %s: %v", eventType, aggregate, id, err)
	}

	msg := Message{EventType: eventType, AggregateID: id, OccurredAt: now, Data: data}
	if err := e.pub.Publish(ctx, eventType, msg); err != nil {
		log.Printf("failed to publish %s for %s %s: %v", eventType, aggregate, id, err)
	}
}
