// Package events carries domain events out of the scheduling and adoption
// services: a durable row in event_logs and a best-effort broker publish.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentScheduled     = "appointment.scheduled"
	AppointmentStatusChanged = "appointment.status_changed"
	AppointmentRescheduled   = "appointment.rescheduled"
	AppointmentCancelled     = "appointment.cancelled"

	AdoptionRequested     = "adoption.requested"
	AdoptionStatusChanged = "adoption.status_changed"
	AdoptionCancelled     = "adoption.cancelled"
	PetStatusChanged      = "pet.status_changed"
)

// Record is one row of the event log.
type Record struct {
	ID          int64
	EventType   string
	Aggregate   string
	AggregateID uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
}

// Message is the broker envelope for a Record.
type Message struct {
	EventType   string         `json:"event_type"`
	AggregateID uuid.UUID      `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
}

type nopPublisher struct{}

// Nop drops every message. It is used when no broker is configured.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, Message) error { return nil }

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, _ string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Types returns the event types published so far, in order.
func (r *Recorder) Types() []string {
	msgs := r.Messages()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.EventType)
	}
	return out
}
