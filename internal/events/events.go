// Package events fans order and payment changes out to optional push
// transports. Polling the REST API stays the source of truth, so publishers
// never fail the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bistro-pos/api/internal/logger"
	"github.com/google/uuid"
)

// Event is the JSON envelope delivered to every transport.
type Event struct {
	Type       string          `json:"type"`
	OrderID    *uuid.UUID      `json:"order_id,omitempty"`
	TableID    *uuid.UUID      `json:"table_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Version    int32           `json:"version,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event stamped with the current time. payload may be nil.
func New(typ string, orderID, tableID uuid.UUID, status string, version int32, payload any) Event {
	ev := Event{
		Type:       typ,
		Status:     status,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}
	if orderID != uuid.Nil {
		ev.OrderID = &orderID
	}
	if tableID != uuid.Nil {
		ev.TableID = &tableID
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		} else {
			logger.L().Warnw("event payload not encodable", "type", typ, "error", err)
		}
	}
	return ev
}

// Publisher delivers events after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to each publisher in order and returns the first error
// after trying all of them.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.L().Warnw("publish event failed", "type", ev.Type, "error", err)
	}
}
