package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/google/uuid"
)

// ContentTypeJSON is the content type of serialized domain events.
const ContentTypeJSON = "application/json"

// OutboxMessage is a domain event waiting to be relayed. It is written in the
// same transaction as the mutation that produced the event.
type OutboxMessage struct {
	ID           int64
	EventID      uuid.UUID
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// FromEvent serializes e into an outbox message routed by its type.
func FromEvent(e event.Event, exchange string, maxRetries int, now time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("json.Marshal event %s: %w", e.ID, err)
	}

	return OutboxMessage{
		EventID:      e.ID,
		ExchangeName: exchange,
		RoutingKey:   string(e.Type),
		Payload:      payload,
		ContentType:  ContentTypeJSON,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}, nil
}

// Event decodes the relayed domain event.
func (m OutboxMessage) Event() (event.Event, error) {
	var e event.Event
	if err := json.Unmarshal(m.Payload, &e); err != nil {
		return event.Event{}, fmt.Errorf("json.Unmarshal outbox message %d: %w", m.ID, err)
	}

	return e, nil
}
