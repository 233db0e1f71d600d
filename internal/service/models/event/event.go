package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/google/uuid"
)

// Type names a domain event. It doubles as the AMQP routing key.
type Type string

const (
	OrderPlaced              Type = "order.placed"
	OrderStatusChanged       Type = "order.status_changed"
	OrderPaymentSubmitted    Type = "order.payment_submitted"
	OrderItemShippingChanged Type = "order.item_shipping_changed"
	DisputeOpened            Type = "dispute.opened"
	DisputeMessageAdded      Type = "dispute.message_added"
	DisputeStatusChanged     Type = "dispute.status_changed"
)

// Event is a committed state change, serialized into the outbox together
// with the mutation that produced it.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	ActorID     string          `json:"actorId"`
	ActorRole   actor.Role      `json:"actorRole"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// New builds an event with a marshalled payload.
func New(t Type, aggregateID uuid.UUID, a actor.Actor, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("json.Marshal %s payload: %w", t, err)
	}

	return Event{
		ID:          uuid.New(),
		Type:        t,
		AggregateID: aggregateID,
		ActorID:     a.ID,
		ActorRole:   a.Role,
		OccurredAt:  now,
		Payload:     raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("json.Unmarshal %s payload: %w", e.Type, err)
	}

	return nil
}

// Actor returns who caused the event.
func (e Event) Actor() actor.Actor {
	return actor.Actor{ID: e.ActorID, Role: e.ActorRole}
}
