package outbox

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
)

type amqpPublisher interface {
	Publish(ctx context.Context, exchange, routingKey, contentType, messageID string, body []byte) error
}

// BrokerPublisher relays messages to the message broker.
type BrokerPublisher struct {
	client amqpPublisher
}

//goland:noinspection GoExportedFuncWithUnexportedType
func NewBrokerPublisher(client amqpPublisher) *BrokerPublisher {
	return &BrokerPublisher{client: client}
}

func (p *BrokerPublisher) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	return p.client.Publish(ctx, msg.ExchangeName, msg.RoutingKey, msg.ContentType, msg.EventID.String(), msg.Payload)
}

type eventHandler interface {
	HandleEvent(ctx context.Context, e event.Event) error
}

// LocalDispatcher hands events straight to an in-process handler. It is used
// when no broker is configured.
type LocalDispatcher struct {
	handler eventHandler
}

//goland:noinspection GoExportedFuncWithUnexportedType
func NewLocalDispatcher(handler eventHandler) *LocalDispatcher {
	return &LocalDispatcher{handler: handler}
}

func (d *LocalDispatcher) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	e, err := msg.Event()
	if err != nil {
		return err
	}

	return d.handler.HandleEvent(ctx, e)
}
