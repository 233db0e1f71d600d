package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	HandleEvent(ctx context.Context, e event.Event) error
}

// broker is the part of the RabbitMQ client the consumer needs.
type broker interface {
	Consume(cfg rabbitmq.ConsumeConfig) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// topology declares the exchange and queue the consumer reads from.
type topology interface {
	DeclareExchange(cfg rabbitmq.DeclareExchangeConfig) error
	DeclareQueue(cfg rabbitmq.DeclareQueueConfig) (amqp.Queue, error)
	BindQueue(queue, exchange string, keys ...string) error
}

// RoutingKeys are the event families turned into notifications.
var RoutingKeys = []string{"order.*", "dispute.*"}

// DeclareTopology declares a durable topic exchange and a durable queue bound
// to every domain event.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func DeclareTopology(t topology, exchange, queue string) error {
	if err := t.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    exchange,
		Kind:    amqp.ExchangeTopic,
		Durable: true,
	}); err != nil {
		return err
	}

	if _, err := t.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queue,
		Durable: true,
	}); err != nil {
		return err
	}

	return t.BindQueue(queue, exchange, RoutingKeys...)
}

// Consumer turns domain events from RabbitMQ into notifications.
type Consumer struct {
	client      broker
	service     service
	queue       string
	consumerTag string
	concurrency int
	stop        chan struct{}
	done        chan struct{}
}

// NewConsumer creates a new Consumer.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewConsumer(client broker, service service, queue, consumerTag string, concurrency int) *Consumer {
	if consumerTag == "" {
		consumerTag = "marketplace-notifications"
	}
	if concurrency <= 0 {
		concurrency = 50
	}

	return &Consumer{
		client:      client,
		service:     service,
		queue:       queue,
		consumerTag: consumerTag,
		concurrency: concurrency,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run consumes until Shutdown is called, ctx is done or the broker closes
// the deliveries channel.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue,
		Consumer: c.consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "queue", c.queue, "consumer_tag", c.consumerTag)

	g := &errgroup.Group{}
	g.SetLimit(c.concurrency)

	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping consumer")

			return g.Wait()
		case <-c.stop:
			slog.Info("Stopping consumer")
			if err := c.client.Cancel(c.consumerTag); err != nil {
				slog.Warn("Failed to cancel consumer", "error", err)
			}

			return g.Wait()
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("Message channel closed")

				return g.Wait()
			}

			g.Go(func() error {
				c.processMessage(ctx, msg)

				return nil
			})
		}
	}
}

// processMessage hands one event to the service. Undecodable messages are
// dropped, failed ones requeued. Redelivery is harmless because
// notifications are keyed by event id.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	var e event.Event
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		slog.Error("Failed to unmarshal event", "delivery_tag", msg.DeliveryTag, "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	}

	span.SetAttributes(
		attribute.String("event.id", e.ID.String()),
		attribute.String("event.type", string(e.Type)),
	)

	if err := c.service.HandleEvent(ctx, e); err != nil {
		slog.Error("Failed to handle event", "event_id", e.ID, "type", e.Type, "error", err)
		if err := msg.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)
	}
}

// Shutdown stops consuming and waits for in-flight messages, at most for
// the timeout or until ctx is done.
func (c *Consumer) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
