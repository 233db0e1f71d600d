package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// Client represents a RabbitMQ client.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Channel returns the underlying AMQP channel.
func (r *Client) Channel() *amqp.Channel {
	return r.channel
}

// Connection returns the underlying AMQP connection.
func (r *Client) Connection() *amqp.Connection {
	return r.conn
}

// Close closes the channel and connection for graceful shutdown.
func (r *Client) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn.Close()
	}

	return nil
}

// Ping reports whether the connection is still open.
func (r *Client) Ping(context.Context) error {
	if r.conn == nil || r.conn.IsClosed() {
		return amqp.ErrClosed
	}

	return nil
}

// URLFromConfig builds the broker URL from the rabbitmq.* keys.
func URLFromConfig() string {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")
	user := viper.GetString("rabbitmq.user")
	password := viper.GetString("rabbitmq.password")
	vhost := viper.GetString("rabbitmq.vhost")

	if host == "" {
		host = "rabbitmq"
	}
	if port == 0 {
		port = 5672
	}
	if vhost == "" {
		vhost = "/"
	}

	u := url.URL{
		Scheme:  "amqp",
		User:    url.UserPassword(user, password),
		Host:    net.JoinHostPort(host, strconv.Itoa(port)),
		Path:    "/" + vhost,
		RawPath: "/" + url.PathEscape(vhost),
	}

	return u.String()
}

// MustNewClient connects using the rabbitmq.* config.
func MustNewClient(ctx context.Context) *Client {
	client, err := NewClient(ctx, URLFromConfig(), viper.GetUint64("rabbitmq.connect_retries"))
	if err != nil {
		panic(err)
	}

	return client
}

// NewClient dials the broker, retrying with exponential backoff while it is
// still starting, and opens a channel.
func NewClient(ctx context.Context, url string, retries uint64) (*Client, error) {
	var conn *amqp.Connection

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		c, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("RabbitMQ is not ready yet", "error", err)

			return retry.RetryableError(err)
		}
		conn = c

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			slog.Error("Failed to close a connection", "error", cerr)
		}

		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	slog.Info("RabbitMQ connected")

	return &Client{
		conn:    conn,
		channel: channel,
	}, nil
}

type DeclareExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareExchange declares an exchange with the given configuration.
func (r *Client) DeclareExchange(cfg DeclareExchangeConfig) error {
	kind := cfg.Kind
	if kind == "" {
		kind = amqp.ExchangeTopic
	}

	return r.channel.ExchangeDeclare(
		cfg.Name,
		kind,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Internal,
		cfg.NoWait,
		cfg.Args,
	)
}

type DeclareQueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareQueue declares a queue with the given configuration.
func (r *Client) DeclareQueue(cfg DeclareQueueConfig) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		cfg.Name,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Exclusive,
		cfg.NoWait,
		cfg.Args,
	)
}

// BindQueue routes messages matching each key pattern from exchange to queue.
func (r *Client) BindQueue(queue, exchange string, keys ...string) error {
	for _, key := range keys {
		if err := r.channel.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s with %q: %w", queue, exchange, key, err)
		}
	}

	return nil
}

type ConsumeConfig struct {
	Queue     string
	Consumer  string
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Args      amqp.Table
}

// Consume starts consuming messages from the queue.
func (r *Client) Consume(cfg ConsumeConfig) (<-chan amqp.Delivery, error) {
	return r.channel.Consume(
		cfg.Queue,
		cfg.Consumer,
		cfg.AutoAck,
		cfg.Exclusive,
		cfg.NoLocal,
		cfg.NoWait,
		cfg.Args,
	)
}

// Cancel stops deliveries to the consumer tag. The deliveries channel is
// closed once the broker confirms.
func (r *Client) Cancel(consumerTag string) error {
	return r.channel.Cancel(consumerTag, false)
}

// Publish sends a persistent message.
func (r *Client) Publish(
	_ context.Context,
	exchange, routingKey, contentType, messageID string,
	body []byte,
) error {
	return r.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			MessageId:    messageID,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
