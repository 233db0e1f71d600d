package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
)

// Client represents a Redis client.
type Client struct {
	rdb *goredis.Client
}

// Redis returns the underlying go-redis client.
func (c *Client) Redis() *goredis.Client {
	return c.rdb
}

// Close closes the client for graceful shutdown.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MustNewClient creates a new Redis client from the redis.* config.
func MustNewClient(ctx context.Context) *Client {
	client, err := NewClient(ctx, &goredis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}, viper.GetUint64("redis.connect_retries"))
	if err != nil {
		panic(err)
	}

	return client
}

// NewClient connects and pings Redis, retrying with exponential backoff.
func NewClient(ctx context.Context, opts *goredis.Options, retries uint64) (*Client, error) {
	rdb := goredis.NewClient(opts)

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis is not ready yet", "addr", opts.Addr, "error", err)
			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	slog.Info("Redis connected", "addr", opts.Addr)

	return &Client{rdb: rdb}, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
