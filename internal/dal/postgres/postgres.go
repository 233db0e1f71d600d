package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Conn is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories work
// the same inside and outside a transaction.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping checks that a pooled connection can reach the server.
func (p *Client) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() {
	p.pool.Close()
}

// MustNewClient creates a new Postgres client from the postgres.* config and
// applies pending migrations.
func MustNewClient(ctx context.Context) *Client {
	client, err := NewClient(ctx, DSNFromConfig(), viper.GetUint64("postgres.connect_retries"))
	if err != nil {
		panic(err)
	}

	if viper.GetBool("postgres.migrate") {
		if err := client.Migrate(ctx); err != nil {
			panic(err)
		}
	}

	return client
}

// NewClient connects to dsn, retrying the initial ping with exponential
// backoff.
func NewClient(ctx context.Context, dsn string, retries uint64) (*Client, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}

	if maxConns := viper.GetInt32("postgres.max_conns"); maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("Postgres is not ready yet", "error", err)
			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}

	slog.Info("Postgres connected", "host", config.ConnConfig.Host, "database", config.ConnConfig.Database)

	return &Client{pool: pool}, nil
}

// Migrate applies the embedded goose migrations.
func (p *Client) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose.SetDialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("goose.Up: %w", err)
	}

	return nil
}

// DSNFromConfig builds a connection URL from the postgres.* keys.
func DSNFromConfig() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(viper.GetString("postgres.user"), viper.GetString("postgres.password")),
		Host:   fmt.Sprintf("%s:%d", viper.GetString("postgres.host"), viper.GetInt("postgres.port")),
		Path:   viper.GetString("postgres.db"),
	}

	q := u.Query()
	q.Set("sslmode", viper.GetString("postgres.sslmode"))
	u.RawQuery = q.Encode()

	return u.String()
}
