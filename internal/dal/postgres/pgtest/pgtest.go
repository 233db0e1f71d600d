// Package pgtest starts a throwaway Postgres for repository and service
// suites.
package pgtest

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:16-alpine"

// Database is a migrated Postgres running in a container.
type Database struct {
	Client    *postgres.Client
	container *tcpostgres.PostgresContainer
}

// Start runs the container, connects and applies the migrations.
func Start(ctx context.Context) (*Database, error) {
	container, err := tcpostgres.Run(ctx, image,
		tcpostgres.WithDatabase("marketplace"),
		tcpostgres.WithUsername("marketplace"),
		tcpostgres.WithPassword("marketplace"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	db := &Database{container: container}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db.Client, err = postgres.NewClient(ctx, dsn, 5)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	if err := db.Client.Migrate(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	return db, nil
}

// Truncate empties every table between tests.
func (d *Database) Truncate(ctx context.Context) error {
	_, err := d.Client.Pool().Exec(ctx, `TRUNCATE
		orders, order_items, order_status_history,
		disputes, dispute_messages,
		notifications, outbox
		RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	return nil
}

// Close disconnects and removes the container.
func (d *Database) Close(ctx context.Context) error {
	if d.Client != nil {
		d.Client.Close()
	}

	return testcontainers.TerminateContainer(d.container, testcontainers.StopContext(ctx))
}
