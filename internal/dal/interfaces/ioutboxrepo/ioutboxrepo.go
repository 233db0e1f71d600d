package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
)

// IOutboxRepository stores domain events until the relay confirms delivery.
type IOutboxRepository interface {
	// Insert is called inside the transaction of the mutation that produced the event.
	Insert(ctx context.Context, msg outbox.OutboxMessage) error

	// GetPendingMessages returns due messages with retries left, oldest first.
	GetPendingMessages(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error)

	// Delete drops a relayed message.
	Delete(ctx context.Context, id int64) error

	// UpdateRetry records a failed attempt and when to try again.
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
		now time.Time,
	) error

	// CountDead counts messages that will never be relayed.
	CountDead(ctx context.Context) (int, error)
}
