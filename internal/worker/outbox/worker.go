package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/spf13/viper"
)

// maxBackoff caps the delay between retries of one message.
const maxBackoff = time.Hour

// publisher relays one outbox message downstream.
type publisher interface {
	Publish(ctx context.Context, msg outbox.OutboxMessage) error
}

// Worker processes messages from the outbox table.
type Worker struct {
	outboxRepo    ioutboxrepo.IOutboxRepository
	publisher     publisher
	pollInterval  time.Duration
	batchSize     int
	retryInterval time.Duration
	now           func() time.Time
	stopCh        chan struct{}
}

// NewWorker creates a new outbox worker.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	publisher publisher,
) *Worker {
	pollIntervalMillis := viper.GetInt("outbox.poll_interval_ms")
	if pollIntervalMillis == 0 {
		pollIntervalMillis = 1000
	}

	batchSize := viper.GetInt("outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:    outboxRepo,
		publisher:     publisher,
		pollInterval:  time.Duration(pollIntervalMillis) * time.Millisecond,
		batchSize:     batchSize,
		retryInterval: time.Duration(retryIntervalSeconds) * time.Second,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)
	w.reportDead(ctx)

	for {
		w.processMessages(ctx)

		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// backoff returns the delay before the given retry: 2^n times the retry
// interval, capped.
func (w *Worker) backoff(retryCount int) time.Duration {
	d := time.Duration(math.Pow(2, float64(retryCount))) * w.retryInterval
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}

	return d
}

// processMessages relays due messages in insertion order.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.now(), w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Failed to get pending messages from outbox", "error", err)
		}

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Debug("Processing outbox messages", "count", len(messages))

	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}

		if err := w.publisher.Publish(ctx, msg); err != nil {
			w.scheduleRetry(ctx, msg, err)

			continue
		}

		metrics.OutboxPublished.Inc()

		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			// the message is relayed again later, consumers dedupe by event id
			slog.Error("Failed to delete message from outbox after successful publish",
				"outbox_id", msg.ID,
				"error", err,
			)
		}
	}
}

func (w *Worker) scheduleRetry(ctx context.Context, msg outbox.OutboxMessage, cause error) {
	metrics.OutboxPublishFailures.Inc()

	now := w.now()
	newRetryCount := msg.RetryCount + 1
	nextRetryAt := now.Add(w.backoff(newRetryCount))

	if newRetryCount >= msg.MaxRetries {
		slog.Error("Outbox message exhausted its retries and will not be relayed",
			"outbox_id", msg.ID,
			"event_id", msg.EventID,
			"routing_key", msg.RoutingKey,
			"error", cause,
		)
	} else {
		slog.Warn("Failed to publish message from outbox, will retry",
			"outbox_id", msg.ID,
			"retry_count", newRetryCount,
			"next_retry", nextRetryAt,
			"error", cause,
		)
	}

	if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, cause.Error(), nextRetryAt, now); err != nil {
		slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
		return
	}

	if newRetryCount >= msg.MaxRetries {
		w.reportDead(ctx)
	}
}

// reportDead refreshes the dead message gauge.
func (w *Worker) reportDead(ctx context.Context) {
	dead, err := w.outboxRepo.CountDead(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Failed to count dead outbox messages", "error", err)
		}
		return
	}

	metrics.OutboxDead.Set(float64(dead))
}
