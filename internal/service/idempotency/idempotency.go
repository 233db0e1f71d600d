// Package idempotency replays the result of a create request that is retried
// with the same client key.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const pollInterval = 100 * time.Millisecond

// Store keeps key claims and key to resource bindings.
type Store interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// Guard runs create requests at most once per key. A nil Guard runs every
// request.
type Guard struct {
	store Store
	wait  time.Duration
}

// NewGuard creates a Guard. wait bounds how long a retry waits for the first
// request with the same key to finish.
func NewGuard(store Store, wait time.Duration) *Guard {
	return &Guard{store: store, wait: wait}
}

// Do returns the resource previously created under (scope, key), or calls
// create and binds its result to the key. A retry that arrives while the
// first request still runs waits for it, then fails with
// errs.ErrRequestInProgress. A failed create releases the key, and a retry
// still waiting at that point runs create itself.
func Do[T any](
	ctx context.Context,
	g *Guard,
	scope, key string,
	idOf func(T) uuid.UUID,
	load func(ctx context.Context, id uuid.UUID) (T, error),
	create func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	key = strings.TrimSpace(key)
	if g == nil || g.store == nil || key == "" {
		return create(ctx)
	}

	if v, found, err := recall(ctx, g, scope, key, load); err != nil || found {
		return v, err
	}

	locked, err := g.store.TryLock(ctx, scope, key)
	if err != nil {
		return zero, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
	if !locked {
		v, acquired, err := await(ctx, g, scope, key, load)
		if err != nil || !acquired {
			return v, err
		}
	}

	v, err := create(ctx)
	if err != nil {
		if releaseErr := g.store.Release(ctx, scope, key); releaseErr != nil {
			slog.Warn("Failed to release idempotency key", "scope", scope, "error", releaseErr)
		}

		return zero, err
	}

	if err := g.store.Remember(ctx, scope, key, idOf(v).String()); err != nil {
		slog.Warn("Failed to remember idempotency key", "scope", scope, "id", idOf(v), "error", err)
	}

	return v, nil
}

func recall[T any](
	ctx context.Context,
	g *Guard,
	scope, key string,
	load func(ctx context.Context, id uuid.UUID) (T, error),
) (T, bool, error) {
	var zero T

	value, found, err := g.store.Recall(ctx, scope, key)
	if err != nil {
		return zero, false, fmt.Errorf("failed to recall idempotency key: %w", err)
	}
	if !found {
		return zero, false, nil
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return zero, false, fmt.Errorf("corrupt idempotency binding %q: %w", value, err)
	}

	v, err := load(ctx, id)
	if err != nil {
		return zero, false, err
	}

	return v, true, nil
}

// await polls until the first request binds the key, or takes the key over
// when that request failed and released it.
func await[T any](
	ctx context.Context,
	g *Guard,
	scope, key string,
	load func(ctx context.Context, id uuid.UUID) (T, error),
) (T, bool, error) {
	var (
		result   T
		acquired bool
	)

	backoff := retry.WithMaxDuration(g.wait, retry.NewConstant(pollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, found, err := recall(ctx, g, scope, key, load)
		if err != nil {
			return err
		}
		if found {
			result = v
			return nil
		}

		locked, err := g.store.TryLock(ctx, scope, key)
		if err != nil {
			return fmt.Errorf("failed to lock idempotency key: %w", err)
		}
		if locked {
			acquired = true
			return nil
		}

		return retry.RetryableError(fmt.Errorf("idempotency key %q: %w", key, errs.ErrRequestInProgress))
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	return result, acquired, nil
}
