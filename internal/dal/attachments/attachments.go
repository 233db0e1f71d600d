// Package attachments confirms that dispute attachment uploads exist before
// a message referencing them is stored.
package attachments

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/sethvargo/go-retry"
)

// HTTPVerifier issues a HEAD request per attachment URL.
type HTTPVerifier struct {
	client  *http.Client
	timeout time.Duration
	retries uint64
}

// NewHTTPVerifier creates a verifier. Each attempt is bounded by timeout and
// transient failures are retried up to retries times.
func NewHTTPVerifier(client *http.Client, timeout time.Duration, retries uint64) *HTTPVerifier {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPVerifier{client: client, timeout: timeout, retries: retries}
}

// Verify fails with errs.ErrInvalidArgument when an upload is definitely
// missing and with a plain error when it could not be confirmed in time.
func (v *HTTPVerifier) Verify(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if err := v.verify(ctx, u); err != nil {
			return err
		}
	}

	return nil
}

func (v *HTTPVerifier) verify(ctx context.Context, url string) error {
	backoff := retry.WithMaxRetries(v.retries, retry.NewExponential(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodHead, url, nil)
		if err != nil {
			return fmt.Errorf("%w: attachment %q: %w", errs.ErrInvalidArgument, url, err)
		}

		resp, err := v.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to confirm attachment %q: %w", url, err))
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("failed to confirm attachment %q: status %d", url, resp.StatusCode))
		default:
			return fmt.Errorf("%w: attachment %q is not available (status %d)", errs.ErrInvalidArgument, url, resp.StatusCode)
		}
	})
}
