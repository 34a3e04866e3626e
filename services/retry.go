package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy configures exponential backoff with jitter for transient HTTP
// failures, grounded on alphavantage/client.go's doRequestWithRetry but
// generalized into a standalone policy, separate from transport, and
// extended with jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns conservative defaults for a typical external
// data provider.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 250 * time.Millisecond}
}

// ErrPermanentFailure wraps a non-retryable HTTP failure (4xx other than
// 429).
var ErrPermanentFailure = errors.New("permanent external failure")

// IsRetryable reports whether statusCode should be retried: 5xx or 429.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Do executes fn, retrying on transient failures (the error wraps a
// retryable HTTP status, or fn itself errors e.g. on timeout) up to
// p.MaxAttempts times with exponential backoff plus jitter. A
// ErrPermanentFailure from fn fails fast without retrying.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) (*http.Response, error)) (*http.Response, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := fn(attempt)
		if err != nil {
			if errors.Is(err, ErrPermanentFailure) {
				return nil, err
			}
			lastErr = err
		} else if resp.StatusCode == http.StatusOK {
			return resp, nil
		} else if IsRetryable(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable status code: %d", resp.StatusCode)
		} else {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status code %d", ErrPermanentFailure, resp.StatusCode)
		}

		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// delay computes the exponential backoff for attempt, with up to 50%
// jitter applied on top, so concurrent workers in the bounded pool don't
// retry in lockstep against the upstream provider.
func (p RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return base + jitter
}
