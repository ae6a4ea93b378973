package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dgallion1/docstruct/internal/cleanup"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *cleanup.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// withRetry calls fn up to MaxRetries times while it fails with a retryable
// error, sleeping backoff(attempt) in between.
func withRetry[T any](ctx context.Context, log *slog.Logger, backoff func(int) time.Duration, what string, fn func() (T, error)) (T, error) {
	var (
		out     T
		lastErr error
	)
	for attempt := 0; attempt < MaxRetries; attempt++ {
		out, lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable llm error", "call", what, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, lastErr
}
