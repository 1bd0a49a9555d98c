package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BackoffFunc returns the delay to wait after the given failed attempt (1-based)
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits base * 2^(attempt-1): 1s, 2s, 4s, ... for a base of one second
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls op until it succeeds, returns a Permanent error, or maxAttempts calls have been made.
// It sleeps backoff(attempt) between attempts, never after the last one, and stops early when ctx is done.
// Returns the number of attempts made and the last error (nil on success).
func Retry(ctx context.Context, maxAttempts int, backoff BackoffFunc, op func(ctx context.Context, attempt int) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return attempt - 1, err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt, perm.err
		}

		if attempt == maxAttempts || backoff == nil {
			continue
		}

		timer := time.NewTimer(backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
		}
	}
	return maxAttempts, lastErr
}
