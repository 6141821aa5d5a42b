// Package resilience provides the call-wrapping policies (retry, circuit
// breaker, rate limiter) that guard every outbound network call. Policies
// compose by explicit nesting: the rate limiter gates entry, the breaker
// short-circuits when open, and retry governs backoff within one permitted
// attempt window. Failures surface as typed Fallback values, never panics.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig controls the retry loop: a fixed attempt ceiling with a fixed
// wait between attempts.
type RetryConfig struct {
	MaxAttempts  int
	WaitDuration time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, WaitDuration: time.Second}
}

// PermanentError marks a failure that must not be retried, such as input
// validation and other non-transient failures.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry loop stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Do runs fn up to cfg.MaxAttempts times, sleeping cfg.WaitDuration between
// attempts. Permanent errors and context cancellation stop the loop.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.WaitDuration):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
