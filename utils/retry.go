package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failed attempt may be repeated.
	// A nil Retryable retries every error.
	Retryable func(error) bool
	Logger    *Logger
	// Sleep waits between attempts; defaults to the cancellable Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry runs op until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is cancelled. The delay between attempts is fixed.
func Retry[T any](ctx context.Context, r RetryConfig, operationName string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if r.Retryable != nil && !r.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, err, r.Delay)
		}
		if err := sleep(ctx, r.Delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// Do is Retry for operations without a result.
func (r RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, r, operationName, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
