package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout an operation did not settle before its deadline
var ErrTimeout = errors.New("operation timed out")

// RetryPolicy bounded retry: N attempts, fixed or growing delay, explicit stop predicate
type RetryPolicy struct {
	Attempts    int
	Delay       time.Duration
	Backoff     float64          // delay multiplier after each failed attempt, <= 1 keeps the delay fixed
	ShouldRetry func(error) bool // nil retries every error
}

// Retry runs fn until it succeeds, the predicate stops it, attempts run out, or ctx ends.
// The last error from fn is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if policy.ShouldRetry != nil && !policy.ShouldRetry(err) {
			return err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return err
		}
		if policy.Backoff > 1 {
			delay = time.Duration(float64(delay) * policy.Backoff)
		}
	}
	return err
}

// RaceTimeout runs fn against a fixed timeout and returns whichever settles first.
// fn receives a context that is cancelled when the timeout wins.
func RaceTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}
