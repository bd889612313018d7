package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	last := errors.New("third")
	err := Retry(context.Background(), RetryPolicy{Attempts: 3}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 3 {
			return last
		}
		return errFlaky
	})
	if !errors.Is(err, last) {
		t.Errorf("err = %v, want %v", err, last)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopPredicate(t *testing.T) {
	definitive := errors.New("invalid address")
	calls := 0
	err := Retry(context.Background(), RetryPolicy{
		Attempts:    5,
		ShouldRetry: func(err error) bool { return !errors.Is(err, definitive) },
	}, func(ctx context.Context, attempt int) error {
		calls++
		return definitive
	})
	if !errors.Is(err, definitive) {
		t.Errorf("err = %v, want %v", err, definitive)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryPolicy{Attempts: 5, Delay: time.Hour}, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Errorf("err = %v, want %v", err, errFlaky)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRaceTimeout_FastResult(t *testing.T) {
	v, err := RaceTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("RaceTimeout = (%d, %v), want (42, nil)", v, err)
	}
}

func TestRaceTimeout_TimerWins(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	_, err := RaceTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release // ignores ctx on purpose
		return 1, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
