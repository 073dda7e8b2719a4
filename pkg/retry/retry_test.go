package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoHonoursShouldRetry(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
	}, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestDoReturnsLastErrorAfterAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 2}, func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 failed attempts, got calls=%d err=%v", calls, err)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{}, func() error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestDoReportsRetriesWithBackoff(t *testing.T) {
	var waits []time.Duration
	var attempts []int
	_ = Do(context.Background(), Config{
		MaxAttempts: 4,
		Delay:       time.Millisecond,
		Multiplier:  2,
		MaxDelay:    3 * time.Millisecond,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			attempts = append(attempts, attempt)
			waits = append(waits, wait)
		},
	}, func() error { return errors.New("boom") })

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("got %d retries, want %d", len(waits), len(want))
	}
	for i := range want {
		if waits[i] != want[i] || attempts[i] != i+1 {
			t.Fatalf("retry %d: attempt=%d wait=%v", i, attempts[i], waits[i])
		}
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{MaxAttempts: 5, Delay: time.Hour}, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected cancellation after one call, got calls=%d err=%v", calls, err)
	}
}
