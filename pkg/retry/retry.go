package retry

import (
	"context"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// ShouldRetry decides whether a failed attempt is worth repeating.
	// A nil func retries every error.
	ShouldRetry func(error) bool

	// OnRetry is called before waiting out the backoff for the next attempt.
	// attempt counts from 1.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.Delay
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return lastErr
		}

		if attempt == attempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if cfg.Multiplier > 0 {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
