// Package retry wraps flaky read calls (container status, permalink lookups)
// with bounded attempts and a growing delay. Content-creation POSTs are never
// retried: a malformed create response must fail loudly instead of risking a
// duplicate container.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the pause after the first failure.
	InitialDelay time.Duration
	// Factor multiplies the delay after each failure (rounded up to the millisecond).
	Factor float64
	// Retryable reports whether a failure should be attempted again. Nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultConfig returns six attempts starting at one second, growing by 1.6x.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  6,
		InitialDelay: time.Second,
		Factor:       1.6,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.Factor < 1 {
		c.Factor = 1
	}
	return c
}

// Next returns the delay that follows d: d*factor rounded up to the millisecond.
func (c Config) Next(d time.Duration) time.Duration {
	ms := math.Ceil(float64(d) / float64(time.Millisecond) * c.Factor)
	return time.Duration(ms) * time.Millisecond
}

// Do invokes fn until it succeeds, MaxAttempts is exhausted or Retryable
// rejects the error, sleeping between attempts. It returns the error from
// the final attempt, or the context error if ctx is cancelled while waiting.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Not retrying permanent failure")
			break
		}

		log.Debug().Err(err).Int("attempt", attempt).Int("maxAttempts", cfg.MaxAttempts).Dur("nextDelay", delay).Msg("Retrying after failure")

		if err := sleep(ctx, delay); err != nil {
			var zero T
			return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}
		delay = cfg.Next(delay)
	}

	var zero T
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
