package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig bounds a [Retry] loop.
type RetryConfig struct {
	// Name is a label used in log messages.
	Name string

	// Attempts is the total number of calls, including the first. Default: 3.
	Attempts int

	// InitialBackoff is the wait before the second attempt. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubled backoff. Default: 8s.
	MaxBackoff time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 8 * time.Second
	}
	return c
}

// Retry calls fn until it succeeds, the attempts are used up, or ctx is done.
// The wait between attempts doubles up to MaxBackoff. [ErrCircuitOpen] is
// not retried. The last error is returned wrapped with the attempt count.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	backoff := cfg.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || attempt >= cfg.Attempts {
			return fmt.Errorf("resilience: %s failed after %d attempt(s): %w", cfg.Name, attempt, err)
		}

		slog.Warn("retrying after failure",
			"name", cfg.Name,
			"attempt", attempt,
			"backoff", backoff,
			"err", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("resilience: %s: %w", cfg.Name, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
		backoff = min(backoff*2, cfg.MaxBackoff)
	}
}

// RetryWithResult is [Retry] for calls that return a value.
func RetryWithResult[R any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (R, error)) (R, error) {
	var result R
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
