package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/serpscope/internal/logger"
)

// DefaultRetryDelays returns the backoff delays between attempts: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// withRetry calls fn until it succeeds, fails with a non-transient error, or
// the delays are used up. It makes len(delays)+1 attempts at most.
func withRetry(ctx context.Context, target string, delays []time.Duration, fn func(context.Context) error) error {
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, ErrTransient) || attempt >= maxAttempts-1 {
			break
		}

		logger.Debug("scrape retry", "url", target, "attempt", attempt+2, "delay", delays[attempt], "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return lastErr
}
