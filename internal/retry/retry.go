package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config controls Do. Delays double after every failed attempt.
// A zero MaxDelay leaves the delay uncapped and a zero Jitter adds none.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
	// Wait blocks for the given delay; defaults to a context-aware timer.
	Wait func(ctx context.Context, d time.Duration) error
	// OnRetry is called after a failed attempt, before waiting.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls fn until it succeeds or the attempts are exhausted.
func Do(ctx context.Context, config Config, fn func(attempt int) error) error {
	attempts := config.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	baseDelay := config.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	wait := config.Wait
	if wait == nil {
		wait = Sleep
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		sleep := delay
		if config.Jitter > 0 {
			sleep += time.Duration(rand.Int63n(int64(config.Jitter)))
		}
		if config.MaxDelay > 0 && sleep > config.MaxDelay {
			sleep = config.MaxDelay
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, sleep, err)
		}
		if err := wait(ctx, sleep); err != nil {
			return err
		}
		delay *= 2
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
	return fmt.Errorf("retry failed after %d attempt(s): %w", attempts, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
