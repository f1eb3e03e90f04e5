package retry

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc decides whether err is worth another attempt and how long to wait
// first. retries is the number of retries already performed.
type BackoffFunc func(err error, retries int) (time.Duration, bool)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	Backoff    BackoffFunc
	// Sleep defaults to a context-aware timer
	Sleep SleepFunc
}

// Sleep waits for d, returning early with ctx.Err() when ctx is cancelled
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do executes fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoWithLog(ctx, cfg, "operation", fn, nil)
}

// DoWithLog executes fn with retry and reports each scheduled retry to logFn
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for retries := 0; ; retries++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, retries, err, lastErr)
			}
			return fmt.Errorf("%s: retry aborted: %w", serviceName, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		delay, retryable := time.Duration(0), false
		if cfg.Backoff != nil {
			delay, retryable = cfg.Backoff(err, retries)
		}
		if !retryable {
			return err
		}
		if retries >= cfg.MaxRetries {
			return fmt.Errorf("%s: max retries (%d) exceeded: %w", serviceName, cfg.MaxRetries, lastErr)
		}

		if logFn != nil {
			logFn(retries+1, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, retries+1, err, lastErr)
		}
	}
}
