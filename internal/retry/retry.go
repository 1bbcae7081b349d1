package retry

import (
	"context"
	"errors"
	"time"
)

// Config is an exponential backoff policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}

// Classifier decides whether err is worth another attempt.
type Classifier func(err error) bool

// NotPermanent retries everything except permanent errors.
func NotPermanent(err error) bool { return !IsPermanent(err) }

// Hook is called before each retry sleep.
type Hook func(attempt int, delay time.Duration, err error)

// Do runs fn until it succeeds, the classifier rejects the error, the context
// ends, or MaxAttempts is reached. It returns the last error.
func Do(ctx context.Context, cfg Config, retryable Classifier, onRetry Hook, fn func(ctx context.Context) error) error {
	return DoWithSleep(ctx, cfg, retryable, onRetry, sleepWithContext, fn)
}

// SleepFunc waits for d and reports false when ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// DoWithSleep is Do with an injectable sleep.
func DoWithSleep(
	ctx context.Context,
	cfg Config,
	retryable Classifier,
	onRetry Hook,
	sleep SleepFunc,
	fn func(ctx context.Context) error,
) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	if retryable == nil {
		retryable = NotPermanent
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == attempts || !retryable(err) {
			break
		}
		delay := Backoff(cfg.BaseDelay, cfg.MaxDelay, attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if !sleep(ctx, delay) {
			break
		}
	}
	return lastErr
}

// Backoff returns base doubled per attempt, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	// shifting can overflow into a non-positive value for large attempts
	if d <= 0 || (max > 0 && d > max) {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
