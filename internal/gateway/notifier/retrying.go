package notifier

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/retry"
)

type gateway interface {
	Deliver(ctx context.Context, userID string, n domain.Notification) (int, error)
}

type counter interface {
	Inc()
}

// RetryingGateway retries transient gRPC failures of the wrapped gateway.
type RetryingGateway struct {
	next    gateway
	logger  logx.Logger
	retries counter
	cfg     retry.Config
	sleep   retry.SleepFunc
}

// NewRetryingGateway wraps next. It returns nil when next is nil.
func NewRetryingGateway(next gateway, logger logx.Logger, retries counter, cfg retry.Config) *RetryingGateway {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg}
}

// SetSleep replaces the backoff sleep, for tests.
func (g *RetryingGateway) SetSleep(fn retry.SleepFunc) { g.sleep = fn }

// Deliver calls the wrapped gateway until it succeeds or fails permanently.
func (g *RetryingGateway) Deliver(ctx context.Context, userID string, n domain.Notification) (int, error) {
	var delivered int
	onRetry := func(attempt int, delay time.Duration, err error) {
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("notify gateway retry",
			logx.String("user_id", userID),
			logx.String("event", n.Event),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
	}
	call := func(ctx context.Context) error {
		var err error
		delivered, err = g.next.Deliver(ctx, userID, n)
		return err
	}

	var err error
	if g.sleep != nil {
		err = retry.DoWithSleep(ctx, g.cfg, isRetryable, onRetry, g.sleep, call)
	} else {
		err = retry.Do(ctx, g.cfg, isRetryable, onRetry, call)
	}
	if err != nil {
		return 0, err
	}
	return delivered, nil
}

// Notify implements the delivery service notifier.
func (g *RetryingGateway) Notify(ctx context.Context, userID string, n domain.Notification) error {
	_, err := g.Deliver(ctx, userID, n)
	return err
}

func isRetryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.ResourceExhausted,
		codes.Unavailable,
		codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
