package matching

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/retry"
)

// RetryingHandler retries transient job failures with exponential backoff.
type RetryingHandler struct {
	next    Handler
	cfg     retry.Config
	metrics *metrics.Dispatch
	logger  logx.Logger
	sleep   retry.SleepFunc
}

// WithRetry wraps next. m may be nil.
func WithRetry(next Handler, cfg retry.Config, m *metrics.Dispatch, logger logx.Logger) *RetryingHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingHandler{next: next, cfg: cfg, metrics: m, logger: logger}
}

// SetSleep replaces the backoff sleep.
func (h *RetryingHandler) SetSleep(fn retry.SleepFunc) { h.sleep = fn }

// Handle runs the job. A permanent failure is logged and returned without retrying.
func (h *RetryingHandler) Handle(ctx context.Context, job domain.MatchJob) error {
	onRetry := func(attempt int, delay time.Duration, err error) {
		if h.metrics != nil {
			h.metrics.JobRetries.Inc()
		}
		h.logger.Warn("match job retry",
			logx.String("delivery_id", job.DeliveryID),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
	}

	run := func(ctx context.Context) error { return h.next.Handle(ctx, job) }

	var err error
	if h.sleep != nil {
		err = retry.DoWithSleep(ctx, h.cfg, retry.NotPermanent, onRetry, h.sleep, run)
	} else {
		err = retry.Do(ctx, h.cfg, retry.NotPermanent, onRetry, run)
	}
	if err == nil {
		return nil
	}

	if retry.IsPermanent(err) {
		h.logger.Warn("match job dropped",
			logx.String("delivery_id", job.DeliveryID),
			logx.String("reason", string(job.Reason)),
			logx.Err(err),
		)
	} else {
		if h.metrics != nil {
			h.metrics.Matches.WithLabelValues(metrics.OutcomeFailed).Inc()
		}
		h.logger.Error("match job failed",
			logx.String("delivery_id", job.DeliveryID),
			logx.String("reason", string(job.Reason)),
			logx.Err(err),
		)
	}
	return err
}
