package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// PendingRequeuer enqueues a match job for every pending delivery.
type PendingRequeuer interface {
	RequeuePending(ctx context.Context, reason domain.MatchReason) (int, error)
}

// Rescanner periodically re-enqueues pending deliveries so that nothing
// stays unmatched after a lost job or a courier coming online.
type Rescanner struct {
	cron     *cron.Cron
	spec     string
	requeuer PendingRequeuer
	timeout  time.Duration
	logger   logx.Logger
}

// NewRescanner validates spec. An empty spec yields a disabled Rescanner.
func NewRescanner(spec string, requeuer PendingRequeuer, timeout time.Duration, logger logx.Logger) (*Rescanner, error) {
	if spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("parse rescan schedule %q: %w", spec, err)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Rescanner{
		cron:     cron.New(),
		spec:     spec,
		requeuer: requeuer,
		timeout:  timeout,
		logger:   logger.With(logx.String("component", "pending_rescan")),
	}, nil
}

// Enabled reports whether a schedule is configured.
func (r *Rescanner) Enabled() bool { return r.spec != "" }

// Start schedules RunOnce.
func (r *Rescanner) Start() error {
	if !r.Enabled() {
		r.logger.Info("pending rescan disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.spec, r.RunOnce); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}
	r.cron.Start()
	r.logger.Info("pending rescan started", logx.String("schedule", r.spec))
	return nil
}

// Stop waits for a running scan to finish or ctx to end.
func (r *Rescanner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("pending rescan did not stop in time")
	}
}

// RunOnce enqueues every pending delivery.
func (r *Rescanner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.requeuer.RequeuePending(ctx, domain.MatchReasonRescan)
	if err != nil {
		r.logger.Error("pending rescan failed", logx.Err(err))
		return
	}
	if n > 0 {
		r.logger.Info("pending deliveries requeued", logx.Int("count", n))
	}
}
