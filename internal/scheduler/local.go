package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// ErrQueueFull is returned when the local queue cannot take another job.
var ErrQueueFull = errors.New("match queue is full")

// ErrStopped is returned by EnqueueMatch after Stop.
var ErrStopped = errors.New("match queue is stopped")

// Handler runs one match job.
type Handler interface {
	Handle(ctx context.Context, job domain.MatchJob) error
}

// LocalConfig sizes the in-process queue.
type LocalConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Local is an in-process match queue served by a fixed worker pool.
// A delivery that is already waiting in the queue is not queued again.
type Local struct {
	handler Handler
	cfg     LocalConfig
	logger  logx.Logger

	jobs chan domain.MatchJob
	wg   sync.WaitGroup

	mu      sync.Mutex
	queued  map[string]struct{}
	started bool
	stopped bool
}

// NewLocal creates a stopped queue; call Start to run the workers.
func NewLocal(handler Handler, cfg LocalConfig, logger logx.Logger) *Local {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Local{
		handler: handler,
		cfg:     cfg,
		logger:  logger,
		jobs:    make(chan domain.MatchJob, cfg.QueueSize),
		queued:  make(map[string]struct{}, cfg.QueueSize),
	}
}

// SetHandler binds the job handler. It must be called before Start; the
// handler usually depends on the service that enqueues into l.
func (l *Local) SetHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		l.handler = h
	}
}

// EnqueueMatch queues job without waiting for it to run.
func (l *Local) EnqueueMatch(_ context.Context, job domain.MatchJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if _, dup := l.queued[job.DeliveryID]; dup {
		return nil
	}
	select {
	case l.jobs <- job:
		l.queued[job.DeliveryID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queued)
}

// Start launches the workers. ctx bounds every job they run.
func (l *Local) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true

	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.work(ctx, i)
	}
	l.logger.Info("match workers started", logx.Int("workers", l.cfg.Workers), logx.Int("queue_size", l.cfg.QueueSize))
}

// Stop rejects new jobs, lets the workers drain the queue and waits for them.
func (l *Local) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.jobs)
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("match workers stopped")
}

func (l *Local) work(ctx context.Context, id int) {
	defer l.wg.Done()
	for job := range l.jobs {
		l.mu.Lock()
		delete(l.queued, job.DeliveryID)
		l.mu.Unlock()

		l.run(ctx, id, job)
	}
}

func (l *Local) run(ctx context.Context, worker int, job domain.MatchJob) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("match job panicked",
				logx.Int("worker", worker),
				logx.String("delivery_id", job.DeliveryID),
				logx.Any("panic", p),
			)
		}
	}()

	if l.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.JobTimeout)
		defer cancel()
	}
	if l.handler == nil {
		l.logger.Error("match job dropped: no handler bound", logx.String("delivery_id", job.DeliveryID))
		return
	}
	// the handler logs its own failures
	_ = l.handler.Handle(ctx, job)
}
