package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/deliverytx"
)

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	CapacityLimit    int
	OperationTimeout time.Duration
	NotifyTimeout    time.Duration
	// Transitions counts applied status changes by from/to labels; nil disables it.
	Transitions *prometheus.CounterVec
}

// Service owns every mutation of a delivery.
type Service struct {
	store     Store
	scheduler Scheduler
	notifier  Notifier
	logger    logx.Logger

	capacity         int
	operationTimeout time.Duration
	notifyTimeout    time.Duration
	transitions      *prometheus.CounterVec

	now   func() time.Time
	newID func() string
}

// NewDeliveryService creates a new delivery Service.
func NewDeliveryService(store Store, scheduler Scheduler, notifier Notifier, logger logx.Logger, opts Options) *Service {
	if opts.CapacityLimit <= 0 {
		opts.CapacityLimit = 2
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 3 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		store:            store,
		scheduler:        scheduler,
		notifier:         notifier,
		logger:           logger,
		capacity:         opts.CapacityLimit,
		operationTimeout: opts.OperationTimeout,
		notifyTimeout:    opts.NotifyTimeout,
		transitions:      opts.Transitions,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetIDGenerator replaces the delivery id source.
func (s *Service) SetIDGenerator(fn func() string) { s.newID = fn }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Create validates the input, prices the delivery, stores it as pending
// and asks the scheduler to find a courier.
func (s *Service) Create(ctx context.Context, actor string, in domain.NewDelivery) (*domain.Delivery, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	d := &domain.Delivery{
		ID:             s.newID(),
		Pickup:         *in.Pickup,
		Dropoff:        *in.Dropoff,
		RecipientName:  strings.TrimSpace(in.RecipientName),
		RecipientPhone: strings.TrimSpace(in.RecipientPhone),
		Instructions:   strings.TrimSpace(in.Instructions),
		Status:         domain.StatusPending,
		CreatedBy:      actor,
		Fee:            domain.FeeBetween(*in.Pickup, *in.Dropoff),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("delivery created",
		logx.String("event", "delivery_created"),
		logx.String("delivery_id", d.ID),
		logx.String("created_by", d.CreatedBy),
		logx.Float64("fee", d.Fee),
	)

	s.enqueue(ctx, d.ID, domain.MatchReasonCreated)
	return d, nil
}

// Assign moves a pending delivery to accepted for courierID.
//
// The write happens in one transaction that locks the courier, re-counts its
// active deliveries and updates only while the delivery is still pending.
// It reports false when the delivery was no longer pending, and
// apperr.ErrConflict when the courier reached its capacity meanwhile.
func (s *Service) Assign(ctx context.Context, deliveryID, courierID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var assigned *domain.Delivery
	err := s.store.WithTx(ctx, func(tx deliverytx.Repository) error {
		if err := tx.LockCourier(ctx, courierID); err != nil {
			return err
		}
		n, err := tx.CountActive(ctx, courierID)
		if err != nil {
			return err
		}
		if n >= s.capacity {
			return fmt.Errorf("courier %s has %d active deliveries: %w", courierID, n, apperr.ErrConflict)
		}
		d, err := tx.AssignIfPending(ctx, deliveryID, courierID, s.now())
		if err != nil {
			return err
		}
		assigned = d
		return nil
	})
	if err != nil {
		return false, err
	}
	if assigned == nil {
		return false, nil
	}

	s.countTransition(domain.StatusPending, domain.StatusAccepted)
	s.logger.Info("courier assigned",
		logx.String("event", "courier_assigned"),
		logx.String("delivery_id", assigned.ID),
		logx.String("courier_id", courierID),
	)

	s.notify(ctx, courierID, domain.DeliveryAssigned(assigned))
	s.notify(ctx, assigned.CreatedBy, domain.DeliveryStatusUpdated(assigned))
	return true, nil
}

// UpdateStatus applies a lifecycle transition requested by actor.
func (s *Service) UpdateStatus(ctx context.Context, actor, deliveryID string, to domain.Status) (*domain.Delivery, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, to)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.load(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	// accepted is only reachable through matching
	if to == domain.StatusAccepted || !cur.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, cur.Status, to)
	}
	if err := authorizeTransition(cur, actor, to); err != nil {
		return nil, err
	}

	now := s.now()
	change := domain.StatusChange{From: cur.Status, To: to, At: now}
	switch to {
	case domain.StatusInProgress:
		change.PickedUpAt = &now
	case domain.StatusCompleted:
		change.DeliveredAt = &now
	}

	updated, err := s.store.ApplyStatusChange(ctx, cur.ID, change)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("delivery %s changed concurrently: %w", cur.ID, apperr.ErrConflict)
	}

	s.countTransition(change.From, change.To)
	s.logger.Info("delivery status updated",
		logx.String("event", "delivery_status_updated"),
		logx.String("delivery_id", updated.ID),
		logx.String("from", string(change.From)),
		logx.String("to", string(change.To)),
		logx.String("actor", actor),
	)

	s.notify(ctx, updated.CreatedBy, domain.DeliveryStatusUpdated(updated))
	if to == domain.StatusCancelled && cur.AssignedCourier != "" {
		s.notify(ctx, cur.AssignedCourier, domain.DeliveryStatusUpdated(updated))
	}

	// completing (or cancelling an accepted delivery) frees courier capacity
	if to == domain.StatusCompleted || (to == domain.StatusCancelled && cur.AssignedCourier != "") {
		s.requeuePending(ctx)
	}
	return updated, nil
}

// Get returns a delivery visible to actor.
func (s *Service) Get(ctx context.Context, actor, deliveryID string) (*domain.Delivery, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.load(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.CreatedBy != actor && !d.IsAssignedTo(actor) {
		return nil, fmt.Errorf("%w: delivery %s", apperr.ErrForbidden, d.ID)
	}
	return d, nil
}

// List returns the deliveries actor created or is assigned to.
func (s *Service) List(ctx context.Context, actor string, f domain.DeliveryFilter) ([]domain.Delivery, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", apperr.ErrInvalid)
	}
	f.Participant = actor

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.store.List(ctx, f)
}

// RequeuePending enqueues a match job for every pending delivery and
// returns how many were enqueued.
func (s *Service) RequeuePending(ctx context.Context, reason domain.MatchReason) (int, error) {
	ids, err := s.store.ListPendingIDs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if s.enqueue(ctx, id, reason) {
			n++
		}
	}
	return n, nil
}

func (s *Service) requeuePending(ctx context.Context) {
	n, err := s.RequeuePending(ctx, domain.MatchReasonCompleted)
	if err != nil {
		s.logger.Error("requeue pending deliveries", logx.Err(err))
		return
	}
	s.logger.Debug("pending deliveries requeued", logx.Int("count", n))
}

func (s *Service) load(ctx context.Context, id string) (*domain.Delivery, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("delivery %s: %w", id, apperr.ErrNotFound)
	}
	return d, nil
}

func (s *Service) enqueue(ctx context.Context, deliveryID string, reason domain.MatchReason) bool {
	err := s.scheduler.EnqueueMatch(ctx, domain.MatchJob{
		DeliveryID: deliveryID,
		Reason:     reason,
		EnqueuedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("enqueue match job",
			logx.String("delivery_id", deliveryID),
			logx.String("reason", string(reason)),
			logx.Err(err),
		)
		return false
	}
	return true
}

// notify is best effort: it outlives request cancellation but not notifyTimeout.
func (s *Service) notify(ctx context.Context, userID string, n domain.Notification) {
	if s.notifier == nil || userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Warn("notification failed",
			logx.String("user_id", userID),
			logx.String("event", n.Event),
			logx.Err(err),
		)
	}
}

func (s *Service) countTransition(from, to domain.Status) {
	if s.transitions != nil {
		s.transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func authorizeTransition(d *domain.Delivery, actor string, to domain.Status) error {
	switch to {
	case domain.StatusInProgress, domain.StatusCompleted:
		if !d.IsAssignedTo(actor) {
			return fmt.Errorf("%w: only the assigned courier may set %s", apperr.ErrForbidden, to)
		}
	case domain.StatusCancelled:
		if d.CreatedBy != actor {
			return fmt.Errorf("%w: only the creator may cancel", apperr.ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: %s", apperr.ErrInvalidTransition, to)
	}
	return nil
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", apperr.ErrUnauthorized
	}
	return actor, nil
}
