package matching

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/retry"
)

// Processor executes a single match job. Running it twice for the same
// delivery is safe: anything that is no longer pending is skipped.
type Processor struct {
	deliveries DeliveryReader
	finder     CourierFinder
	assigner   Assigner
	metrics    *metrics.Dispatch
	logger     logx.Logger
}

// NewProcessor creates a Processor. m may be nil.
func NewProcessor(deliveries DeliveryReader, finder CourierFinder, assigner Assigner, m *metrics.Dispatch, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Processor{
		deliveries: deliveries,
		finder:     finder,
		assigner:   assigner,
		metrics:    m,
		logger:     logger,
	}
}

// Handle loads the delivery, finds the nearest eligible courier and assigns it.
// Errors wrapped with retry.Permanent must not be retried.
func (p *Processor) Handle(ctx context.Context, job domain.MatchJob) error {
	if job.DeliveryID == "" {
		return retry.Permanent(fmt.Errorf("%w: empty delivery id", apperr.ErrInvalid))
	}

	d, err := p.deliveries.Get(ctx, job.DeliveryID)
	if err != nil {
		return fmt.Errorf("load delivery %s: %w", job.DeliveryID, err)
	}
	if d == nil {
		return retry.Permanent(fmt.Errorf("delivery %s: %w", job.DeliveryID, apperr.ErrNotFound))
	}
	if d.Status != domain.StatusPending {
		p.observe(metrics.OutcomeSkipped)
		p.logger.Debug("match skipped",
			logx.String("delivery_id", d.ID),
			logx.String("status", string(d.Status)),
		)
		return nil
	}
	if err := d.Pickup.Validate(); err != nil {
		return retry.Permanent(fmt.Errorf("delivery %s pickup: %w", d.ID, err))
	}

	match, ok, err := p.finder.FindCourier(ctx, d.Pickup)
	if err != nil {
		return err
	}
	if !ok {
		p.observe(metrics.OutcomeNoMatch)
		p.logger.Info("no eligible courier",
			logx.String("delivery_id", d.ID),
			logx.String("reason", string(job.Reason)),
		)
		return nil
	}

	assigned, err := p.assigner.Assign(ctx, d.ID, match.CourierID)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			p.observe(metrics.OutcomeConflict)
		}
		return err
	}
	if !assigned {
		p.observe(metrics.OutcomeSkipped)
		return nil
	}

	p.observe(metrics.OutcomeAssigned)
	p.logger.Info("delivery matched",
		logx.String("delivery_id", d.ID),
		logx.String("courier_id", match.CourierID),
		logx.Float64("distance_km", match.DistanceKm),
		logx.String("reason", string(job.Reason)),
	)
	return nil
}

func (p *Processor) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.Matches.WithLabelValues(outcome).Inc()
	}
}
