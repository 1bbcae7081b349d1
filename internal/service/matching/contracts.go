package matching

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

// DeliveryReader loads a delivery; nil, nil means it does not exist.
type DeliveryReader interface {
	Get(ctx context.Context, id string) (*domain.Delivery, error)
}

// CourierFinder picks a courier for a pickup point.
type CourierFinder interface {
	FindCourier(ctx context.Context, pickup domain.Coordinate) (dispatch.Match, bool, error)
}

// Assigner commits an assignment.
type Assigner interface {
	Assign(ctx context.Context, deliveryID, courierID string) (bool, error)
}

// Handler runs a match job.
type Handler interface {
	Handle(ctx context.Context, job domain.MatchJob) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job domain.MatchJob) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job domain.MatchJob) error { return f(ctx, job) }
