package dispatch

import (
	"context"

	"courier-dispatch/internal/domain"
)

// ActiveCounter reports how many deliveries a courier is currently working on.
type ActiveCounter interface {
	CountActive(ctx context.Context, courierID string) (int, error)
}

// LocationSource enumerates the last known position of every courier.
type LocationSource interface {
	List(ctx context.Context) ([]domain.CourierLocation, error)
}

// Gate decides whether a courier may take another delivery.
type Gate interface {
	IsEligible(ctx context.Context, courierID string) (bool, error)
}
