package deliverytx

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
)

// Repository is the set of delivery operations available inside an assignment transaction.
type Repository interface {
	// LockCourier serialises assignments to one courier until the transaction ends.
	LockCourier(ctx context.Context, courierID string) error
	CountActive(ctx context.Context, courierID string) (int, error)
	// AssignIfPending moves the delivery to accepted only while it is still pending.
	// It returns nil when the delivery was not pending.
	AssignIfPending(ctx context.Context, deliveryID, courierID string, at time.Time) (*domain.Delivery, error)
}

// Runner runs fn inside a single transaction.
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
