//go:generate mockgen -source=contracts.go -destination=delivery_mocks_test.go -package=delivery_test

package delivery

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/deliverytx"
)

// Store persists deliveries.
type Store interface {
	Create(ctx context.Context, d *domain.Delivery) error
	// Get returns nil, nil when the delivery does not exist.
	Get(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context, f domain.DeliveryFilter) ([]domain.Delivery, error)
	ListPendingIDs(ctx context.Context) ([]string, error)
	// ApplyStatusChange returns nil, nil when the delivery is no longer in change.From.
	ApplyStatusChange(ctx context.Context, id string, change domain.StatusChange) (*domain.Delivery, error)
	WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) error
}

// Scheduler queues match jobs. Enqueueing never waits for the match itself.
type Scheduler interface {
	EnqueueMatch(ctx context.Context, job domain.MatchJob) error
}

// Notifier pushes a realtime message to every channel of a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) error
}
