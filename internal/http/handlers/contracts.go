package handlers

import (
	"context"

	"courier-dispatch/internal/domain"
)

type deliveryUsecase interface {
	Create(ctx context.Context, actor string, in domain.NewDelivery) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, actor, deliveryID string, to domain.Status) (*domain.Delivery, error)
	Get(ctx context.Context, actor, deliveryID string) (*domain.Delivery, error)
	List(ctx context.Context, actor string, f domain.DeliveryFilter) ([]domain.Delivery, error)
}

type locationStore interface {
	Upsert(ctx context.Context, loc domain.CourierLocation) error
}

type broadcaster interface {
	BroadcastNotification(ctx context.Context, n domain.Notification) (int, error)
}
