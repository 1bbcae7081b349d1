package handlers

import "courier-dispatch/internal/domain"

func (c *coordinateDTO) toDomain() *domain.Coordinate {
	if c == nil {
		return nil
	}
	return &domain.Coordinate{Lat: c.Lat, Lng: c.Lng}
}

func coordinateFromDomain(c domain.Coordinate) coordinateDTO {
	return coordinateDTO{Lat: c.Lat, Lng: c.Lng}
}

func (r createDeliveryRequest) toDomain() domain.NewDelivery {
	return domain.NewDelivery{
		Pickup:         r.Pickup.toDomain(),
		Dropoff:        r.Dropoff.toDomain(),
		RecipientName:  r.RecipientName,
		RecipientPhone: r.RecipientPhone,
		Instructions:   r.Instructions,
	}
}

func deliveryToResponse(d *domain.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:             d.ID,
		Status:         string(d.Status),
		Pickup:         coordinateFromDomain(d.Pickup),
		Dropoff:        coordinateFromDomain(d.Dropoff),
		RecipientName:  d.RecipientName,
		RecipientPhone: d.RecipientPhone,
		Instructions:   d.Instructions,
		CreatedBy:      d.CreatedBy,
		CourierID:      d.AssignedCourier,
		Fee:            d.Fee,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		PickedUpAt:     d.PickedUpAt,
		DeliveredAt:    d.DeliveredAt,
	}
}

func deliveriesToResponse(list []domain.Delivery) []deliveryResponse {
	out := make([]deliveryResponse, 0, len(list))
	for i := range list {
		out = append(out, deliveryToResponse(&list[i]))
	}
	return out
}
