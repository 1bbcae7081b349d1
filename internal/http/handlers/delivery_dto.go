package handlers

import "time"

type coordinateDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type createDeliveryRequest struct {
	Pickup         *coordinateDTO `json:"pickup"`
	Dropoff        *coordinateDTO `json:"dropoff"`
	RecipientName  string         `json:"recipient_name"`
	RecipientPhone string         `json:"recipient_phone"`
	Instructions   string         `json:"instructions,omitempty"`
}

type createDeliveryResponse struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Fee    float64 `json:"fee"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type deliveryResponse struct {
	ID             string        `json:"id"`
	Status         string        `json:"status"`
	Pickup         coordinateDTO `json:"pickup"`
	Dropoff        coordinateDTO `json:"dropoff"`
	RecipientName  string        `json:"recipient_name"`
	RecipientPhone string        `json:"recipient_phone"`
	Instructions   string        `json:"instructions,omitempty"`
	CreatedBy      string        `json:"created_by"`
	CourierID      string        `json:"courier_id,omitempty"`
	Fee            float64       `json:"fee"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	PickedUpAt     *time.Time    `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}
