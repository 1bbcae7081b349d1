package domain

import (
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/apperr"
)

// Delivery is a single pickup-to-dropoff job.
type Delivery struct {
	ID              string
	Pickup          Coordinate
	Dropoff         Coordinate
	RecipientName   string
	RecipientPhone  string
	Instructions    string
	Status          Status
	CreatedBy       string
	AssignedCourier string
	Fee             float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PickedUpAt      *time.Time
	DeliveredAt     *time.Time
}

// IsAssignedTo reports whether courierID currently holds the delivery.
func (d *Delivery) IsAssignedTo(courierID string) bool {
	return d.AssignedCourier != "" && d.AssignedCourier == courierID
}

// NewDelivery carries create-delivery input.
// Pickup and Dropoff are pointers so a missing coordinate is distinguishable from (0,0).
type NewDelivery struct {
	Pickup         *Coordinate
	Dropoff        *Coordinate
	RecipientName  string
	RecipientPhone string
	Instructions   string
}

// Validate checks create-delivery input.
func (n NewDelivery) Validate() error {
	if n.Pickup == nil {
		return fmt.Errorf("%w: pickup is required", apperr.ErrInvalid)
	}
	if n.Dropoff == nil {
		return fmt.Errorf("%w: dropoff is required", apperr.ErrInvalid)
	}
	if err := n.Pickup.Validate(); err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if err := n.Dropoff.Validate(); err != nil {
		return fmt.Errorf("dropoff: %w", err)
	}
	if strings.TrimSpace(n.RecipientName) == "" {
		return fmt.Errorf("%w: recipient name is required", apperr.ErrInvalid)
	}
	if strings.TrimSpace(n.RecipientPhone) == "" {
		return fmt.Errorf("%w: recipient phone is required", apperr.ErrInvalid)
	}
	return nil
}

// StatusChange is a conditional status write: it applies only while the
// delivery is still in From.
type StatusChange struct {
	From        Status
	To          Status
	At          time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
}

// DeliveryFilter narrows a delivery listing.
type DeliveryFilter struct {
	// Participant matches deliveries created by or assigned to the user.
	Participant string
	Status      Status
	Limit       int
	Offset      int
}
