package domain

import "encoding/json"

// Realtime event names.
const (
	EventDeliveryAssigned       = "delivery_assigned"
	EventDeliveryStatusUpdated  = "delivery_status_updated"
	EventCourierLocationUpdated = "courier_location_updated"
	EventRegistered             = "registered"
)

// Notification is a realtime message. It is sent as a flat JSON object
// {"event": Event, ...Fields}.
type Notification struct {
	Event  string
	Fields map[string]any
}

// MarshalJSON flattens Fields next to the event name.
func (n Notification) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Fields)+1)
	for k, v := range n.Fields {
		out[k] = v
	}
	out["event"] = n.Event
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ev, _ := raw["event"].(string)
	delete(raw, "event")
	n.Event = ev
	n.Fields = raw
	return nil
}

// DeliveryAssigned builds the courier-facing assignment event.
func DeliveryAssigned(d *Delivery) Notification {
	return Notification{
		Event: EventDeliveryAssigned,
		Fields: map[string]any{
			"delivery_id":     d.ID,
			"pickup":          map[string]float64{"lat": d.Pickup.Lat, "lng": d.Pickup.Lng},
			"dropoff":         map[string]float64{"lat": d.Dropoff.Lat, "lng": d.Dropoff.Lng},
			"recipient_name":  d.RecipientName,
			"recipient_phone": d.RecipientPhone,
			"instructions":    d.Instructions,
			"fee":             d.Fee,
		},
	}
}

// DeliveryStatusUpdated builds the status change event.
func DeliveryStatusUpdated(d *Delivery) Notification {
	fields := map[string]any{
		"delivery_id": d.ID,
		"status":      string(d.Status),
	}
	if d.AssignedCourier != "" {
		fields["courier_id"] = d.AssignedCourier
	}
	return Notification{Event: EventDeliveryStatusUpdated, Fields: fields}
}

// CourierLocationUpdated builds the location broadcast event.
func CourierLocationUpdated(loc CourierLocation) Notification {
	return Notification{
		Event: EventCourierLocationUpdated,
		Fields: map[string]any{
			"courier_id": loc.CourierID,
			"lat":        loc.Point.Lat,
			"lng":        loc.Point.Lng,
		},
	}
}
