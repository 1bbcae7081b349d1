package domain

import "time"

// CourierLocation is the last reported position of a courier.
type CourierLocation struct {
	CourierID  string
	Point      Coordinate
	ObservedAt time.Time
}
