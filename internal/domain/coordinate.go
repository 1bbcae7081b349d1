package domain

import (
	"fmt"
	"math"

	"courier-dispatch/internal/apperr"
)

// Coordinate is a WGS 84 point in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Validate checks that the coordinate lies on the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", apperr.ErrInvalid, c.Lat)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", apperr.ErrInvalid, c.Lng)
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (c Coordinate) Valid() bool {
	return c.Validate() == nil
}
