package domain

import "math"

// Fee policy constants.
const (
	FeePerKm = 2.0
	BaseFee  = 5.0
)

// Fee prices a delivery by its pickup-dropoff distance, rounded to cents.
func Fee(distanceKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	return math.Round((FeePerKm*distanceKm+BaseFee)*100) / 100
}

// FeeBetween prices a delivery between two points.
func FeeBetween(pickup, dropoff Coordinate) float64 {
	return Fee(DistanceKm(pickup, dropoff))
}
