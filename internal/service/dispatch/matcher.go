package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Match is the courier chosen for a pickup.
type Match struct {
	CourierID  string
	DistanceKm float64
}

// Matcher selects the nearest eligible courier for a pickup point.
//
// Candidates are ranked by distance and then by ascending courier id, so
// equidistant couriers always resolve to the smallest id. The matcher never
// writes; the caller commits the assignment.
type Matcher struct {
	locations LocationSource
	gate      Gate
	logger    logx.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(locations LocationSource, gate Gate, logger logx.Logger) *Matcher {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Matcher{locations: locations, gate: gate, logger: logger}
}

type candidate struct {
	courierID string
	distance  float64
}

// FindCourier returns the nearest courier under capacity, or false when none is eligible.
func (m *Matcher) FindCourier(ctx context.Context, pickup domain.Coordinate) (Match, bool, error) {
	locs, err := m.locations.List(ctx)
	if err != nil {
		return Match{}, false, fmt.Errorf("list courier locations: %w", err)
	}

	candidates := make([]candidate, 0, len(locs))
	for _, loc := range locs {
		if loc.CourierID == "" || !loc.Point.Valid() {
			m.logger.Warn("skipping courier with invalid location",
				logx.String("courier_id", loc.CourierID),
				logx.Float64("lat", loc.Point.Lat),
				logx.Float64("lng", loc.Point.Lng),
			)
			continue
		}
		candidates = append(candidates, candidate{
			courierID: loc.CourierID,
			distance:  domain.DistanceKm(pickup, loc.Point),
		})
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.courierID, b.courierID)
	})

	for _, c := range candidates {
		ok, err := m.gate.IsEligible(ctx, c.courierID)
		if err != nil {
			return Match{}, false, err
		}
		if ok {
			return Match{CourierID: c.courierID, DistanceKm: c.distance}, true, nil
		}
	}
	return Match{}, false, nil
}
