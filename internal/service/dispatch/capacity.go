package dispatch

import (
	"context"
	"fmt"
)

// DefaultCapacityLimit is the number of active deliveries at which a courier stops being offered work.
const DefaultCapacityLimit = 2

// CapacityGate admits a courier while it has fewer than limit active deliveries.
type CapacityGate struct {
	counter ActiveCounter
	limit   int
}

// NewCapacityGate creates a gate. A non-positive limit falls back to DefaultCapacityLimit.
func NewCapacityGate(counter ActiveCounter, limit int) *CapacityGate {
	if limit <= 0 {
		limit = DefaultCapacityLimit
	}
	return &CapacityGate{counter: counter, limit: limit}
}

// Limit returns the configured capacity.
func (g *CapacityGate) Limit() int { return g.limit }

// IsEligible queries the live active count; nothing is cached.
func (g *CapacityGate) IsEligible(ctx context.Context, courierID string) (bool, error) {
	n, err := g.counter.CountActive(ctx, courierID)
	if err != nil {
		return false, fmt.Errorf("count active deliveries of %s: %w", courierID, err)
	}
	return n < g.limit, nil
}
