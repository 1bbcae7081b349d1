package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/domain"
)

// LocationRepo stores the last known position of each courier.
type LocationRepo struct {
	db *pgxpool.Pool
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{db: db}
}

// Upsert records a position. An older observation never overwrites a newer one.
func (r *LocationRepo) Upsert(ctx context.Context, loc domain.CourierLocation) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO courier_locations (courier_id, lat, lng, observed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (courier_id) DO UPDATE
        SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, observed_at = EXCLUDED.observed_at
        WHERE courier_locations.observed_at <= EXCLUDED.observed_at
    `, loc.CourierID, loc.Point.Lat, loc.Point.Lng, loc.ObservedAt)
	if err != nil {
		return fmt.Errorf("upsert location of %s: %w", loc.CourierID, err)
	}
	return nil
}

// List returns every known courier location ordered by courier id.
func (r *LocationRepo) List(ctx context.Context) ([]domain.CourierLocation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT courier_id, lat, lng, observed_at FROM courier_locations ORDER BY courier_id`)
	if err != nil {
		return nil, fmt.Errorf("list courier locations: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CourierLocation, error) {
		var l domain.CourierLocation
		err := row.Scan(&l.CourierID, &l.Point.Lat, &l.Point.Lng, &l.ObservedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan courier locations: %w", err)
	}
	return out, nil
}
