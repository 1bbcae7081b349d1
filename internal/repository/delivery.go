package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/deliverytx"
)

const deliveryColumns = `id::text, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
    recipient_name, recipient_phone, instructions, status, created_by,
    assigned_courier, fee, created_at, updated_at, picked_up_at, delivered_at`

var deliveryColumnList = []any{
	goqu.L("id::text"), "pickup_lat", "pickup_lng", "dropoff_lat", "dropoff_lng",
	"recipient_name", "recipient_phone", "instructions", "status", "created_by",
	"assigned_courier", "fee", "created_at", "updated_at", "picked_up_at", "delivered_at",
}

const maxListLimit = 100

var pg = goqu.Dialect("postgres")

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DeliveryRepo stores deliveries in PostgreSQL.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Create inserts a new delivery.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO deliveries (id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            recipient_name, recipient_phone, instructions, status, created_by,
            assigned_courier, fee, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `, d.ID, d.Pickup.Lat, d.Pickup.Lng, d.Dropoff.Lat, d.Dropoff.Lng,
		d.RecipientName, d.RecipientPhone, d.Instructions, string(d.Status), d.CreatedBy,
		nullable(d.AssignedCourier), d.Fee, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("create delivery %s: %w", d.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

// Get returns the delivery or nil when it does not exist.
func (r *DeliveryRepo) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	d, err := getDelivery(ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return d, nil
}

// List returns deliveries matching the filter, newest first.
func (r *DeliveryRepo) List(ctx context.Context, f domain.DeliveryFilter) ([]domain.Delivery, error) {
	ds := pg.From("deliveries").Select(deliveryColumnList...)
	if f.Participant != "" {
		ds = ds.Where(goqu.Or(
			goqu.C("created_by").Eq(f.Participant),
			goqu.C("assigned_courier").Eq(f.Participant),
		))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	ds = ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).Limit(uint(limit))
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Delivery, 0, limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListPendingIDs returns ids of every pending delivery, oldest first.
func (r *DeliveryRepo) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text FROM deliveries WHERE status = $1 ORDER BY created_at, id`,
		string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect pending deliveries: %w", err)
	}
	return ids, nil
}

// CountActive counts the courier's accepted and in-progress deliveries.
func (r *DeliveryRepo) CountActive(ctx context.Context, courierID string) (int, error) {
	return countActive(ctx, r.db, courierID)
}

// ApplyStatusChange writes the change only while the delivery is still in
// change.From. It returns nil when the condition did not hold.
func (r *DeliveryRepo) ApplyStatusChange(ctx context.Context, id string, change domain.StatusChange) (*domain.Delivery, error) {
	row := r.db.QueryRow(ctx, `
        UPDATE deliveries
        SET status = $3,
            updated_at = $4,
            picked_up_at = COALESCE($5, picked_up_at),
            delivered_at = COALESCE($6, delivered_at)
        WHERE id = $1 AND status = $2
        RETURNING `+deliveryColumns,
		id, string(change.From), string(change.To), change.At, change.PickedUpAt, change.DeliveredAt)

	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("apply status change %s %s->%s: %w", id, change.From, change.To, err)
	}
	return d, nil
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo runs delivery operations inside a transaction.
type TxRepo struct {
	tx pgx.Tx
}

// LockCourier takes a transaction-scoped advisory lock keyed by courier id.
func (r *TxRepo) LockCourier(ctx context.Context, courierID string) error {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, courierID); err != nil {
		return fmt.Errorf("lock courier %s: %w", courierID, err)
	}
	return nil
}

// CountActive counts active deliveries as seen by the transaction.
func (r *TxRepo) CountActive(ctx context.Context, courierID string) (int, error) {
	return countActive(ctx, r.tx, courierID)
}

// AssignIfPending is the compare-and-swap pending -> accepted.
func (r *TxRepo) AssignIfPending(ctx context.Context, deliveryID, courierID string, at time.Time) (*domain.Delivery, error) {
	row := r.tx.QueryRow(ctx, `
        UPDATE deliveries
        SET status = $3, assigned_courier = $4, updated_at = $5
        WHERE id = $1 AND status = $2
        RETURNING `+deliveryColumns,
		deliveryID, string(domain.StatusPending), string(domain.StatusAccepted), courierID, at)

	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("assign delivery %s: %w", deliveryID, err)
	}
	return d, nil
}

var _ deliverytx.Repository = (*TxRepo)(nil)

func getDelivery(ctx context.Context, q queryer, id string) (*domain.Delivery, error) {
	row := q.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func countActive(ctx context.Context, q queryer, courierID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM deliveries WHERE assigned_courier = $1 AND status = ANY($2)`,
		courierID, activeStatuses(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active deliveries of %s: %w", courierID, err)
	}
	return n, nil
}

func activeStatuses() []string {
	out := make([]string, 0, len(domain.ActiveStatuses))
	for _, s := range domain.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var (
		d        domain.Delivery
		status   string
		assigned *string
	)
	err := row.Scan(
		&d.ID, &d.Pickup.Lat, &d.Pickup.Lng, &d.Dropoff.Lat, &d.Dropoff.Lng,
		&d.RecipientName, &d.RecipientPhone, &d.Instructions, &status, &d.CreatedBy,
		&assigned, &d.Fee, &d.CreatedAt, &d.UpdatedAt, &d.PickedUpAt, &d.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = domain.Status(status)
	if assigned != nil {
		d.AssignedCourier = *assigned
	}
	return &d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
