package trips

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/depot-ops/depot-ops/internal/platform/db"
	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
)

// idempotencyModule namespaces delivery confirmation keys.
const idempotencyModule = "delivery.confirm"

// Reader is available both on the pool and inside a transaction.
type Reader interface {
	ListTrips(ctx context.Context, branch string) ([]Trip, error)
	GetTrip(ctx context.Context, id string) (*Trip, error)
	ReconcileOrders(ctx context.Context) ([]OrderState, error)
}

// Repository is the trip store.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CountTrips(ctx context.Context, branch string) (int, error)
}

// TxRepository exposes the locking reads and writes of one engine operation.
type TxRepository interface {
	Reader
	InsertTrip(ctx context.Context, trip Trip) error
	LockOrders(ctx context.Context, ids []string) ([]OrderState, error)
	TripsContaining(ctx context.Context, orderID string) ([]string, error)
	LockTrip(ctx context.Context, id string) (*Trip, error)
	SaveRoster(ctx context.Context, id string, orderIDs []string, status Status) error
	SetOrderStatus(ctx context.Context, id string, from, to orders.Status) (bool, error)
	MarkDelivered(ctx context.Context, id string, date time.Time, evidence *string) (bool, error)
	DeleteTrip(ctx context.Context, id string) error
	UpdateDriver(ctx context.Context, id, driver string) error
	ClaimIdempotencyKey(ctx context.Context, key string) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL trip repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const tripColumns = `id, name, trip_date, driver, branch, order_ids, status, created_at, updated_at`

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.Name, &t.TripDate, &t.Driver, &t.Branch, &t.OrderIDs, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.OrderIDs == nil {
		t.OrderIDs = []string{}
	}
	return &t, nil
}

func (r *repository) ListTrips(ctx context.Context, branch string) ([]Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips`
	var args []interface{}
	if branch != "" {
		query += ` WHERE branch = $1 OR branch = $2`
		args = append(args, branch, shared.SharedScope)
	}
	query += ` ORDER BY name, created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (r *repository) GetTrip(ctx context.Context, id string) (*Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
}

func (r *repository) LockTrip(ctx context.Context, id string) (*Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) CountTrips(ctx context.Context, branch string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE branch = $1`, branch).Scan(&n)
	return n, err
}

func (r *repository) InsertTrip(ctx context.Context, t Trip) error {
	_, err := r.db.Exec(ctx, `INSERT INTO trips (id, name, trip_date, driver, branch, order_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6::text[]::uuid[], $7)`,
		t.ID, t.Name, t.TripDate, t.Driver, t.Branch, t.OrderIDs, string(t.Status))
	return err
}

// ReconcileOrders returns every scheduled order plus every order some roster names.
func (r *repository) ReconcileOrders(ctx context.Context) ([]OrderState, error) {
	rows, err := r.db.Query(ctx, `SELECT id, branch, status FROM orders
		WHERE status = 'scheduled' OR id IN (SELECT unnest(order_ids) FROM trips)
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderStates(rows)
}

func collectOrderStates(rows pgx.Rows) ([]OrderState, error) {
	states := []OrderState{}
	for rows.Next() {
		var s OrderState
		if err := rows.Scan(&s.ID, &s.Branch, &s.Status); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// LockOrders locks the given orders in id order. Missing ids are simply absent.
func (r *repository) LockOrders(ctx context.Context, ids []string) ([]OrderState, error) {
	if len(ids) == 0 {
		return []OrderState{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, branch, status FROM orders
		WHERE id = ANY($1::text[]::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderStates(rows)
}

func (r *repository) TripsContaining(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM trips WHERE $1::uuid = ANY(order_ids) ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) SaveRoster(ctx context.Context, id string, orderIDs []string, status Status) error {
	if orderIDs == nil {
		orderIDs = []string{}
	}
	tag, err := r.db.Exec(ctx, `UPDATE trips SET order_ids = $2::text[]::uuid[], status = $3, updated_at = NOW() WHERE id = $1`,
		id, orderIDs, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOrderStatus moves an order from one status to another and reports
// whether the row was still in the expected state.
func (r *repository) SetOrderStatus(ctx context.Context, id string, from, to orders.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) MarkDelivered(ctx context.Context, id string, date time.Time, evidence *string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE orders
		SET status = 'delivered', delivered_date = $2, delivery_evidence = COALESCE($3, delivery_evidence), updated_at = NOW()
		WHERE id = $1 AND status <> 'delivered'`, id, date, evidence)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) DeleteTrip(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = $1 AND cardinality(order_ids) = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNonEmptyTrip
	}
	return nil
}

func (r *repository) UpdateDriver(ctx context.Context, id, driver string) error {
	tag, err := r.db.Exec(ctx, `UPDATE trips SET driver = $2, updated_at = NOW() WHERE id = $1`, id, driver)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ClaimIdempotencyKey(ctx context.Context, key string) error {
	return shared.NewIdempotencyStore(r.db).CheckAndInsert(ctx, key, idempotencyModule)
}

func (r *repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.db, log)
}
