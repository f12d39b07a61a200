package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/depot-ops/depot-ops/internal/platform/db"
	"github.com/depot-ops/depot-ops/internal/shared"
)

// idempotencyModule namespaces payment keys in idempotency_keys.
const idempotencyModule = "finance.payment"

// Repository is the read side of the order catalog plus the transaction entry point.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter Filter) ([]Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	Summary(ctx context.Context, branch string) (Summary, error)
}

// TxRepository holds the writes that must share one transaction.
type TxRepository interface {
	LockOrder(ctx context.Context, id string) (*Order, error)
	InsertOrder(ctx context.Context, order Order) error
	UpdateOrder(ctx context.Context, id string, updates map[string]interface{}) error
	ReplaceItems(ctx context.Context, id string, items []Item) error
	DeleteOrder(ctx context.Context, id string) error
	OnTrip(ctx context.Context, id string) (bool, error)
	ClaimIdempotencyKey(ctx context.Context, key string) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, customer_id, customer_name, customer_address, customer_whatsapp, customer_discount,
	branch, total_amount, delivery_date, status, payment_status, paid_date, payment_evidence,
	delivered_date, delivery_evidence, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerAddress, &o.CustomerWhatsApp,
		&o.CustomerDiscount, &o.Branch, &o.TotalAmount, &o.DeliveryDate, &o.Status, &o.PaymentStatus,
		&o.PaidDate, &o.PaymentEvidence, &o.DeliveredDate, &o.DeliveryEvidence, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Items = []Item{}
	return &o, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Order, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Branch != "" {
		conditions = append(conditions, fmt.Sprintf("branch = $%d", argPos))
		args = append(args, filter.Branch)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argPos))
		args = append(args, string(filter.PaymentStatus))
		argPos++
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the lines of every order in one round trip.
func (r *repository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	rows, err := r.db.Query(ctx, `SELECT order_id, product_id, product, is_refill, quantity, unit_price, discount
		FROM order_items WHERE order_id = ANY($1::text[]::uuid[]) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.Product, &it.IsRefill, &it.Quantity, &it.UnitPrice, &it.Discount); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func (r *repository) get(ctx context.Context, query, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	list := []Order{*o}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *repository) Get(ctx context.Context, id string) (*Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *repository) LockOrder(ctx context.Context, id string) (*Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) Summary(ctx context.Context, branch string) (Summary, error) {
	var s Summary
	err := r.db.QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE payment_status = 'paid'),
			COUNT(*) FILTER (WHERE payment_status = 'unpaid'),
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'unpaid'), 0)
		FROM orders WHERE ($1 = '' OR branch = $1)`, branch).
		Scan(&s.Pending, &s.Scheduled, &s.Delivered, &s.Paid, &s.Unpaid, &s.Receivable)
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (r *repository) InsertOrder(ctx context.Context, o Order) error {
	_, err := r.db.Exec(ctx, `INSERT INTO orders (id, customer_id, customer_name, customer_address,
			customer_whatsapp, customer_discount, branch, total_amount, delivery_date, status,
			payment_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.CustomerID, o.CustomerName, o.CustomerAddress, o.CustomerWhatsApp, o.CustomerDiscount,
		o.Branch, o.TotalAmount, o.DeliveryDate, string(o.Status), string(o.PaymentStatus), o.CreatedBy)
	if err != nil {
		return err
	}
	return r.ReplaceItems(ctx, o.ID, o.Items)
}

var updatableColumns = []string{
	"customer_id", "customer_name", "customer_address", "customer_whatsapp", "customer_discount",
	"branch", "total_amount", "delivery_date", "payment_status", "paid_date", "payment_evidence",
}

func (r *repository) UpdateOrder(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	var setClauses []string
	var args []interface{}
	argPos := 1
	for _, col := range updatableColumns {
		val, ok := updates[col]
		if !ok {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceItems(ctx context.Context, id string, items []Item) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}
	for i, it := range items {
		_, err := r.db.Exec(ctx, `INSERT INTO order_items (order_id, product_id, product, is_refill, quantity, unit_price, discount, line_no)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, it.ProductID, it.Product, it.IsRefill, it.Quantity, it.UnitPrice, it.Discount, i+1)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *repository) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) OnTrip(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE $1::uuid = ANY(order_ids))`, id).Scan(&exists)
	return exists, err
}

func (r *repository) ClaimIdempotencyKey(ctx context.Context, key string) error {
	return shared.NewIdempotencyStore(r.db).CheckAndInsert(ctx, key, idempotencyModule)
}

func (r *repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.db, log)
}
