package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, table_id, items, status, payment_status, subtotal, discount_amount,
    tax_amount, tip_amount, total_amount, notes, version, ordered_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.TableID,
		&i.Items,
		&i.Status,
		&i.PaymentStatus,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TaxAmount,
		&i.TipAmount,
		&i.TotalAmount,
		&i.Notes,
		&i.Version,
		&i.OrderedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(order_number), 0) + 1)::int FROM orders
`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, table_id, items, subtotal, discount_amount,
    tax_amount, tip_amount, total_amount, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber    int32
	TableID        uuid.UUID
	Items          []OrderItem
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	TipAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.TableID,
		arg.Items,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TaxAmount,
		arg.TipAmount,
		arg.TotalAmount,
		arg.Notes,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::order_status IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR table_id = $2)
  AND ($3::order_payment_status IS NULL OR payment_status = $3)
  AND ($4::timestamptz IS NULL OR updated_at > $4)
ORDER BY ordered_at DESC
LIMIT $5 OFFSET $6
`

type ListOrdersParams struct {
	Status        pgtype.Text
	TableID       pgtype.UUID
	PaymentStatus pgtype.Text
	UpdatedSince  pgtype.Timestamptz
	Limit         int32
	Offset        int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.TableID,
		arg.PaymentStatus,
		arg.UpdatedSince,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// UpdateOrderState is the conditional write behind every lifecycle mutation.
// No rows means the version moved since the caller read the order.
const updateOrderState = `-- name: UpdateOrderState :one
UPDATE orders
SET items = $3, status = $4, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + orderColumns

type UpdateOrderStateParams struct {
	ID      uuid.UUID
	Version int32
	Items   []OrderItem
	Status  OrderStatus
}

func (q *Queries) UpdateOrderState(ctx context.Context, arg UpdateOrderStateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderState, arg.ID, arg.Version, arg.Items, arg.Status))
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET payment_status = 'paid', version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2 AND payment_status = 'unpaid'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID      uuid.UUID
	Version int32
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.Version))
}

const countOpenOrdersByTable = `-- name: CountOpenOrdersByTable :one
SELECT count(*) FROM orders
WHERE table_id = $1
  AND status NOT IN ('cancelled', 'closed')
  AND payment_status = 'unpaid'
  AND ($2::uuid IS NULL OR id <> $2)
`

type CountOpenOrdersByTableParams struct {
	TableID        uuid.UUID
	ExcludeOrderID pgtype.UUID
}

func (q *Queries) CountOpenOrdersByTable(ctx context.Context, arg CountOpenOrdersByTableParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOpenOrdersByTable, arg.TableID, arg.ExcludeOrderID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listOrdersInRange = `-- name: ListOrdersInRange :many
SELECT ` + orderColumns + ` FROM orders
WHERE ordered_at >= $1 AND ordered_at < $2
  AND status <> 'cancelled'
ORDER BY ordered_at
`

type ListOrdersInRangeParams struct {
	Start pgtype.Timestamptz
	End   pgtype.Timestamptz
}

func (q *Queries) ListOrdersInRange(ctx context.Context, arg ListOrdersInRangeParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersInRange, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}
