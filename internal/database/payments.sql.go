package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, table_id, amount, method, status, version, created_at, paid_at, refunded_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.TableID,
		&i.Amount,
		&i.Method,
		&i.Status,
		&i.Version,
		&i.CreatedAt,
		&i.PaidAt,
		&i.RefundedAt,
	)
	return i, err
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
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

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (order_id, table_id, amount, method)
VALUES ($1, $2, $3, $4)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID uuid.UUID
	TableID uuid.UUID
	Amount  pgtype.Numeric
	Method  PaymentMethod
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.TableID, arg.Amount, arg.Method))
}

const getPayment = `-- name: GetPayment :one
SELECT ` + paymentColumns + ` FROM payments
WHERE id = $1
`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const getPaymentForUpdate = `-- name: GetPaymentForUpdate :one
SELECT ` + paymentColumns + ` FROM payments
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentForUpdate, id))
}

const getActivePaymentByOrder = `-- name: GetActivePaymentByOrder :one
SELECT ` + paymentColumns + ` FROM payments
WHERE order_id = $1 AND status IN ('pending', 'paid')
`

func (q *Queries) GetActivePaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getActivePaymentByOrder, orderID))
}

const listPayments = `-- name: ListPayments :many
SELECT ` + paymentColumns + ` FROM payments
WHERE ($1::payment_status IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR order_id = $2)
ORDER BY created_at DESC
`

type ListPaymentsParams struct {
	Status  pgtype.Text
	OrderID pgtype.UUID
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, arg.Status, arg.OrderID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

const markPaymentPaid = `-- name: MarkPaymentPaid :one
UPDATE payments
SET status = 'paid', paid_at = now(), version = version + 1
WHERE id = $1 AND status = 'pending'
RETURNING ` + paymentColumns

func (q *Queries) MarkPaymentPaid(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, markPaymentPaid, id))
}

const markPaymentRefunded = `-- name: MarkPaymentRefunded :one
UPDATE payments
SET status = 'refunded', refunded_at = now(), version = version + 1
WHERE id = $1 AND status = 'paid'
RETURNING ` + paymentColumns

func (q *Queries) MarkPaymentRefunded(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, markPaymentRefunded, id))
}

const listPaidPaymentsInRange = `-- name: ListPaidPaymentsInRange :many
SELECT ` + paymentColumns + ` FROM payments
WHERE status = 'paid' AND paid_at >= $1 AND paid_at < $2
ORDER BY paid_at
`

type ListPaidPaymentsInRangeParams struct {
	Start pgtype.Timestamptz
	End   pgtype.Timestamptz
}

func (q *Queries) ListPaidPaymentsInRange(ctx context.Context, arg ListPaidPaymentsInRangeParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaidPaymentsInRange, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}
