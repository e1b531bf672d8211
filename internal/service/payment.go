package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// PaymentStore defines the DB methods needed for payment reconciliation.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetActivePaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
	MarkPaymentPaid(ctx context.Context, id uuid.UUID) (database.Payment, error)
	MarkPaymentRefunded(ctx context.Context, id uuid.UUID) (database.Payment, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// SettleResult is what a settlement touched.
type SettleResult struct {
	Payment       database.Payment
	Order         database.Order
	TableReleased bool
	// AlreadyPaid is set when the payment had been settled before.
	AlreadyPaid bool
}

// PaymentService creates, settles and refunds payments. Settlement is the
// only path that marks an order paid.
type PaymentService struct {
	pool      Pool
	newStore  NewPaymentStore
	publisher events.Publisher
}

// NewPaymentService creates a new PaymentService. publisher may be nil.
func NewPaymentService(pool Pool, newStore NewPaymentStore, publisher events.Publisher) *PaymentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PaymentService{pool: pool, newStore: newStore, publisher: publisher}
}

// CreatePayment opens a pending payment for the full order total. The order
// must be served, unpaid and without another active payment.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID uuid.UUID, method string) (database.Payment, error) {
	pm := database.PaymentMethod(method)
	if !pm.Valid() {
		return database.Payment{}, apperr.Validation("invalid payment method %q", method)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return database.Payment{}, apperr.FromDB(err, "order")
	}
	if order.PaymentStatus == database.OrderPaymentStatusPaid {
		return database.Payment{}, apperr.InvalidState("order is already paid")
	}
	if order.Status != database.OrderStatusServed {
		return database.Payment{}, apperr.InvalidState("order is %s, payments need a served order", order.Status)
	}

	if existing, err := store.GetActivePaymentByOrder(ctx, order.ID); err == nil {
		return database.Payment{}, apperr.InvalidState("order already has a %s payment %s", existing.Status, existing.ID)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, fmt.Errorf("get active payment: %w", err)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID: order.ID,
		TableID: order.TableID,
		Amount:  order.TotalAmount,
		Method:  pm,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return database.Payment{}, apperr.InvalidState("order already has an active payment")
		}
		return database.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, fmt.Errorf("commit tx: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventPaymentCreated,
		payment.OrderID, payment.TableID, string(payment.Status), payment.Version, payment))
	return payment, nil
}

// SettlePayment marks the payment and its order paid and frees the table
// when nothing else is open on it, all in one transaction. Settling an
// already paid payment changes nothing.
func (s *PaymentService) SettlePayment(ctx context.Context, paymentID uuid.UUID) (*SettleResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPaymentForUpdate(ctx, paymentID)
	if err != nil {
		return nil, apperr.FromDB(err, "payment")
	}
	switch payment.Status {
	case database.PaymentStatusPaid:
		order, err := store.GetOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return nil, apperr.FromDB(err, "order")
		}
		return &SettleResult{Payment: payment, Order: order, AlreadyPaid: true}, nil
	case database.PaymentStatusRefunded:
		return nil, apperr.InvalidState("payment was refunded")
	}

	order, err := store.GetOrderForUpdate(ctx, payment.OrderID)
	if err != nil {
		return nil, apperr.FromDB(err, "order")
	}
	if order.Status == database.OrderStatusCancelled {
		return nil, apperr.InvalidState("order was cancelled")
	}

	paid, err := store.MarkPaymentPaid(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("payment changed during settlement")
		}
		return nil, fmt.Errorf("mark payment paid: %w", err)
	}

	if order.PaymentStatus != database.OrderPaymentStatusPaid {
		order, err = store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{ID: order.ID, Version: order.Version})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.Conflict("order changed during settlement")
			}
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
	}

	released, err := releaseTableIfIdle(ctx, store, order.TableID, order.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventPaymentSettled,
		order.ID, order.TableID, string(paid.Status), order.Version, paid))
	if released {
		events.Emit(ctx, s.publisher, events.New(enum.EventTableReleased,
			uuid.Nil, order.TableID, string(database.TableStatusAvailable), 0, nil))
	}
	return &SettleResult{Payment: paid, Order: order, TableReleased: released}, nil
}

// RefundPayment refunds a paid payment. The order keeps its paid status;
// refunds are a cash-drawer correction, not a reopening of the order.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uuid.UUID) (database.Payment, error) {
	store := s.newStore(s.pool)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		return database.Payment{}, apperr.FromDB(err, "payment")
	}
	if payment.Status != database.PaymentStatusPaid {
		return database.Payment{}, apperr.InvalidState("only paid payments can be refunded, payment is %s", payment.Status)
	}

	refunded, err := store.MarkPaymentRefunded(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, apperr.Conflict("payment changed during refund")
		}
		return database.Payment{}, fmt.Errorf("mark payment refunded: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventPaymentRefunded,
		refunded.OrderID, refunded.TableID, string(refunded.Status), refunded.Version, refunded))
	return refunded, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	payment, err := s.newStore(s.pool).GetPayment(ctx, id)
	if err != nil {
		return database.Payment{}, apperr.FromDB(err, "payment")
	}
	return payment, nil
}

// ListPayments backs the cashier board. Empty status and nil orderID match all.
func (s *PaymentService) ListPayments(ctx context.Context, status string, orderID *uuid.UUID) ([]database.Payment, error) {
	params := database.ListPaymentsParams{}
	if status != "" {
		switch database.PaymentStatus(status) {
		case database.PaymentStatusPending, database.PaymentStatusPaid, database.PaymentStatusRefunded:
		default:
			return nil, apperr.Validation("invalid payment status %q", status)
		}
		params.Status = pgtype.Text{String: status, Valid: true}
	}
	if orderID != nil {
		params.OrderID = pgtype.UUID{Bytes: *orderID, Valid: true}
	}
	payments, err := s.newStore(s.pool).ListPayments(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
