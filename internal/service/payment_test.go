package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/google/uuid"
)

func TestFullScenario_TenPlusFive(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, table := seedOrder(t, env)

	// Kitchen walks each item through every step.
	for _, step := range []string{"preparing", "ready", "served"} {
		for _, it := range order.Items {
			if _, err := env.orders.SetItemStatus(ctx, order.ID, it.ID, step, nil); err != nil {
				t.Fatalf("%s %s: %v", it.Name, step, err)
			}
		}
	}
	if got := env.store.order(order.ID).Status; got != database.OrderStatusServed {
		t.Fatalf("expected served, got %s", got)
	}

	payment, err := env.payments.CreatePayment(ctx, order.ID, "card")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if !numericEquals(payment.Amount, "15.00") {
		t.Errorf("payment amount = %v, want 15.00", payment.Amount)
	}
	if payment.Status != database.PaymentStatusPending {
		t.Errorf("expected pending, got %s", payment.Status)
	}

	res, err := env.payments.SettlePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Payment.Status != database.PaymentStatusPaid || res.Order.PaymentStatus != database.OrderPaymentStatusPaid {
		t.Errorf("expected paid payment and order, got %s / %s", res.Payment.Status, res.Order.PaymentStatus)
	}
	if !res.TableReleased {
		t.Error("expected table release")
	}
	if got := env.store.table(table.ID).Status; got != database.TableStatusAvailable {
		t.Errorf("expected available table, got %s", got)
	}

	closed, err := env.orders.SetOrderStatus(ctx, order.ID, "closed", nil)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != database.OrderStatusClosed {
		t.Errorf("expected closed, got %s", closed.Status)
	}
}

func TestSettlePayment_Idempotent(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, table := seedOrder(t, env)
	serveAll(t, env, order)

	payment, err := env.payments.CreatePayment(ctx, order.ID, "cash")
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	first, err := env.payments.SettlePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}

	// Someone seats a new party before the duplicate settle arrives.
	if _, err := env.store.OccupyTable(ctx, table.ID); err != nil {
		t.Fatal(err)
	}

	second, err := env.payments.SettlePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !second.AlreadyPaid || second.TableReleased {
		t.Errorf("second settle must be a no-op, got %+v", second)
	}
	if second.Order.Version != first.Order.Version {
		t.Errorf("order version moved on duplicate settle: %d -> %d", first.Order.Version, second.Order.Version)
	}
	if env.store.releases != 1 {
		t.Errorf("table released %d times, want 1", env.store.releases)
	}
	if got := env.store.table(table.ID).Status; got != database.TableStatusOccupied {
		t.Errorf("new party must keep the table, got %s", got)
	}
	if env.pub.seen(enum.EventPaymentSettled) != 1 {
		t.Errorf("expected one settled event, got %d", env.pub.seen(enum.EventPaymentSettled))
	}
}

func TestSettlePayment_KeepsTableWithOtherOpenOrder(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, table := seedOrder(t, env)
	tea := env.store.addMenuItem("Tea", "2.00", database.MenuItemStatusAvailable)
	if _, err := env.orders.CreateOrder(ctx, CreateOrderRequest{
		TableID: table.ID,
		Items:   []CreateOrderItemRequest{{MenuItemID: tea.ID, Quantity: 1}},
	}); err != nil {
		t.Fatal(err)
	}
	serveAll(t, env, order)

	payment, err := env.payments.CreatePayment(ctx, order.ID, "digital")
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.payments.SettlePayment(ctx, payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.TableReleased {
		t.Error("table must stay occupied while another order is open")
	}
}

func TestCreatePayment_Guards(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, _ := seedOrder(t, env)

	if _, err := env.payments.CreatePayment(ctx, order.ID, "barter"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad method: expected validation, got %v", err)
	}
	if _, err := env.payments.CreatePayment(ctx, uuid.New(), "cash"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing order: expected not found, got %v", err)
	}
	if _, err := env.payments.CreatePayment(ctx, order.ID, "cash"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("unserved order: expected invalid state, got %v", err)
	}

	serveAll(t, env, order)
	if _, err := env.payments.CreatePayment(ctx, order.ID, "cash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.payments.CreatePayment(ctx, order.ID, "card"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second active payment: expected invalid state, got %v", err)
	}
}

func TestRefundPayment(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, _ := seedOrder(t, env)
	serveAll(t, env, order)

	payment, err := env.payments.CreatePayment(ctx, order.ID, "card")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.RefundPayment(ctx, payment.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("pending refund: expected invalid state, got %v", err)
	}
	if _, err := env.payments.SettlePayment(ctx, payment.ID); err != nil {
		t.Fatal(err)
	}
	paidOrder := env.store.order(order.ID)

	refunded, err := env.payments.RefundPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != database.PaymentStatusRefunded || !refunded.RefundedAt.Valid {
		t.Errorf("unexpected refund result: %+v", refunded)
	}
	if got := env.store.order(order.ID); got.Version != paidOrder.Version || got.PaymentStatus != database.OrderPaymentStatusPaid {
		t.Error("refund must not touch the order")
	}
	// A refund does not reopen the order, so it still cannot be cancelled.
	if _, err := env.orders.SetOrderStatus(ctx, order.ID, "cancelled", nil); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("cancel refunded order: expected invalid state, got %v", err)
	}

	if _, err := env.payments.SettlePayment(ctx, payment.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("settle refunded: expected invalid state, got %v", err)
	}
	if _, err := env.payments.RefundPayment(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing payment: expected not found, got %v", err)
	}
}

func TestSettlePayment_CancelledOrder(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, _ := seedOrder(t, env)
	serveAll(t, env, order)

	payment, err := env.payments.CreatePayment(ctx, order.ID, "cash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.orders.SetOrderStatus(ctx, order.ID, "cancelled", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.payments.SettlePayment(ctx, payment.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestListPayments_StatusFilter(t *testing.T) {
	env := newTestEnv("0")
	ctx := context.Background()
	order, _ := seedOrder(t, env)
	serveAll(t, env, order)
	if _, err := env.payments.CreatePayment(ctx, order.ID, "cash"); err != nil {
		t.Fatal(err)
	}

	pending, err := env.payments.ListPayments(ctx, "pending", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending payment, got %d", len(pending))
	}
	if _, err := env.payments.ListPayments(ctx, "lost", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
