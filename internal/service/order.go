package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	maxOrderNumberRetries = 3

	defaultListLimit = 50
	maxListLimit     = 200
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is a connection pool: plain queries plus transactions.
// Satisfied by *pgxpool.Pool.
type Pool interface {
	database.DBTX
	TxBeginner
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	OccupyTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.Order, error)
	CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TableID  uuid.UUID
	Items    []CreateOrderItemRequest
	Discount decimal.Decimal
	Tip      decimal.Decimal
	Notes    string
}

// CreateOrderItemRequest is a single line of a new order.
type CreateOrderItemRequest struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Notes      string
}

// ListOrdersFilter narrows ListOrders. Zero values mean "any".
type ListOrdersFilter struct {
	Status        string
	TableID       *uuid.UUID
	PaymentStatus string
	UpdatedSince  *time.Time
	Limit         int
	Offset        int
}

// OrderService owns the order lifecycle: creation, item and order status
// changes and the table occupancy that follows from them.
type OrderService struct {
	pool      Pool
	newStore  NewOrderStore
	publisher events.Publisher
	taxRate   decimal.Decimal
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(pool Pool, newStore NewOrderStore, publisher events.Publisher, taxRate decimal.Decimal) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{pool: pool, newStore: newStore, publisher: publisher, taxRate: taxRate}
}

// CreateOrder validates the lines, snapshots menu prices, stores the order
// and marks the table occupied in one transaction. Retries up to
// maxOrderNumberRetries times when two creators race for the same number.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	if len(req.Items) == 0 {
		return database.Order{}, apperr.Validation("items are required")
	}
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return database.Order{}, apperr.Validation("item[%d]: quantity must be at least 1", i)
		}
	}
	if req.Discount.IsNegative() {
		return database.Order{}, apperr.Validation("discount must not be negative")
	}
	if req.Tip.IsNegative() {
		return database.Order{}, apperr.Validation("tip must not be negative")
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req)
		if err == nil {
			events.Emit(ctx, s.publisher, events.New(enum.EventOrderCreated,
				order.ID, order.TableID, string(order.Status), order.Version, order))
			return order, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return database.Order{}, err
	}
	return database.Order{}, fmt.Errorf("allocate order number: %w", lastErr)
}

// isOrderNumberConflict checks for a unique violation on order_number.
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Held until commit so a concurrent settlement cannot release the table
	// between our insert and OccupyTable.
	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		return database.Order{}, apperr.FromDB(err, "table")
	}
	if table.Status == database.TableStatusMaintenance {
		return database.Order{}, apperr.InvalidState("table %s is under maintenance", table.Name)
	}

	lines := make([]database.OrderItem, 0, len(req.Items))
	categories := make(map[uuid.UUID]string)
	for i, item := range req.Items {
		menuItem, err := store.GetMenuItem(ctx, item.MenuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, apperr.NotFound("item[%d]: menu item %s not found", i, item.MenuItemID)
			}
			return database.Order{}, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if menuItem.Status != database.MenuItemStatusAvailable {
			return database.Order{}, apperr.InvalidState("item[%d]: %s is unavailable", i, menuItem.Name)
		}
		catName, ok := categories[menuItem.CategoryID]
		if !ok {
			cat, err := store.GetCategory(ctx, menuItem.CategoryID)
			if err != nil {
				return database.Order{}, fmt.Errorf("item[%d]: get category: %w", i, err)
			}
			catName = cat.Name
			categories[cat.ID] = catName
		}
		lines = append(lines, database.OrderItem{
			ID:           uuid.New(),
			MenuItemID:   menuItem.ID,
			Name:         menuItem.Name,
			Price:        database.NumericToDecimal(menuItem.Price),
			Quantity:     item.Quantity,
			Notes:        item.Notes,
			Status:       database.OrderItemStatusPending,
			CategoryID:   menuItem.CategoryID,
			CategoryName: catName,
		})
	}

	totals := ComputeTotals(lines, req.Discount, req.Tip, s.taxRate)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("get next order number: %w", err)
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    nextNum,
		TableID:        table.ID,
		Items:          lines,
		Subtotal:       database.DecimalToNumeric(totals.Subtotal),
		DiscountAmount: database.DecimalToNumeric(totals.Discount),
		TaxAmount:      database.DecimalToNumeric(totals.Tax),
		TipAmount:      database.DecimalToNumeric(totals.Tip),
		TotalAmount:    database.DecimalToNumeric(totals.Total),
		Notes:          notes,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if _, err := store.OccupyTable(ctx, table.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, apperr.InvalidState("table %s is under maintenance", table.Name)
		}
		return database.Order{}, fmt.Errorf("occupy table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// GetOrder returns a single order.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	order, err := s.newStore(s.pool).GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, apperr.FromDB(err, "order")
	}
	return order, nil
}

// ListOrders is the polling query. UpdatedSince lets a client fetch only
// orders that changed since its last poll.
func (s *OrderService) ListOrders(ctx context.Context, f ListOrdersFilter) ([]database.Order, error) {
	params := database.ListOrdersParams{
		Limit:  defaultListLimit,
		Offset: 0,
	}
	if f.Status != "" {
		if !database.OrderStatus(f.Status).Valid() {
			return nil, apperr.Validation("invalid status %q", f.Status)
		}
		params.Status = pgtype.Text{String: f.Status, Valid: true}
	}
	if f.PaymentStatus != "" {
		switch database.OrderPaymentStatus(f.PaymentStatus) {
		case database.OrderPaymentStatusUnpaid, database.OrderPaymentStatusPaid:
		default:
			return nil, apperr.Validation("invalid payment_status %q", f.PaymentStatus)
		}
		params.PaymentStatus = pgtype.Text{String: f.PaymentStatus, Valid: true}
	}
	if f.TableID != nil {
		params.TableID = pgtype.UUID{Bytes: *f.TableID, Valid: true}
	}
	if f.UpdatedSince != nil {
		params.UpdatedSince = pgtype.Timestamptz{Time: *f.UpdatedSince, Valid: true}
	}
	if f.Limit > 0 {
		params.Limit = int32(min(f.Limit, maxListLimit))
	}
	if f.Offset > 0 {
		params.Offset = int32(f.Offset)
	}

	orders, err := s.newStore(s.pool).ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// SetItemStatus moves one item a single step forward and recomputes the
// order status. A non-nil expectedVersion must match the stored version.
func (s *OrderService) SetItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status string, expectedVersion *int32) (database.Order, error) {
	target := database.OrderItemStatus(status)
	if !target.Valid() {
		return database.Order{}, apperr.Validation("invalid item status %q", status)
	}

	store := s.newStore(s.pool)
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, apperr.FromDB(err, "order")
	}
	if err := checkVersion(order, expectedVersion); err != nil {
		return database.Order{}, err
	}
	idx := -1
	for i, it := range order.Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return database.Order{}, apperr.NotFound("item %s not found on order", itemID)
	}

	changed, err := CheckItemTransition(order.Items[idx].Status, target)
	if err != nil {
		return database.Order{}, err
	}
	if !changed {
		return order, nil
	}
	if IsTerminal(order.Status) {
		return database.Order{}, apperr.InvalidState("order is %s", order.Status)
	}

	next := make([]database.OrderItem, len(order.Items))
	copy(next, order.Items)
	next[idx].Status = target

	derived, err := DeriveOrderStatus(next, order.Status)
	if err != nil {
		return database.Order{}, err
	}

	updated, err := writeOrderState(ctx, store, order, next, derived)
	if err != nil {
		return database.Order{}, err
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventOrderItemUpdated,
		updated.ID, updated.TableID, string(updated.Status), updated.Version, next[idx]))
	if updated.Status != order.Status {
		events.Emit(ctx, s.publisher, events.New(enum.EventOrderStatusChanged,
			updated.ID, updated.TableID, string(updated.Status), updated.Version, nil))
	}
	return updated, nil
}

// SetOrderStatus applies an explicit order-level status change: cancel,
// close, or a bulk advance of every lagging item.
func (s *OrderService) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status string, expectedVersion *int32) (database.Order, error) {
	target := database.OrderStatus(status)
	if !target.Valid() {
		return database.Order{}, apperr.Validation("invalid status %q", status)
	}

	order, err := s.newStore(s.pool).GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, apperr.FromDB(err, "order")
	}
	if err := checkVersion(order, expectedVersion); err != nil {
		return database.Order{}, err
	}

	var (
		updated  database.Order
		released bool
	)
	switch target {
	case database.OrderStatusCancelled:
		if IsTerminal(order.Status) {
			return database.Order{}, apperr.InvalidTransition("cannot cancel a %s order", order.Status)
		}
		if order.PaymentStatus == database.OrderPaymentStatusPaid {
			return database.Order{}, apperr.InvalidState("paid orders cannot be cancelled")
		}
		updated, released, err = s.finishOrder(ctx, order, target)

	case database.OrderStatusClosed:
		if IsTerminal(order.Status) {
			return database.Order{}, apperr.InvalidTransition("cannot close a %s order", order.Status)
		}
		if order.PaymentStatus != database.OrderPaymentStatusPaid {
			return database.Order{}, apperr.PaymentRequired("order must be paid before it is closed")
		}
		if order.Status != database.OrderStatusServed {
			return database.Order{}, apperr.InvalidTransition("cannot close an order that is %s", order.Status)
		}
		updated, released, err = s.finishOrder(ctx, order, target)

	default:
		if IsTerminal(order.Status) {
			return database.Order{}, apperr.InvalidState("order is %s", order.Status)
		}
		if statusRank(target) < statusRank(order.Status) {
			return database.Order{}, apperr.InvalidTransition("cannot move order from %s back to %s", order.Status, target)
		}
		if target == order.Status {
			return order, nil
		}
		next := AdvanceItems(order.Items, target)
		derived, derr := DeriveOrderStatus(next, order.Status)
		if derr != nil {
			return database.Order{}, derr
		}
		updated, err = writeOrderState(ctx, s.newStore(s.pool), order, next, derived)
	}
	if err != nil {
		return database.Order{}, err
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventOrderStatusChanged,
		updated.ID, updated.TableID, string(updated.Status), updated.Version, nil))
	if released {
		events.Emit(ctx, s.publisher, events.New(enum.EventTableReleased,
			uuid.Nil, updated.TableID, string(database.TableStatusAvailable), 0, nil))
	}
	return updated, nil
}

// finishOrder moves the order into a terminal status and frees its table when
// no other open order is seated there.
func (s *OrderService) finishOrder(ctx context.Context, order database.Order, target database.OrderStatus) (database.Order, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	updated, err := writeOrderState(ctx, store, order, order.Items, target)
	if err != nil {
		return database.Order{}, false, err
	}
	released, err := releaseTableIfIdle(ctx, store, order.TableID, order.ID)
	if err != nil {
		return database.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, false, fmt.Errorf("commit tx: %w", err)
	}
	return updated, released, nil
}

// tableReleaser is the subset of store methods needed to free a table.
type tableReleaser interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
}

// releaseTableIfIdle marks the table available unless another open order
// still references it. Releasing a table that is not occupied is a no-op.
// The table row is locked before counting so an order created concurrently
// is either visible to the count or seated after the release.
func releaseTableIfIdle(ctx context.Context, store tableReleaser, tableID, exceptOrderID uuid.UUID) (bool, error) {
	if _, err := store.GetTableForUpdate(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock table: %w", err)
	}
	open, err := store.CountOpenOrdersByTable(ctx, database.CountOpenOrdersByTableParams{
		TableID:        tableID,
		ExcludeOrderID: pgtype.UUID{Bytes: exceptOrderID, Valid: true},
	})
	if err != nil {
		return false, fmt.Errorf("count open orders: %w", err)
	}
	if open > 0 {
		return false, nil
	}
	if _, err := store.ReleaseTable(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("release table: %w", err)
	}
	return true, nil
}

type orderStateWriter interface {
	UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.Order, error)
}

// writeOrderState is the conditional write: it only succeeds if the row
// still carries the version the caller read.
func writeOrderState(ctx context.Context, store orderStateWriter, order database.Order, items []database.OrderItem, status database.OrderStatus) (database.Order, error) {
	updated, err := store.UpdateOrderState(ctx, database.UpdateOrderStateParams{
		ID:      order.ID,
		Version: order.Version,
		Items:   items,
		Status:  status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, apperr.Conflict("order %d was modified concurrently, reload and retry", order.OrderNumber)
		}
		return database.Order{}, fmt.Errorf("update order: %w", err)
	}
	return updated, nil
}

func checkVersion(order database.Order, expected *int32) error {
	if expected != nil && *expected != order.Version {
		return apperr.Conflict("order version is %d, not %d", order.Version, *expected)
	}
	return nil
}
