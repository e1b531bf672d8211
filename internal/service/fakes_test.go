package service

import (
	"context"
	"sync"
	"time"

	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock transaction plumbing ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	mu        sync.Mutex
	commits   int
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr == nil {
		m.commits++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool. Queries go through the fake store, never here.
type mockPool struct {
	tx  *mockTx
	err error
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

// --- In-memory store ---

// fakeStore satisfies OrderStore, PaymentStore and CatalogStore over maps.
// Writes apply immediately; rollback is not modelled.
type fakeStore struct {
	mu         sync.Mutex
	tables     map[uuid.UUID]database.DiningTable
	menuItems  map[uuid.UUID]database.MenuItem
	categories map[uuid.UUID]database.Category
	orders     map[uuid.UUID]database.Order
	payments   map[uuid.UUID]database.Payment
	nextNumber int32

	releases int
	// tableLocks records GetTableForUpdate calls in order.
	tableLocks []uuid.UUID
	// unlockedCounts counts CountOpenOrdersByTable calls made before the
	// table row was locked.
	unlockedCounts int
	// general is the category addMenuItem files items under.
	general uuid.UUID
	// beforeUpdate runs once, inside UpdateOrderState, before the version check.
	beforeUpdate func(o *database.Order)
	// createOrderErrs are returned by successive CreateOrder calls.
	createOrderErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:     map[uuid.UUID]database.DiningTable{},
		menuItems:  map[uuid.UUID]database.MenuItem{},
		categories: map[uuid.UUID]database.Category{},
		orders:     map[uuid.UUID]database.Order{},
		payments:   map[uuid.UUID]database.Payment{},
	}
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return database.NumericToDecimal(n).Equal(decimal.RequireFromString(expected))
}

func (f *fakeStore) addTable(status database.TableStatus) database.DiningTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := database.DiningTable{ID: uuid.New(), Name: "T" + uuid.NewString()[:4], Seats: 4, Status: status, Version: 1}
	f.tables[t.ID] = t
	return t
}

func (f *fakeStore) addMenuItem(name, price string, status database.MenuItemStatus) database.MenuItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.general == uuid.Nil {
		f.general = uuid.New()
		f.categories[f.general] = database.Category{ID: f.general, Name: "General", Version: 1}
	}
	m := database.MenuItem{ID: uuid.New(), CategoryID: f.general, Name: name, Price: makeNumeric(price), Status: status, Version: 1}
	f.menuItems[m.ID] = m
	return m
}

func (f *fakeStore) table(id uuid.UUID) database.DiningTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[id]
}

func (f *fakeStore) order(id uuid.UUID) database.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableLocks = append(f.tableLocks, id)
	t, ok := f.tables[id]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) OccupyTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[id]
	if !ok || t.Status == database.TableStatusMaintenance {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	if t.Status != database.TableStatusOccupied {
		t.Version++
	}
	t.Status = database.TableStatusOccupied
	f.tables[id] = t
	return t, nil
}

func (f *fakeStore) ReleaseTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[id]
	if !ok || t.Status != database.TableStatusOccupied {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t.Status = database.TableStatusAvailable
	t.Version++
	f.tables[id] = t
	f.releases++
	return t, nil
}

func (f *fakeStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[arg.ID]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.Version++
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.menuItems[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextNumber + 1, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createOrderErrs) > 0 {
		err := f.createOrderErrs[0]
		f.createOrderErrs = f.createOrderErrs[1:]
		if err != nil {
			return database.Order{}, err
		}
	}
	now := time.Now()
	o := database.Order{
		ID:             uuid.New(),
		OrderNumber:    arg.OrderNumber,
		TableID:        arg.TableID,
		Items:          arg.Items,
		Status:         database.OrderStatusPending,
		PaymentStatus:  database.OrderPaymentStatusUnpaid,
		Subtotal:       arg.Subtotal,
		DiscountAmount: arg.DiscountAmount,
		TaxAmount:      arg.TaxAmount,
		TipAmount:      arg.TipAmount,
		TotalAmount:    arg.TotalAmount,
		Notes:          arg.Notes,
		Version:        1,
		OrderedAt:      now,
		UpdatedAt:      now,
	}
	f.nextNumber = arg.OrderNumber
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	items := make([]database.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []database.Order{}
	for _, o := range f.orders {
		if arg.Status.Valid && string(o.Status) != arg.Status.String {
			continue
		}
		if arg.TableID.Valid && o.TableID != uuid.UUID(arg.TableID.Bytes) {
			continue
		}
		if arg.UpdatedSince.Valid && !o.UpdatedAt.After(arg.UpdatedSince.Time) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(&o)
		f.orders[o.ID] = o
	}
	if o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Items = arg.Items
	o.Status = arg.Status
	o.Version++
	o.UpdatedAt = time.Now()
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[arg.ID]
	if !ok || o.Version != arg.Version || o.PaymentStatus != database.OrderPaymentStatusUnpaid {
		return database.Order{}, pgx.ErrNoRows
	}
	o.PaymentStatus = database.OrderPaymentStatusPaid
	o.Version++
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	locked := false
	for _, id := range f.tableLocks {
		if id == arg.TableID {
			locked = true
		}
	}
	if !locked {
		f.unlockedCounts++
	}
	var n int64
	for _, o := range f.orders {
		if o.TableID != arg.TableID || !IsOpen(o) {
			continue
		}
		if arg.ExcludeOrderID.Valid && o.ID == uuid.UUID(arg.ExcludeOrderID.Bytes) {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeStore) GetActivePaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Status != database.PaymentStatusRefunded {
			return p, nil
		}
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (f *fakeStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := database.Payment{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		TableID:   arg.TableID,
		Amount:    arg.Amount,
		Method:    arg.Method,
		Status:    database.PaymentStatusPending,
		Version:   1,
		CreatedAt: time.Now(),
	}
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return database.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	return f.GetPayment(ctx, id)
}

func (f *fakeStore) ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []database.Payment{}
	for _, p := range f.payments {
		if arg.Status.Valid && string(p.Status) != arg.Status.String {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) MarkPaymentPaid(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != database.PaymentStatusPending {
		return database.Payment{}, pgx.ErrNoRows
	}
	p.Status = database.PaymentStatusPaid
	p.PaidAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	p.Version++
	f.payments[id] = p
	return p, nil
}

func (f *fakeStore) MarkPaymentRefunded(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != database.PaymentStatusPaid {
		return database.Payment{}, pgx.ErrNoRows
	}
	p.Status = database.PaymentStatusRefunded
	p.RefundedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	p.Version++
	f.payments[id] = p
	return p, nil
}

func (f *fakeStore) GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) CountMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.menuItems {
		if m.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]database.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.MenuItem
	for id, m := range f.menuItems {
		if m.CategoryID == categoryID {
			out = append(out, m)
			delete(f.menuItems, id)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(f.categories, id)
	return id, nil
}

func (f *fakeStore) DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.menuItems[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	delete(f.menuItems, id)
	return m, nil
}

// --- Publisher and image recorders ---

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.Type)
	return nil
}

func (r *recordingPublisher) seen(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == typ {
			n++
		}
	}
	return n
}

type recordingImages struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingImages) DeleteQuietly(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, rel)
}

// --- Service constructors ---

type testEnv struct {
	store    *fakeStore
	tx       *mockTx
	pub      *recordingPublisher
	orders   *OrderService
	payments *PaymentService
}

func newTestEnv(taxRate string) *testEnv {
	store := newFakeStore()
	tx := &mockTx{}
	pool := &mockPool{tx: tx}
	pub := &recordingPublisher{}
	return &testEnv{
		store: store,
		tx:    tx,
		pub:   pub,
		orders: NewOrderService(pool, func(database.DBTX) OrderStore { return store }, pub,
			decimal.RequireFromString(taxRate)),
		payments: NewPaymentService(pool, func(database.DBTX) PaymentStore { return store }, pub),
	}
}
