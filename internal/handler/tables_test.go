package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/handler"
	"github.com/bistro-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock store ---

type mockTableStore struct {
	tables     map[uuid.UUID]database.DiningTable
	openOrders map[uuid.UUID]int64
	history    map[uuid.UUID]bool
	staff      map[uuid.UUID]bool
}

func newMockTableStore() *mockTableStore {
	return &mockTableStore{
		tables:     map[uuid.UUID]database.DiningTable{},
		openOrders: map[uuid.UUID]int64{},
		history:    map[uuid.UUID]bool{},
		staff:      map[uuid.UUID]bool{},
	}
}

func (m *mockTableStore) ListTables(_ context.Context, status pgtype.Text) ([]database.DiningTable, error) {
	out := []database.DiningTable{}
	for _, t := range m.tables {
		if status.Valid && string(t.Status) != status.String {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTableStore) GetTable(_ context.Context, id uuid.UUID) (database.DiningTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTableStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.DiningTable, error) {
	if arg.AssignedServer.Valid && !m.staff[uuid.UUID(arg.AssignedServer.Bytes)] {
		return database.DiningTable{}, &pgconn.PgError{Code: "23503"}
	}
	t := database.DiningTable{
		ID:             uuid.New(),
		Name:           arg.Name,
		Seats:          arg.Seats,
		Status:         arg.Status,
		Notes:          arg.Notes,
		Location:       arg.Location,
		AssignedServer: arg.AssignedServer,
		Version:        1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) UpdateTable(_ context.Context, arg database.UpdateTableParams) (database.DiningTable, error) {
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t.Name, t.Seats, t.Notes, t.Location, t.AssignedServer = arg.Name, arg.Seats, arg.Notes, arg.Location, arg.AssignedServer
	t.Version++
	m.tables[t.ID] = t
	return t, nil
}

// SetStatus applies the same open-order rule as the service, without the
// transaction.
func (m *mockTableStore) SetStatus(_ context.Context, id uuid.UUID, status string) (database.DiningTable, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.DiningTable{}, apperr.NotFound("table not found")
	}
	if !database.TableStatus(status).Valid() {
		return database.DiningTable{}, apperr.Validation("status must be one of: available occupied reserved maintenance")
	}
	if err := service.CheckTableStatus(database.TableStatus(status), m.openOrders[id]); err != nil {
		return database.DiningTable{}, err
	}
	t.Status = database.TableStatus(status)
	t.Version++
	m.tables[t.ID] = t
	return t, nil
}

func (m *mockTableStore) DeleteTable(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.tables[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	if m.history[id] {
		return uuid.Nil, &pgconn.PgError{Code: "23503"}
	}
	delete(m.tables, id)
	return id, nil
}

func (m *mockTableStore) CountOpenOrdersByTable(_ context.Context, arg database.CountOpenOrdersByTableParams) (int64, error) {
	return m.openOrders[arg.TableID], nil
}

// --- Helpers ---

func setupTableRouter(store *mockTableStore) *chi.Mux {
	h := handler.NewTableHandler(store, store)
	r := chi.NewRouter()
	r.Route("/tables", h.RegisterRoutes)
	return r
}

func seedTable(store *mockTableStore, status database.TableStatus) uuid.UUID {
	id := uuid.New()
	store.tables[id] = database.DiningTable{ID: id, Name: "T" + id.String()[:4], Seats: 4, Status: status, Version: 1}
	return id
}

// --- Tests ---

func TestTableCreate_DefaultsAvailable(t *testing.T) {
	router := setupTableRouter(newMockTableStore())

	rr := doRequest(t, router, "POST", "/tables", map[string]interface{}{"name": "T1", "seats": 4, "location": "patio"})
	expectStatus(t, rr, http.StatusCreated)

	resp := decodeObject(t, rr)
	if resp["status"] != "available" {
		t.Errorf("status: got %v, want available", resp["status"])
	}
	if resp["location"] != "patio" {
		t.Errorf("location: got %v", resp["location"])
	}
	if resp["notes"] != nil || resp["assigned_server"] != nil {
		t.Errorf("expected null notes and server: %v", resp)
	}
}

func TestTableCreate_Validation(t *testing.T) {
	router := setupTableRouter(newMockTableStore())

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"seats": 2}},
		{"zero seats", map[string]interface{}{"name": "T1", "seats": 0}},
		{"created occupied", map[string]interface{}{"name": "T1", "seats": 2, "status": "occupied"}},
		{"unknown server", map[string]interface{}{"name": "T1", "seats": 2, "assigned_server": uuid.NewString()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/tables", tc.body)
			expectStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestTableCreate_AssignedServer(t *testing.T) {
	store := newMockTableStore()
	server := uuid.New()
	store.staff[server] = true
	router := setupTableRouter(store)

	rr := doRequest(t, router, "POST", "/tables", map[string]interface{}{"name": "T2", "seats": 2, "assigned_server": server.String()})
	expectStatus(t, rr, http.StatusCreated)
	if resp := decodeObject(t, rr); resp["assigned_server"] != server.String() {
		t.Errorf("assigned_server: got %v", resp["assigned_server"])
	}
}

func TestTableUpdateStatus(t *testing.T) {
	store := newMockTableStore()
	id := seedTable(store, database.TableStatusOccupied)
	router := setupTableRouter(store)
	path := "/tables/" + id.String() + "/status"

	store.openOrders[id] = 2
	rr := doRequest(t, router, "PATCH", path, map[string]interface{}{"status": "available"})
	expectStatus(t, rr, http.StatusConflict)
	if resp := decodeObject(t, rr); resp["error"] != "table still has 2 open orders" {
		t.Errorf("unexpected error: %v", resp["error"])
	}
	rr = doRequest(t, router, "PATCH", path, map[string]interface{}{"status": "reserved"})
	expectStatus(t, rr, http.StatusConflict)

	// Maintenance is the one override open orders do not block.
	rr = doRequest(t, router, "PATCH", path, map[string]interface{}{"status": "maintenance"})
	expectStatus(t, rr, http.StatusOK)

	store.openOrders[id] = 0
	rr = doRequest(t, router, "PATCH", path, map[string]interface{}{"status": "available"})
	expectStatus(t, rr, http.StatusOK)
	if store.tables[id].Status != database.TableStatusAvailable {
		t.Errorf("status: got %s", store.tables[id].Status)
	}

	rr = doRequest(t, router, "PATCH", path, map[string]interface{}{"status": "closed"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(t, router, "PATCH", "/tables/"+uuid.NewString()+"/status", map[string]interface{}{"status": "reserved"})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestTableUpdateStatus_OccupiedNeedsOpenOrder(t *testing.T) {
	store := newMockTableStore()
	idle := seedTable(store, database.TableStatusAvailable)
	busy := seedTable(store, database.TableStatusMaintenance)
	store.openOrders[busy] = 1
	router := setupTableRouter(store)

	rr := doRequest(t, router, "PATCH", "/tables/"+idle.String()+"/status", map[string]interface{}{"status": "occupied"})
	expectStatus(t, rr, http.StatusConflict)
	if store.tables[idle].Status != database.TableStatusAvailable {
		t.Errorf("idle table changed to %s", store.tables[idle].Status)
	}

	rr = doRequest(t, router, "PATCH", "/tables/"+busy.String()+"/status", map[string]interface{}{"status": "occupied"})
	expectStatus(t, rr, http.StatusOK)
}

func TestTableList_StatusFilter(t *testing.T) {
	store := newMockTableStore()
	seedTable(store, database.TableStatusAvailable)
	seedTable(store, database.TableStatusOccupied)
	router := setupTableRouter(store)

	rr := doRequest(t, router, "GET", "/tables?status=occupied", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(decodeList(t, rr)); got != 1 {
		t.Errorf("occupied tables: got %d, want 1", got)
	}
}

func TestTableDelete(t *testing.T) {
	store := newMockTableStore()
	busy := seedTable(store, database.TableStatusOccupied)
	used := seedTable(store, database.TableStatusAvailable)
	free := seedTable(store, database.TableStatusAvailable)
	store.openOrders[busy] = 1
	store.history[used] = true
	router := setupTableRouter(store)

	tests := []struct {
		name string
		id   uuid.UUID
		want int
	}{
		{"open orders", busy, http.StatusConflict},
		{"order history", used, http.StatusConflict},
		{"free", free, http.StatusNoContent},
		{"missing", uuid.New(), http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, router, "DELETE", "/tables/"+tc.id.String(), nil)
			expectStatus(t, rr, tc.want)
		})
	}
	if _, ok := store.tables[free]; ok {
		t.Error("free table should be deleted")
	}
}
