package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context, status pgtype.Text) ([]database.DiningTable, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.DiningTable, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error)
}

// TableStatusSetter applies manual status changes.
// Satisfied by *service.TableService.
type TableStatusSetter interface {
	SetStatus(ctx context.Context, id uuid.UUID, status string) (database.DiningTable, error)
}

// TableHandler handles the dining table board.
type TableHandler struct {
	store  TableStore
	status TableStatusSetter
}

func NewTableHandler(store TableStore, status TableStatusSetter) *TableHandler {
	return &TableHandler{store: store, status: status}
}

// RegisterRoutes registers table endpoints. Expected at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	Name           string     `json:"name" validate:"required,max=50"`
	Seats          int32      `json:"seats" validate:"gt=0"`
	Status         string     `json:"status" validate:"omitempty,oneof=available reserved maintenance"`
	Notes          string     `json:"notes" validate:"max=500"`
	Location       string     `json:"location" validate:"max=100"`
	AssignedServer *uuid.UUID `json:"assigned_server"`
}

type tableResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Seats          int32      `json:"seats"`
	Status         string     `json:"status"`
	Notes          *string    `json:"notes"`
	Location       *string    `json:"location"`
	AssignedServer *uuid.UUID `json:"assigned_server"`
	Version        int32      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toTableResponse(t database.DiningTable) tableResponse {
	resp := tableResponse{
		ID:        t.ID,
		Name:      t.Name,
		Seats:     t.Seats,
		Status:    string(t.Status),
		Notes:     textPtr(t.Notes),
		Location:  textPtr(t.Location),
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.AssignedServer.Valid {
		id := uuid.UUID(t.AssignedServer.Bytes)
		resp.AssignedServer = &id
	}
	return resp
}

func optionalUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// --- Handlers ---

// List supports ?status=.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if !database.TableStatus(s).Valid() {
			writeError(w, r, apperr.Validation("invalid status %q", s))
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}
	tables, err := h.store.ListTables(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "table")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "table"))
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}
	status := database.TableStatusAvailable
	if req.Status != "" {
		status = database.TableStatus(req.Status)
	}

	t, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Name:           req.Name,
		Seats:          req.Seats,
		Status:         status,
		Notes:          optionalText(req.Notes),
		Location:       optionalText(req.Location),
		AssignedServer: optionalUUID(req.AssignedServer),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, r, apperr.Validation("assigned_server does not reference an existing staff member"))
			return
		}
		writeError(w, r, apperr.FromDB(err, "table"))
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(t))
}

// Update edits descriptive fields. Status has its own endpoint.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "table")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:             id,
		Name:           req.Name,
		Seats:          req.Seats,
		Notes:          optionalText(req.Notes),
		Location:       optionalText(req.Location),
		AssignedServer: optionalUUID(req.AssignedServer),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, r, apperr.Validation("assigned_server does not reference an existing staff member"))
			return
		}
		writeError(w, r, apperr.FromDB(err, "table"))
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

// UpdateStatus sets the status by hand. Occupied, available and reserved
// must agree with the table's open orders; maintenance is always accepted.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "table")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.status.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

// Delete refuses while open orders exist. Tables with order history are
// kept by the foreign key and reported as a conflict too.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "table")
	if err != nil {
		writeError(w, r, err)
		return
	}
	open, err := h.store.CountOpenOrdersByTable(r.Context(), database.CountOpenOrdersByTableParams{TableID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if open > 0 {
		writeError(w, r, apperr.Conflict("table still has %d open orders", open))
		return
	}
	if _, err := h.store.DeleteTable(r.Context(), id); err != nil {
		writeError(w, r, apperr.FromDB(err, "table"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
