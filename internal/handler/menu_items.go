package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItemStatus(ctx context.Context, arg database.UpdateMenuItemStatusParams) (database.MenuItem, error)
}

// MenuItemDeleter removes a menu item together with its image.
// Satisfied by *service.CatalogService.
type MenuItemDeleter interface {
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
}

// ImageStore saves uploads and drops replaced ones.
// Satisfied by *storage.ImageStore.
type ImageStore interface {
	Save(kind string, r io.Reader) (string, error)
	DeleteQuietly(rel string)
	MaxBytes() int64
}

// MenuItemHandler handles menu item endpoints.
type MenuItemHandler struct {
	store   MenuItemStore
	deleter MenuItemDeleter
	images  ImageStore
}

// NewMenuItemHandler creates a new MenuItemHandler.
func NewMenuItemHandler(store MenuItemStore, deleter MenuItemDeleter, images ImageStore) *MenuItemHandler {
	return &MenuItemHandler{store: store, deleter: deleter, images: images}
}

// RegisterRoutes registers menu item endpoints. Expected at /menu-items.
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

// menuItemRequest arrives either as JSON or as multipart form fields next to
// an optional "image" file.
type menuItemRequest struct {
	CategoryID uuid.UUID        `json:"category_id" validate:"required"`
	Name       string           `json:"name" validate:"required,max=150"`
	Price      *decimal.Decimal `json:"price" validate:"required"`
	Status     string           `json:"status" validate:"omitempty,oneof=available unavailable"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type menuItemResponse struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Status     string    `json:"status"`
	Image      *string   `json:"image"`
	Version    int32     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:         m.ID,
		CategoryID: m.CategoryID,
		Name:       m.Name,
		Price:      numericToString(m.Price),
		Status:     string(m.Status),
		Image:      textPtr(m.Image),
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// parsed returns the store-ready price and status.
func (req menuItemRequest) parsed() (pgtype.Numeric, database.MenuItemStatus, error) {
	price, err := parsePrice(*req.Price)
	if err != nil {
		return pgtype.Numeric{}, "", err
	}
	status := database.MenuItemStatusAvailable
	if req.Status != "" {
		status = database.MenuItemStatus(req.Status)
	}
	return price, status, nil
}

// --- Handlers ---

// List supports ?category_id= and ?status= filters.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseOptionalUUIDQuery(r, "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if !database.MenuItemStatus(s).Valid() {
			writeError(w, r, apperr.Validation("invalid status %q", s))
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), database.ListMenuItemsParams{
		CategoryID: categoryID,
		Status:     status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "menu item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "menu item"))
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Create adds a menu item. The image is written before the row; if the
// insert fails the new file is removed again.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	file, err := bindForm(w, r, &req, h.images.MaxBytes())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}
	price, status, err := req.parsed()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var image pgtype.Text
	if file != nil {
		rel, err := h.images.Save(enum.ImageKindMenuItems, file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		image = pgtype.Text{String: rel, Valid: true}
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Price:      price,
		Status:     status,
		Image:      image,
	})
	if err != nil {
		if image.Valid {
			h.images.DeleteQuietly(image.String)
		}
		if isForeignKeyViolation(err) {
			writeError(w, r, apperr.Validation("category_id does not reference an existing category"))
			return
		}
		writeError(w, r, apperr.FromDB(err, "menu item"))
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update replaces a menu item's fields. A new image replaces the old one,
// which is then removed; without an image part the current one is kept.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "menu item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req menuItemRequest
	file, err := bindForm(w, r, &req, h.images.MaxBytes())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}
	price, status, err := req.parsed()
	if err != nil {
		writeError(w, r, err)
		return
	}

	current, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "menu item"))
		return
	}

	image := current.Image
	var saved string
	if file != nil {
		saved, err = h.images.Save(enum.ImageKindMenuItems, file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		image = pgtype.Text{String: saved, Valid: true}
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:         id,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Price:      price,
		Status:     status,
		Image:      image,
	})
	if err != nil {
		if saved != "" {
			h.images.DeleteQuietly(saved)
		}
		if isForeignKeyViolation(err) {
			writeError(w, r, apperr.Validation("category_id does not reference an existing category"))
			return
		}
		writeError(w, r, apperr.FromDB(err, "menu item"))
		return
	}
	if saved != "" && current.Image.Valid {
		h.images.DeleteQuietly(current.Image.String)
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// UpdateStatus toggles availability.
func (h *MenuItemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "menu item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !database.MenuItemStatus(req.Status).Valid() {
		writeError(w, r, apperr.Validation("status must be one of: available unavailable"))
		return
	}

	item, err := h.store.UpdateMenuItemStatus(r.Context(), database.UpdateMenuItemStatusParams{
		ID:     id,
		Status: database.MenuItemStatus(req.Status),
	})
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "menu item"))
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete removes the item and its image. Orders keep their snapshots.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "menu item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.deleter.DeleteMenuItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
