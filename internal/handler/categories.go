package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.Category, error)
}

// CategoryDeleter applies the configured delete policy.
// Satisfied by *service.CatalogService.
type CategoryDeleter interface {
	DeleteCategory(ctx context.Context, id uuid.UUID) (int, error)
}

// CategoryHandler handles category CRUD endpoints.
type CategoryHandler struct {
	store   CategoryStore
	deleter CategoryDeleter
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore, deleter CategoryDeleter) *CategoryHandler {
	return &CategoryHandler{store: store, deleter: deleter}
}

// RegisterRoutes registers category CRUD endpoints on the given Chi router.
// Expected to be mounted at /categories.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type categoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Version     int32     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: textPtr(c.Description),
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// --- Handlers ---

// List returns all categories ordered by name.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := h.store.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "category"))
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
}

// Create adds a category. Names are unique.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		Name:        req.Name,
		Description: optionalText(req.Description),
	})
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "category"))
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), database.UpdateCategoryParams{
		ID:          id,
		Name:        req.Name,
		Description: optionalText(req.Description),
	})
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "category"))
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
}

// Delete removes a category according to CATEGORY_DELETE_POLICY.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := h.deleter.DeleteCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if removed > 0 {
		logger.L().Infow("category deleted with its menu items", "category_id", id, "menu_items", removed)
	}
	w.WriteHeader(http.StatusNoContent)
}
