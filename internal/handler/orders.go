package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, f service.ListOrdersFilter) ([]database.Order, error)
	SetItemStatus(ctx context.Context, orderID, itemID uuid.UUID, status string, expectedVersion *int32) (database.Order, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status string, expectedVersion *int32) (database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.UpdateStatus)
	r.Patch("/{id}/items/{itemId}", h.UpdateItemStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID  uuid.UUID                `json:"table_id"`
	Items    []createOrderItemRequest `json:"items"`
	Discount *decimal.Decimal         `json:"discount"`
	Tip      *decimal.Decimal         `json:"tip"`
	Notes    string                   `json:"notes"`
}

type createOrderItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	Notes      string    `json:"notes"`
}

// statusChangeRequest carries an optional version for optimistic locking.
type statusChangeRequest struct {
	Status  string `json:"status"`
	Version *int32 `json:"version"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    int32               `json:"order_number"`
	TableID        uuid.UUID           `json:"table_id"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	TaxAmount      string              `json:"tax_amount"`
	TipAmount      string              `json:"tip_amount"`
	TotalAmount    string              `json:"total_amount"`
	Notes          *string             `json:"notes"`
	Version        int32               `json:"version"`
	OrderedAt      time.Time           `json:"ordered_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	Name         string    `json:"name"`
	Price        string    `json:"price"`
	Quantity     int32     `json:"quantity"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status"`
	CategoryName string    `json:"category_name,omitempty"`
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		TableID:        o.TableID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		Subtotal:       numericToString(o.Subtotal),
		DiscountAmount: numericToString(o.DiscountAmount),
		TaxAmount:      numericToString(o.TaxAmount),
		TipAmount:      numericToString(o.TipAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		Notes:          textPtr(o.Notes),
		Version:        o.Version,
		OrderedAt:      o.OrderedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          make([]orderItemResponse, len(o.Items)),
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			ID:           it.ID,
			MenuItemID:   it.MenuItemID,
			Name:         it.Name,
			Price:        it.Price.StringFixed(2),
			Quantity:     it.Quantity,
			Notes:        it.Notes,
			Status:       string(it.Status),
			CategoryName: it.CategoryName,
		}
	}
	return resp
}

// --- Handlers ---

// Create places an order for a table.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TableID == uuid.Nil {
		writeError(w, r, apperr.Validation("table_id is required"))
		return
	}

	svcReq := service.CreateOrderRequest{
		TableID:  req.TableID,
		Items:    make([]service.CreateOrderItemRequest, len(req.Items)),
		Discount: decimal.Zero,
		Tip:      decimal.Zero,
		Notes:    req.Notes,
	}
	if req.Discount != nil {
		svcReq.Discount = *req.Discount
	}
	if req.Tip != nil {
		svcReq.Tip = *req.Tip
	}
	for i, it := range req.Items {
		if it.MenuItemID == uuid.Nil {
			writeError(w, r, apperr.Validation("items[%d]: menu_item_id is required", i))
			return
		}
		svcReq.Items[i] = service.CreateOrderItemRequest{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dbOrderToResponse(order))
}

// List is the polling endpoint. Filters: status, table_id, payment_status,
// updated_since (RFC 3339), limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.ListOrdersFilter{
		Status:        q.Get("status"),
		PaymentStatus: q.Get("payment_status"),
	}

	if s := q.Get("table_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, r, apperr.Validation("invalid table_id"))
			return
		}
		f.TableID = &id
	}
	if s := q.Get("updated_since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			writeError(w, r, apperr.Validation("updated_since must be RFC 3339"))
			return
		}
		f.UpdatedSince = &t
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(w, r, apperr.Validation("invalid limit"))
			return
		}
		f.Limit = v
	}
	if s := q.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(w, r, apperr.Validation("invalid offset"))
			return
		}
		f.Offset = v
	}

	orders, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "order")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// UpdateStatus cancels, closes or bulk-advances an order.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "order")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Status == "" {
		writeError(w, r, apperr.Validation("status is required"))
		return
	}

	order, err := h.svc.SetOrderStatus(r.Context(), id, req.Status, req.Version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// UpdateItemStatus moves one line a step forward in the kitchen flow.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID(r, "id", "order")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := parseID(r, "itemId", "item")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Status == "" {
		writeError(w, r, apperr.Validation("status is required"))
		return
	}

	order, err := h.svc.SetItemStatus(r.Context(), orderID, itemID, req.Status, req.Version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}
