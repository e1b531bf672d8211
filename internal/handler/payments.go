package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID, method string) (database.Payment, error)
	SettlePayment(ctx context.Context, paymentID uuid.UUID) (*service.SettleResult, error)
	RefundPayment(ctx context.Context, paymentID uuid.UUID) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPayments(ctx context.Context, status string, orderID *uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles the cashier endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints. Expected at /payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/settle", h.Settle)
	r.Put("/{id}/refund", h.Refund)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	Method  string    `json:"method"`
}

type paymentResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	TableID    uuid.UUID  `json:"table_id"`
	Amount     string     `json:"amount"`
	Method     string     `json:"method"`
	Status     string     `json:"status"`
	Version    int32      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	PaidAt     *time.Time `json:"paid_at"`
	RefundedAt *time.Time `json:"refunded_at"`
}

type settleResponse struct {
	Payment       paymentResponse `json:"payment"`
	Order         orderResponse   `json:"order"`
	TableReleased bool            `json:"table_released"`
	AlreadyPaid   bool            `json:"already_paid"`
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		OrderID:    p.OrderID,
		TableID:    p.TableID,
		Amount:     numericToString(p.Amount),
		Method:     string(p.Method),
		Status:     string(p.Status),
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
		PaidAt:     timePtr(p.PaidAt),
		RefundedAt: timePtr(p.RefundedAt),
	}
}

// --- Handlers ---

// Create opens a pending payment for the full order total.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrderID == uuid.Nil {
		writeError(w, r, apperr.Validation("order_id is required"))
		return
	}

	payment, err := h.svc.CreatePayment(r.Context(), req.OrderID, req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// List backs the cashier board. Filters: status, order_id.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	var orderID *uuid.UUID
	if s := r.URL.Query().Get("order_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, r, apperr.Validation("invalid order_id"))
			return
		}
		orderID = &id
	}
	payments, err := h.svc.ListPayments(r.Context(), r.URL.Query().Get("status"), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "payment")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// Settle is idempotent: repeating it on a paid payment returns 200 with
// already_paid set.
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "payment")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.SettlePayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{
		Payment:       toPaymentResponse(res.Payment),
		Order:         dbOrderToResponse(res.Order),
		TableReleased: res.TableReleased,
		AlreadyPaid:   res.AlreadyPaid,
	})
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "payment")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := h.svc.RefundPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}
