package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReportServicer defines the report methods needed by report handlers.
// Satisfied by *report.Service.
type ReportServicer interface {
	Location() *time.Location
	Summary(ctx context.Context, rng report.Range) (report.Summary, error)
	PeakHours(ctx context.Context, rng report.Range) ([]report.HourBucket, error)
	TopItems(ctx context.Context, rng report.Range, limit int) ([]report.ItemSales, error)
	Tables(ctx context.Context) (report.TableBoard, error)
	DailyRevenue(ctx context.Context, rng report.Range) ([]report.DayRevenue, error)
	CategorySales(ctx context.Context, rng report.Range) ([]report.CategorySales, error)
	PaymentMethods(ctx context.Context, rng report.Range) ([]report.MethodTotal, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc ReportServicer
	now func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(svc ReportServicer) *ReportsHandler {
	return &ReportsHandler{svc: svc, now: time.Now}
}

// RegisterRoutes registers report endpoints. Expected at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/peak-hours", h.PeakHours)
	r.Get("/top-items", h.TopItems)
	r.Get("/tables", h.Tables)
	r.Get("/daily-revenue", h.DailyRevenue)
	r.Get("/categories", h.CategorySales)
	r.Get("/payment-methods", h.PaymentMethods)
}

// --- Response types ---

type summaryResponse struct {
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Revenue           string `json:"revenue"`
	OrderCount        int    `json:"order_count"`
	PaidCount         int    `json:"paid_count"`
	AverageOrderValue string `json:"average_order_value"`
}

type hourBucketResponse struct {
	Hour    int    `json:"hour"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
}

type itemSalesResponse struct {
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	Name         string    `json:"name"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

type dailyRevenueResponse struct {
	Date     string `json:"date"`
	Payments int    `json:"payment_count"`
	Revenue  string `json:"revenue"`
}

type categorySalesResponse struct {
	CategoryID   uuid.UUID `json:"category_id"`
	Name         string    `json:"name"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

type paymentMethodResponse struct {
	PaymentMethod    string `json:"payment_method"`
	TransactionCount int    `json:"transaction_count"`
	TotalAmount      string `json:"total_amount"`
}

type tableBoardResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// --- Handlers ---

func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Summary(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		StartDate:         rng.Start.Format(dateLayout),
		EndDate:           rng.End.AddDate(0, 0, -1).Format(dateLayout),
		Revenue:           s.Revenue.StringFixed(2),
		OrderCount:        s.OrderCount,
		PaidCount:         s.PaidCount,
		AverageOrderValue: s.AverageOrderValue.StringFixed(2),
	})
}

// PeakHours returns all 24 hour buckets for peak hour analysis.
func (h *ReportsHandler) PeakHours(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	buckets, err := h.svc.PeakHours(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]hourBucketResponse, len(buckets))
	for i, b := range buckets {
		resp[i] = hourBucketResponse{Hour: b.Hour, Orders: b.Orders, Revenue: b.Revenue.StringFixed(2)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopItems returns best sellers by quantity. ?limit= defaults to 10, max 100.
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	items, err := h.svc.TopItems(r.Context(), rng, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]itemSalesResponse, len(items))
	for i, it := range items {
		resp[i] = itemSalesResponse{
			MenuItemID:   it.MenuItemID,
			Name:         it.Name,
			QuantitySold: it.Quantity,
			Revenue:      it.Revenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tables is the dashboard's table status board.
func (h *ReportsHandler) Tables(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Tables(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := tableBoardResponse{Total: board.Total, ByStatus: make(map[string]int64, len(board.ByStatus))}
	for status, n := range board.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// DailyRevenue returns settled revenue per day for a date range.
func (h *ReportsHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := h.svc.DailyRevenue(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]dailyRevenueResponse, len(days))
	for i, d := range days {
		resp[i] = dailyRevenueResponse{
			Date:     d.Date.Format(dateLayout),
			Payments: d.Payments,
			Revenue:  d.Revenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CategorySales returns revenue per menu category, highest first.
func (h *ReportsHandler) CategorySales(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.svc.CategorySales(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]categorySalesResponse, len(rows))
	for i, c := range rows {
		resp[i] = categorySalesResponse{
			CategoryID:   c.CategoryID,
			Name:         c.Name,
			QuantitySold: c.Quantity,
			Revenue:      c.Revenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PaymentMethods returns the settled amount per payment method.
func (h *ReportsHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.svc.PaymentMethods(r.Context(), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]paymentMethodResponse, len(rows))
	for i, m := range rows {
		resp[i] = paymentMethodResponse{
			PaymentMethod:    string(m.Method),
			TransactionCount: m.Payments,
			TotalAmount:      m.Amount.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

const dateLayout = "2006-01-02"

// parseDateRange reads start_date and end_date (inclusive days) in the
// report location. Defaults to the last 30 days including today. The
// returned range ends at midnight after end_date.
func (h *ReportsHandler) parseDateRange(r *http.Request) (report.Range, error) {
	loc := h.svc.Location()
	now := h.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return report.Range{}, apperr.Validation("invalid start_date format, want YYYY-MM-DD")
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return report.Range{}, apperr.Validation("invalid end_date format, want YYYY-MM-DD")
		}
		end = t.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return report.Range{}, apperr.Validation("start_date must not be after end_date")
	}
	return report.Range{Start: start, End: end}, nil
}
