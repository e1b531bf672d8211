package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const monthLayout = "2006-01"

// StaffStore defines the database methods needed by staff handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StaffStore interface {
	ListStaff(ctx context.Context, role pgtype.Text) ([]database.Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (database.Staff, error)
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	UpdateStaff(ctx context.Context, arg database.UpdateStaffParams) (database.Staff, error)
	UpdateStaffAttendance(ctx context.Context, arg database.UpdateStaffAttendanceParams) (database.Staff, error)
	UpdateStaffVacation(ctx context.Context, arg database.UpdateStaffVacationParams) (database.Staff, error)
	DeleteStaff(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

// StaffHandler handles the staff directory.
type StaffHandler struct {
	store  StaffStore
	images ImageStore
	now    func() time.Time
}

func NewStaffHandler(store StaffStore, images ImageStore) *StaffHandler {
	return &StaffHandler{store: store, images: images, now: time.Now}
}

// RegisterRoutes registers staff endpoints. Expected at /staff.
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/attendance", h.UpdateAttendance)
	r.Put("/{id}/vacation", h.UpdateVacation)
}

// --- Request / Response types ---

type staffRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Role    string `json:"role" validate:"required,oneof=chef waiter cashier manager"`
	Contact string `json:"contact" validate:"required,max=100"`
	Shift   string `json:"shift" validate:"max=50"`
}

type attendanceRequest struct {
	Attendance string `json:"attendance" validate:"required,oneof=present absent vacation"`
}

// vacationRequest sets the vacation counter for a month ("2006-01"),
// defaulting to the current one.
type vacationRequest struct {
	VacationDays *int32 `json:"vacation_days" validate:"required,gte=0"`
	Month        string `json:"month"`

	month time.Time
}

// vacationStructLevel rejects more vacation days than the month has.
func vacationStructLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(vacationRequest)
	if req.VacationDays == nil || req.month.IsZero() {
		return
	}
	if int(*req.VacationDays) > daysIn(req.month) {
		sl.ReportError(req.VacationDays, "vacation_days", "VacationDays", "vacation_days", req.month.Format(monthLayout))
	}
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type staffResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Contact       string    `json:"contact"`
	Shift         *string   `json:"shift"`
	Image         *string   `json:"image"`
	Attendance    string    `json:"attendance"`
	VacationDays  int32     `json:"vacation_days"`
	VacationMonth string    `json:"vacation_month"`
	Version       int32     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toStaffResponse(s database.Staff) staffResponse {
	resp := staffResponse{
		ID:           s.ID,
		Name:         s.Name,
		Role:         string(s.Role),
		Contact:      s.Contact,
		Shift:        textPtr(s.Shift),
		Image:        textPtr(s.Image),
		Attendance:   string(s.Attendance),
		VacationDays: s.VacationDays,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.VacationMonth.Valid {
		resp.VacationMonth = s.VacationMonth.Time.Format(monthLayout)
	}
	return resp
}

// --- Handlers ---

// List supports ?role=.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	var role pgtype.Text
	if s := r.URL.Query().Get("role"); s != "" {
		if !database.StaffRole(s).Valid() {
			writeError(w, r, apperr.Validation("invalid role %q", s))
			return
		}
		role = pgtype.Text{String: s, Valid: true}
	}
	staff, err := h.store.ListStaff(r.Context(), role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]staffResponse, len(staff))
	for i, s := range staff {
		resp[i] = toStaffResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "staff")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.store.GetStaff(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(s))
}

func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
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

	var image pgtype.Text
	if file != nil {
		rel, err := h.images.Save(enum.ImageKindStaff, file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		image = pgtype.Text{String: rel, Valid: true}
	}

	s, err := h.store.CreateStaff(r.Context(), database.CreateStaffParams{
		Name:    req.Name,
		Role:    database.StaffRole(req.Role),
		Contact: req.Contact,
		Shift:   optionalText(req.Shift),
		Image:   image,
	})
	if err != nil {
		if image.Valid {
			h.images.DeleteQuietly(image.String)
		}
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(s))
}

// Update works like the menu item update: a new image replaces the old file.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "staff")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req staffRequest
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

	current, err := h.store.GetStaff(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	image := current.Image
	var saved string
	if file != nil {
		saved, err = h.images.Save(enum.ImageKindStaff, file)
		if err != nil {
			writeError(w, r, err)
			return
		}
		image = pgtype.Text{String: saved, Valid: true}
	}

	s, err := h.store.UpdateStaff(r.Context(), database.UpdateStaffParams{
		ID:      id,
		Name:    req.Name,
		Role:    database.StaffRole(req.Role),
		Contact: req.Contact,
		Shift:   optionalText(req.Shift),
		Image:   image,
	})
	if err != nil {
		if saved != "" {
			h.images.DeleteQuietly(saved)
		}
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	if saved != "" && current.Image.Valid {
		h.images.DeleteQuietly(current.Image.String)
	}
	writeJSON(w, http.StatusOK, toStaffResponse(s))
}

// Delete removes a staff member; tables they served get a NULL server.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "staff")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.store.DeleteStaff(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	if s.Image.Valid {
		h.images.DeleteQuietly(s.Image.String)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StaffHandler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "staff")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req attendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.store.UpdateStaffAttendance(r.Context(), database.UpdateStaffAttendanceParams{
		ID:         id,
		Attendance: database.AttendanceStatus(req.Attendance),
	})
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(s))
}

// UpdateVacation stores the vacation day counter for a month.
func (h *StaffHandler) UpdateVacation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id", "staff")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req vacationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	req.month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if req.Month != "" {
		m, err := time.Parse(monthLayout, req.Month)
		if err != nil {
			writeError(w, r, apperr.Validation("month must look like 2006-01"))
			return
		}
		req.month = m
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.store.UpdateStaffVacation(r.Context(), database.UpdateStaffVacationParams{
		ID:            id,
		VacationDays:  *req.VacationDays,
		VacationMonth: pgtype.Date{Time: req.month, Valid: true},
	})
	if err != nil {
		writeError(w, r, apperr.FromDB(err, "staff member"))
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(s))
}
