package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const staffColumns = `id, name, role, contact, shift, image, attendance, vacation_days, vacation_month, version, created_at, updated_at`

func scanStaff(row pgx.Row) (Staff, error) {
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Role,
		&i.Contact,
		&i.Shift,
		&i.Image,
		&i.Attendance,
		&i.VacationDays,
		&i.VacationMonth,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listStaff = `-- name: ListStaff :many
SELECT ` + staffColumns + ` FROM staff
WHERE ($1::staff_role IS NULL OR role = $1)
ORDER BY name
`

func (q *Queries) ListStaff(ctx context.Context, role pgtype.Text) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listStaff, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Staff{}
	for rows.Next() {
		i, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStaff = `-- name: GetStaff :one
SELECT ` + staffColumns + ` FROM staff
WHERE id = $1
`

func (q *Queries) GetStaff(ctx context.Context, id uuid.UUID) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaff, id))
}

const createStaff = `-- name: CreateStaff :one
INSERT INTO staff (name, role, contact, shift, image)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + staffColumns

type CreateStaffParams struct {
	Name    string
	Role    StaffRole
	Contact string
	Shift   pgtype.Text
	Image   pgtype.Text
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, createStaff,
		arg.Name,
		arg.Role,
		arg.Contact,
		arg.Shift,
		arg.Image,
	))
}

const updateStaff = `-- name: UpdateStaff :one
UPDATE staff
SET name = $2, role = $3, contact = $4, shift = $5, image = $6,
    version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type UpdateStaffParams struct {
	ID      uuid.UUID
	Name    string
	Role    StaffRole
	Contact string
	Shift   pgtype.Text
	Image   pgtype.Text
}

func (q *Queries) UpdateStaff(ctx context.Context, arg UpdateStaffParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, updateStaff,
		arg.ID,
		arg.Name,
		arg.Role,
		arg.Contact,
		arg.Shift,
		arg.Image,
	))
}

const updateStaffAttendance = `-- name: UpdateStaffAttendance :one
UPDATE staff
SET attendance = $2, version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type UpdateStaffAttendanceParams struct {
	ID         uuid.UUID
	Attendance AttendanceStatus
}

func (q *Queries) UpdateStaffAttendance(ctx context.Context, arg UpdateStaffAttendanceParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, updateStaffAttendance, arg.ID, arg.Attendance))
}

const updateStaffVacation = `-- name: UpdateStaffVacation :one
UPDATE staff
SET vacation_days = $2, vacation_month = $3, version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type UpdateStaffVacationParams struct {
	ID            uuid.UUID
	VacationDays  int32
	VacationMonth pgtype.Date
}

func (q *Queries) UpdateStaffVacation(ctx context.Context, arg UpdateStaffVacationParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, updateStaffVacation, arg.ID, arg.VacationDays, arg.VacationMonth))
}

const deleteStaff = `-- name: DeleteStaff :one
DELETE FROM staff
WHERE id = $1
RETURNING ` + staffColumns

func (q *Queries) DeleteStaff(ctx context.Context, id uuid.UUID) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, deleteStaff, id))
}
