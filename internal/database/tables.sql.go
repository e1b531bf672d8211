package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, name, seats, status, notes, location, assigned_server, version, created_at, updated_at`

func scanDiningTable(row pgx.Row) (DiningTable, error) {
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Seats,
		&i.Status,
		&i.Notes,
		&i.Location,
		&i.AssignedServer,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM dining_tables
WHERE ($1::table_status IS NULL OR status = $1)
ORDER BY name
`

func (q *Queries) ListTables(ctx context.Context, status pgtype.Text) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DiningTable{}
	for rows.Next() {
		i, err := scanDiningTable(rows)
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

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM dining_tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTable, id))
}

// GetTableForUpdate serializes order creation, settlement and manual status
// changes on one table.
const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM dining_tables
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (name, seats, status, notes, location, assigned_server)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + tableColumns

type CreateTableParams struct {
	Name           string
	Seats          int32
	Status         TableStatus
	Notes          pgtype.Text
	Location       pgtype.Text
	AssignedServer pgtype.UUID
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, createTable,
		arg.Name,
		arg.Seats,
		arg.Status,
		arg.Notes,
		arg.Location,
		arg.AssignedServer,
	))
}

const updateTable = `-- name: UpdateTable :one
UPDATE dining_tables
SET name = $2, seats = $3, notes = $4, location = $5, assigned_server = $6,
    version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableParams struct {
	ID             uuid.UUID
	Name           string
	Seats          int32
	Notes          pgtype.Text
	Location       pgtype.Text
	AssignedServer pgtype.UUID
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, updateTable,
		arg.ID,
		arg.Name,
		arg.Seats,
		arg.Notes,
		arg.Location,
		arg.AssignedServer,
	))
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE dining_tables
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableStatusParams struct {
	ID     uuid.UUID
	Status TableStatus
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status))
}

// OccupyTable seats a new order. Tables under maintenance are left untouched
// and the query returns no rows.
const occupyTable = `-- name: OccupyTable :one
UPDATE dining_tables
SET status = 'occupied',
    version = CASE WHEN status = 'occupied' THEN version ELSE version + 1 END,
    updated_at = now()
WHERE id = $1 AND status <> 'maintenance'
RETURNING ` + tableColumns

func (q *Queries) OccupyTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, occupyTable, id))
}

// ReleaseTable only moves occupied tables; releasing an available, reserved
// or maintenance table returns no rows.
const releaseTable = `-- name: ReleaseTable :one
UPDATE dining_tables
SET status = 'available', version = version + 1, updated_at = now()
WHERE id = $1 AND status = 'occupied'
RETURNING ` + tableColumns

func (q *Queries) ReleaseTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, releaseTable, id))
}

const deleteTable = `-- name: DeleteTable :one
DELETE FROM dining_tables
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteTable, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const countTablesByStatus = `-- name: CountTablesByStatus :many
SELECT status, count(*) FROM dining_tables
GROUP BY status
`

type CountTablesByStatusRow struct {
	Status TableStatus
	Count  int64
}

func (q *Queries) CountTablesByStatus(ctx context.Context) ([]CountTablesByStatusRow, error) {
	rows, err := q.db.Query(ctx, countTablesByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CountTablesByStatusRow{}
	for rows.Next() {
		var i CountTablesByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
