package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, price, status, image, version, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.Status,
		&i.Image,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const listMenuItems = `-- name: ListMenuItems :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE ($1::uuid IS NULL OR category_id = $1)
  AND ($2::menu_item_status IS NULL OR status = $2)
ORDER BY name
`

type ListMenuItemsParams struct {
	CategoryID pgtype.UUID
	Status     pgtype.Text
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.CategoryID, arg.Status)
	if err != nil {
		return nil, err
	}
	return collectMenuItems(rows)
}

const listMenuItemsByCategory = `-- name: ListMenuItemsByCategory :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE category_id = $1
ORDER BY name
`

func (q *Queries) ListMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	return collectMenuItems(rows)
}

const getMenuItem = `-- name: GetMenuItem :one
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (category_id, name, price, status, image)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	CategoryID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Status     MenuItemStatus
	Image      pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.Status,
		arg.Image,
	))
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET category_id = $2, name = $3, price = $4, status = $5, image = $6,
    version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Status     MenuItemStatus
	Image      pgtype.Text
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.Status,
		arg.Image,
	))
}

const updateMenuItemStatus = `-- name: UpdateMenuItemStatus :one
UPDATE menu_items
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemStatusParams struct {
	ID     uuid.UUID
	Status MenuItemStatus
}

func (q *Queries) UpdateMenuItemStatus(ctx context.Context, arg UpdateMenuItemStatusParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItemStatus, arg.ID, arg.Status))
}

const deleteMenuItem = `-- name: DeleteMenuItem :one
DELETE FROM menu_items
WHERE id = $1
RETURNING ` + menuItemColumns

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, deleteMenuItem, id))
}

const deleteMenuItemsByCategory = `-- name: DeleteMenuItemsByCategory :many
DELETE FROM menu_items
WHERE category_id = $1
RETURNING ` + menuItemColumns

func (q *Queries) DeleteMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, deleteMenuItemsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	return collectMenuItems(rows)
}
