package service

import (
	"context"
	"fmt"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/events"
	"github.com/google/uuid"
)

// TableStore defines the DB methods needed for manual table status changes.
// Satisfied by *database.Queries (and its WithTx variant).
type TableStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CountOpenOrdersByTable(ctx context.Context, arg database.CountOpenOrdersByTableParams) (int64, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableService applies status changes made by staff on the table board.
type TableService struct {
	pool      Pool
	newStore  NewTableStore
	publisher events.Publisher
}

// NewTableService creates a new TableService. publisher may be nil.
func NewTableService(pool Pool, newStore NewTableStore, publisher events.Publisher) *TableService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TableService{pool: pool, newStore: newStore, publisher: publisher}
}

// CheckTableStatus reports whether a table with open orders may be set
// to target. Occupancy follows the orders: occupied needs at least one open
// order, available and reserved need none. Maintenance is always allowed.
func CheckTableStatus(target database.TableStatus, open int64) error {
	switch target {
	case database.TableStatusOccupied:
		if open == 0 {
			return apperr.InvalidState("table has no open orders")
		}
	case database.TableStatusAvailable, database.TableStatusReserved:
		if open > 0 {
			return apperr.Conflict("table still has %d open orders", open)
		}
	case database.TableStatusMaintenance:
	default:
		return apperr.Validation("status must be one of: available occupied reserved maintenance")
	}
	return nil
}

// SetStatus locks the table, counts its open orders and writes the new
// status in one transaction, so it cannot interleave with order creation or
// settlement on the same table.
func (s *TableService) SetStatus(ctx context.Context, id uuid.UUID, status string) (database.DiningTable, error) {
	target := database.TableStatus(status)
	if !target.Valid() {
		return database.DiningTable{}, apperr.Validation("status must be one of: available occupied reserved maintenance")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	current, err := store.GetTableForUpdate(ctx, id)
	if err != nil {
		return database.DiningTable{}, apperr.FromDB(err, "table")
	}
	if current.Status == target {
		return current, nil
	}

	open, err := store.CountOpenOrdersByTable(ctx, database.CountOpenOrdersByTableParams{TableID: id})
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("count open orders: %w", err)
	}
	if err := CheckTableStatus(target, open); err != nil {
		return database.DiningTable{}, err
	}

	updated, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{ID: id, Status: target})
	if err != nil {
		return database.DiningTable{}, apperr.FromDB(err, "table")
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(enum.EventTableStatusChanged,
		uuid.Nil, updated.ID, string(updated.Status), updated.Version, nil))
	return updated, nil
}
