package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CatalogStore defines the DB methods needed for catalog deletes.
// Satisfied by *database.Queries (and its WithTx variant).
type CatalogStore interface {
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	CountMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	DeleteMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) ([]database.MenuItem, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
}

// NewCatalogStore creates a CatalogStore from a DBTX (pool or tx).
type NewCatalogStore func(db database.DBTX) CatalogStore

// ImageRemover drops stored images without failing the caller.
// Satisfied by *storage.ImageStore.
type ImageRemover interface {
	DeleteQuietly(rel string)
}

// CatalogService handles deletes that reach across categories, menu items
// and stored images.
type CatalogService struct {
	pool     Pool
	newStore NewCatalogStore
	images   ImageRemover
	policy   string
}

// NewCatalogService creates a CatalogService. policy is one of the
// enum.DeletePolicy* values.
func NewCatalogService(pool Pool, newStore NewCatalogStore, images ImageRemover, policy string) *CatalogService {
	if !enum.ValidDeletePolicy(policy) {
		policy = enum.DeletePolicyRestrict
	}
	return &CatalogService{pool: pool, newStore: newStore, images: images, policy: policy}
}

// DeleteCategory removes a category. Under the restrict policy a category
// that still has menu items is refused; under cascade its menu items go too,
// and their images are removed after commit.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) (removedItems int, err error) {
	if s.policy == enum.DeletePolicyCascade {
		return s.deleteCategoryCascade(ctx, id)
	}

	store := s.newStore(s.pool)
	if _, err := store.GetCategory(ctx, id); err != nil {
		return 0, apperr.FromDB(err, "category")
	}
	n, err := store.CountMenuItemsByCategory(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("count menu items: %w", err)
	}
	if n > 0 {
		return 0, apperr.Conflict("category still has %d menu items", n)
	}
	if _, err := store.DeleteCategory(ctx, id); err != nil {
		return 0, apperr.FromDB(err, "category")
	}
	return 0, nil
}

func (s *CatalogService) deleteCategoryCascade(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if _, err := store.GetCategory(ctx, id); err != nil {
		return 0, apperr.FromDB(err, "category")
	}
	removed, err := store.DeleteMenuItemsByCategory(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete menu items: %w", err)
	}
	if _, err := store.DeleteCategory(ctx, id); err != nil {
		return 0, apperr.FromDB(err, "category")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	for _, item := range removed {
		if item.Image.Valid {
			s.images.DeleteQuietly(item.Image.String)
		}
	}
	return len(removed), nil
}

// DeleteMenuItem removes a menu item and its image. Orders keep their
// snapshots and the category is untouched.
func (s *CatalogService) DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	item, err := s.newStore(s.pool).DeleteMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, apperr.NotFound("menu item not found")
		}
		return database.MenuItem{}, fmt.Errorf("delete menu item: %w", err)
	}
	if item.Image.Valid {
		s.images.DeleteQuietly(item.Image.String)
	}
	return item, nil
}
