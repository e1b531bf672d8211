package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func newCatalogEnv(policy string) (*CatalogService, *fakeStore, *recordingImages) {
	store := newFakeStore()
	images := &recordingImages{}
	pool := &mockPool{tx: &mockTx{}}
	svc := NewCatalogService(pool, func(database.DBTX) CatalogStore { return store }, images, policy)
	return svc, store, images
}

func addCategoryWithItem(store *fakeStore, image string) (database.Category, database.MenuItem) {
	cat := database.Category{ID: uuid.New(), Name: "Mains", Version: 1}
	store.categories[cat.ID] = cat
	item := store.addMenuItem("Steak", "22.00", database.MenuItemStatusAvailable)
	item.CategoryID = cat.ID
	if image != "" {
		item.Image = pgtype.Text{String: image, Valid: true}
	}
	store.menuItems[item.ID] = item
	return cat, item
}

func TestDeleteCategory_RestrictRefusesNonEmpty(t *testing.T) {
	svc, store, _ := newCatalogEnv(enum.DeletePolicyRestrict)
	cat, _ := addCategoryWithItem(store, "")

	_, err := svc.DeleteCategory(context.Background(), cat.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := store.categories[cat.ID]; !ok {
		t.Error("category must survive a refused delete")
	}
}

func TestDeleteCategory_RestrictEmpty(t *testing.T) {
	svc, store, _ := newCatalogEnv(enum.DeletePolicyRestrict)
	cat := database.Category{ID: uuid.New(), Name: "Desserts"}
	store.categories[cat.ID] = cat

	if _, err := svc.DeleteCategory(context.Background(), cat.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.DeleteCategory(context.Background(), cat.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCategory_CascadeRemovesItemsAndImages(t *testing.T) {
	svc, store, images := newCatalogEnv(enum.DeletePolicyCascade)
	cat, item := addCategoryWithItem(store, "menu-items/steak.png")

	n, err := svc.DeleteCategory(context.Background(), cat.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d items, want 1", n)
	}
	if _, ok := store.menuItems[item.ID]; ok {
		t.Error("menu item should be gone")
	}
	if len(images.removed) != 1 || images.removed[0] != "menu-items/steak.png" {
		t.Errorf("unexpected image removals: %v", images.removed)
	}
}

func TestDeleteMenuItem_RemovesImageKeepsCategory(t *testing.T) {
	svc, store, images := newCatalogEnv(enum.DeletePolicyRestrict)
	cat, item := addCategoryWithItem(store, "menu-items/steak.png")

	if _, err := svc.DeleteMenuItem(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.categories[cat.ID]; !ok {
		t.Error("category must not be touched")
	}
	if len(images.removed) != 1 {
		t.Errorf("expected image removal, got %v", images.removed)
	}
	if _, err := svc.DeleteMenuItem(context.Background(), item.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestNewCatalogService_UnknownPolicyFallsBackToRestrict(t *testing.T) {
	svc, store, _ := newCatalogEnv("whatever")
	cat, _ := addCategoryWithItem(store, "")
	if _, err := svc.DeleteCategory(context.Background(), cat.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected restrict behaviour, got %v", err)
	}
}
