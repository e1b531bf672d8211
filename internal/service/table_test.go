package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/google/uuid"
)

func newTableService(env *testEnv) *TableService {
	pool := &mockPool{tx: env.tx}
	return NewTableService(pool, func(database.DBTX) TableStore { return env.store }, env.pub)
}

func TestCheckTableStatus(t *testing.T) {
	tests := []struct {
		target database.TableStatus
		open   int64
		want   error
	}{
		{database.TableStatusOccupied, 0, apperr.ErrInvalidState},
		{database.TableStatusOccupied, 1, nil},
		{database.TableStatusAvailable, 0, nil},
		{database.TableStatusAvailable, 2, apperr.ErrConflict},
		{database.TableStatusReserved, 0, nil},
		{database.TableStatusReserved, 2, apperr.ErrConflict},
		{database.TableStatusMaintenance, 0, nil},
		{database.TableStatusMaintenance, 3, nil},
		{database.TableStatus("closed"), 0, apperr.ErrValidation},
	}
	for _, tc := range tests {
		err := CheckTableStatus(tc.target, tc.open)
		if tc.want == nil && err != nil {
			t.Errorf("%s with %d open: unexpected error %v", tc.target, tc.open, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s with %d open: expected %v, got %v", tc.target, tc.open, tc.want, err)
		}
	}
}

func TestTableSetStatus_FollowsOpenOrders(t *testing.T) {
	env := newTestEnv("0")
	svc := newTableService(env)
	ctx := context.Background()

	idle := env.store.addTable(database.TableStatusAvailable)
	if _, err := svc.SetStatus(ctx, idle.ID, "occupied"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("idle -> occupied: expected invalid state, got %v", err)
	}
	if got := env.store.table(idle.ID).Status; got != database.TableStatusAvailable {
		t.Errorf("rejected change must not write, got %s", got)
	}
	reserved, err := svc.SetStatus(ctx, idle.ID, "reserved")
	if err != nil {
		t.Fatalf("idle -> reserved: %v", err)
	}
	if reserved.Status != database.TableStatusReserved {
		t.Errorf("expected reserved, got %s", reserved.Status)
	}

	_, busy := seedOrder(t, env)
	for _, target := range []string{"available", "reserved"} {
		if _, err := svc.SetStatus(ctx, busy.ID, target); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("busy -> %s: expected conflict, got %v", target, err)
		}
	}
	if got := env.store.table(busy.ID).Status; got != database.TableStatusOccupied {
		t.Errorf("busy table must stay occupied, got %s", got)
	}
}

func TestTableSetStatus_MaintenanceOverride(t *testing.T) {
	env := newTestEnv("0")
	svc := newTableService(env)
	ctx := context.Background()
	_, table := seedOrder(t, env)

	updated, err := svc.SetStatus(ctx, table.ID, "maintenance")
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if updated.Status != database.TableStatusMaintenance {
		t.Errorf("expected maintenance, got %s", updated.Status)
	}
	if env.pub.seen(enum.EventTableStatusChanged) != 1 {
		t.Error("expected table.status_changed event")
	}

	// Back from maintenance with the order still open.
	if _, err := svc.SetStatus(ctx, table.ID, "occupied"); err != nil {
		t.Fatalf("maintenance -> occupied: %v", err)
	}
}

func TestTableSetStatus_LocksBeforeCounting(t *testing.T) {
	env := newTestEnv("0")
	svc := newTableService(env)
	table := env.store.addTable(database.TableStatusOccupied)

	if _, err := svc.SetStatus(context.Background(), table.ID, "available"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.unlockedCounts != 0 || len(env.store.tableLocks) != 1 {
		t.Errorf("locks=%v unlocked counts=%d", env.store.tableLocks, env.store.unlockedCounts)
	}
	if env.tx.commits != 1 {
		t.Errorf("expected one commit, got %d", env.tx.commits)
	}
}

func TestTableSetStatus_Errors(t *testing.T) {
	env := newTestEnv("0")
	svc := newTableService(env)
	ctx := context.Background()

	if _, err := svc.SetStatus(ctx, uuid.New(), "available"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing table: expected not found, got %v", err)
	}
	table := env.store.addTable(database.TableStatusAvailable)
	if _, err := svc.SetStatus(ctx, table.ID, "closed"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad status: expected validation, got %v", err)
	}

	got, err := svc.SetStatus(ctx, table.ID, "available")
	if err != nil {
		t.Fatalf("same status: %v", err)
	}
	if got.Version != table.Version {
		t.Error("same status must not bump the version")
	}
}
