package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bistro-pos/api/internal/config"
	"github.com/bistro-pos/api/internal/database"
	"github.com/bistro-pos/api/internal/logger"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type seedItem struct {
	name  string
	price string
}

var menu = []struct {
	category    string
	description string
	items       []seedItem
}{
	{"Starters", "Small plates to share", []seedItem{
		{"Garlic Bread", "4.50"},
		{"Tomato Soup", "5.00"},
	}},
	{"Mains", "Hot dishes", []seedItem{
		{"Burger", "10.00"},
		{"Grilled Salmon", "16.50"},
		{"Mushroom Risotto", "13.00"},
	}},
	{"Sides", "", []seedItem{
		{"Fries", "5.00"},
		{"Green Salad", "4.00"},
	}},
	{"Drinks", "Soft drinks and hot drinks", []seedItem{
		{"Lemonade", "3.00"},
		{"Espresso", "2.50"},
	}},
}

var tables = []struct {
	name     string
	seats    int32
	location string
}{
	{"T1", 2, "window"},
	{"T2", 2, "window"},
	{"T3", 4, "main hall"},
	{"T4", 4, "main hall"},
	{"T5", 6, "patio"},
}

var staff = []struct {
	name    string
	role    database.StaffRole
	contact string
	shift   string
}{
	{"Alex Manager", database.StaffRoleManager, "alex@bistro.local", "day"},
	{"Sam Chef", database.StaffRoleChef, "sam@bistro.local", "evening"},
	{"Riley Waiter", database.StaffRoleWaiter, "riley@bistro.local", "evening"},
	{"Jo Cashier", database.StaffRoleCashier, "jo@bistro.local", "day"},
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.L()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("unable to ping database: %v", err)
	}
	log.Info("connected to database")

	// All or nothing.
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)
	if err := seedMenu(ctx, q); err != nil {
		log.Fatalf("failed to seed menu: %v", err)
	}
	if err := seedTables(ctx, q); err != nil {
		log.Fatalf("failed to seed tables: %v", err)
	}
	if err := seedStaff(ctx, q); err != nil {
		log.Fatalf("failed to seed staff: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("failed to commit: %v", err)
	}
	log.Info("seed completed successfully")
}

// seedMenu creates missing categories and their items. Existing categories
// are left alone, items included.
func seedMenu(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	for _, group := range menu {
		if have[group.category] {
			logger.L().Infof("category %q already exists, skipping", group.category)
			continue
		}
		desc := pgtype.Text{String: group.description, Valid: group.description != ""}
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{Name: group.category, Description: desc})
		if err != nil {
			return fmt.Errorf("insert category %s: %w", group.category, err)
		}
		for _, it := range group.items {
			_, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				CategoryID: cat.ID,
				Name:       it.name,
				Price:      database.DecimalToNumeric(decimal.RequireFromString(it.price)),
				Status:     database.MenuItemStatusAvailable,
			})
			if err != nil {
				return fmt.Errorf("insert menu item %s: %w", it.name, err)
			}
		}
		logger.L().Infof("created category %q with %d items", group.category, len(group.items))
	}
	return nil
}

func seedTables(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListTables(ctx, pgtype.Text{})
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Name] = true
	}

	for _, t := range tables {
		if have[t.name] {
			continue
		}
		_, err := q.CreateTable(ctx, database.CreateTableParams{
			Name:     t.name,
			Seats:    t.seats,
			Status:   database.TableStatusAvailable,
			Location: pgtype.Text{String: t.location, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("insert table %s: %w", t.name, err)
		}
		logger.L().Infof("created table %s (%d seats)", t.name, t.seats)
	}
	return nil
}

func seedStaff(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListStaff(ctx, pgtype.Text{})
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.Contact] = true
	}

	for _, s := range staff {
		if have[s.contact] {
			continue
		}
		_, err := q.CreateStaff(ctx, database.CreateStaffParams{
			Name:    s.name,
			Role:    s.role,
			Contact: s.contact,
			Shift:   pgtype.Text{String: s.shift, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("insert staff %s: %w", s.name, err)
		}
		logger.L().Infof("created %s %s", s.role, s.name)
	}
	return nil
}
