package report

import (
	"context"
	"fmt"
	"time"

	"github.com/bistro-pos/api/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store defines the DB reads behind the reports.
// Satisfied by *database.Queries.
type Store interface {
	ListOrdersInRange(ctx context.Context, arg database.ListOrdersInRangeParams) ([]database.Order, error)
	ListPaidPaymentsInRange(ctx context.Context, arg database.ListPaidPaymentsInRangeParams) ([]database.Payment, error)
	CountTablesByStatus(ctx context.Context) ([]database.CountTablesByStatusRow, error)
}

// Service loads rows for a range and aggregates them on every call.
type Service struct {
	store Store
	loc   *time.Location
}

// NewService creates a Service. Hours are bucketed in loc.
func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc}
}

// Location is the zone used for day boundaries and hour buckets.
func (s *Service) Location() *time.Location { return s.loc }

// Range is a half-open [Start, End) window.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) orderParams() database.ListOrdersInRangeParams {
	return database.ListOrdersInRangeParams{
		Start: pgtype.Timestamptz{Time: r.Start, Valid: true},
		End:   pgtype.Timestamptz{Time: r.End, Valid: true},
	}
}

func (r Range) paymentParams() database.ListPaidPaymentsInRangeParams {
	return database.ListPaidPaymentsInRangeParams{
		Start: pgtype.Timestamptz{Time: r.Start, Valid: true},
		End:   pgtype.Timestamptz{Time: r.End, Valid: true},
	}
}

func (s *Service) Summary(ctx context.Context, rng Range) (Summary, error) {
	orders, err := s.store.ListOrdersInRange(ctx, rng.orderParams())
	if err != nil {
		return Summary{}, fmt.Errorf("list orders: %w", err)
	}
	paid, err := s.store.ListPaidPaymentsInRange(ctx, rng.paymentParams())
	if err != nil {
		return Summary{}, fmt.Errorf("list payments: %w", err)
	}
	return Summarize(orders, paid), nil
}

// DailyRevenue is the revenue trend, one point per day of rng.
func (s *Service) DailyRevenue(ctx context.Context, rng Range) ([]DayRevenue, error) {
	paid, err := s.store.ListPaidPaymentsInRange(ctx, rng.paymentParams())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return DailyRevenue(paid, rng, s.loc), nil
}

func (s *Service) CategorySales(ctx context.Context, rng Range) ([]CategorySales, error) {
	orders, err := s.store.ListOrdersInRange(ctx, rng.orderParams())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return CategorySalesOf(orders), nil
}

func (s *Service) PaymentMethods(ctx context.Context, rng Range) ([]MethodTotal, error) {
	paid, err := s.store.ListPaidPaymentsInRange(ctx, rng.paymentParams())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return PaymentMethods(paid), nil
}

func (s *Service) PeakHours(ctx context.Context, rng Range) ([]HourBucket, error) {
	orders, err := s.store.ListOrdersInRange(ctx, rng.orderParams())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return PeakHours(orders, s.loc), nil
}

func (s *Service) TopItems(ctx context.Context, rng Range, limit int) ([]ItemSales, error) {
	orders, err := s.store.ListOrdersInRange(ctx, rng.orderParams())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return TopItems(orders, limit), nil
}

func (s *Service) Tables(ctx context.Context) (TableBoard, error) {
	rows, err := s.store.CountTablesByStatus(ctx)
	if err != nil {
		return TableBoard{}, fmt.Errorf("count tables: %w", err)
	}
	return Tables(rows), nil
}
