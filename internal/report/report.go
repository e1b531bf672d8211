// Package report computes dashboard aggregates from orders, payments and
// tables loaded for a date range. Nothing here is persisted.
package report

import (
	"sort"
	"time"

	"github.com/bistro-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary is the revenue headline for a range.
type Summary struct {
	Revenue           decimal.Decimal
	OrderCount        int
	PaidCount         int
	AverageOrderValue decimal.Decimal
}

// HourBucket counts orders placed within one hour of the day.
type HourBucket struct {
	Hour    int
	Orders  int
	Revenue decimal.Decimal
}

// ItemSales is one row of the best sellers list.
type ItemSales struct {
	MenuItemID uuid.UUID
	Name       string
	Quantity   int64
	Revenue    decimal.Decimal
}

// DayRevenue is one point of the revenue trend.
type DayRevenue struct {
	Date     time.Time
	Payments int
	Revenue  decimal.Decimal
}

// CategorySales sums order lines under the category they were sold in.
type CategorySales struct {
	CategoryID uuid.UUID
	Name       string
	Quantity   int64
	Revenue    decimal.Decimal
}

// MethodTotal is the settled amount taken through one payment method.
type MethodTotal struct {
	Method   database.PaymentMethod
	Payments int
	Amount   decimal.Decimal
}

// TableBoard counts tables per status.
type TableBoard struct {
	Total    int64
	ByStatus map[database.TableStatus]int64
}

// Summarize adds up paid payments. Orders are counted whether paid or not;
// the average is taken over paid payments only.
func Summarize(orders []database.Order, paid []database.Payment) Summary {
	s := Summary{Revenue: decimal.Zero, AverageOrderValue: decimal.Zero, OrderCount: len(orders)}
	for _, p := range paid {
		if p.Status != database.PaymentStatusPaid {
			continue
		}
		s.Revenue = s.Revenue.Add(database.NumericToDecimal(p.Amount))
		s.PaidCount++
	}
	if s.PaidCount > 0 {
		s.AverageOrderValue = s.Revenue.Div(decimal.NewFromInt(int64(s.PaidCount))).Round(2)
	}
	return s
}

// PeakHours buckets orders by the hour they were placed, in loc.
// All 24 buckets are returned, empty ones included.
func PeakHours(orders []database.Order, loc *time.Location) []HourBucket {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([]HourBucket, 24)
	for h := range buckets {
		buckets[h] = HourBucket{Hour: h, Revenue: decimal.Zero}
	}
	for _, o := range orders {
		h := o.OrderedAt.In(loc).Hour()
		buckets[h].Orders++
		buckets[h].Revenue = buckets[h].Revenue.Add(database.NumericToDecimal(o.TotalAmount))
	}
	return buckets
}

// TopItems ranks menu items by quantity sold, then revenue, then name.
// The name shown is the latest snapshot seen. limit <= 0 means no limit.
func TopItems(orders []database.Order, limit int) []ItemSales {
	byItem := map[uuid.UUID]*ItemSales{}
	latest := map[uuid.UUID]time.Time{}
	for _, o := range orders {
		for _, it := range o.Items {
			row, ok := byItem[it.MenuItemID]
			if !ok {
				row = &ItemSales{MenuItemID: it.MenuItemID, Revenue: decimal.Zero}
				byItem[it.MenuItemID] = row
			}
			if !ok || o.OrderedAt.After(latest[it.MenuItemID]) {
				row.Name = it.Name
				latest[it.MenuItemID] = o.OrderedAt
			}
			row.Quantity += int64(it.Quantity)
			row.Revenue = row.Revenue.Add(it.Price.Mul(decimal.NewFromInt32(it.Quantity)))
		}
	}

	out := make([]ItemSales, 0, len(byItem))
	for _, row := range byItem {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DailyRevenue buckets paid payments by the day of paid_at in loc. Every
// day of rng gets a point, empty ones included.
func DailyRevenue(paid []database.Payment, rng Range, loc *time.Location) []DayRevenue {
	if loc == nil {
		loc = time.UTC
	}
	start := rng.Start.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	out := []DayRevenue{}
	index := map[string]int{}
	for ; day.Before(rng.End); day = day.AddDate(0, 0, 1) {
		index[day.Format(time.DateOnly)] = len(out)
		out = append(out, DayRevenue{Date: day, Revenue: decimal.Zero})
	}

	for _, p := range paid {
		if p.Status != database.PaymentStatusPaid || !p.PaidAt.Valid {
			continue
		}
		i, ok := index[p.PaidAt.Time.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		out[i].Payments++
		out[i].Revenue = out[i].Revenue.Add(database.NumericToDecimal(p.Amount))
	}
	return out
}

// uncategorized names lines stored before category snapshots existed.
const uncategorized = "Uncategorized"

// CategorySalesOf ranks categories by revenue, then name. The name shown is
// the latest snapshot seen.
func CategorySalesOf(orders []database.Order) []CategorySales {
	byCat := map[uuid.UUID]*CategorySales{}
	latest := map[uuid.UUID]time.Time{}
	for _, o := range orders {
		for _, it := range o.Items {
			row, ok := byCat[it.CategoryID]
			if !ok {
				row = &CategorySales{CategoryID: it.CategoryID, Name: uncategorized, Revenue: decimal.Zero}
				byCat[it.CategoryID] = row
			}
			if it.CategoryName != "" && (!ok || !o.OrderedAt.Before(latest[it.CategoryID])) {
				row.Name = it.CategoryName
				latest[it.CategoryID] = o.OrderedAt
			}
			row.Quantity += int64(it.Quantity)
			row.Revenue = row.Revenue.Add(it.Price.Mul(decimal.NewFromInt32(it.Quantity)))
		}
	}

	out := make([]CategorySales, 0, len(byCat))
	for _, row := range byCat {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// PaymentMethods totals paid payments per method, largest amount first.
func PaymentMethods(paid []database.Payment) []MethodTotal {
	byMethod := map[database.PaymentMethod]*MethodTotal{}
	for _, p := range paid {
		if p.Status != database.PaymentStatusPaid {
			continue
		}
		row, ok := byMethod[p.Method]
		if !ok {
			row = &MethodTotal{Method: p.Method, Amount: decimal.Zero}
			byMethod[p.Method] = row
		}
		row.Payments++
		row.Amount = row.Amount.Add(database.NumericToDecimal(p.Amount))
	}

	out := make([]MethodTotal, 0, len(byMethod))
	for _, row := range byMethod {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Tables folds per-status counts into a board with every status present.
func Tables(rows []database.CountTablesByStatusRow) TableBoard {
	board := TableBoard{ByStatus: map[database.TableStatus]int64{
		database.TableStatusAvailable:   0,
		database.TableStatusOccupied:    0,
		database.TableStatusReserved:    0,
		database.TableStatusMaintenance: 0,
	}}
	for _, r := range rows {
		board.ByStatus[r.Status] += r.Count
		board.Total += r.Count
	}
	return board
}
