package service

import (
	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// itemSteps is the item state machine: each status has exactly one successor.
var itemSteps = []database.OrderItemStatus{
	database.OrderItemStatusPending,
	database.OrderItemStatusPreparing,
	database.OrderItemStatusReady,
	database.OrderItemStatusServed,
}

var itemRank = func() map[database.OrderItemStatus]int {
	m := make(map[database.OrderItemStatus]int, len(itemSteps))
	for i, s := range itemSteps {
		m[s] = i
	}
	return m
}()

// derivedByRank maps the slowest item's rank to the order status it implies.
var derivedByRank = []database.OrderStatus{
	database.OrderStatusPending,
	database.OrderStatusPreparing,
	database.OrderStatusReady,
	database.OrderStatusServed,
}

// IsTerminal reports whether no further lifecycle change is possible.
func IsTerminal(s database.OrderStatus) bool {
	return s == database.OrderStatusCancelled || s == database.OrderStatusClosed
}

// IsOpen reports whether the order still holds its table.
func IsOpen(o database.Order) bool {
	return !IsTerminal(o.Status) && o.PaymentStatus == database.OrderPaymentStatusUnpaid
}

// DeriveOrderStatus computes the order status from its items. Cancelled and
// closed orders keep their status regardless of items. Otherwise the order is
// as far along as its slowest item, so it is only served when every item is.
func DeriveOrderStatus(items []database.OrderItem, current database.OrderStatus) (database.OrderStatus, error) {
	if IsTerminal(current) {
		return current, nil
	}
	if len(items) == 0 {
		return "", apperr.Validation("order has no items")
	}
	slowest := len(itemSteps) - 1
	for _, it := range items {
		r, ok := itemRank[it.Status]
		if !ok {
			return "", apperr.Validation("item %s has unknown status %q", it.ID, it.Status)
		}
		if r < slowest {
			slowest = r
		}
	}
	return derivedByRank[slowest], nil
}

// CheckItemTransition validates a single item move. Setting the current
// status again is allowed and reported as unchanged.
func CheckItemTransition(from, to database.OrderItemStatus) (changed bool, err error) {
	if !to.Valid() {
		return false, apperr.Validation("invalid item status %q", to)
	}
	if from == to {
		return false, nil
	}
	if fr, ok := itemRank[from]; ok && itemRank[to] == fr+1 {
		return true, nil
	}
	return false, apperr.InvalidTransition("cannot move item from %s to %s", from, to)
}

// AdvanceItems returns a copy of items where every item behind target is
// moved up to it. Items already at or past target are left alone.
func AdvanceItems(items []database.OrderItem, target database.OrderStatus) []database.OrderItem {
	goal := database.OrderItemStatus(target)
	out := make([]database.OrderItem, len(items))
	copy(out, items)
	for i := range out {
		if itemRank[out[i].Status] < itemRank[goal] {
			out[i].Status = goal
		}
	}
	return out
}

// statusRank orders the non-terminal order statuses.
func statusRank(s database.OrderStatus) int {
	return itemRank[database.OrderItemStatus(s)]
}

// Totals are the money columns of an order, all rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Tip      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices an order. The discount is a fixed amount capped at
// the subtotal; tax applies to the discounted subtotal; the tip is added last.
func ComputeTotals(items []database.OrderItem, discount, tip, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt32(it.Quantity)))
	}
	subtotal = subtotal.Round(2)

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)

	tax := subtotal.Sub(discount).Mul(taxRate).Round(2)
	tip = tip.Round(2)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Tip:      tip,
		Total:    subtotal.Sub(discount).Add(tax).Add(tip),
	}
}
