package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type MenuItemStatus string

const (
	MenuItemStatusAvailable   MenuItemStatus = "available"
	MenuItemStatusUnavailable MenuItemStatus = "unavailable"
)

func (e *MenuItemStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "MenuItemStatus")
}

func (e MenuItemStatus) Valid() bool {
	switch e {
	case MenuItemStatusAvailable, MenuItemStatusUnavailable:
		return true
	}
	return false
}

type StaffRole string

const (
	StaffRoleChef    StaffRole = "chef"
	StaffRoleWaiter  StaffRole = "waiter"
	StaffRoleCashier StaffRole = "cashier"
	StaffRoleManager StaffRole = "manager"
)

func (e *StaffRole) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "StaffRole")
}

func (e StaffRole) Valid() bool {
	switch e {
	case StaffRoleChef, StaffRoleWaiter, StaffRoleCashier, StaffRoleManager:
		return true
	}
	return false
}

type AttendanceStatus string

const (
	AttendanceStatusPresent  AttendanceStatus = "present"
	AttendanceStatusAbsent   AttendanceStatus = "absent"
	AttendanceStatusVacation AttendanceStatus = "vacation"
)

func (e *AttendanceStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "AttendanceStatus")
}

func (e AttendanceStatus) Valid() bool {
	switch e {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusVacation:
		return true
	}
	return false
}

type TableStatus string

const (
	TableStatusAvailable   TableStatus = "available"
	TableStatusOccupied    TableStatus = "occupied"
	TableStatusReserved    TableStatus = "reserved"
	TableStatusMaintenance TableStatus = "maintenance"
)

func (e *TableStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "TableStatus")
}

func (e TableStatus) Valid() bool {
	switch e {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved, TableStatusMaintenance:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusClosed    OrderStatus = "closed"
)

func (e *OrderStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "OrderStatus")
}

func (e OrderStatus) Valid() bool {
	switch e {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady,
		OrderStatusServed, OrderStatusCancelled, OrderStatusClosed:
		return true
	}
	return false
}

// OrderItemStatus shares the first four labels of OrderStatus. Items have no
// terminal states of their own.
type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "pending"
	OrderItemStatusPreparing OrderItemStatus = "preparing"
	OrderItemStatusReady     OrderItemStatus = "ready"
	OrderItemStatusServed    OrderItemStatus = "served"
)

func (e OrderItemStatus) Valid() bool {
	switch e {
	case OrderItemStatusPending, OrderItemStatusPreparing, OrderItemStatusReady, OrderItemStatusServed:
		return true
	}
	return false
}

type OrderPaymentStatus string

const (
	OrderPaymentStatusUnpaid OrderPaymentStatus = "unpaid"
	OrderPaymentStatusPaid   OrderPaymentStatus = "paid"
)

func (e *OrderPaymentStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "OrderPaymentStatus")
}

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodDigital PaymentMethod = "digital"
)

func (e *PaymentMethod) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "PaymentMethod")
}

func (e PaymentMethod) Valid() bool {
	switch e {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodDigital:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (e *PaymentStatus) Scan(src interface{}) error {
	return scanEnum((*string)(e), src, "PaymentStatus")
}

func scanEnum(dst *string, src interface{}, name string) error {
	switch s := src.(type) {
	case []byte:
		*dst = string(s)
	case string:
		*dst = s
	default:
		return fmt.Errorf("unsupported scan type for %s: %T", name, src)
	}
	return nil
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Version     int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MenuItem struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Status     MenuItemStatus
	Image      pgtype.Text
	Version    int32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Staff struct {
	ID            uuid.UUID
	Name          string
	Role          StaffRole
	Contact       string
	Shift         pgtype.Text
	Image         pgtype.Text
	Attendance    AttendanceStatus
	VacationDays  int32
	VacationMonth pgtype.Date
	Version       int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DiningTable struct {
	ID             uuid.UUID
	Name           string
	Seats          int32
	Status         TableStatus
	Notes          pgtype.Text
	Location       pgtype.Text
	AssignedServer pgtype.UUID
	Version        int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is a line embedded in orders.items (jsonb). Name and Price are
// snapshots taken when the order was placed.
type OrderItem struct {
	ID         uuid.UUID       `json:"id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
	Status     OrderItemStatus `json:"status"`
	// Category at order time; renames and moves do not rewrite history.
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    int32
	TableID        uuid.UUID
	Items          []OrderItem
	Status         OrderStatus
	PaymentStatus  OrderPaymentStatus
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	TipAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	Version        int32
	OrderedAt      time.Time
	UpdatedAt      time.Time
}

type Payment struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	TableID    uuid.UUID
	Amount     pgtype.Numeric
	Method     PaymentMethod
	Status     PaymentStatus
	Version    int32
	CreatedAt  time.Time
	PaidAt     pgtype.Timestamptz
	RefundedAt pgtype.Timestamptz
}
