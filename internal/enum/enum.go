package enum

// ── Change events (routing keys on the orders_topic exchange) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderItemUpdated   = "order.item_updated"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentCreated     = "payment.created"
	EventPaymentSettled     = "payment.settled"
	EventPaymentRefunded    = "payment.refunded"
	EventTableReleased      = "table.released"
	EventTableStatusChanged = "table.status_changed"
)

// ── Category delete policies (CATEGORY_DELETE_POLICY) ──

const (
	DeletePolicyRestrict = "restrict"
	DeletePolicyCascade  = "cascade"
)

func ValidDeletePolicy(s string) bool {
	switch s {
	case DeletePolicyRestrict, DeletePolicyCascade:
		return true
	}
	return false
}

// ── Upload folders under UPLOAD_DIR ──

const (
	ImageKindMenuItems = "menu-items"
	ImageKindStaff     = "staff"
)

// ── WebSocket rooms ──

const (
	RoomStaff       = "orders"
	RoomTablePrefix = "table:"
)
