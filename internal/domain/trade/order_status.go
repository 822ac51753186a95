package trade

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// OrderKind distinguishes instant sales from pre-orders
type OrderKind string

const (
	OrderKindInstore  OrderKind = "instore"
	OrderKindPreorder OrderKind = "preorder"
)

// IsValid checks if the kind is a valid OrderKind
func (k OrderKind) IsValid() bool {
	return k == OrderKindInstore || k == OrderKindPreorder
}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPreorderPending OrderStatus = "preorder_pending"
	OrderStatusDeposit         OrderStatus = "deposit"
	OrderStatusPendingHold     OrderStatus = "pending_hold"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreorderPending, OrderStatusDeposit,
		OrderStatusPendingHold, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for completed and cancelled
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusCompleted || target == OrderStatusDeposit || target == OrderStatusCancelled
	case OrderStatusPreorderPending:
		return target == OrderStatusCompleted || target == OrderStatusPendingHold ||
			target == OrderStatusDeposit || target == OrderStatusCancelled
	case OrderStatusPendingHold:
		return target == OrderStatusPreorderPending || target == OrderStatusDeposit || target == OrderStatusCancelled
	case OrderStatusDeposit:
		return target == OrderStatusDeposit || target == OrderStatusCancelled
	case OrderStatusCompleted, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// ParseOrderStatus parses a status name
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", shared.NewValidationError("Invalid order status %q", s)
	}
	return status, nil
}

// PaymentStatus tracks how much of an order has been paid
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline:
		return true
	}
	return false
}

// SettlesImmediately returns true when payment is collected at the counter
func (m PaymentMethod) SettlesImmediately() bool {
	return m == PaymentMethodCash
}
