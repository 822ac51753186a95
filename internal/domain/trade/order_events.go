package trade

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeOrderCompleted   = "OrderCompleted"
	EventTypePreorderPlaced   = "PreorderPlaced"
	EventTypeOrderCancelled   = "OrderCancelled"
	EventTypePaymentConfirmed = "PaymentConfirmed"
)

// OrderCompletedEvent is raised when an order's stock has been committed
type OrderCompletedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Kind          OrderKind       `json:"kind"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// NewOrderCompletedEvent creates a new OrderCompletedEvent
func NewOrderCompletedEvent(o *Order, at time.Time) *OrderCompletedEvent {
	return &OrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCompleted, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Kind:            o.Kind,
		PaymentStatus:   o.PaymentStatus,
		FinalAmount:     o.FinalAmount,
	}
}

// PreorderPlacedEvent is raised when a pre-order is accepted
type PreorderPlacedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	ExpirationDate time.Time       `json:"expiration_date"`
}

// NewPreorderPlacedEvent creates a new PreorderPlacedEvent
func NewPreorderPlacedEvent(o *Order, at time.Time) *PreorderPlacedEvent {
	e := &PreorderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePreorderPlaced, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		FinalAmount:     o.FinalAmount,
	}
	if o.ExpirationDate != nil {
		e.ExpirationDate = *o.ExpirationDate
	}
	return e
}

// OrderCancelledEvent is raised when an order is cancelled
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Reason        string    `json:"reason"`
	StockRestored bool      `json:"stock_restored"`
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(o *Order, at time.Time) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Reason:          o.CancelReason,
		StockRestored:   o.InventoryCommitted,
	}
}

// PaymentConfirmedEvent is raised when a pending payment settles
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(o *Order, at time.Time) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, AggregateTypeOrder, o.ID, at),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Amount:          o.FinalAmount,
	}
}
