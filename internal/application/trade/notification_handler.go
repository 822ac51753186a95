package trade

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notification is a message about an order sent to staff or the customer
type Notification struct {
	EventType   string
	OrderNumber string
	Subject     string
	Body        string
	// Amount is the money figure the message is about, zero when none applies
	Amount decimal.Decimal
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationHandler turns order events into notifications.
// Delivery failures are logged and never reach the operation that raised the event.
type NotificationHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifier Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// EventTypes returns the order events that produce notifications
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		trade.EventTypeOrderCompleted,
		trade.EventTypePreorderPlaced,
		trade.EventTypeOrderCancelled,
		trade.EventTypePaymentConfirmed,
	}
}

// Handle builds and sends a notification for the event
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	n, ok := buildNotification(event)
	if !ok {
		return nil
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Warn("Failed to deliver notification",
			zap.String("event_type", event.EventType()),
			zap.String("order_number", n.OrderNumber),
			zap.Error(err),
		)
	}
	return nil
}

func buildNotification(event shared.DomainEvent) (Notification, bool) {
	switch e := event.(type) {
	case *trade.OrderCompletedEvent:
		return Notification{
			EventType:   e.EventType(),
			OrderNumber: e.OrderNumber,
			Subject:     "Order completed",
			Body:        "Order " + e.OrderNumber + " completed, total " + e.FinalAmount.StringFixed(2) + ", payment " + string(e.PaymentStatus),
			Amount:      e.FinalAmount,
		}, true
	case *trade.PreorderPlacedEvent:
		return Notification{
			EventType:   e.EventType(),
			OrderNumber: e.OrderNumber,
			Subject:     "Pre-order placed",
			Body:        "Pre-order " + e.OrderNumber + " reserved until " + e.ExpirationDate.Format("2006-01-02 15:04") + ", total " + e.FinalAmount.StringFixed(2),
			Amount:      e.FinalAmount,
		}, true
	case *trade.OrderCancelledEvent:
		body := "Order " + e.OrderNumber + " cancelled: " + e.Reason
		if e.StockRestored {
			body += " (stock restored)"
		}
		return Notification{
			EventType:   e.EventType(),
			OrderNumber: e.OrderNumber,
			Subject:     "Order cancelled",
			Body:        body,
		}, true
	case *trade.PaymentConfirmedEvent:
		return Notification{
			EventType:   e.EventType(),
			OrderNumber: e.OrderNumber,
			Subject:     "Payment received",
			Body:        "Payment of " + e.Amount.StringFixed(2) + " received for order " + e.OrderNumber,
			Amount:      e.Amount,
		}, true
	}
	return Notification{}, false
}
