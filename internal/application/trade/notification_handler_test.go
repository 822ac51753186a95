package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestNotificationHandler(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	order := &trade.Order{
		OrderNumber:   "ORD-20260301-0000ABCD",
		PaymentStatus: trade.PaymentStatusPaid,
		FinalAmount:   decimal.RequireFromString("410"),
		CancelReason:  "preorder expired",
	}
	order.ID = uuid.New()

	t.Run("subscribes to order events", func(t *testing.T) {
		h := NewNotificationHandler(new(MockNotifier), zap.NewNop())
		assert.ElementsMatch(t, []string{
			trade.EventTypeOrderCompleted,
			trade.EventTypePreorderPlaced,
			trade.EventTypeOrderCancelled,
			trade.EventTypePaymentConfirmed,
		}, h.EventTypes())
	})

	t.Run("renders completed orders", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("Notify", ctx, mock.MatchedBy(func(n Notification) bool {
			return n.EventType == trade.EventTypeOrderCompleted &&
				n.OrderNumber == order.OrderNumber &&
				n.Body == "Order ORD-20260301-0000ABCD completed, total 410.00, payment paid"
		})).Return(nil)

		h := NewNotificationHandler(notifier, zap.NewNop())
		assert.NoError(t, h.Handle(ctx, trade.NewOrderCompletedEvent(order, at)))
		notifier.AssertExpectations(t)
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("Notify", ctx, mock.Anything).Return(errors.New("smtp unavailable"))

		h := NewNotificationHandler(notifier, zap.NewNop())
		assert.NoError(t, h.Handle(ctx, trade.NewOrderCancelledEvent(order, at)))
		notifier.AssertNumberOfCalls(t, "Notify", 1)
	})

	t.Run("ignores unrelated events", func(t *testing.T) {
		notifier := new(MockNotifier)
		h := NewNotificationHandler(notifier, zap.NewNop())
		event := shared.NewBaseDomainEvent("StockReceived", "Batch", uuid.New(), at)
		assert.NoError(t, h.Handle(ctx, &event))
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})
}
