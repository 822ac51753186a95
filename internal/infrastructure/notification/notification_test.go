package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func completedNotification() apptrade.Notification {
	return apptrade.Notification{
		EventType:   "OrderCompleted",
		OrderNumber: "ORD-20260301-0000ABCD",
		Subject:     "Order completed",
		Body:        "Order ORD-20260301-0000ABCD completed, total 1234.50, payment paid",
		Amount:      decimal.RequireFromString("1234.5"),
	}
}

func TestAmountFormatter(t *testing.T) {
	tests := []struct {
		locale string
		amount string
		want   string
	}{
		{"en", "1234.5", "1,234.50"},
		{"en-US", "0.005", "0.01"},
		{"de", "1234.5", "1.234,50"},
		{"not a locale!", "12", "12.00"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			f := NewAmountFormatter(tt.locale)
			assert.Equal(t, tt.want, f.Format(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestAmountFormatter_FallbackLocale(t *testing.T) {
	assert.Equal(t, "en", NewAmountFormatter("???").Locale())
}

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core), NewAmountFormatter("en"))

	require.NoError(t, n.Notify(context.Background(), completedNotification()))

	entries := logs.FilterMessage("Order notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ORD-20260301-0000ABCD", fields["order_number"])
	assert.Equal(t, "1,234.50", fields["amount"])
}

func TestLogNotifier_NoAmount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core), NewAmountFormatter("en"))

	msg := completedNotification()
	msg.Amount = decimal.Zero
	require.NoError(t, n.Notify(context.Background(), msg))

	_, ok := logs.All()[0].ContextMap()["amount"]
	assert.False(t, ok)
}

func TestRedisNotifier_Publishes(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(ctx, "orders")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	clock := shared.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	n := NewRedisNotifier(client, "orders", NewAmountFormatter("en"), clock, zap.NewNop())
	require.NoError(t, n.Notify(ctx, completedNotification()))

	select {
	case raw := <-sub.Channel():
		var got Message
		require.NoError(t, json.Unmarshal([]byte(raw.Payload), &got))
		assert.Equal(t, "OrderCompleted", got.EventType)
		assert.Equal(t, "ORD-20260301-0000ABCD", got.OrderNumber)
		assert.Equal(t, "1234.50", got.Amount)
		assert.Equal(t, "1,234.50", got.FormattedAmount)
		assert.Equal(t, clock.Now().UnixMilli(), got.SentAt)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not published")
	}
}

func TestRedisNotifier_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	n := NewRedisNotifier(client, "orders", NewAmountFormatter("en"), shared.SystemClock{}, zap.NewNop())
	err := n.Notify(context.Background(), completedNotification())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish notification")
}
