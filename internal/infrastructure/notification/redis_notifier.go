package notification

import (
	"context"
	"encoding/json"
	"fmt"

	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is the JSON payload published for each notification
type Message struct {
	EventType       string `json:"event_type"`
	OrderNumber     string `json:"order_number"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	Amount          string `json:"amount,omitempty"`
	FormattedAmount string `json:"formatted_amount,omitempty"`
	Locale          string `json:"locale"`
	SentAt          int64  `json:"sent_at"`
}

// RedisNotifier publishes notifications on a Redis channel, where the mail
// and messaging services pick them up
type RedisNotifier struct {
	client    *redis.Client
	channel   string
	formatter *AmountFormatter
	clock     shared.Clock
	logger    *zap.Logger
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, channel string, formatter *AmountFormatter, clock shared.Clock, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:    client,
		channel:   channel,
		formatter: formatter,
		clock:     clock,
		logger:    logger,
	}
}

// Notify publishes msg as JSON
func (n *RedisNotifier) Notify(ctx context.Context, msg apptrade.Notification) error {
	payload := Message{
		EventType:   msg.EventType,
		OrderNumber: msg.OrderNumber,
		Subject:     msg.Subject,
		Body:        msg.Body,
		Locale:      n.formatter.Locale(),
		SentAt:      n.clock.Now().UnixMilli(),
	}
	if !msg.Amount.IsZero() {
		payload.Amount = msg.Amount.StringFixed(2)
		payload.FormattedAmount = n.formatter.Format(msg.Amount)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug("Published order notification",
		zap.String("channel", n.channel),
		zap.String("order_number", msg.OrderNumber),
		zap.String("event_type", msg.EventType),
	)
	return nil
}

var _ apptrade.Notifier = (*RedisNotifier)(nil)
