package notification

import (
	"context"

	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log. It is the default driver when
// no delivery channel is configured.
type LogNotifier struct {
	logger    *zap.Logger
	formatter *AmountFormatter
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger, formatter *AmountFormatter) *LogNotifier {
	return &LogNotifier{
		logger:    logger,
		formatter: formatter,
	}
}

// Notify logs the notification at info level
func (n *LogNotifier) Notify(ctx context.Context, msg apptrade.Notification) error {
	fields := []zap.Field{
		zap.String("event_type", msg.EventType),
		zap.String("order_number", msg.OrderNumber),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	}
	if !msg.Amount.IsZero() {
		fields = append(fields, zap.String("amount", n.formatter.Format(msg.Amount)))
	}
	n.logger.Info("Order notification", fields...)
	return nil
}

var _ apptrade.Notifier = (*LogNotifier)(nil)
