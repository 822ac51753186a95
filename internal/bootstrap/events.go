package bootstrap

import (
	"errors"
	"fmt"

	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/notification"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewNotifier returns the notifier for the configured driver. The redis
// driver needs a client.
func NewNotifier(cfg config.NotificationConfig, client *redis.Client, clock shared.Clock, log *zap.Logger) (apptrade.Notifier, error) {
	formatter := notification.NewAmountFormatter(cfg.Locale)
	switch cfg.Driver {
	case "", "log":
		return notification.NewLogNotifier(log, formatter), nil
	case "redis":
		if client == nil {
			return nil, errors.New("notification.driver redis requires a reachable redis")
		}
		return notification.NewRedisNotifier(client, cfg.Channel, formatter, clock, log), nil
	default:
		return nil, fmt.Errorf("unknown notification.driver %q", cfg.Driver)
	}
}

// EventBusConfig collects what NewEventBus subscribes
type EventBusConfig struct {
	Notification config.NotificationConfig
	Notifier     apptrade.Notifier
	Idempotency  shared.IdempotencyStore
	Observer     event.DispatchObserver
}

// NewEventBus builds the bus order events are published on. Notifications are
// deduplicated so a retried checkout does not message the customer twice.
func NewEventBus(cfg EventBusConfig, log *zap.Logger) *event.InMemoryEventBus {
	bus := event.NewInMemoryEventBus(log)
	if cfg.Observer != nil {
		bus.SetObserver(cfg.Observer)
	}
	if !cfg.Notification.Enabled || cfg.Notifier == nil {
		return bus
	}

	var handler shared.EventHandler = apptrade.NewNotificationHandler(cfg.Notifier, log)
	if cfg.Idempotency != nil {
		handler = event.NewIdempotentHandler("notification", handler, cfg.Idempotency, shared.IdempotencyConfig{
			TTL:     cfg.Notification.IdempotencyTTL,
			Enabled: true,
		}, log)
	}
	bus.Subscribe(handler)
	return bus
}
