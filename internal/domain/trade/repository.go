package trade

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	shared.Filter
	Status OrderStatus
	Kind   OrderKind
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order with its lines and allocations
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its unique number
	FindByOrderNumber(ctx context.Context, number string) (*Order, error)

	// FindAll lists orders matching the filter and the total match count
	FindAll(ctx context.Context, filter OrderFilter) ([]Order, int64, error)

	// FindExpiredPreorders finds preorder_pending orders whose expiration date is not after now.
	// Lines may be left unloaded.
	FindExpiredPreorders(ctx context.Context, now time.Time, limit int) ([]Order, error)

	// Create inserts a new order with its lines
	Create(ctx context.Context, order *Order) error

	// SaveWithLock saves an existing order if its stored version still equals
	// order.Version, then increments the version. A mismatch returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, order *Order) error
}
