package inventory

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchRepository persists batches. Every counter change goes through one of
// the guarded methods, which fail with a conflict error when the guard does
// not hold instead of writing a negative counter.
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByIDs finds multiple batches by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Batch, error)

	// FindByProduct lists all batches of a product
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]Batch, error)

	// FindAllocatable finds active batches of a product with stock at loc that
	// have not expired at now, in FEFO order
	FindAllocatable(ctx context.Context, productID uuid.UUID, loc StockLocation, now time.Time) ([]Batch, error)

	// FindExpirable finds active batches whose expiry date is not after now
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]Batch, error)

	// Create inserts a new batch
	Create(ctx context.Context, batch *Batch) error

	// Sell decrements loc and increments sold, guarded by qty on hand and
	// active status. The batch becomes sold_out when both locations are empty.
	Sell(ctx context.Context, id uuid.UUID, loc StockLocation, qty int) error

	// Unsell reverses Sell, reactivating a sold_out batch
	Unsell(ctx context.Context, id uuid.UUID, loc StockLocation, qty int) error

	// MoveToShelf transfers qty from warehouse to shelf, guarded by warehouse stock
	MoveToShelf(ctx context.Context, id uuid.UUID, qty int) error

	// Lose decrements loc and increments lost, guarded by qty on hand
	Lose(ctx context.Context, id uuid.UUID, loc StockLocation, qty int) error

	// Expire moves an active batch to expired
	Expire(ctx context.Context, id uuid.UUID) error

	// SumByProduct totals the location counters of a product's batches
	SumByProduct(ctx context.Context, productID uuid.UUID) (BatchTotals, error)
}

// StockRepository persists the per-product stock aggregate
type StockRepository interface {
	// FindByProduct finds the aggregate of a product
	FindByProduct(ctx context.Context, productID uuid.UUID) (*InventoryStock, error)

	// Create inserts a new aggregate
	Create(ctx context.Context, stock *InventoryStock) error

	// ApplyDelta changes the counters by d, guarded so neither goes negative
	ApplyDelta(ctx context.Context, productID uuid.UUID, d StockDelta) error
}

// CommitRepository persists per-order commit markers
type CommitRepository interface {
	// FindByOrder finds the commit marker of an order
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*CommitRecord, error)

	// Create inserts a marker; a second marker for the same order is a conflict
	Create(ctx context.Context, record *CommitRecord) error

	// MarkRolledBack stamps the marker, guarded by it not being rolled back yet
	MarkRolledBack(ctx context.Context, orderID uuid.UUID, at time.Time) error
}

// MovementRepository is the append-only stock movement journal
type MovementRepository interface {
	// Append records movements
	Append(ctx context.Context, movements ...StockMovement) error

	// FindByOrder lists the movements of one kind caused by an order
	FindByOrder(ctx context.Context, orderID uuid.UUID, kind MovementKind) ([]StockMovement, error)

	// FindByBatch lists the movements of a batch, newest first
	FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]StockMovement, error)
}
