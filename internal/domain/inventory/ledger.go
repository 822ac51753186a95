package inventory

import (
	"time"

	"github.com/google/uuid"
)

// CommitRecord marks an order whose allocation was applied to stock.
// One record per order makes commits idempotent.
type CommitRecord struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	CommittedAt  time.Time
	RolledBackAt *time.Time
}

// NewCommitRecord creates a commit marker for an order
func NewCommitRecord(orderID uuid.UUID, now time.Time) *CommitRecord {
	return &CommitRecord{ID: uuid.New(), OrderID: orderID, CommittedAt: now}
}

// IsRolledBack returns true once the commit was reversed
func (c *CommitRecord) IsRolledBack() bool {
	return c.RolledBackAt != nil
}

// MovementKind classifies a stock movement
type MovementKind string

const (
	MovementCommit   MovementKind = "commit"
	MovementRollback MovementKind = "rollback"
	MovementReceive  MovementKind = "receive"
	MovementTransfer MovementKind = "transfer"
	MovementLoss     MovementKind = "loss"
)

// StockMovement is an append-only record of one counter change on a batch.
// Quantity is positive; the kind and location give its direction.
type StockMovement struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	ProductID uuid.UUID
	OrderID   *uuid.UUID
	Kind      MovementKind
	Location  StockLocation
	Quantity  int
	Reason    string
	CreatedAt time.Time
}

// NewStockMovement creates a movement stamped at now
func NewStockMovement(kind MovementKind, batch *Batch, loc StockLocation, qty int, now time.Time) StockMovement {
	return StockMovement{
		ID:        uuid.New(),
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Kind:      kind,
		Location:  loc,
		Quantity:  qty,
		CreatedAt: now,
	}
}

// ForOrder attaches the order that caused the movement
func (m StockMovement) ForOrder(orderID uuid.UUID) StockMovement {
	m.OrderID = &orderID
	return m
}

// WithReason attaches a free-text reason
func (m StockMovement) WithReason(reason string) StockMovement {
	m.Reason = reason
	return m
}
