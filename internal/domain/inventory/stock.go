package inventory

import (
	"time"

	"github.com/google/uuid"
)

// InventoryStock is the denormalized per-product stock aggregate.
// TotalStock always equals WarehouseStock + ShelfStock.
type InventoryStock struct {
	ProductID      uuid.UUID
	WarehouseStock int
	ShelfStock     int
	TotalStock     int
	Version        int
	UpdatedAt      time.Time
}

// NewInventoryStock creates an empty aggregate for a product
func NewInventoryStock(productID uuid.UUID, now time.Time) *InventoryStock {
	return &InventoryStock{ProductID: productID, Version: 1, UpdatedAt: now}
}

// StockDelta is a signed change to the per-location stock of one product
type StockDelta struct {
	Warehouse int
	Shelf     int
}

// DeltaAt builds a delta for a single location
func DeltaAt(loc StockLocation, qty int) StockDelta {
	if loc == LocationShelf {
		return StockDelta{Shelf: qty}
	}
	return StockDelta{Warehouse: qty}
}

// Add sums two deltas
func (d StockDelta) Add(o StockDelta) StockDelta {
	return StockDelta{Warehouse: d.Warehouse + o.Warehouse, Shelf: d.Shelf + o.Shelf}
}

// Negate returns the inverse delta
func (d StockDelta) Negate() StockDelta {
	return StockDelta{Warehouse: -d.Warehouse, Shelf: -d.Shelf}
}

// IsZero returns true when the delta changes nothing
func (d StockDelta) IsZero() bool {
	return d.Warehouse == 0 && d.Shelf == 0
}

// CanApply reports whether applying d keeps every counter non-negative
func (s *InventoryStock) CanApply(d StockDelta) bool {
	return s.WarehouseStock+d.Warehouse >= 0 && s.ShelfStock+d.Shelf >= 0
}

// Apply changes the counters by d and keeps the total consistent
func (s *InventoryStock) Apply(d StockDelta, now time.Time) {
	s.WarehouseStock += d.Warehouse
	s.ShelfStock += d.Shelf
	s.TotalStock = s.WarehouseStock + s.ShelfStock
	s.Version++
	s.UpdatedAt = now
}

// IsConsistent checks the total invariant
func (s *InventoryStock) IsConsistent() bool {
	return s.WarehouseStock >= 0 && s.ShelfStock >= 0 && s.TotalStock == s.WarehouseStock+s.ShelfStock
}

// BatchTotals are the per-location sums of a product's batch counters
type BatchTotals struct {
	Warehouse int
	Shelf     int
}

// SumBatches totals the location counters of the given batches
func SumBatches(batches []Batch) BatchTotals {
	var t BatchTotals
	for i := range batches {
		t.Warehouse += batches[i].RemainingWarehouseQty
		t.Shelf += batches[i].ShelfQty
	}
	return t
}

// Drift is the difference between the aggregate and its batches
type Drift struct {
	ProductID      uuid.UUID
	WarehouseStock int
	ShelfStock     int
	BatchWarehouse int
	BatchShelf     int
}

// InSync returns true when the aggregate matches the batch counters
func (d Drift) InSync() bool {
	return d.WarehouseStock == d.BatchWarehouse && d.ShelfStock == d.BatchShelf
}

// CompareWithBatches reports the drift between s and the batch totals
func (s *InventoryStock) CompareWithBatches(t BatchTotals) Drift {
	return Drift{
		ProductID:      s.ProductID,
		WarehouseStock: s.WarehouseStock,
		ShelfStock:     s.ShelfStock,
		BatchWarehouse: t.Warehouse,
		BatchShelf:     t.Shelf,
	}
}
