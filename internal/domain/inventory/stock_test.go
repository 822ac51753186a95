package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInventoryStock_Apply(t *testing.T) {
	s := NewInventoryStock(uuid.New(), testNow)

	s.Apply(StockDelta{Warehouse: 10}, testNow)
	s.Apply(StockDelta{Warehouse: -4, Shelf: 4}, testNow)

	assert.Equal(t, 6, s.WarehouseStock)
	assert.Equal(t, 4, s.ShelfStock)
	assert.Equal(t, 10, s.TotalStock)
	assert.True(t, s.IsConsistent())
	assert.Equal(t, 3, s.Version)

	assert.False(t, s.CanApply(StockDelta{Shelf: -5}))
	assert.True(t, s.CanApply(DeltaAt(LocationShelf, -4)))
}

func TestInventoryStock_CompareWithBatches(t *testing.T) {
	s := NewInventoryStock(uuid.New(), testNow)
	s.Apply(StockDelta{Warehouse: 3, Shelf: 2}, testNow)

	batches := []Batch{
		{RemainingWarehouseQty: 2, ShelfQty: 2},
		{RemainingWarehouseQty: 1},
	}
	assert.True(t, s.CompareWithBatches(SumBatches(batches)).InSync())

	batches[1].RemainingWarehouseQty = 0
	drift := s.CompareWithBatches(SumBatches(batches))
	assert.False(t, drift.InSync())
	assert.Equal(t, 2, drift.BatchWarehouse)
}

func TestStockDelta(t *testing.T) {
	d := DeltaAt(LocationWarehouse, 3).Add(DeltaAt(LocationShelf, -1))
	assert.Equal(t, StockDelta{Warehouse: 3, Shelf: -1}, d)
	assert.Equal(t, StockDelta{Warehouse: -3, Shelf: 1}, d.Negate())
	assert.True(t, StockDelta{}.IsZero())
}
