package inventory

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/google/uuid"
)

// Holdings are base quantities already planned per batch by earlier lines of the same order
type Holdings map[uuid.UUID]int

// Add records an allocation in the holdings
func (h Holdings) Add(a inventory.Allocation) {
	for _, item := range a.Items {
		h[item.BatchID] += item.Quantity
	}
}

// BatchAllocator plans FEFO allocations against current stock.
// Planning reads batches and never mutates them.
type BatchAllocator struct {
	batchRepo inventory.BatchRepository
}

// NewBatchAllocator creates a new BatchAllocator
func NewBatchAllocator(batchRepo inventory.BatchRepository) *BatchAllocator {
	return &BatchAllocator{batchRepo: batchRepo}
}

// Allocate plans req against the allocatable batches of the product
func (a *BatchAllocator) Allocate(ctx context.Context, req inventory.AllocationRequest, price inventory.PriceFunc) (inventory.Allocation, error) {
	return a.AllocateAfter(ctx, req, price, nil)
}

// AllocateAfter plans req with the held quantities treated as already taken
func (a *BatchAllocator) AllocateAfter(ctx context.Context, req inventory.AllocationRequest, price inventory.PriceFunc, held Holdings) (inventory.Allocation, error) {
	if err := req.Validate(); err != nil {
		return inventory.Allocation{}, err
	}
	batches, err := a.batchRepo.FindAllocatable(ctx, req.ProductID, req.Location, req.Now)
	if err != nil {
		return inventory.Allocation{}, fmt.Errorf("failed to load batches: %w", err)
	}
	for i := range batches {
		taken := held[batches[i].ID]
		if taken == 0 {
			continue
		}
		switch req.Location {
		case inventory.LocationShelf:
			batches[i].ShelfQty = max(0, batches[i].ShelfQty-taken)
		case inventory.LocationWarehouse:
			batches[i].RemainingWarehouseQty = max(0, batches[i].RemainingWarehouseQty-taken)
		}
	}
	return inventory.PlanFEFO(req, batches, price)
}
