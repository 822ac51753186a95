package inventory

import (
	"math/rand"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shelfBatch(productID uuid.UUID, expiresIn time.Duration, qty int) Batch {
	return Batch{
		BaseEntity: shared.NewBaseEntityAt(testNow),
		ProductID:  productID,
		ExpiryDate: testNow.Add(expiresIn),
		ShelfQty:   qty,
		Status:     BatchStatusActive,
	}
}

func flatPrice(v int64) PriceFunc {
	return func(*Batch) decimal.Decimal { return decimal.NewFromInt(v) }
}

func TestPlanFEFO(t *testing.T) {
	productID := uuid.New()
	day := 24 * time.Hour

	t.Run("takes soonest expiry first", func(t *testing.T) {
		late := shelfBatch(productID, 20*day, 10)
		soon := shelfBatch(productID, 5*day, 3)
		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: 5, Now: testNow}

		alloc, err := PlanFEFO(req, []Batch{late, soon}, flatPrice(100))
		require.NoError(t, err)

		require.Len(t, alloc.Items, 2)
		assert.Equal(t, soon.ID, alloc.Items[0].BatchID)
		assert.Equal(t, 3, alloc.Items[0].Quantity)
		assert.Equal(t, late.ID, alloc.Items[1].BatchID)
		assert.Equal(t, 2, alloc.Items[1].Quantity)
		assert.Equal(t, 5, alloc.TotalQuantity())
		assert.Equal(t, StockDelta{Shelf: -5}, alloc.Delta())
	})

	t.Run("insufficient stock plans nothing and leaves candidates untouched", func(t *testing.T) {
		batches := []Batch{shelfBatch(productID, day*2, 2), shelfBatch(productID, day*3, 2)}
		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: 5, Now: testNow}

		alloc, err := PlanFEFO(req, batches, flatPrice(1))
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Empty(t, alloc.Items)
		assert.Equal(t, 2, batches[0].ShelfQty)
		assert.Equal(t, 2, batches[1].ShelfQty)
	})

	t.Run("skips ineligible batches", func(t *testing.T) {
		expired := shelfBatch(productID, -day, 10)
		inactive := shelfBatch(productID, day, 10)
		inactive.Status = BatchStatusInactive
		other := shelfBatch(uuid.New(), day, 10)
		warehouseOnly := shelfBatch(productID, day, 0)
		warehouseOnly.RemainingWarehouseQty = 10
		good := shelfBatch(productID, 9*day, 1)

		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: 1, Now: testNow}
		alloc, err := PlanFEFO(req, []Batch{expired, inactive, other, warehouseOnly, good}, nil)
		require.NoError(t, err)
		require.Len(t, alloc.Items, 1)
		assert.Equal(t, good.ID, alloc.Items[0].BatchID)
	})

	t.Run("ties broken by creation time", func(t *testing.T) {
		first := shelfBatch(productID, 4*day, 1)
		second := shelfBatch(productID, 4*day, 1)
		second.CreatedAt = first.CreatedAt.Add(time.Minute)

		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: 1, Now: testNow}
		alloc, err := PlanFEFO(req, []Batch{second, first}, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, alloc.Items[0].BatchID)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: 0, Now: testNow}
		_, err := PlanFEFO(req, nil, nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown location", func(t *testing.T) {
		req := AllocationRequest{ProductID: productID, Location: "roof", Quantity: 1, Now: testNow}
		_, err := PlanFEFO(req, nil, nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestPlanFEFO_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	productID := uuid.New()

	for round := 0; round < 200; round++ {
		n := rng.Intn(8) + 1
		batches := make([]Batch, n)
		available := 0
		for i := range batches {
			batches[i] = shelfBatch(productID, time.Duration(rng.Intn(30)+1)*24*time.Hour, rng.Intn(6))
			batches[i].CreatedAt = testNow.Add(time.Duration(rng.Intn(100)) * time.Second)
			available += batches[i].ShelfQty
		}
		want := rng.Intn(available+3) + 1

		req := AllocationRequest{ProductID: productID, Location: LocationShelf, Quantity: want, Now: testNow}
		alloc, err := PlanFEFO(req, batches, flatPrice(10))

		if want > available {
			require.ErrorIs(t, err, shared.ErrInsufficientStock)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, want, alloc.TotalQuantity())
		for i := 1; i < len(alloc.Items); i++ {
			assert.False(t, alloc.Items[i].ExpiryDate.Before(alloc.Items[i-1].ExpiryDate),
				"expiry must be non-decreasing")
		}
		for _, item := range alloc.Items {
			assert.Positive(t, item.Quantity)
		}
	}
}
