package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBatchRepository is a mock implementation of inventory.BatchRepository
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]inventory.Batch, error) {
	args := m.Called(ctx, productID, filter)
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindAllocatable(ctx context.Context, productID uuid.UUID, loc inventory.StockLocation, now time.Time) ([]inventory.Batch, error) {
	args := m.Called(ctx, productID, loc, now)
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]inventory.Batch, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *MockBatchRepository) Sell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return m.Called(ctx, id, loc, qty).Error(0)
}

func (m *MockBatchRepository) Unsell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return m.Called(ctx, id, loc, qty).Error(0)
}

func (m *MockBatchRepository) MoveToShelf(ctx context.Context, id uuid.UUID, qty int) error {
	return m.Called(ctx, id, qty).Error(0)
}

func (m *MockBatchRepository) Lose(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return m.Called(ctx, id, loc, qty).Error(0)
}

func (m *MockBatchRepository) Expire(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBatchRepository) SumByProduct(ctx context.Context, productID uuid.UUID) (inventory.BatchTotals, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(inventory.BatchTotals), args.Error(1)
}

var _ inventory.BatchRepository = (*MockBatchRepository)(nil)

var allocNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func shelfBatch(productID uuid.UUID, days, shelf int) inventory.Batch {
	return inventory.Batch{
		BaseEntity: shared.BaseEntity{ID: uuid.New(), CreatedAt: allocNow},
		ProductID:  productID,
		ExpiryDate: allocNow.AddDate(0, 0, days),
		ShelfQty:   shelf,
		Status:     inventory.BatchStatusActive,
	}
}

func TestBatchAllocator_AllocateAfter(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()
	price := func(*inventory.Batch) decimal.Decimal { return decimal.NewFromInt(5) }

	t.Run("plans FEFO against current stock", func(t *testing.T) {
		later, sooner := shelfBatch(productID, 20, 10), shelfBatch(productID, 5, 3)
		repo := new(MockBatchRepository)
		repo.On("FindAllocatable", ctx, productID, inventory.LocationShelf, allocNow).
			Return([]inventory.Batch{later, sooner}, nil)

		alloc, err := NewBatchAllocator(repo).Allocate(ctx, inventory.AllocationRequest{
			ProductID: productID, Location: inventory.LocationShelf, Quantity: 5, Now: allocNow,
		}, price)
		require.NoError(t, err)

		require.Len(t, alloc.Items, 2)
		assert.Equal(t, sooner.ID, alloc.Items[0].BatchID)
		assert.Equal(t, 3, alloc.Items[0].Quantity)
		assert.Equal(t, later.ID, alloc.Items[1].BatchID)
		assert.Equal(t, 2, alloc.Items[1].Quantity)
		assert.Equal(t, inventory.StockDelta{Shelf: -5}, alloc.Delta())
	})

	t.Run("held quantities are not planned twice", func(t *testing.T) {
		a, b := shelfBatch(productID, 5, 3), shelfBatch(productID, 20, 2)
		repo := new(MockBatchRepository)
		repo.On("FindAllocatable", ctx, productID, inventory.LocationShelf, allocNow).
			Return([]inventory.Batch{a, b}, nil)
		req := inventory.AllocationRequest{ProductID: productID, Location: inventory.LocationShelf, Quantity: 2, Now: allocNow}
		allocator := NewBatchAllocator(repo)

		held := make(Holdings)
		first, err := allocator.AllocateAfter(ctx, req, price, held)
		require.NoError(t, err)
		held.Add(first)
		assert.Equal(t, 2, held[a.ID])

		second, err := allocator.AllocateAfter(ctx, req, price, held)
		require.NoError(t, err)
		require.Len(t, second.Items, 2)
		assert.Equal(t, 1, second.Items[0].Quantity)
		assert.Equal(t, 1, second.Items[1].Quantity)
		held.Add(second)

		_, err = allocator.AllocateAfter(ctx, req, price, held)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		repo := new(MockBatchRepository)
		cause := errors.New("connection refused")
		repo.On("FindAllocatable", ctx, productID, inventory.LocationShelf, allocNow).Return([]inventory.Batch(nil), cause)

		_, err := NewBatchAllocator(repo).Allocate(ctx, inventory.AllocationRequest{
			ProductID: productID, Location: inventory.LocationShelf, Quantity: 1, Now: allocNow,
		}, price)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("invalid request never hits the repository", func(t *testing.T) {
		repo := new(MockBatchRepository)
		_, err := NewBatchAllocator(repo).Allocate(ctx, inventory.AllocationRequest{
			ProductID: productID, Location: inventory.LocationShelf, Quantity: 0, Now: allocNow,
		}, price)
		assert.ErrorIs(t, err, shared.ErrValidation)
		repo.AssertNotCalled(t, "FindAllocatable", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
