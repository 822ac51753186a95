package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func expiredOrder(number string) trade.Order {
	o := trade.Order{OrderNumber: number, Kind: trade.OrderKindPreorder, Status: trade.OrderStatusPreorderPending}
	o.ID = uuid.New()
	return o
}

func TestPreorderSweeper_SweepExpiredPreorders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)

	t.Run("counts cancelled skipped and failed orders", func(t *testing.T) {
		repo := new(MockOrderRepository)
		canceller := new(MockPreorderCanceller)
		a, b, c := expiredOrder("ORD-A"), expiredOrder("ORD-B"), expiredOrder("ORD-C")
		repo.On("FindExpiredPreorders", ctx, now, DefaultSweepBatchSize).Return([]trade.Order{a, b, c}, nil)
		canceller.On("CancelExpiredPreorder", ctx, a.ID, now).Return(nil)
		canceller.On("CancelExpiredPreorder", ctx, b.ID, now).Return(shared.NewStateError("Cannot cancel order in completed status"))
		canceller.On("CancelExpiredPreorder", ctx, c.ID, now).Return(errors.New("connection reset"))

		sweeper := NewPreorderSweeper(repo, canceller, shared.NewFixedClock(now), zap.NewNop())
		stats, err := sweeper.SweepExpiredPreorders(ctx, now)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Scanned)
		assert.Equal(t, 1, stats.Cancelled)
		assert.Equal(t, 1, stats.Skipped)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, now, stats.ProcessedAt)
		canceller.AssertExpectations(t)
	})

	t.Run("reads pages until a short one", func(t *testing.T) {
		repo := new(MockOrderRepository)
		canceller := new(MockPreorderCanceller)
		a, b, c := expiredOrder("ORD-A"), expiredOrder("ORD-B"), expiredOrder("ORD-C")
		repo.On("FindExpiredPreorders", ctx, now, 2).Return([]trade.Order{a, b}, nil).Once()
		repo.On("FindExpiredPreorders", ctx, now, 2).Return([]trade.Order{a, c}, nil).Once()
		repo.On("FindExpiredPreorders", ctx, now, 2).Return([]trade.Order{a}, nil).Once()
		canceller.On("CancelExpiredPreorder", ctx, a.ID, now).Return(errors.New("connection reset")).Once()
		canceller.On("CancelExpiredPreorder", ctx, b.ID, now).Return(nil).Once()
		canceller.On("CancelExpiredPreorder", ctx, c.ID, now).Return(nil).Once()

		sweeper := NewPreorderSweeper(repo, canceller, nil, zap.NewNop())
		sweeper.SetBatchSize(2)
		stats, err := sweeper.SweepExpiredPreorders(ctx, now)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Scanned, "a failed order is counted once")
		assert.Equal(t, 2, stats.Cancelled)
		assert.Equal(t, 1, stats.Failed)
		repo.AssertNumberOfCalls(t, "FindExpiredPreorders", 3)
		canceller.AssertExpectations(t)
	})

	t.Run("full page that cancels nothing ends the sweep", func(t *testing.T) {
		repo := new(MockOrderRepository)
		canceller := new(MockPreorderCanceller)
		a, b := expiredOrder("ORD-A"), expiredOrder("ORD-B")
		repo.On("FindExpiredPreorders", ctx, now, 2).Return([]trade.Order{a, b}, nil)
		canceller.On("CancelExpiredPreorder", ctx, mock.Anything, now).Return(errors.New("connection reset"))

		sweeper := NewPreorderSweeper(repo, canceller, nil, zap.NewNop())
		sweeper.SetBatchSize(2)
		stats, err := sweeper.SweepExpiredPreorders(ctx, now)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Failed)
		repo.AssertNumberOfCalls(t, "FindExpiredPreorders", 1)
		canceller.AssertNumberOfCalls(t, "CancelExpiredPreorder", 2)
	})

	t.Run("nothing to sweep", func(t *testing.T) {
		repo := new(MockOrderRepository)
		canceller := new(MockPreorderCanceller)
		repo.On("FindExpiredPreorders", ctx, now, 10).Return([]trade.Order{}, nil)

		sweeper := NewPreorderSweeper(repo, canceller, nil, zap.NewNop())
		sweeper.SetBatchSize(10)
		stats, err := sweeper.SweepExpiredPreorders(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, stats.Scanned)
		canceller.AssertNotCalled(t, "CancelExpiredPreorder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repository failure is returned", func(t *testing.T) {
		repo := new(MockOrderRepository)
		repo.On("FindExpiredPreorders", ctx, now, DefaultSweepBatchSize).Return([]trade.Order(nil), errors.New("db down"))

		sweeper := NewPreorderSweeper(repo, new(MockPreorderCanceller), nil, zap.NewNop())
		_, err := sweeper.SweepExpiredPreorders(ctx, now)
		assert.Error(t, err)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		repo := new(MockOrderRepository)
		canceller := new(MockPreorderCanceller)
		repo.On("FindExpiredPreorders", cctx, now, DefaultSweepBatchSize).Return([]trade.Order{expiredOrder("ORD-A")}, nil)

		sweeper := NewPreorderSweeper(repo, canceller, nil, zap.NewNop())
		stats, err := sweeper.SweepExpiredPreorders(cctx, now)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, stats)
		assert.Zero(t, stats.Cancelled)
		canceller.AssertNotCalled(t, "CancelExpiredPreorder", mock.Anything, mock.Anything, mock.Anything)
	})
}
