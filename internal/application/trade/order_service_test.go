package trade_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestOrderService_CreateInstore(t *testing.T) {
	ctx := context.Background()

	t.Run("prices each batch with its expiry discount", func(t *testing.T) {
		h := newHarness(t)
		near := h.receive(t, 5, 3, 3)
		far := h.receive(t, 20, 10, 10)

		order, err := h.orders.CreateOrder(ctx, h.instore("cash", 5))
		require.NoError(t, err)

		assert.Equal(t, "completed", order.Status)
		assert.Equal(t, "paid", order.PaymentStatus)
		assert.True(t, order.InventoryCommitted)
		require.Len(t, order.Lines, 1)
		line := order.Lines[0]
		assert.True(t, line.LineTotal.Equal(dec("410")), "line total %s", line.LineTotal)
		assert.True(t, line.OriginalLineTotal.Equal(dec("500")))
		assert.True(t, line.LineDiscount.Equal(dec("90")))
		require.Len(t, line.BatchAllocations, 2)
		assert.Equal(t, near.ID, line.BatchAllocations[0].BatchID)
		assert.Equal(t, 3, line.BatchAllocations[0].AllocatedBaseQty)
		assert.True(t, line.BatchAllocations[0].EffectivePackPrice.Equal(dec("70")))
		assert.Equal(t, far.ID, line.BatchAllocations[1].BatchID)
		assert.Equal(t, 2, line.BatchAllocations[1].AllocatedBaseQty)

		assert.True(t, order.TotalAmount.Equal(dec("500")))
		assert.True(t, order.DiscountAmount.Equal(dec("90")))
		assert.True(t, order.FinalAmount.Equal(dec("410")))

		b1 := h.batch(t, near.ID)
		assert.Equal(t, 0, b1.ShelfQty)
		assert.Equal(t, 3, b1.SoldQty)
		assert.Equal(t, inventory.BatchStatusSoldOut, b1.Status)
		assert.Equal(t, 8, h.batch(t, far.ID).ShelfQty)
		assert.Equal(t, 8, h.stock(t).ShelfStock)
		assert.Equal(t, 8, h.stock(t).TotalStock)
		h.requireInSync(t)

		assert.Len(t, h.events.ofType(trade.EventTypeOrderCompleted), 1)
		assert.Equal(t, []string{apptrade.OutcomeSuccess}, h.metrics.outcomes)
	})

	t.Run("sells packs in base units", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 30, 25, 25)

		req := h.instore("cash", 2)
		req.Lines[0].Unit = "box"
		order, err := h.orders.CreateOrder(ctx, req)
		require.NoError(t, err)

		assert.True(t, order.FinalAmount.Equal(dec("1800")))
		assert.Equal(t, 10, order.Lines[0].UnitRatio)
		assert.Equal(t, 5, h.stock(t).ShelfStock)
	})

	t.Run("box shares carry the discounted box price", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 5, 20, 20)

		req := h.instore("cash", 1)
		req.Lines[0].Unit = "box"
		order, err := h.orders.CreateOrder(ctx, req)
		require.NoError(t, err)

		line := order.Lines[0]
		require.Len(t, line.BatchAllocations, 1)
		assert.Equal(t, 10, line.BatchAllocations[0].AllocatedBaseQty)
		assert.True(t, line.BatchAllocations[0].EffectivePackPrice.Equal(dec("630")),
			"pack price %s", line.BatchAllocations[0].EffectivePackPrice)
		assert.True(t, line.LineTotal.Equal(dec("630")))
		assert.True(t, line.OriginalLineTotal.Equal(dec("900")))
	})

	t.Run("card payment stays pending", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 30, 5, 5)

		order, err := h.orders.CreateOrder(ctx, h.instore("card", 1))
		require.NoError(t, err)
		assert.Equal(t, "completed", order.Status)
		assert.Equal(t, "pending", order.PaymentStatus)
	})

	t.Run("applies tax on the discounted amount", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 5, 3, 3)
		h.receive(t, 20, 10, 10)

		req := h.instore("cash", 5)
		rate := dec("0.08")
		req.TaxRate = &rate
		order, err := h.orders.CreateOrder(ctx, req)
		require.NoError(t, err)

		assert.True(t, order.TaxAmount.Equal(dec("32.8")), "tax %s", order.TaxAmount)
		assert.True(t, order.FinalAmount.Equal(dec("442.8")))
		assert.True(t, order.FinalAmount.Equal(order.TotalAmount.Sub(order.DiscountAmount).Add(order.TaxAmount)))
	})

	t.Run("insufficient stock changes nothing", func(t *testing.T) {
		h := newHarness(t)
		b := h.receive(t, 30, 10, 3)

		_, err := h.orders.CreateOrder(ctx, h.instore("cash", 5))
		require.ErrorIs(t, err, shared.ErrInsufficientStock)

		after := h.batch(t, b.ID)
		assert.Equal(t, 3, after.ShelfQty)
		assert.Equal(t, 7, after.RemainingWarehouseQty)
		assert.Equal(t, 0, after.SoldQty)
		assert.Equal(t, 3, h.stock(t).ShelfStock)

		page, err := h.orders.ListOrders(ctx, apptrade.OrderListFilter{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Equal(t, []string{apptrade.OutcomeInsufficientStock}, h.metrics.outcomes)
	})

	t.Run("two lines cannot double count a batch", func(t *testing.T) {
		h := newHarness(t)
		b := h.receive(t, 30, 5, 5)

		req := h.instore("cash", 3)
		req.Lines = append(req.Lines, apptrade.OrderLineRequest{ProductID: h.product.ID, Quantity: 3, Unit: "pcs"})
		_, err := h.orders.CreateOrder(ctx, req)
		require.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, 5, h.batch(t, b.ID).ShelfQty)
	})

	t.Run("unknown unit is rejected", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 30, 5, 5)

		req := h.instore("cash", 1)
		req.Lines[0].Unit = "crate"
		_, err := h.orders.CreateOrder(ctx, req)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invalid kind is rejected", func(t *testing.T) {
		h := newHarness(t)
		req := h.instore("cash", 1)
		req.Kind = "layaway"
		_, err := h.orders.CreateOrder(ctx, req)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("expired batches are never sold", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 1, 5, 5)
		h.clock.Advance(25 * time.Hour)

		_, err := h.orders.CreateOrder(ctx, h.instore("cash", 1))
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})
}

func TestOrderService_ConcurrentLastUnit(t *testing.T) {
	h := newHarness(t)
	b := h.receive(t, 30, 1, 1)

	var succeeded, rejected atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := h.orders.CreateOrder(ctx, h.instore("cash", 1))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, shared.ErrInsufficientStock), errors.Is(err, shared.ErrConflict):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), rejected.Load())
	after := h.batch(t, b.ID)
	assert.Equal(t, 0, after.ShelfQty)
	assert.Equal(t, 1, after.SoldQty)
	assert.Equal(t, 0, h.stock(t).ShelfStock)
	h.requireInSync(t)
}

func TestOrderService_FulfillRacesExpiry(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		h.receive(t, 30, 10, 0)
		order, err := h.orders.CreateOrder(context.Background(), h.preorder(1))
		require.NoError(t, err)

		var fulfilled, expired atomic.Bool
		var rejected atomic.Int32
		settle := func(won *atomic.Bool, err error) error {
			switch {
			case err == nil:
				won.Store(true)
			case errors.Is(err, shared.ErrInvalidState):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		}

		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			_, err := h.orders.FulfillPreorder(ctx, order.ID)
			return settle(&fulfilled, err)
		})
		g.Go(func() error {
			err := h.orders.CancelExpiredPreorder(ctx, order.ID, testNow.AddDate(0, 0, 5))
			return settle(&expired, err)
		})
		require.NoError(t, g.Wait())

		require.NotEqual(t, fulfilled.Load(), expired.Load(), "exactly one side wins")
		assert.Equal(t, int32(1), rejected.Load())

		got, err := h.orders.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		if fulfilled.Load() {
			assert.Equal(t, "completed", got.Status)
			assert.Equal(t, 9, h.stock(t).WarehouseStock)
		} else {
			assert.Equal(t, "cancelled", got.Status)
			assert.Equal(t, 10, h.stock(t).WarehouseStock)
		}
		h.requireInSync(t)
	}
}

func TestOrderService_CommitRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers within the retry budget", func(t *testing.T) {
		h := newHarnessWithScope(t, func(s apptrade.TransactionScope) apptrade.TransactionScope {
			return &flakyScope{inner: s, n: 2}
		})
		h.receive(t, 30, 5, 5)

		order, err := h.orders.CreateOrder(ctx, h.instore("cash", 1))
		require.NoError(t, err)
		assert.Equal(t, "completed", order.Status)
		assert.Equal(t, 2, h.metrics.retries)
	})

	t.Run("surfaces a conflict when the budget is spent", func(t *testing.T) {
		h := newHarnessWithScope(t, func(s apptrade.TransactionScope) apptrade.TransactionScope {
			return &flakyScope{inner: s, n: 10}
		})
		h.receive(t, 30, 5, 5)

		_, err := h.orders.CreateOrder(ctx, h.instore("cash", 1))
		require.ErrorIs(t, err, shared.ErrConflict)
		assert.Equal(t, 3, h.metrics.retries)
		assert.Equal(t, 5, h.stock(t).ShelfStock)
		assert.Equal(t, []string{apptrade.OutcomeConflict}, h.metrics.outcomes)
	})
}

func TestOrderService_Quote(t *testing.T) {
	h := newHarness(t)
	near := h.receive(t, 5, 3, 3)
	h.receive(t, 20, 10, 10)

	quote, err := h.orders.Quote(context.Background(), apptrade.QuoteRequest{Kind: "instore", Lines: h.lines("pcs", 5)})
	require.NoError(t, err)

	assert.True(t, quote.FinalAmount.Equal(dec("410")))
	assert.Equal(t, testNow, quote.PricedAt)
	assert.Equal(t, 3, h.batch(t, near.ID).ShelfQty)
	assert.Equal(t, 13, h.stock(t).ShelfStock)
}

func TestOrderService_Preorder(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves nothing until fulfilled", func(t *testing.T) {
		h := newHarness(t)
		b := h.receive(t, 30, 10, 0)

		order, err := h.orders.CreateOrder(ctx, h.preorder(4))
		require.NoError(t, err)
		assert.Equal(t, "preorder_pending", order.Status)
		assert.Equal(t, "unpaid", order.PaymentStatus)
		require.NotNil(t, order.ExpirationDate)
		assert.Equal(t, testNow.AddDate(0, 0, 3), *order.ExpirationDate)
		assert.False(t, order.InventoryCommitted)
		assert.Equal(t, 10, h.batch(t, b.ID).RemainingWarehouseQty)
		assert.Len(t, h.events.ofType(trade.EventTypePreorderPlaced), 1)

		fulfilled, err := h.orders.FulfillPreorder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "completed", fulfilled.Status)
		assert.Equal(t, "paid", fulfilled.PaymentStatus)
		assert.True(t, fulfilled.InventoryCommitted)
		assert.Equal(t, order.Version+1, fulfilled.Version)
		assert.Equal(t, 6, h.batch(t, b.ID).RemainingWarehouseQty)
		assert.Equal(t, 6, h.stock(t).WarehouseStock)
		h.requireInSync(t)

		_, err = h.orders.FulfillPreorder(ctx, order.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Equal(t, 6, h.stock(t).WarehouseStock)
	})

	t.Run("fulfillment re-prices against current stock", func(t *testing.T) {
		h := newHarness(t)
		h.receive(t, 10, 10, 0)

		req := h.preorder(1)
		days := 7
		req.ExpirationDays = &days
		order, err := h.orders.CreateOrder(ctx, req)
		require.NoError(t, err)
		assert.True(t, order.FinalAmount.Equal(dec("100")))

		h.clock.Advance(5 * 24 * time.Hour)
		fulfilled, err := h.orders.FulfillPreorder(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, fulfilled.FinalAmount.Equal(dec("70")), "final %s", fulfilled.FinalAmount)
		assert.True(t, fulfilled.DiscountAmount.Equal(dec("30")))
	})

	t.Run("fulfillment fails without stock", func(t *testing.T) {
		h := newHarness(t)
		b := h.receive(t, 30, 2, 0)
		order, err := h.orders.CreateOrder(ctx, h.preorder(2))
		require.NoError(t, err)
		_, err = h.ledger.RecordLoss(ctx, b.ID, inventory.LocationWarehouse, 1, "damaged")
		require.NoError(t, err)

		_, err = h.orders.FulfillPreorder(ctx, order.ID)
		require.ErrorIs(t, err, shared.ErrInsufficientStock)

		got, err := h.orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "preorder_pending", got.Status)
	})
}
