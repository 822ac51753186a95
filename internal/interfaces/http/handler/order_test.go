package handler

import (
	"net/http"
	"testing"

	tradeapp "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler_CreateInstore(t *testing.T) {
	env := newTestEnv(t)
	soon := env.receive(t, 2, 10, 10)
	env.receive(t, 30, 10, 10)

	order := env.placeOrder(t, "instore", "cash", 12)

	assert.Equal(t, "completed", order.Status)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.True(t, order.InventoryCommitted)
	require.NotNil(t, order.CreatedBy)
	assert.Equal(t, env.actor, *order.CreatedBy)

	require.Len(t, order.Lines, 1)
	allocs := order.Lines[0].BatchAllocations
	require.Len(t, allocs, 2)
	assert.Equal(t, soon, allocs[0].BatchID, "earliest expiry is drawn first")
	assert.Equal(t, 10, allocs[0].AllocatedBaseQty)
	assert.Equal(t, 2, allocs[1].AllocatedBaseQty)

	// 10 x 40 discounted + 2 x 50
	assert.True(t, decimal.RequireFromString("500").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, decimal.RequireFromString("100").Equal(order.DiscountAmount), order.DiscountAmount.String())
}

func TestOrderHandler_CreateRejections(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 5, 5)

	t.Run("insufficient shelf stock", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", env.orderBody("instore", "cash", 6))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, dto.ErrCodeInsufficientStock, errorCode(t, rec))
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", env.orderBody("delivery", "cash", 1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		require.NotNil(t, body.Error)
		assert.Equal(t, dto.ErrCodeValidation, body.Error.Code)
		require.NotEmpty(t, body.Error.Details)
		assert.Equal(t, "kind", body.Error.Details[0].Field)
	})

	t.Run("zero quantity", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", env.orderBody("instore", "cash", 0))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown unit", func(t *testing.T) {
		body := env.orderBody("instore", "cash", 1)
		body["lines"] = []map[string]any{{"product_id": env.product.ID, "quantity": 1, "unit": "pallet"}}
		rec := env.do(http.MethodPost, "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorCode(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, errorCode(t, rec))
	})

	stock := env.do(http.MethodGet, "/api/v1/inventory/products/"+env.product.ID.String()+"/stock", nil)
	var s struct {
		ShelfStock int `json:"shelf_stock"`
	}
	decodeData(t, stock, &s)
	assert.Equal(t, 5, s.ShelfStock, "rejected checkouts leave stock untouched")
}

func TestOrderHandler_Quote(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 20, 0)

	rec := env.do(http.MethodPost, "/api/v1/orders/quote", map[string]any{
		"kind":  "preorder",
		"lines": []map[string]any{{"product_id": env.product.ID, "quantity": 1, "unit": "crate"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var quote tradeapp.QuoteResponse
	decodeData(t, rec, &quote)
	assert.True(t, decimal.RequireFromString("540").Equal(quote.FinalAmount), quote.FinalAmount.String())

	list := env.do(http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, int64(0), decode(t, list).Meta.Total, "a quote stores nothing")
}

func TestOrderHandler_GetAndList(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 10, 10)
	order := env.placeOrder(t, "instore", "card", 1)

	t.Run("by id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got tradeapp.OrderResponse
		decodeData(t, rec, &got)
		assert.Equal(t, order.OrderNumber, got.OrderNumber)
	})

	t.Run("by number", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/orders/number/"+order.OrderNumber, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, dto.ErrCodeNotFound, errorCode(t, rec))
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, errorCode(t, rec))
	})

	t.Run("list with meta", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/orders?kind=instore&page=1&page_size=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.NotNil(t, body.Meta)
		assert.Equal(t, int64(1), body.Meta.Total)
		assert.Equal(t, 1, body.Meta.TotalPages)
	})
}

func TestOrderHandler_PreorderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 10, 0)

	order := env.placeOrder(t, "preorder", "cash", 4)
	assert.Equal(t, "preorder_pending", order.Status)
	assert.False(t, order.InventoryCommitted)
	base := "/api/v1/orders/" + order.ID.String()

	rec := env.do(http.MethodPost, base+"/deposit", map[string]any{"amount": "50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, base+"/fulfill", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a pre-order with a deposit is not fulfilled directly")
	assert.Equal(t, dto.ErrCodeInvalidState, errorCode(t, rec))

	rec = env.do(http.MethodPost, base+"/cancel", map[string]any{"reason": "customer changed mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled tradeapp.OrderResponse
	decodeData(t, rec, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancelReason)

	rec = env.do(http.MethodPut, base, map[string]any{"note": "too late"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOrderHandler_FulfillHoldResume(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 10, 0)

	order := env.placeOrder(t, "preorder", "card", 3)
	base := "/api/v1/orders/" + order.ID.String()

	rec := env.do(http.MethodPost, base+"/hold", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, base+"/fulfill", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPut, base, map[string]any{"customer_name": "Lan"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, base+"/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var done tradeapp.OrderResponse
	decodeData(t, rec, &done)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "Lan", done.CustomerName)
	assert.True(t, done.InventoryCommitted)

	rec = env.do(http.MethodPost, base+"/fulfill", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "fulfillment happens once")
}

func TestOrderHandler_CancelWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, 30, 10, 10)

	pre := env.placeOrder(t, "preorder", "cash", 2)
	rec := env.do(http.MethodPost, "/api/v1/orders/"+pre.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled tradeapp.OrderResponse
	decodeData(t, rec, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.NotEmpty(t, cancelled.CancelReason)

	sale := env.placeOrder(t, "instore", "cash", 4)
	rec = env.do(http.MethodPost, "/api/v1/orders/"+sale.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a completed sale is terminal")
}
