package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	invapp "github.com/erp/fulfillment/internal/application/inventory"
	tradeapp "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/memory"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type testEnv struct {
	clock    *shared.FixedClock
	store    *memory.Store
	ledger   *invapp.Ledger
	orders   *tradeapp.OrderService
	idem     *cache.InMemoryIdempotencyStore
	product  *catalog.Product
	supplier uuid.UUID
	actor    uuid.UUID
	engine   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := shared.NewFixedClock(testNow)
	store := memory.NewStore(clock)
	log := zap.NewNop()

	product, err := catalog.NewProduct("SKU-MILK", "Milk", []catalog.ProductUnit{
		{Name: "pcs", Ratio: 1, ListPrice: decimal.RequireFromString("50")},
		{Name: "crate", Ratio: 12, ListPrice: decimal.RequireFromString("540")},
	}, []catalog.ExpiryDiscountRule{
		{DaysBeforeExpiry: 3, Kind: catalog.DiscountKindPercentage, Value: decimal.RequireFromString("20")},
	})
	require.NoError(t, err)
	require.NoError(t, store.Products().Save(context.Background(), product))

	supplier := uuid.New()
	store.AddSupplier(supplier)

	ledger := invapp.NewLedger(store.InventoryScope(), store.Products(), store.Suppliers(), clock, log)
	pricing := tradeapp.NewPricingService(store.Products(), catalog.NewUnitResolver(), invapp.NewBatchAllocator(store.Batches()))
	cfg := tradeapp.DefaultServiceConfig()
	cfg.RetryDelay = time.Millisecond
	orders := tradeapp.NewOrderService(store.TradeScope(), store.Orders(), pricing, ledger, clock, log, cfg)
	queries := invapp.NewStockQueryService(store.Batches(), store.Stocks(), store.Movements())
	sweeper := tradeapp.NewPreorderSweeper(store.Orders(), orders, clock, log)
	expiry := invapp.NewBatchExpiryService(store.Batches(), clock, log)

	idem := cache.NewInMemoryIdempotencyStoreWithClock(clock, time.Hour)
	t.Cleanup(func() { _ = idem.Close() })

	env := &testEnv{
		clock:    clock,
		store:    store,
		ledger:   ledger,
		orders:   orders,
		idem:     idem,
		product:  product,
		supplier: supplier,
		actor:    uuid.New(),
	}

	oh := NewOrderHandler(orders)
	ih := NewInventoryHandler(ledger, queries)
	ph := NewPaymentCallbackHandler(orders, idem, "gateway-secret", time.Hour)
	ah := NewAdminHandler(sweeper, expiry)

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, env.actor.String())
		c.Next()
	})
	api := r.Group("/api/v1")
	api.POST("/orders", oh.Create)
	api.POST("/orders/quote", oh.Quote)
	api.GET("/orders", oh.List)
	api.GET("/orders/number/:number", oh.GetByOrderNumber)
	api.GET("/orders/:id", oh.GetByID)
	api.PUT("/orders/:id", oh.Update)
	api.POST("/orders/:id/fulfill", oh.Fulfill)
	api.POST("/orders/:id/hold", oh.Hold)
	api.POST("/orders/:id/resume", oh.Resume)
	api.POST("/orders/:id/deposit", oh.Deposit)
	api.POST("/orders/:id/cancel", oh.Cancel)
	api.POST("/payments/callback", ph.Handle)
	api.POST("/inventory/batches", ih.ReceiveBatch)
	api.GET("/inventory/batches/:id", ih.GetBatch)
	api.GET("/inventory/batches/:id/movements", ih.ListMovements)
	api.POST("/inventory/batches/:id/transfer", ih.Transfer)
	api.POST("/inventory/batches/:id/loss", ih.RecordLoss)
	api.GET("/inventory/products/:id/stock", ih.GetStock)
	api.GET("/inventory/products/:id/batches", ih.ListBatches)
	api.GET("/inventory/products/:id/reconcile", ih.Reconcile)
	api.POST("/admin/sweeps/preorders", ah.SweepPreorders)
	api.POST("/admin/sweeps/batches", ah.SweepBatches)
	env.engine = r

	return env
}

// receive books a batch expiring in days and puts shelf units of it on the shelf
func (e *testEnv) receive(t *testing.T, days, qty, shelf int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	batch, err := e.ledger.ReceiveBatch(ctx, invapp.ReceiveBatchInput{
		ProductID:       e.product.ID,
		SupplierID:      e.supplier,
		BatchNumber:     "B-" + uuid.NewString()[:8],
		ManufactureDate: testNow.AddDate(0, 0, -10),
		ExpiryDate:      testNow.AddDate(0, 0, days),
		Quantity:        qty,
		ImportPrice:     decimal.RequireFromString("20"),
	})
	require.NoError(t, err)
	if shelf > 0 {
		_, err = e.ledger.TransferToShelf(ctx, batch.ID, shelf)
		require.NoError(t, err)
	}
	return batch.ID
}

func (e *testEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) orderBody(kind, method string, qty int) map[string]any {
	return map[string]any{
		"kind":           kind,
		"payment_method": method,
		"lines": []map[string]any{
			{"product_id": e.product.ID, "quantity": qty, "unit": "pcs"},
		},
	}
}

// placeOrder creates an order through the API and returns its response
func (e *testEnv) placeOrder(t *testing.T, kind, method string, qty int) tradeapp.OrderResponse {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/orders", e.orderBody(kind, method, qty))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order tradeapp.OrderResponse
	decodeData(t, rec, &order)
	return order
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Code
}
