package trade_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	retries  int
	swept    [3]int
}

func (m *recordingMetrics) CheckoutCompleted(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) CommitRetried(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *recordingMetrics) PreordersSwept(cancelled, skipped, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept = [3]int{cancelled, skipped, failed}
}

// flakyScope fails the first n transactions with a stock conflict
type flakyScope struct {
	inner apptrade.TransactionScope
	mu    sync.Mutex
	n     int
}

func (s *flakyScope) Execute(ctx context.Context, fn func(repos apptrade.TransactionalRepositories) error) error {
	s.mu.Lock()
	fail := s.n > 0
	if fail {
		s.n--
	}
	s.mu.Unlock()
	if fail {
		return shared.NewConflictError("batch changed concurrently")
	}
	return s.inner.Execute(ctx, fn)
}

type harness struct {
	clock    *shared.FixedClock
	store    *memory.Store
	ledger   *appinv.Ledger
	orders   *apptrade.OrderService
	events   *recordingPublisher
	metrics  *recordingMetrics
	product  *catalog.Product
	supplier uuid.UUID
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithScope(t, nil)
}

func newHarnessWithScope(t *testing.T, wrap func(apptrade.TransactionScope) apptrade.TransactionScope) *harness {
	t.Helper()
	clock := shared.NewFixedClock(testNow)
	store := memory.NewStore(clock)
	logger := zap.NewNop()

	product, err := catalog.NewProduct("SKU-YOG", "Yogurt", []catalog.ProductUnit{
		{Name: "pcs", Ratio: 1, ListPrice: dec("100")},
		{Name: "box", Ratio: 10, ListPrice: dec("900")},
	}, []catalog.ExpiryDiscountRule{
		{DaysBeforeExpiry: 7, Kind: catalog.DiscountKindPercentage, Value: dec("30")},
	})
	require.NoError(t, err)
	require.NoError(t, store.Products().Save(context.Background(), product))

	supplier := uuid.New()
	store.AddSupplier(supplier)

	ledger := appinv.NewLedger(store.InventoryScope(), store.Products(), store.Suppliers(), clock, logger)
	pricing := apptrade.NewPricingService(store.Products(), catalog.NewUnitResolver(), appinv.NewBatchAllocator(store.Batches()))

	scope := store.TradeScope()
	if wrap != nil {
		scope = wrap(scope)
	}
	cfg := apptrade.DefaultServiceConfig()
	cfg.RetryDelay = time.Millisecond
	orders := apptrade.NewOrderService(scope, store.Orders(), pricing, ledger, clock, logger, cfg)

	events := &recordingPublisher{}
	metrics := &recordingMetrics{}
	orders.SetEventPublisher(events)
	orders.SetMetrics(metrics)

	return &harness{
		clock:    clock,
		store:    store,
		ledger:   ledger,
		orders:   orders,
		events:   events,
		metrics:  metrics,
		product:  product,
		supplier: supplier,
	}
}

// receive books a batch expiring in days and moves shelf units of it to the shelf
func (h *harness) receive(t *testing.T, days, qty, shelf int) *inventory.Batch {
	t.Helper()
	ctx := context.Background()
	batch, err := h.ledger.ReceiveBatch(ctx, appinv.ReceiveBatchInput{
		ProductID:       h.product.ID,
		SupplierID:      h.supplier,
		ManufactureDate: testNow.AddDate(0, 0, -30),
		ExpiryDate:      testNow.AddDate(0, 0, days),
		Quantity:        qty,
		ImportPrice:     dec("40"),
	})
	require.NoError(t, err)
	if shelf > 0 {
		batch, err = h.ledger.TransferToShelf(ctx, batch.ID, shelf)
		require.NoError(t, err)
	}
	return batch
}

func (h *harness) batch(t *testing.T, id uuid.UUID) *inventory.Batch {
	t.Helper()
	b, err := h.store.Batches().FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (h *harness) stock(t *testing.T) *inventory.InventoryStock {
	t.Helper()
	s, err := h.store.Stocks().FindByProduct(context.Background(), h.product.ID)
	require.NoError(t, err)
	return s
}

func (h *harness) requireInSync(t *testing.T) {
	t.Helper()
	drift, err := h.ledger.Reconcile(context.Background(), h.product.ID)
	require.NoError(t, err)
	require.True(t, drift.InSync(), "drift %+v", drift)
}

func (h *harness) lines(unit string, qty int) []apptrade.OrderLineRequest {
	return []apptrade.OrderLineRequest{{ProductID: h.product.ID, Quantity: qty, Unit: unit}}
}

func (h *harness) instore(method string, qty int) apptrade.CreateOrderRequest {
	return apptrade.CreateOrderRequest{
		Kind:          "instore",
		PaymentMethod: method,
		Lines:         h.lines("pcs", qty),
	}
}

func (h *harness) preorder(qty int) apptrade.CreateOrderRequest {
	return apptrade.CreateOrderRequest{
		Kind:          "preorder",
		PaymentMethod: "online",
		Lines:         h.lines("pcs", qty),
		CustomerName:  "Alice",
	}
}
