package trade

import (
	"context"
	"errors"
	"time"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceConfig tunes the order service
type ServiceConfig struct {
	// RetryBudget is how many commit attempts a checkout gets before it reports a conflict
	RetryBudget int
	// RetryDelay is the pause between commit attempts
	RetryDelay             time.Duration
	DefaultTaxRate         decimal.Decimal
	PreorderExpirationDays int
	InstoreLocation        inventory.StockLocation
	PreorderLocation       inventory.StockLocation
}

// DefaultServiceConfig returns the default order service configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RetryBudget:            3,
		RetryDelay:             20 * time.Millisecond,
		DefaultTaxRate:         decimal.Zero,
		PreorderExpirationDays: 3,
		InstoreLocation:        inventory.LocationShelf,
		PreorderLocation:       inventory.LocationWarehouse,
	}
}

// OrderService drives orders through their lifecycle and invokes the ledger
// at the commit points: instore creation and pre-order fulfillment.
type OrderService struct {
	txScope        TransactionScope
	orderRepo      trade.OrderRepository
	pricing        *PricingService
	ledger         *appinv.Ledger
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	logger         *zap.Logger
	metrics        Metrics
	cfg            ServiceConfig
}

// NewOrderService creates a new OrderService
func NewOrderService(
	txScope TransactionScope,
	orderRepo trade.OrderRepository,
	pricing *PricingService,
	ledger *appinv.Ledger,
	clock shared.Clock,
	logger *zap.Logger,
	cfg ServiceConfig,
) *OrderService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if cfg.RetryBudget < 1 {
		cfg.RetryBudget = 1
	}
	return &OrderService{
		txScope:   txScope,
		orderRepo: orderRepo,
		pricing:   pricing,
		ledger:    ledger,
		clock:     clock,
		logger:    logger,
		metrics:   noopMetrics{},
		cfg:       cfg,
	}
}

// SetEventPublisher sets the event publisher used after successful commits
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics sink
func (s *OrderService) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

// CreateOrder places an instore sale or a pre-order.
// An instore sale is priced from the shelf and committed before the order is
// stored, both in one transaction. A pre-order is priced only.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	kind := trade.OrderKind(req.Kind)
	method := trade.PaymentMethod(req.PaymentMethod)
	if !kind.IsValid() {
		return nil, shared.NewValidationError("Invalid order kind %q", req.Kind)
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("Invalid payment method %q", req.PaymentMethod)
	}
	taxRate := s.cfg.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	start := time.Now()
	var (
		order *trade.Order
		err   error
	)
	if kind == trade.OrderKindInstore {
		order, err = s.createInstore(ctx, req, method, taxRate)
	} else {
		order, err = s.createPreorder(ctx, req, method, taxRate)
	}
	s.metrics.CheckoutCompleted(string(kind), outcomeOf(err), time.Since(start))
	if err != nil {
		s.logFailure("Failed to create order", err, zap.String("kind", string(kind)))
		return nil, err
	}

	s.publishEvents(ctx, order)
	return ToOrderResponse(order), nil
}

func (s *OrderService) createInstore(ctx context.Context, req CreateOrderRequest, method trade.PaymentMethod, taxRate decimal.Decimal) (*trade.Order, error) {
	var order *trade.Order
	err := s.withCommitRetry(ctx, string(trade.OrderKindInstore), func() error {
		now := s.clock.Now()
		priced, err := s.pricing.Price(ctx, req.Lines, s.cfg.InstoreLocation, taxRate, now)
		if err != nil {
			return err
		}
		o, err := trade.NewInstoreOrder(trade.GenerateOrderNumber(now), method, priced.Pricing, now)
		if err != nil {
			return err
		}
		o.CustomerName = req.CustomerName
		o.Note = req.Note
		o.SetCreatedBy(req.CreatedBy)

		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if _, err := s.ledger.CommitWithin(ctx, repos, o.ID, priced.Allocations); err != nil {
				return err
			}
			if err := o.Complete(now); err != nil {
				return err
			}
			return repos.OrderRepo().Create(ctx, o)
		})
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

func (s *OrderService) createPreorder(ctx context.Context, req CreateOrderRequest, method trade.PaymentMethod, taxRate decimal.Decimal) (*trade.Order, error) {
	days := s.cfg.PreorderExpirationDays
	if req.ExpirationDays != nil {
		days = *req.ExpirationDays
	}

	now := s.clock.Now()
	priced, err := s.pricing.Price(ctx, req.Lines, s.cfg.PreorderLocation, taxRate, now)
	if err != nil {
		return nil, err
	}
	order, err := trade.NewPreorder(trade.GenerateOrderNumber(now), method, priced.Pricing, days, now)
	if err != nil {
		return nil, err
	}
	order.CustomerName = req.CustomerName
	order.Note = req.Note
	order.SetCreatedBy(req.CreatedBy)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Quote prices lines without committing stock or storing an order
func (s *OrderService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	kind := trade.OrderKind(req.Kind)
	if !kind.IsValid() {
		return nil, shared.NewValidationError("Invalid order kind %q", req.Kind)
	}
	loc := s.cfg.InstoreLocation
	if kind == trade.OrderKindPreorder {
		loc = s.cfg.PreorderLocation
	}
	taxRate := s.cfg.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	now := s.clock.Now()
	priced, err := s.pricing.Price(ctx, req.Lines, loc, taxRate, now)
	if err != nil {
		return nil, err
	}
	return ToQuoteResponse(priced.Pricing, now), nil
}

// FulfillPreorder re-prices a pending pre-order against current stock,
// commits it and completes the order. A concurrent transition on the same
// order makes this call fail with a state error.
func (s *OrderService) FulfillPreorder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	start := time.Now()
	var order *trade.Order
	err := s.withCommitRetry(ctx, string(trade.OrderKindPreorder), func() error {
		o, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != trade.OrderStatusPreorderPending {
			return shared.NewStateError("Cannot fulfill order in %s status", o.Status)
		}

		now := s.clock.Now()
		lines := make([]OrderLineRequest, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, OrderLineRequest{ProductID: l.ProductID, Quantity: l.RequestedQty, Unit: l.SelectedUnit})
		}
		priced, err := s.pricing.Price(ctx, lines, s.cfg.PreorderLocation, o.TaxRate, now)
		if err != nil {
			return err
		}

		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if _, err := s.ledger.CommitWithin(ctx, repos, o.ID, priced.Allocations); err != nil {
				return err
			}
			if err := o.Fulfill(priced.Pricing, now); err != nil {
				return err
			}
			return repos.OrderRepo().SaveWithLock(ctx, o)
		})
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	s.metrics.CheckoutCompleted(string(trade.OrderKindPreorder), outcomeOf(err), time.Since(start))
	if err != nil {
		s.logFailure("Failed to fulfill pre-order", err, zap.String("order_id", orderID.String()))
		return nil, err
	}

	s.publishEvents(ctx, order)
	return ToOrderResponse(order), nil
}

// Hold parks a pending pre-order
func (s *OrderService) Hold(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, orderID, "hold", func(o *trade.Order, now time.Time) error {
		return o.Hold(now)
	})
}

// Resume returns a held pre-order to pending
func (s *OrderService) Resume(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, orderID, "resume", func(o *trade.Order, now time.Time) error {
		return o.Resume(now)
	})
}

// RecordDeposit stores a partial payment on a non-terminal order
func (s *OrderService) RecordDeposit(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (*OrderResponse, error) {
	return s.transition(ctx, orderID, "deposit", func(o *trade.Order, now time.Time) error {
		return o.RecordDeposit(amount, now)
	})
}

// Cancel cancels a non-terminal order, restoring any stock it committed
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	if reason == "" {
		reason = "cancelled by request"
	}
	return s.transition(ctx, orderID, "cancel", func(o *trade.Order, now time.Time) error {
		return o.Cancel(reason, now)
	})
}

// UpdateOrder edits the descriptive fields of a non-terminal order
func (s *OrderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, req UpdateOrderRequest) (*OrderResponse, error) {
	return s.transition(ctx, orderID, "update", func(o *trade.Order, now time.Time) error {
		return o.Update(trade.OrderUpdate{
			CustomerName:   req.CustomerName,
			Note:           req.Note,
			ExpirationDate: req.ExpirationDate,
		}, now)
	})
}

// ConfirmPayment applies a payment gateway result.
// A completed sale awaiting payment becomes paid, or is reversed with its
// stock restored when the payment failed. A successful payment for a pending
// pre-order fulfills it.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, success bool) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == trade.OrderStatusPreorderPending && success {
		return s.FulfillPreorder(ctx, orderID)
	}
	return s.transition(ctx, orderID, "confirm_payment", func(o *trade.Order, now time.Time) error {
		if success {
			return o.ConfirmPayment(now)
		}
		return o.ReverseUnpaid(now)
	})
}

// CancelExpiredPreorder cancels a pre-order whose pickup deadline has passed as of now.
// It re-checks the order after loading so a concurrently fulfilled or held
// order is left alone with a state error.
func (s *OrderService) CancelExpiredPreorder(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	_, err := s.transition(ctx, orderID, "expire", func(o *trade.Order, _ time.Time) error {
		if !o.IsPreorderExpiredAt(now) {
			return shared.NewStateError("Order %s is not an expired pre-order", o.OrderNumber)
		}
		return o.Cancel("preorder expired", now)
	})
	return err
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// GetOrderByNumber retrieves an order by its order number
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// ListOrders lists orders with filtering and pagination
func (s *OrderService) ListOrders(ctx context.Context, filter OrderListFilter) (*shared.Paginated[OrderResponse], error) {
	f := trade.OrderFilter{Filter: shared.DefaultFilter()}
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if filter.Status != "" {
		status, err := trade.ParseOrderStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		f.Status = status
	}
	if filter.Kind != "" {
		f.Kind = trade.OrderKind(filter.Kind)
		if !f.Kind.IsValid() {
			return nil, shared.NewValidationError("Invalid order kind %q", filter.Kind)
		}
	}

	orders, total, err := s.orderRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	items := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, *ToOrderResponse(&orders[i]))
	}
	page := shared.NewPaginated(items, total, f.Page, f.Limit())
	return &page, nil
}

// transition loads an order, applies fn and saves it with an optimistic lock.
// A cancelled order that had committed stock is rolled back in the same
// transaction. On a version conflict the order is reloaded and fn re-validated.
func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, op string, fn func(o *trade.Order, now time.Time) error) (*OrderResponse, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		if err := fn(order, now); err != nil {
			return nil, err
		}

		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if order.Status == trade.OrderStatusCancelled && order.InventoryCommitted {
				if _, err := s.ledger.RollbackWithin(ctx, repos, order.ID); err != nil {
					return err
				}
			}
			return repos.OrderRepo().SaveWithLock(ctx, order)
		})
		if err == nil {
			s.logger.Info("Order transitioned",
				zap.String("order_id", order.ID.String()),
				zap.String("operation", op),
				zap.String("status", string(order.Status)),
			)
			s.publishEvents(ctx, order)
			return ToOrderResponse(order), nil
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < s.cfg.RetryBudget {
			s.logger.Debug("Order changed concurrently, reloading",
				zap.String("order_id", orderID.String()),
				zap.String("operation", op),
				zap.Int("attempt", attempt),
			)
			continue
		}
		s.logFailure("Failed to transition order", err,
			zap.String("order_id", orderID.String()),
			zap.String("operation", op),
		)
		return nil, err
	}
}

// withCommitRetry re-runs fn while it loses stock or version races, then
// reports a conflict once the retry budget is spent
func (s *OrderService) withCommitRetry(ctx context.Context, kind string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.RetryBudget; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		s.metrics.CommitRetried(kind)
		s.logger.Info("Commit lost a concurrent race, retrying",
			zap.String("kind", kind),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == s.cfg.RetryBudget {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	return shared.NewConflictError("stock changed concurrently, gave up after %d attempts: %v", s.cfg.RetryBudget, err)
}

func (s *OrderService) publishEvents(ctx context.Context, order *trade.Order) {
	events := order.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish order events",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *OrderService) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if shared.IsClientError(err) {
		s.logger.Info(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}

func isRetryable(err error) bool {
	return errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrConcurrencyConflict)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, shared.ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, shared.ErrConflict):
		return OutcomeConflict
	case shared.IsClientError(err):
		return OutcomeRejected
	}
	return OutcomeError
}
