package bootstrap

import (
	"fmt"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Services is the application layer built over one Storage
type Services struct {
	Ledger  *appinv.Ledger
	Queries *appinv.StockQueryService
	Expiry  *appinv.BatchExpiryService
	Pricing *apptrade.PricingService
	Orders  *apptrade.OrderService
	Sweeper *apptrade.PreorderSweeper
}

// NewServices wires the ledger, pricing, order and sweep services
func NewServices(storage *Storage, cfg *config.Config, clock shared.Clock, log *zap.Logger) (*Services, error) {
	orderCfg, err := orderServiceConfig(cfg.Fulfillment)
	if err != nil {
		return nil, err
	}

	ledger := appinv.NewLedger(storage.InventoryScope, storage.Products, storage.Suppliers, clock, log)
	pricing := apptrade.NewPricingService(
		storage.Products,
		catalog.NewUnitResolver(),
		appinv.NewBatchAllocator(storage.Batches),
	)
	orders := apptrade.NewOrderService(storage.TradeScope, storage.Orders, pricing, ledger, clock, log, orderCfg)

	sweeper := apptrade.NewPreorderSweeper(storage.Orders, orders, clock, log)
	if cfg.Sweeper.BatchSize > 0 {
		sweeper.SetBatchSize(cfg.Sweeper.BatchSize)
	}

	return &Services{
		Ledger:  ledger,
		Queries: appinv.NewStockQueryService(storage.Batches, storage.Stocks, storage.Movements),
		Expiry:  appinv.NewBatchExpiryService(storage.Batches, clock, log),
		Pricing: pricing,
		Orders:  orders,
		Sweeper: sweeper,
	}, nil
}

// SetMetrics attaches the recorder to every service that reports
func (s *Services) SetMetrics(m apptrade.Metrics) {
	s.Orders.SetMetrics(m)
	s.Sweeper.SetMetrics(m)
}

func orderServiceConfig(fc config.FulfillmentConfig) (apptrade.ServiceConfig, error) {
	out := apptrade.DefaultServiceConfig()
	if fc.CommitRetryBudget > 0 {
		out.RetryBudget = fc.CommitRetryBudget
	}
	if fc.CommitRetryDelay > 0 {
		out.RetryDelay = fc.CommitRetryDelay
	}
	if fc.PreorderExpirationDays > 0 {
		out.PreorderExpirationDays = fc.PreorderExpirationDays
	}
	out.DefaultTaxRate = fc.DefaultTaxRate

	if fc.InstoreLocation != "" {
		loc, err := inventory.ParseStockLocation(fc.InstoreLocation)
		if err != nil {
			return out, fmt.Errorf("fulfillment.instore_location: %w", err)
		}
		out.InstoreLocation = loc
	}
	if fc.PreorderLocation != "" {
		loc, err := inventory.ParseStockLocation(fc.PreorderLocation)
		if err != nil {
			return out, fmt.Errorf("fulfillment.preorder_location: %w", err)
		}
		out.PreorderLocation = loc
	}
	return out, nil
}

// TracingConfig derives the tracer settings of one binary. component is
// appended to the service name ("" for the API server).
func TracingConfig(cfg *config.Config, component, version string) telemetry.Config {
	name := cfg.Telemetry.ServiceName
	if component != "" {
		name += "-" + component
	}
	return telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       name,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}
}
