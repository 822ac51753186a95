// Package bootstrap assembles the repositories and services shared by the
// server and worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/migration"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/memory"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/erp/fulfillment/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StorageOptions controls how OpenStorage prepares the schema
type StorageOptions struct {
	// Migrate applies the embedded SQL migrations on postgres before use
	Migrate bool
	// Clock drives the memory store; nil means the system clock
	Clock shared.Clock
}

// Storage is the set of repositories backing one deployment, regardless of driver
type Storage struct {
	Products       catalog.ProductRepository
	Suppliers      catalog.SupplierRepository
	Batches        inventory.BatchRepository
	Stocks         inventory.StockRepository
	Movements      inventory.MovementRepository
	Orders         trade.OrderRepository
	InventoryScope appinv.TransactionScope
	TradeScope     apptrade.TransactionScope

	driver   string
	database *persistence.Database
}

// OpenStorage connects the configured driver and returns its repositories.
// The memory driver keeps everything in process and is meant for development.
func OpenStorage(cfg *config.Config, log *zap.Logger, opts StorageOptions) (*Storage, error) {
	if cfg.Database.Driver == "memory" {
		clock := opts.Clock
		if clock == nil {
			clock = shared.SystemClock{}
		}
		store := memory.NewStore(clock)
		log.Warn("Using in-memory storage; data is lost on restart")
		return &Storage{
			Products:       store.Products(),
			Suppliers:      store.Suppliers(),
			Batches:        store.Batches(),
			Stocks:         store.Stocks(),
			Movements:      store.Movements(),
			Orders:         store.Orders(),
			InventoryScope: store.InventoryScope(),
			TradeScope:     store.TradeScope(),
			driver:         "memory",
		}, nil
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	database, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}

	if err := prepareSchema(database, cfg.Database.Driver, log, opts.Migrate); err != nil {
		_ = database.Close()
		return nil, err
	}

	if err := telemetry.RegisterDBTracing(database.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.App.Env == "development",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))
	return newGormStorage(database, cfg.Database.Driver), nil
}

func newGormStorage(database *persistence.Database, driver string) *Storage {
	db := database.DB
	return &Storage{
		Products:       persistence.NewGormProductRepository(db),
		Suppliers:      persistence.NewGormSupplierRepository(db),
		Batches:        persistence.NewGormBatchRepository(db),
		Stocks:         persistence.NewGormStockRepository(db),
		Movements:      persistence.NewGormMovementRepository(db),
		Orders:         persistence.NewGormOrderRepository(db),
		InventoryScope: persistence.NewGormInventoryScope(db),
		TradeScope:     persistence.NewGormTradeScope(db),
		driver:         driver,
		database:       database,
	}
}

// sqlite is always auto-migrated; postgres only runs the SQL migrations on request
func prepareSchema(database *persistence.Database, driver string, log *zap.Logger, migrate bool) error {
	if driver == "sqlite" {
		if err := database.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if !migrate {
		return nil
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		return err
	}
	// the migrator is not closed: closing it would close sqlDB as well
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}

// Driver names the backing store
func (s *Storage) Driver() string {
	return s.driver
}

// DB returns the gorm handle, or nil for the memory driver
func (s *Storage) DB() *gorm.DB {
	if s.database == nil {
		return nil
	}
	return s.database.DB
}

// Ping reports whether the backing store is reachable
func (s *Storage) Ping(ctx context.Context) error {
	if s.database == nil {
		return nil
	}
	sqlDB, err := s.database.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection
func (s *Storage) Close() error {
	if s.database == nil {
		return nil
	}
	if err := s.database.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
