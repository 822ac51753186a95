package persistence

import (
	"context"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/trade"
	"gorm.io/gorm"
)

// GormInventoryScope implements the ledger TransactionScope using GORM transactions.
type GormInventoryScope struct {
	db *gorm.DB
}

// NewGormInventoryScope creates a new GormInventoryScope.
func NewGormInventoryScope(db *gorm.DB) *GormInventoryScope {
	return &GormInventoryScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormInventoryScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// GormTradeScope implements the order TransactionScope, so the order row and
// every ledger write of a checkout commit or roll back together.
type GormTradeScope struct {
	db *gorm.DB
}

// NewGormTradeScope creates a new GormTradeScope.
func NewGormTradeScope(db *gorm.DB) *GormTradeScope {
	return &GormTradeScope{db: db}
}

// Execute runs fn within a database transaction.
func (s *GormTradeScope) Execute(ctx context.Context, fn func(repos apptrade.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// BatchRepo returns the batch repository scoped to the current transaction.
func (r *gormTransactionalRepositories) BatchRepo() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// StockRepo returns the stock repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockRepo() inventory.StockRepository {
	return NewGormStockRepository(r.tx)
}

// CommitRepo returns the commit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CommitRepo() inventory.CommitRepository {
	return NewGormCommitRepository(r.tx)
}

// MovementRepo returns the movement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) MovementRepo() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

// OrderRepo returns the order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) OrderRepo() trade.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

var (
	_ appinv.TransactionScope            = (*GormInventoryScope)(nil)
	_ apptrade.TransactionScope          = (*GormTradeScope)(nil)
	_ apptrade.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
