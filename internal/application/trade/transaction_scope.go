package trade

import (
	"context"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	"github.com/erp/fulfillment/internal/domain/trade"
)

// TransactionScope runs order persistence and ledger writes in one transaction,
// so a failed order never leaves a stock mutation behind.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are the ledger repositories plus the order repository,
// all bound to the same transaction.
type TransactionalRepositories interface {
	appinv.TransactionalRepositories
	// OrderRepo returns the order repository scoped to the current transaction
	OrderRepo() trade.OrderRepository
}
