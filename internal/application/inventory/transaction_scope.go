package inventory

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type TransactionalRepositories interface {
	// BatchRepo returns the batch repository scoped to the current transaction
	BatchRepo() inventory.BatchRepository
	// StockRepo returns the stock aggregate repository scoped to the current transaction
	StockRepo() inventory.StockRepository
	// CommitRepo returns the commit marker repository scoped to the current transaction
	CommitRepo() inventory.CommitRepository
	// MovementRepo returns the movement journal scoped to the current transaction
	MovementRepo() inventory.MovementRepository
}
