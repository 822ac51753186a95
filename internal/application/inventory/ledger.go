package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the only writer of batch counters and stock aggregates.
// Every write goes through a guarded repository method inside a transaction,
// so a failed operation leaves no counter changed.
type Ledger struct {
	txScope      TransactionScope
	productRepo  catalog.ProductRepository
	supplierRepo catalog.SupplierRepository
	clock        shared.Clock
	logger       *zap.Logger
}

// NewLedger creates a new Ledger
func NewLedger(
	txScope TransactionScope,
	productRepo catalog.ProductRepository,
	supplierRepo catalog.SupplierRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *Ledger {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Ledger{
		txScope:      txScope,
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		clock:        clock,
		logger:       logger,
	}
}

// CommitResult reports the outcome of a commit
type CommitResult struct {
	OrderID uuid.UUID
	// Applied is false when the order was already committed and the call was a no-op
	Applied   bool
	Movements int
}

// Commit applies the allocations of an order in its own transaction
func (l *Ledger) Commit(ctx context.Context, orderID uuid.UUID, allocations []inventory.Allocation) (*CommitResult, error) {
	var result *CommitResult
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = l.CommitWithin(ctx, repos, orderID, allocations)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CommitWithin applies the allocations of an order using repositories of an
// open transaction. Each batch is decremented with a compare-and-decrement;
// the first failed guard aborts with a conflict and the caller's transaction
// rolls back every decrement already applied. A second commit for the same
// order is a no-op.
func (l *Ledger) CommitWithin(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID, allocations []inventory.Allocation) (*CommitResult, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewValidationError("Order ID is required")
	}
	existing, err := repos.CommitRepo().FindByOrder(ctx, orderID)
	switch {
	case err == nil && existing != nil:
		l.logger.Debug("Order already committed, skipping",
			zap.String("order_id", orderID.String()),
		)
		return &CommitResult{OrderID: orderID}, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("failed to load commit marker: %w", err)
	}

	now := l.clock.Now()
	deltas := make(map[uuid.UUID]inventory.StockDelta)
	movements := make([]inventory.StockMovement, 0)
	for _, alloc := range allocations {
		for _, item := range alloc.Items {
			if err := repos.BatchRepo().Sell(ctx, item.BatchID, alloc.Location, item.Quantity); err != nil {
				l.logger.Info("Guarded decrement failed",
					zap.String("order_id", orderID.String()),
					zap.String("batch_id", item.BatchID.String()),
					zap.String("location", string(alloc.Location)),
					zap.Int("quantity", item.Quantity),
					zap.Error(err),
				)
				return nil, err
			}
			movements = append(movements, inventory.StockMovement{
				ID:        uuid.New(),
				BatchID:   item.BatchID,
				ProductID: alloc.ProductID,
				Kind:      inventory.MovementCommit,
				Location:  alloc.Location,
				Quantity:  item.Quantity,
				CreatedAt: now,
			}.ForOrder(orderID))
		}
		deltas[alloc.ProductID] = deltas[alloc.ProductID].Add(alloc.Delta())
	}

	if err := applyDeltas(ctx, repos.StockRepo(), deltas); err != nil {
		return nil, err
	}
	if len(movements) > 0 {
		if err := repos.MovementRepo().Append(ctx, movements...); err != nil {
			return nil, fmt.Errorf("failed to record movements: %w", err)
		}
	}
	if err := repos.CommitRepo().Create(ctx, inventory.NewCommitRecord(orderID, now)); err != nil {
		return nil, err
	}

	return &CommitResult{OrderID: orderID, Applied: true, Movements: len(movements)}, nil
}

// Rollback restores the stock committed for an order in its own transaction
func (l *Ledger) Rollback(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var restored bool
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		restored, err = l.RollbackWithin(ctx, repos, orderID)
		return err
	})
	return restored, err
}

// RollbackWithin reverses every commit movement of an order using repositories
// of an open transaction. It returns false when nothing was committed or the
// commit was already rolled back.
func (l *Ledger) RollbackWithin(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID) (bool, error) {
	marker, err := repos.CommitRepo().FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load commit marker: %w", err)
	}
	if marker.IsRolledBack() {
		return false, nil
	}

	committed, err := repos.MovementRepo().FindByOrder(ctx, orderID, inventory.MovementCommit)
	if err != nil {
		return false, fmt.Errorf("failed to load movements: %w", err)
	}

	now := l.clock.Now()
	deltas := make(map[uuid.UUID]inventory.StockDelta)
	reversals := make([]inventory.StockMovement, 0, len(committed))
	for _, m := range committed {
		if err := repos.BatchRepo().Unsell(ctx, m.BatchID, m.Location, m.Quantity); err != nil {
			return false, err
		}
		deltas[m.ProductID] = deltas[m.ProductID].Add(inventory.DeltaAt(m.Location, m.Quantity))
		reversal := m
		reversal.ID = uuid.New()
		reversal.Kind = inventory.MovementRollback
		reversal.CreatedAt = now
		reversals = append(reversals, reversal)
	}

	if err := applyDeltas(ctx, repos.StockRepo(), deltas); err != nil {
		return false, err
	}
	if len(reversals) > 0 {
		if err := repos.MovementRepo().Append(ctx, reversals...); err != nil {
			return false, fmt.Errorf("failed to record movements: %w", err)
		}
	}
	if err := repos.CommitRepo().MarkRolledBack(ctx, orderID, now); err != nil {
		return false, err
	}

	l.logger.Info("Order stock restored",
		zap.String("order_id", orderID.String()),
		zap.Int("movements", len(reversals)),
	)
	return true, nil
}

// ReceiveBatchInput is a supplier delivery to the warehouse
type ReceiveBatchInput struct {
	ProductID       uuid.UUID
	SupplierID      uuid.UUID
	BatchNumber     string
	ManufactureDate time.Time
	ExpiryDate      time.Time
	Quantity        int
	ImportPrice     decimal.Decimal
}

// ReceiveBatch creates a batch in the warehouse and raises the product's warehouse stock
func (l *Ledger) ReceiveBatch(ctx context.Context, in ReceiveBatchInput) (*inventory.Batch, error) {
	if _, err := l.productRepo.FindByID(ctx, in.ProductID); err != nil {
		return nil, err
	}
	exists, err := l.supplierRepo.ExistsByID(ctx, in.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("supplier", in.SupplierID)
	}

	now := l.clock.Now()
	batch, err := inventory.NewBatch(in.ProductID, in.SupplierID, in.BatchNumber,
		in.ManufactureDate, in.ExpiryDate, in.Quantity, in.ImportPrice, now)
	if err != nil {
		return nil, err
	}

	err = l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.BatchRepo().Create(ctx, batch); err != nil {
			return err
		}
		if err := ensureStock(ctx, repos.StockRepo(), batch.ProductID, now); err != nil {
			return err
		}
		if err := repos.StockRepo().ApplyDelta(ctx, batch.ProductID, inventory.DeltaAt(inventory.LocationWarehouse, batch.InitialQuantity)); err != nil {
			return err
		}
		return repos.MovementRepo().Append(ctx,
			inventory.NewStockMovement(inventory.MovementReceive, batch, inventory.LocationWarehouse, batch.InitialQuantity, now))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("product_id", batch.ProductID.String()),
		zap.Int("quantity", batch.InitialQuantity),
	)
	return batch, nil
}

// TransferToShelf moves qty of a batch from the warehouse to the shelf
func (l *Ledger) TransferToShelf(ctx context.Context, batchID uuid.UUID, qty int) (*inventory.Batch, error) {
	if qty <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	var batch *inventory.Batch
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if batch, err = repos.BatchRepo().FindByID(ctx, batchID); err != nil {
			return err
		}
		if err := repos.BatchRepo().MoveToShelf(ctx, batchID, qty); err != nil {
			return err
		}
		delta := inventory.StockDelta{Warehouse: -qty, Shelf: qty}
		if err := repos.StockRepo().ApplyDelta(ctx, batch.ProductID, delta); err != nil {
			return err
		}
		if err := repos.MovementRepo().Append(ctx,
			inventory.NewStockMovement(inventory.MovementTransfer, batch, inventory.LocationShelf, qty, l.clock.Now())); err != nil {
			return err
		}
		batch, err = repos.BatchRepo().FindByID(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// RecordLoss writes off qty of a batch at a location
func (l *Ledger) RecordLoss(ctx context.Context, batchID uuid.UUID, loc inventory.StockLocation, qty int, reason string) (*inventory.Batch, error) {
	if qty <= 0 {
		return nil, shared.NewValidationError("Quantity must be positive")
	}
	if !loc.IsValid() {
		return nil, shared.NewValidationError("Invalid stock location %q", loc)
	}
	var batch *inventory.Batch
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if batch, err = repos.BatchRepo().FindByID(ctx, batchID); err != nil {
			return err
		}
		if err := repos.BatchRepo().Lose(ctx, batchID, loc, qty); err != nil {
			return err
		}
		if err := repos.StockRepo().ApplyDelta(ctx, batch.ProductID, inventory.DeltaAt(loc, -qty)); err != nil {
			return err
		}
		if err := repos.MovementRepo().Append(ctx,
			inventory.NewStockMovement(inventory.MovementLoss, batch, loc, qty, l.clock.Now()).WithReason(reason)); err != nil {
			return err
		}
		batch, err = repos.BatchRepo().FindByID(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Stock loss recorded",
		zap.String("batch_id", batchID.String()),
		zap.String("location", string(loc)),
		zap.Int("quantity", qty),
		zap.String("reason", reason),
	)
	return batch, nil
}

// Reconcile compares a product's stock aggregate with its batch counters
func (l *Ledger) Reconcile(ctx context.Context, productID uuid.UUID) (*inventory.Drift, error) {
	var drift inventory.Drift
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		stock, err := repos.StockRepo().FindByProduct(ctx, productID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			stock = inventory.NewInventoryStock(productID, l.clock.Now())
		}
		totals, err := repos.BatchRepo().SumByProduct(ctx, productID)
		if err != nil {
			return err
		}
		drift = stock.CompareWithBatches(totals)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !drift.InSync() {
		l.logger.Warn("Stock aggregate drifted from batch counters",
			zap.String("product_id", productID.String()),
			zap.Int("warehouse_stock", drift.WarehouseStock),
			zap.Int("batch_warehouse", drift.BatchWarehouse),
			zap.Int("shelf_stock", drift.ShelfStock),
			zap.Int("batch_shelf", drift.BatchShelf),
		)
	}
	return &drift, nil
}

func ensureStock(ctx context.Context, repo inventory.StockRepository, productID uuid.UUID, now time.Time) error {
	_, err := repo.FindByProduct(ctx, productID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return repo.Create(ctx, inventory.NewInventoryStock(productID, now))
}

func applyDeltas(ctx context.Context, repo inventory.StockRepository, deltas map[uuid.UUID]inventory.StockDelta) error {
	for productID, d := range deltas {
		if d.IsZero() {
			continue
		}
		if err := repo.ApplyDelta(ctx, productID, d); err != nil {
			return err
		}
	}
	return nil
}
