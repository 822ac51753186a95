package memory

import (
	"context"
	"sort"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchRepository implements inventory.BatchRepository in memory
type BatchRepository struct {
	store *Store
	tx    *state
}

// FindByID finds a batch by ID
func (r *BatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var out *inventory.Batch
	err := r.store.view(r.tx, func(st *state) error {
		b, ok := st.batches[id]
		if !ok {
			return shared.NewNotFoundError("batch", id)
		}
		out = &b
		return nil
	})
	return out, err
}

// FindByIDs finds the batches that exist among ids
func (r *BatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	var out []inventory.Batch
	err := r.store.view(r.tx, func(st *state) error {
		for _, id := range ids {
			if b, ok := st.batches[id]; ok {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

// FindByProduct lists a product's batches in FEFO order
func (r *BatchRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]inventory.Batch, error) {
	var all []inventory.Batch
	err := r.store.view(r.tx, func(st *state) error {
		all = r.collect(st, func(b *inventory.Batch) bool { return b.ProductID == productID })
		return nil
	})
	if err != nil {
		return nil, err
	}
	inventory.SortFEFO(all)
	return page(all, filter), nil
}

// FindAllocatable lists active unexpired batches with stock at loc in FEFO order
func (r *BatchRepository) FindAllocatable(ctx context.Context, productID uuid.UUID, loc inventory.StockLocation, now time.Time) ([]inventory.Batch, error) {
	var out []inventory.Batch
	err := r.store.view(r.tx, func(st *state) error {
		out = r.collect(st, func(b *inventory.Batch) bool {
			return b.ProductID == productID && b.IsAllocatable(loc, now)
		})
		return nil
	})
	inventory.SortFEFO(out)
	return out, err
}

// FindExpirable lists active batches whose expiry date is not after now
func (r *BatchRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]inventory.Batch, error) {
	var out []inventory.Batch
	err := r.store.view(r.tx, func(st *state) error {
		out = r.collect(st, func(b *inventory.Batch) bool {
			return b.Status == inventory.BatchStatusActive && b.IsExpiredAt(now)
		})
		return nil
	})
	inventory.SortFEFO(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Create inserts a batch; batch numbers are unique per product
func (r *BatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	return r.store.view(r.tx, func(st *state) error {
		if _, ok := st.batches[batch.ID]; ok {
			return shared.NewConflictError("batch %s already exists", batch.ID)
		}
		for _, b := range st.batches {
			if b.ProductID == batch.ProductID && b.BatchNumber == batch.BatchNumber {
				return shared.NewConflictError("batch number %s already exists for product", batch.BatchNumber)
			}
		}
		st.batches[batch.ID] = *batch
		return nil
	})
}

// Sell decrements loc and increments sold when the batch holds qty
func (r *BatchRepository) Sell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return r.update(id, func(b *inventory.Batch, now time.Time) error {
		return b.Sell(loc, qty, now)
	})
}

// Unsell reverses a sale
func (r *BatchRepository) Unsell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return r.update(id, func(b *inventory.Batch, now time.Time) error {
		return b.Unsell(loc, qty, now)
	})
}

// MoveToShelf transfers warehouse stock to the shelf
func (r *BatchRepository) MoveToShelf(ctx context.Context, id uuid.UUID, qty int) error {
	return r.update(id, func(b *inventory.Batch, now time.Time) error {
		return b.MoveToShelf(qty, now)
	})
}

// Lose writes off stock at loc
func (r *BatchRepository) Lose(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	return r.update(id, func(b *inventory.Batch, now time.Time) error {
		return b.Lose(loc, qty, now)
	})
}

// Expire marks an active batch expired
func (r *BatchRepository) Expire(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(b *inventory.Batch, now time.Time) error {
		return b.Expire(now)
	})
}

// SumByProduct totals a product's location counters
func (r *BatchRepository) SumByProduct(ctx context.Context, productID uuid.UUID) (inventory.BatchTotals, error) {
	var t inventory.BatchTotals
	err := r.store.view(r.tx, func(st *state) error {
		t = inventory.SumBatches(r.collect(st, func(b *inventory.Batch) bool { return b.ProductID == productID }))
		return nil
	})
	return t, err
}

func (r *BatchRepository) collect(st *state, keep func(b *inventory.Batch) bool) []inventory.Batch {
	var out []inventory.Batch
	for _, b := range st.batches {
		if keep(&b) {
			out = append(out, b)
		}
	}
	return out
}

// update applies fn to a copy and stores it only when fn succeeds
func (r *BatchRepository) update(id uuid.UUID, fn func(b *inventory.Batch, now time.Time) error) error {
	return r.store.view(r.tx, func(st *state) error {
		b, ok := st.batches[id]
		if !ok {
			return shared.NewConflictError("batch %s not found", id)
		}
		if err := fn(&b, r.store.now()); err != nil {
			return err
		}
		st.batches[id] = b
		return nil
	})
}

// StockRepository implements inventory.StockRepository in memory
type StockRepository struct {
	store *Store
	tx    *state
}

// FindByProduct finds a product's stock aggregate
func (r *StockRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*inventory.InventoryStock, error) {
	var out *inventory.InventoryStock
	err := r.store.view(r.tx, func(st *state) error {
		s, ok := st.stocks[productID]
		if !ok {
			return shared.NewNotFoundError("inventory stock", productID)
		}
		out = &s
		return nil
	})
	return out, err
}

// Create inserts an aggregate
func (r *StockRepository) Create(ctx context.Context, stock *inventory.InventoryStock) error {
	return r.store.view(r.tx, func(st *state) error {
		if _, ok := st.stocks[stock.ProductID]; ok {
			return shared.NewConflictError("stock for product %s already exists", stock.ProductID)
		}
		st.stocks[stock.ProductID] = *stock
		return nil
	})
}

// ApplyDelta changes the aggregate counters unless one would go negative
func (r *StockRepository) ApplyDelta(ctx context.Context, productID uuid.UUID, d inventory.StockDelta) error {
	return r.store.view(r.tx, func(st *state) error {
		s, ok := st.stocks[productID]
		if !ok {
			return shared.NewConflictError("stock for product %s not found", productID)
		}
		if !s.CanApply(d) {
			return shared.NewConflictError("stock for product %s cannot apply warehouse %+d shelf %+d",
				productID, d.Warehouse, d.Shelf)
		}
		s.Apply(d, r.store.now())
		st.stocks[productID] = s
		return nil
	})
}

// CommitRepository implements inventory.CommitRepository in memory
type CommitRepository struct {
	store *Store
	tx    *state
}

// FindByOrder finds the commit marker of an order
func (r *CommitRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*inventory.CommitRecord, error) {
	var out *inventory.CommitRecord
	err := r.store.view(r.tx, func(st *state) error {
		c, ok := st.commits[orderID]
		if !ok {
			return shared.NewNotFoundError("commit record", orderID)
		}
		out = &c
		return nil
	})
	return out, err
}

// Create inserts a marker, failing when the order already has one
func (r *CommitRepository) Create(ctx context.Context, record *inventory.CommitRecord) error {
	return r.store.view(r.tx, func(st *state) error {
		if _, ok := st.commits[record.OrderID]; ok {
			return shared.NewConflictError("order %s is already committed", record.OrderID)
		}
		st.commits[record.OrderID] = *record
		return nil
	})
}

// MarkRolledBack stamps a marker that has not been rolled back
func (r *CommitRepository) MarkRolledBack(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.store.view(r.tx, func(st *state) error {
		c, ok := st.commits[orderID]
		if !ok || c.IsRolledBack() {
			return shared.NewConflictError("order %s has no active commit", orderID)
		}
		c.RolledBackAt = &at
		st.commits[orderID] = c
		return nil
	})
}

// MovementRepository implements inventory.MovementRepository in memory
type MovementRepository struct {
	store *Store
	tx    *state
}

// Append records movements
func (r *MovementRepository) Append(ctx context.Context, movements ...inventory.StockMovement) error {
	return r.store.view(r.tx, func(st *state) error {
		st.movements = append(st.movements, movements...)
		return nil
	})
}

// FindByOrder lists an order's movements of one kind in journal order
func (r *MovementRepository) FindByOrder(ctx context.Context, orderID uuid.UUID, kind inventory.MovementKind) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	err := r.store.view(r.tx, func(st *state) error {
		for _, m := range st.movements {
			if m.Kind == kind && m.OrderID != nil && *m.OrderID == orderID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

// FindByBatch lists a batch's movements newest first
func (r *MovementRepository) FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	err := r.store.view(r.tx, func(st *state) error {
		for i := len(st.movements) - 1; i >= 0; i-- {
			if st.movements[i].BatchID == batchID {
				out = append(out, st.movements[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter), nil
}

func page[T any](items []T, filter shared.Filter) []T {
	offset := filter.Offset()
	if offset >= len(items) {
		return nil
	}
	end := min(offset+filter.Limit(), len(items))
	return items[offset:end]
}

var (
	_ inventory.BatchRepository    = (*BatchRepository)(nil)
	_ inventory.StockRepository    = (*StockRepository)(nil)
	_ inventory.CommitRepository   = (*CommitRepository)(nil)
	_ inventory.MovementRepository = (*MovementRepository)(nil)
)
