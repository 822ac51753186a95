package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fefoOrder is the allocation order: earliest expiry, then oldest receipt, then ID
const fefoOrder = "expiry_date ASC, created_at ASC, id ASC"

// GormBatchRepository implements inventory.BatchRepository using GORM.
// Counter changes are single conditional UPDATE statements so concurrent
// checkouts can never drive a counter negative.
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("batch", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple batches by their IDs
func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]inventory.Batch, error) {
	if len(ids) == 0 {
		return []inventory.Batch{}, nil
	}
	var found []models.BatchModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order(fefoOrder).Find(&found).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(found), nil
}

// FindByProduct lists all batches of a product
func (r *GormBatchRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]inventory.Batch, error) {
	var found []models.BatchModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.BatchModel{}).Where("product_id = ?", productID),
		filter,
	)
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(found), nil
}

// FindAllocatable finds active unexpired batches with stock at loc in FEFO order
func (r *GormBatchRepository) FindAllocatable(ctx context.Context, productID uuid.UUID, loc inventory.StockLocation, now time.Time) ([]inventory.Batch, error) {
	column, err := locationColumn(loc)
	if err != nil {
		return nil, err
	}
	var found []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, string(inventory.BatchStatusActive)).
		Where(column+" > 0").
		Where("expiry_date > ?", now).
		Order(fefoOrder).
		Find(&found).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(found), nil
}

// FindExpirable finds active batches whose expiry date is not after now
func (r *GormBatchRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]inventory.Batch, error) {
	var found []models.BatchModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date <= ?", string(inventory.BatchStatusActive), now).
		Order(fefoOrder)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(found), nil
}

// Create inserts a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	if err := r.db.WithContext(ctx).Create(models.BatchModelFromDomain(batch)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("batch number %s already exists for product", batch.BatchNumber)
		}
		return err
	}
	return nil
}

// Sell decrements loc and increments sold, guarded by stock on hand and active status
func (r *GormBatchRepository) Sell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	column, err := locationColumn(loc)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return shared.NewValidationError("sell quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status = ? AND "+column+" >= ?", id, string(inventory.BatchStatusActive), qty).
		Updates(map[string]any{
			column:       gorm.Expr(column+" - ?", qty),
			"sold_qty":   gorm.Expr("sold_qty + ?", qty),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("batch %s cannot sell %d from %s", id, qty, loc)
	}
	return r.markSoldOut(ctx, id)
}

// Unsell reverses Sell, reactivating a sold_out batch
func (r *GormBatchRepository) Unsell(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	column, err := locationColumn(loc)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return shared.NewValidationError("unsell quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND sold_qty >= ?", id, qty).
		Updates(map[string]any{
			column:       gorm.Expr(column+" + ?", qty),
			"sold_qty":   gorm.Expr("sold_qty - ?", qty),
			"status":     gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", string(inventory.BatchStatusSoldOut), string(inventory.BatchStatusActive)),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("batch %s cannot return %d sold units", id, qty)
	}
	return nil
}

// MoveToShelf transfers qty from warehouse to shelf, guarded by warehouse stock
func (r *GormBatchRepository) MoveToShelf(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return shared.NewValidationError("transfer quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status = ? AND remaining_warehouse_qty >= ?", id, string(inventory.BatchStatusActive), qty).
		Updates(map[string]any{
			"remaining_warehouse_qty": gorm.Expr("remaining_warehouse_qty - ?", qty),
			"shelf_qty":               gorm.Expr("shelf_qty + ?", qty),
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("batch %s cannot move %d to shelf", id, qty)
	}
	return nil
}

// Lose decrements loc and increments lost, guarded by stock on hand
func (r *GormBatchRepository) Lose(ctx context.Context, id uuid.UUID, loc inventory.StockLocation, qty int) error {
	column, err := locationColumn(loc)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return shared.NewValidationError("loss quantity must be positive")
	}
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status = ? AND "+column+" >= ?", id, string(inventory.BatchStatusActive), qty).
		Updates(map[string]any{
			column:       gorm.Expr(column+" - ?", qty),
			"lost_qty":   gorm.Expr("lost_qty + ?", qty),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("batch %s cannot write off %d from %s", id, qty, loc)
	}
	return r.markSoldOut(ctx, id)
}

// Expire moves an active batch to expired
func (r *GormBatchRepository) Expire(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status = ?", id, string(inventory.BatchStatusActive)).
		Updates(map[string]any{
			"status":     string(inventory.BatchStatusExpired),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewStateError("batch %s is not active", id)
	}
	return nil
}

// SumByProduct totals the location counters of a product's batches
func (r *GormBatchRepository) SumByProduct(ctx context.Context, productID uuid.UUID) (inventory.BatchTotals, error) {
	var row struct {
		Warehouse int
		Shelf     int
	}
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Select("COALESCE(SUM(remaining_warehouse_qty), 0) AS warehouse, COALESCE(SUM(shelf_qty), 0) AS shelf").
		Where("product_id = ?", productID).
		Scan(&row).Error; err != nil {
		return inventory.BatchTotals{}, err
	}
	return inventory.BatchTotals{Warehouse: row.Warehouse, Shelf: row.Shelf}, nil
}

// markSoldOut flips an active batch with nothing left on hand to sold_out
func (r *GormBatchRepository) markSoldOut(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND status = ? AND remaining_warehouse_qty = 0 AND shelf_qty = 0", id, string(inventory.BatchStatusActive)).
		Update("status", string(inventory.BatchStatusSoldOut)).Error
}

// applyFilter applies filter options to the query
func (r *GormBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = query.Offset(filter.Offset()).Limit(filter.Limit())

	if filter.OrderBy != "" {
		query = query.Order(batchSortColumns.orderClause(filter, "expiry_date"))
	} else {
		query = query.Order(fefoOrder)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("remaining_warehouse_qty + shelf_qty > 0")
			}
		}
	}
	return query
}

// locationColumn maps a stock location to its batch counter column
func locationColumn(loc inventory.StockLocation) (string, error) {
	switch loc {
	case inventory.LocationWarehouse:
		return "remaining_warehouse_qty", nil
	case inventory.LocationShelf:
		return "shelf_qty", nil
	}
	return "", shared.NewValidationError("unknown stock location %q", loc)
}

func batchesToDomain(found []models.BatchModel) []inventory.Batch {
	batches := make([]inventory.Batch, len(found))
	for i := range found {
		batches[i] = *found[i].ToDomain()
	}
	return batches
}

// Ensure GormBatchRepository implements inventory.BatchRepository
var _ inventory.BatchRepository = (*GormBatchRepository)(nil)
