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

// GormStockRepository implements inventory.StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// FindByProduct finds the stock aggregate of a product
func (r *GormStockRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*inventory.InventoryStock, error) {
	var model models.InventoryStockModel
	if err := r.db.WithContext(ctx).First(&model, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("inventory stock", productID)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new aggregate
func (r *GormStockRepository) Create(ctx context.Context, stock *inventory.InventoryStock) error {
	if err := r.db.WithContext(ctx).Create(models.InventoryStockModelFromDomain(stock)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("stock for product %s already exists", stock.ProductID)
		}
		return err
	}
	return nil
}

// ApplyDelta changes the counters in one guarded UPDATE. When either counter
// would go negative no row matches and a conflict is returned.
func (r *GormStockRepository) ApplyDelta(ctx context.Context, productID uuid.UUID, d inventory.StockDelta) error {
	if d.IsZero() {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.InventoryStockModel{}).
		Where("product_id = ? AND warehouse_stock + ? >= 0 AND shelf_stock + ? >= 0", productID, d.Warehouse, d.Shelf).
		Updates(map[string]any{
			"warehouse_stock": gorm.Expr("warehouse_stock + ?", d.Warehouse),
			"shelf_stock":     gorm.Expr("shelf_stock + ?", d.Shelf),
			"total_stock":     gorm.Expr("total_stock + ?", d.Warehouse+d.Shelf),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("stock for product %s cannot apply warehouse %+d shelf %+d",
			productID, d.Warehouse, d.Shelf)
	}
	return nil
}

// Ensure GormStockRepository implements inventory.StockRepository
var _ inventory.StockRepository = (*GormStockRepository)(nil)
