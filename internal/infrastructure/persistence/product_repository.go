package persistence

import (
	"context"
	"errors"

	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) withTables(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("ratio ASC") }).
		Preload("DiscountRules", func(db *gorm.DB) *gorm.DB { return db.Order("days_before_expiry ASC") })
}

// FindByID finds a product with its units and discount rules
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.withTables(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("product", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds the products that exist among ids
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var found []models.ProductModel
	if err := r.withTables(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	products := make([]catalog.Product, len(found))
	for i := range found {
		products[i] = *found[i].ToDomain()
	}
	return products, nil
}

// Save upserts a product and replaces its unit and discount tables
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductUnitModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ExpiryDiscountRuleModel{}).Error; err != nil {
			return err
		}
		if len(model.Units) > 0 {
			if err := tx.Create(&model.Units).Error; err != nil {
				return err
			}
		}
		if len(model.DiscountRules) > 0 {
			if err := tx.Create(&model.DiscountRules).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GormSupplierRepository implements catalog.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// ExistsByID reports whether the supplier exists
func (r *GormSupplierRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure the GORM catalog repositories implement the domain interfaces
var (
	_ catalog.ProductRepository  = (*GormProductRepository)(nil)
	_ catalog.SupplierRepository = (*GormSupplierRepository)(nil)
)
