package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lines.Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds an order with its lines and allocations
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.withLines(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("order", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderNumber finds an order by its unique number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, number string) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.withLines(ctx).First(&model, "order_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("order", number)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists orders matching the filter and the total match count
func (r *GormOrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]trade.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var found []models.OrderModel
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lines.Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(orderSortColumns.orderClause(filter.Filter, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return ordersToDomain(found), total, nil
}

// FindExpiredPreorders finds pending preorders whose deadline is not after now, oldest deadline first.
// Only order headers are loaded; callers reload an order before changing it.
func (r *GormOrderRepository) FindExpiredPreorders(ctx context.Context, now time.Time, limit int) ([]trade.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("status = ? AND expiration_date IS NOT NULL AND expiration_date <= ?",
			string(trade.OrderStatusPreorderPending), now).
		Order("expiration_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var found []models.OrderModel
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	return ordersToDomain(found), nil
}

// Create inserts a new order with its lines and allocations
func (r *GormOrderRepository) Create(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return insertLines(tx, model.Lines)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewConflictError("order number %s already exists", order.OrderNumber)
	}
	if err != nil {
		return err
	}
	for i := range order.Lines {
		order.Lines[i].ID = model.Lines[i].ID
	}
	return nil
}

// SaveWithLock writes the order only if the stored version still equals
// order.Version, bumping it in the same statement. Lines are replaced.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
	model.Version = order.Version + 1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(model.UpdateColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.NewNotFoundError("order", order.ID)
			}
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				"order was modified by another process, please refresh and try again")
		}

		lineIDs := tx.Model(&models.OrderLineModel{}).Select("id").Where("order_id = ?", order.ID)
		if err := tx.Where("line_id IN (?)", lineIDs).Delete(&models.LineAllocationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderLineModel{}).Error; err != nil {
			return err
		}
		return insertLines(tx, model.Lines)
	})
	if err != nil {
		return err
	}
	order.IncrementVersion()
	for i := range order.Lines {
		order.Lines[i].ID = model.Lines[i].ID
	}
	return nil
}

// insertLines writes lines and then their allocations
func insertLines(tx *gorm.DB, lines []models.OrderLineModel) error {
	if len(lines) == 0 {
		return nil
	}
	if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
		return err
	}
	var allocations []models.LineAllocationModel
	for _, l := range lines {
		allocations = append(allocations, l.Allocations...)
	}
	if len(allocations) == 0 {
		return nil
	}
	return tx.Create(&allocations).Error
}

func ordersToDomain(found []models.OrderModel) []trade.Order {
	orders := make([]trade.Order, len(found))
	for i := range found {
		orders[i] = *found[i].ToDomain()
	}
	return orders
}

// Ensure GormOrderRepository implements trade.OrderRepository
var _ trade.OrderRepository = (*GormOrderRepository)(nil)
