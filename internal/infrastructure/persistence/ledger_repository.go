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

// GormCommitRepository implements inventory.CommitRepository using GORM.
// The unique index on order_id is what makes a second commit of the same
// order fail even when two requests race past the idempotency read.
type GormCommitRepository struct {
	db *gorm.DB
}

// NewGormCommitRepository creates a new GormCommitRepository
func NewGormCommitRepository(db *gorm.DB) *GormCommitRepository {
	return &GormCommitRepository{db: db}
}

// FindByOrder finds the commit marker of an order
func (r *GormCommitRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*inventory.CommitRecord, error) {
	var model models.CommitRecordModel
	if err := r.db.WithContext(ctx).First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("commit record", orderID)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a marker; a duplicate order is a conflict
func (r *GormCommitRepository) Create(ctx context.Context, record *inventory.CommitRecord) error {
	if err := r.db.WithContext(ctx).Create(models.CommitRecordModelFromDomain(record)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("order %s is already committed", record.OrderID)
		}
		return err
	}
	return nil
}

// MarkRolledBack stamps the marker unless it is already rolled back
func (r *GormCommitRepository) MarkRolledBack(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.CommitRecordModel{}).
		Where("order_id = ? AND rolled_back_at IS NULL", orderID).
		Update("rolled_back_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("order %s has no active commit", orderID)
	}
	return nil
}

// GormMovementRepository implements inventory.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append records movements in one batch insert
func (r *GormMovementRepository) Append(ctx context.Context, movements ...inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	rows := make([]models.StockMovementModel, len(movements))
	for i, m := range movements {
		rows[i] = models.StockMovementModelFromDomain(m)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// FindByOrder lists the movements of one kind caused by an order
func (r *GormMovementRepository) FindByOrder(ctx context.Context, orderID uuid.UUID, kind inventory.MovementKind) ([]inventory.StockMovement, error) {
	var found []models.StockMovementModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ?", orderID, string(kind)).
		Order("created_at ASC, id ASC").
		Find(&found).Error; err != nil {
		return nil, err
	}
	return movementsToDomain(found), nil
}

// FindByBatch lists the movements of a batch, newest first
func (r *GormMovementRepository) FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]inventory.StockMovement, error) {
	var found []models.StockMovementModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&found).Error; err != nil {
		return nil, err
	}
	return movementsToDomain(found), nil
}

func movementsToDomain(found []models.StockMovementModel) []inventory.StockMovement {
	out := make([]inventory.StockMovement, len(found))
	for i := range found {
		out[i] = found[i].ToDomain()
	}
	return out
}

var (
	_ inventory.CommitRepository   = (*GormCommitRepository)(nil)
	_ inventory.MovementRepository = (*GormMovementRepository)(nil)
)
