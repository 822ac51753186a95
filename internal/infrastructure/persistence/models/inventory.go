package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for the Batch entity.
type BatchModel struct {
	BaseModel
	ProductID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_batches_fefo,priority:1;uniqueIndex:idx_batches_product_number,priority:1"`
	SupplierID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchNumber           string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_batches_product_number,priority:2"`
	ManufactureDate       time.Time       `gorm:"not null"`
	ExpiryDate            time.Time       `gorm:"not null;index:idx_batches_fefo,priority:3"`
	InitialQuantity       int             `gorm:"not null"`
	RemainingWarehouseQty int             `gorm:"not null;default:0"`
	ShelfQty              int             `gorm:"not null;default:0"`
	SoldQty               int             `gorm:"not null;default:0"`
	LostQty               int             `gorm:"not null;default:0"`
	ImportPrice           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status                string          `gorm:"type:varchar(20);not null;default:'active';index:idx_batches_fefo,priority:2"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BaseEntity:            m.BaseModel.ToDomain(),
		ProductID:             m.ProductID,
		SupplierID:            m.SupplierID,
		BatchNumber:           m.BatchNumber,
		ManufactureDate:       m.ManufactureDate,
		ExpiryDate:            m.ExpiryDate,
		InitialQuantity:       m.InitialQuantity,
		RemainingWarehouseQty: m.RemainingWarehouseQty,
		ShelfQty:              m.ShelfQty,
		SoldQty:               m.SoldQty,
		LostQty:               m.LostQty,
		ImportPrice:           m.ImportPrice,
		Status:                inventory.BatchStatus(m.Status),
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{
		ProductID:             b.ProductID,
		SupplierID:            b.SupplierID,
		BatchNumber:           b.BatchNumber,
		ManufactureDate:       b.ManufactureDate,
		ExpiryDate:            b.ExpiryDate,
		InitialQuantity:       b.InitialQuantity,
		RemainingWarehouseQty: b.RemainingWarehouseQty,
		ShelfQty:              b.ShelfQty,
		SoldQty:               b.SoldQty,
		LostQty:               b.LostQty,
		ImportPrice:           b.ImportPrice,
		Status:                string(b.Status),
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// InventoryStockModel is the per-product stock aggregate row.
type InventoryStockModel struct {
	ProductID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	WarehouseStock int       `gorm:"not null;default:0"`
	ShelfStock     int       `gorm:"not null;default:0"`
	TotalStock     int       `gorm:"not null;default:0"`
	Version        int       `gorm:"not null;default:1"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryStockModel) TableName() string {
	return "inventory_stocks"
}

// ToDomain converts the persistence model to a domain InventoryStock.
func (m *InventoryStockModel) ToDomain() *inventory.InventoryStock {
	return &inventory.InventoryStock{
		ProductID:      m.ProductID,
		WarehouseStock: m.WarehouseStock,
		ShelfStock:     m.ShelfStock,
		TotalStock:     m.TotalStock,
		Version:        m.Version,
		UpdatedAt:      m.UpdatedAt,
	}
}

// InventoryStockModelFromDomain creates a persistence model from a domain InventoryStock.
func InventoryStockModelFromDomain(s *inventory.InventoryStock) *InventoryStockModel {
	return &InventoryStockModel{
		ProductID:      s.ProductID,
		WarehouseStock: s.WarehouseStock,
		ShelfStock:     s.ShelfStock,
		TotalStock:     s.TotalStock,
		Version:        s.Version,
		UpdatedAt:      s.UpdatedAt,
	}
}

// CommitRecordModel marks an order whose allocation was applied. One row per order.
type CommitRecordModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	CommittedAt  time.Time  `gorm:"not null"`
	RolledBackAt *time.Time
}

// TableName returns the table name for GORM
func (CommitRecordModel) TableName() string {
	return "inventory_commits"
}

// ToDomain converts the persistence model to a domain CommitRecord.
func (m *CommitRecordModel) ToDomain() *inventory.CommitRecord {
	return &inventory.CommitRecord{
		ID:           m.ID,
		OrderID:      m.OrderID,
		CommittedAt:  m.CommittedAt,
		RolledBackAt: m.RolledBackAt,
	}
}

// CommitRecordModelFromDomain creates a persistence model from a domain CommitRecord.
func CommitRecordModelFromDomain(c *inventory.CommitRecord) *CommitRecordModel {
	return &CommitRecordModel{
		ID:           c.ID,
		OrderID:      c.OrderID,
		CommittedAt:  c.CommittedAt,
		RolledBackAt: c.RolledBackAt,
	}
}

// StockMovementModel is one row of the append-only movement journal.
type StockMovementModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BatchID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrderID   *uuid.UUID `gorm:"type:uuid;index"`
	Kind      string     `gorm:"type:varchar(20);not null"`
	Location  string     `gorm:"type:varchar(20);not null"`
	Quantity  int        `gorm:"not null"`
	Reason    string     `gorm:"type:varchar(500)"`
	CreatedAt time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() inventory.StockMovement {
	return inventory.StockMovement{
		ID:        m.ID,
		BatchID:   m.BatchID,
		ProductID: m.ProductID,
		OrderID:   m.OrderID,
		Kind:      inventory.MovementKind(m.Kind),
		Location:  inventory.StockLocation(m.Location),
		Quantity:  m.Quantity,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s inventory.StockMovement) StockMovementModel {
	return StockMovementModel{
		ID:        s.ID,
		BatchID:   s.BatchID,
		ProductID: s.ProductID,
		OrderID:   s.OrderID,
		Kind:      string(s.Kind),
		Location:  string(s.Location),
		Quantity:  s.Quantity,
		Reason:    s.Reason,
		CreatedAt: s.CreatedAt,
	}
}
