package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	OrderNumber        string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Kind               string           `gorm:"type:varchar(20);not null;index"`
	Status             string           `gorm:"type:varchar(20);not null;index:idx_orders_status_expiration,priority:1"`
	PaymentStatus      string           `gorm:"type:varchar(20);not null"`
	PaymentMethod      string           `gorm:"type:varchar(20);not null"`
	CustomerName       string           `gorm:"type:varchar(200)"`
	Note               string           `gorm:"type:text"`
	TotalAmount        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	DiscountAmount     decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	TaxRate            decimal.Decimal  `gorm:"type:decimal(8,4);not null"`
	TaxAmount          decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	FinalAmount        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	DepositAmount      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	ExpirationDate     *time.Time       `gorm:"index:idx_orders_status_expiration,priority:2"`
	InventoryCommitted bool             `gorm:"not null;default:false"`
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancelReason       string           `gorm:"type:varchar(500)"`
	Lines              []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *trade.Order {
	o := &trade.Order{
		BaseAggregateRoot:  m.ToDomainAggregateRoot(),
		OrderNumber:        m.OrderNumber,
		Kind:               trade.OrderKind(m.Kind),
		Status:             trade.OrderStatus(m.Status),
		PaymentStatus:      trade.PaymentStatus(m.PaymentStatus),
		PaymentMethod:      trade.PaymentMethod(m.PaymentMethod),
		CustomerName:       m.CustomerName,
		Note:               m.Note,
		Lines:              make([]trade.OrderLine, len(m.Lines)),
		TotalAmount:        m.TotalAmount,
		DiscountAmount:     m.DiscountAmount,
		TaxRate:            m.TaxRate,
		TaxAmount:          m.TaxAmount,
		FinalAmount:        m.FinalAmount,
		DepositAmount:      m.DepositAmount,
		ExpirationDate:     m.ExpirationDate,
		InventoryCommitted: m.InventoryCommitted,
		CompletedAt:        m.CompletedAt,
		CancelledAt:        m.CancelledAt,
		CancelReason:       m.CancelReason,
	}
	for i := range m.Lines {
		o.Lines[i] = m.Lines[i].ToDomain()
	}
	return o
}

// OrderModelFromDomain creates a persistence model from a domain Order.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{
		OrderNumber:        o.OrderNumber,
		Kind:               string(o.Kind),
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PaymentMethod:      string(o.PaymentMethod),
		CustomerName:       o.CustomerName,
		Note:               o.Note,
		TotalAmount:        o.TotalAmount,
		DiscountAmount:     o.DiscountAmount,
		TaxRate:            o.TaxRate,
		TaxAmount:          o.TaxAmount,
		FinalAmount:        o.FinalAmount,
		DepositAmount:      o.DepositAmount,
		ExpirationDate:     o.ExpirationDate,
		InventoryCommitted: o.InventoryCommitted,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		CancelReason:       o.CancelReason,
		Lines:              make([]OrderLineModel, len(o.Lines)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i, l := range o.Lines {
		m.Lines[i] = OrderLineModelFromDomain(o.ID, i, l)
	}
	return m
}

// UpdateColumns returns the mutable columns written by an optimistic save
func (m *OrderModel) UpdateColumns() map[string]any {
	return map[string]any{
		"status":              m.Status,
		"payment_status":      m.PaymentStatus,
		"customer_name":       m.CustomerName,
		"note":                m.Note,
		"total_amount":        m.TotalAmount,
		"discount_amount":     m.DiscountAmount,
		"tax_rate":            m.TaxRate,
		"tax_amount":          m.TaxAmount,
		"final_amount":        m.FinalAmount,
		"deposit_amount":      m.DepositAmount,
		"expiration_date":     m.ExpirationDate,
		"inventory_committed": m.InventoryCommitted,
		"completed_at":        m.CompletedAt,
		"cancelled_at":        m.CancelledAt,
		"cancel_reason":       m.CancelReason,
		"version":             m.Version,
		"updated_at":          m.UpdatedAt,
	}
}

// OrderLineModel is a priced line of an order.
type OrderLineModel struct {
	ID                uuid.UUID             `gorm:"type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"type:uuid;not null;index"`
	Position          int                   `gorm:"not null"`
	ProductID         uuid.UUID             `gorm:"type:uuid;not null;index"`
	RequestedQty      int                   `gorm:"not null"`
	SelectedUnit      string                `gorm:"type:varchar(50);not null"`
	UnitRatio         int                   `gorm:"not null"`
	ListPrice         decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	LineTotal         decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	OriginalLineTotal decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	LineDiscount      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Allocations       []LineAllocationModel `gorm:"foreignKey:LineID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a domain OrderLine.
func (m *OrderLineModel) ToDomain() trade.OrderLine {
	l := trade.OrderLine{
		ID:                m.ID,
		ProductID:         m.ProductID,
		RequestedQty:      m.RequestedQty,
		SelectedUnit:      m.SelectedUnit,
		UnitRatio:         m.UnitRatio,
		ListPrice:         m.ListPrice,
		Allocations:       make([]trade.LineAllocation, len(m.Allocations)),
		LineTotal:         m.LineTotal,
		OriginalLineTotal: m.OriginalLineTotal,
		LineDiscount:      m.LineDiscount,
	}
	for i, a := range m.Allocations {
		l.Allocations[i] = trade.LineAllocation{
			BatchID:            a.BatchID,
			AllocatedBaseQty:   a.AllocatedBaseQty,
			EffectivePackPrice: a.EffectivePackPrice,
		}
	}
	return l
}

// OrderLineModelFromDomain creates a persistence model from a domain OrderLine.
func OrderLineModelFromDomain(orderID uuid.UUID, position int, l trade.OrderLine) OrderLineModel {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	m := OrderLineModel{
		ID:                id,
		OrderID:           orderID,
		Position:          position,
		ProductID:         l.ProductID,
		RequestedQty:      l.RequestedQty,
		SelectedUnit:      l.SelectedUnit,
		UnitRatio:         l.UnitRatio,
		ListPrice:         l.ListPrice,
		LineTotal:         l.LineTotal,
		OriginalLineTotal: l.OriginalLineTotal,
		LineDiscount:      l.LineDiscount,
		Allocations:       make([]LineAllocationModel, len(l.Allocations)),
	}
	for i, a := range l.Allocations {
		m.Allocations[i] = LineAllocationModel{
			LineID:             id,
			Position:           i,
			BatchID:            a.BatchID,
			AllocatedBaseQty:   a.AllocatedBaseQty,
			EffectivePackPrice: a.EffectivePackPrice,
		}
	}
	return m
}

// LineAllocationModel records one batch share of an order line.
type LineAllocationModel struct {
	LineID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position           int             `gorm:"primaryKey"`
	BatchID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	AllocatedBaseQty   int             `gorm:"not null"`
	EffectivePackPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (LineAllocationModel) TableName() string {
	return "order_line_allocations"
}

// AllModels lists every model in migration order
func AllModels() []any {
	return []any{
		&ProductModel{},
		&ProductUnitModel{},
		&ExpiryDiscountRuleModel{},
		&SupplierModel{},
		&BatchModel{},
		&InventoryStockModel{},
		&CommitRecordModel{},
		&StockMovementModel{},
		&OrderModel{},
		&OrderLineModel{},
		&LineAllocationModel{},
	}
}
