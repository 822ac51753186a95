package models

import (
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate root.
type ProductModel struct {
	AggregateModel
	Code          string                    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string                    `gorm:"type:varchar(200);not null"`
	Units         []ProductUnitModel        `gorm:"foreignKey:ProductID;references:ID"`
	DiscountRules []ExpiryDiscountRuleModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Units:             make([]catalog.ProductUnit, len(m.Units)),
		DiscountRules:     make([]catalog.ExpiryDiscountRule, len(m.DiscountRules)),
	}
	for i, u := range m.Units {
		p.Units[i] = u.ToDomain()
	}
	for i, r := range m.DiscountRules {
		p.DiscountRules[i] = r.ToDomain()
	}
	return p
}

// ProductModelFromDomain creates a persistence model from a domain Product.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{Code: p.Code, Name: p.Name}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Units = make([]ProductUnitModel, len(p.Units))
	for i, u := range p.Units {
		m.Units[i] = ProductUnitModel{ProductID: p.ID, Name: u.Name, Ratio: u.Ratio, ListPrice: u.ListPrice}
	}
	m.DiscountRules = make([]ExpiryDiscountRuleModel, len(p.DiscountRules))
	for i, r := range p.DiscountRules {
		m.DiscountRules[i] = ExpiryDiscountRuleModel{
			ProductID:        p.ID,
			DaysBeforeExpiry: r.DaysBeforeExpiry,
			Kind:             string(r.Kind),
			Value:            r.Value,
		}
	}
	return m
}

// ProductUnitModel is one sellable pack of a product.
type ProductUnitModel struct {
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name      string          `gorm:"type:varchar(50);primaryKey"`
	Ratio     int             `gorm:"not null"`
	ListPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ProductUnitModel) TableName() string {
	return "product_units"
}

// ToDomain converts the persistence model to a domain ProductUnit.
func (m ProductUnitModel) ToDomain() catalog.ProductUnit {
	return catalog.ProductUnit{Name: m.Name, Ratio: m.Ratio, ListPrice: m.ListPrice}
}

// ExpiryDiscountRuleModel is one row of a product's expiry discount table.
type ExpiryDiscountRuleModel struct {
	ProductID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DaysBeforeExpiry int             `gorm:"primaryKey"`
	Kind             string          `gorm:"type:varchar(20);not null"`
	Value            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ExpiryDiscountRuleModel) TableName() string {
	return "expiry_discount_rules"
}

// ToDomain converts the persistence model to a domain ExpiryDiscountRule.
func (m ExpiryDiscountRuleModel) ToDomain() catalog.ExpiryDiscountRule {
	return catalog.ExpiryDiscountRule{
		DaysBeforeExpiry: m.DaysBeforeExpiry,
		Kind:             catalog.DiscountKind(m.Kind),
		Value:            m.Value,
	}
}

// SupplierModel is the minimal supplier row batches reference.
type SupplierModel struct {
	BaseModel
	Code string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}
