package catalog

import (
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeProduct is the aggregate type name for products
const AggregateTypeProduct = "Product"

// Product is the catalog view the fulfillment engine consumes: the sellable
// units of a product and its expiry discount table.
type Product struct {
	shared.BaseAggregateRoot
	Code          string
	Name          string
	Units         []ProductUnit
	DiscountRules []ExpiryDiscountRule
}

// NewProduct creates a product after validating its unit and discount tables
func NewProduct(code, name string, units []ProductUnit, rules []ExpiryDiscountRule) (*Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, shared.NewValidationError("Product code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("Product code cannot exceed 50 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("Product name cannot be empty")
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(time.Now()),
		Code:              code,
		Name:              name,
	}
	if err := p.ReplaceUnits(units); err != nil {
		return nil, err
	}
	if err := p.ReplaceDiscountRules(rules); err != nil {
		return nil, err
	}
	return p, nil
}

// ReplaceUnits swaps the unit table.
// Ratios must be unique and exactly one unit must have ratio 1.
func (p *Product) ReplaceUnits(units []ProductUnit) error {
	if err := ValidateUnits(units); err != nil {
		return err
	}
	p.Units = append([]ProductUnit(nil), units...)
	p.UpdatedAt = time.Now()
	return nil
}

// ReplaceDiscountRules swaps the expiry discount table.
// DaysBeforeExpiry values must be unique.
func (p *Product) ReplaceDiscountRules(rules []ExpiryDiscountRule) error {
	if err := ValidateDiscountRules(rules); err != nil {
		return err
	}
	p.DiscountRules = append([]ExpiryDiscountRule(nil), rules...)
	p.UpdatedAt = time.Now()
	return nil
}

// BaseUnit returns the unit with ratio 1
func (p *Product) BaseUnit() (ProductUnit, bool) {
	for _, u := range p.Units {
		if u.IsBaseUnit() {
			return u, true
		}
	}
	return ProductUnit{}, false
}

// FindUnit looks a unit up by name, case-insensitively
func (p *Product) FindUnit(name string) (ProductUnit, bool) {
	name = strings.TrimSpace(name)
	for _, u := range p.Units {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return ProductUnit{}, false
}

// BaseListPrice returns the list price of one base unit
func (p *Product) BaseListPrice() decimal.Decimal {
	if u, ok := p.BaseUnit(); ok {
		return u.ListPrice
	}
	return decimal.Zero
}
