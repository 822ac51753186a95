package catalog

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductUnit is a sellable pack of a product, e.g. "box" = 10 base units.
// ListPrice is the price of one pack of this unit.
type ProductUnit struct {
	Name      string
	Ratio     int
	ListPrice decimal.Decimal
}

// NewProductUnit creates a validated product unit
func NewProductUnit(name string, ratio int, listPrice decimal.Decimal) (ProductUnit, error) {
	u := ProductUnit{Name: strings.TrimSpace(name), Ratio: ratio, ListPrice: listPrice}
	if err := u.validate(); err != nil {
		return ProductUnit{}, err
	}
	return u, nil
}

// IsBaseUnit returns true for the unit in which stock is counted
func (u ProductUnit) IsBaseUnit() bool {
	return u.Ratio == 1
}

// BaseUnitPrice returns the list price of one base unit when sold in this pack
func (u ProductUnit) BaseUnitPrice() decimal.Decimal {
	return u.ListPrice.Div(decimal.NewFromInt(int64(u.Ratio)))
}

func (u ProductUnit) validate() error {
	if u.Name == "" {
		return shared.NewValidationError("Unit name cannot be empty")
	}
	if len(u.Name) > 50 {
		return shared.NewValidationError("Unit name cannot exceed 50 characters")
	}
	if u.Ratio < 1 {
		return shared.NewValidationError("Unit %q ratio must be at least 1", u.Name)
	}
	if u.ListPrice.IsNegative() {
		return shared.NewValidationError("Unit %q list price cannot be negative", u.Name)
	}
	return nil
}

// ValidateUnits checks the unit table invariants
func ValidateUnits(units []ProductUnit) error {
	if len(units) == 0 {
		return shared.NewValidationError("Product must have at least one unit")
	}
	ratios := make(map[int]string, len(units))
	names := make(map[string]struct{}, len(units))
	baseUnits := 0
	for _, u := range units {
		if err := u.validate(); err != nil {
			return err
		}
		if other, dup := ratios[u.Ratio]; dup {
			return shared.NewValidationError("Units %q and %q share ratio %d", other, u.Name, u.Ratio)
		}
		ratios[u.Ratio] = u.Name
		key := strings.ToLower(u.Name)
		if _, dup := names[key]; dup {
			return shared.NewValidationError("Unit %q is declared twice", u.Name)
		}
		names[key] = struct{}{}
		if u.IsBaseUnit() {
			baseUnits++
		}
	}
	if baseUnits != 1 {
		return shared.NewValidationError("Product must have exactly one base unit with ratio 1")
	}
	return nil
}
