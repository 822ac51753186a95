package catalog

import (
	"errors"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrUnitNotFound is returned when a requested unit is not declared on the product
var ErrUnitNotFound = errors.New("unit not found")

// UnitQuote is the result of resolving a pack unit
type UnitQuote struct {
	UnitName  string
	Ratio     int
	ListPrice decimal.Decimal
}

// BaseQuantity converts a pack quantity to base units
func (q UnitQuote) BaseQuantity(qty int) int {
	return qty * q.Ratio
}

// UnitResolver maps requested unit names to ratios and list prices.
// It is a domain service with no state.
type UnitResolver struct{}

// NewUnitResolver creates a new unit resolver
func NewUnitResolver() *UnitResolver {
	return &UnitResolver{}
}

// Resolve returns the ratio and list price of unitName on product.
// Unknown units fail with a validation error wrapping ErrUnitNotFound.
func (r *UnitResolver) Resolve(product *Product, unitName string) (UnitQuote, error) {
	if product == nil {
		return UnitQuote{}, shared.NewValidationError("Product is required")
	}
	u, ok := product.FindUnit(unitName)
	if !ok {
		return UnitQuote{}, fmt.Errorf("%w: %w", ErrUnitNotFound,
			shared.NewValidationError("Unit %q is not available for product %s", unitName, product.Code))
	}
	return UnitQuote{UnitName: u.Name, Ratio: u.Ratio, ListPrice: u.ListPrice}, nil
}
