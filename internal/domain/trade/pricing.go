package trade

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineAllocation records which batch served part of a line and at what price.
// EffectivePackPrice is the discounted price of one pack of the line's
// selected unit, so a share is worth AllocatedBaseQty * EffectivePackPrice / ratio.
type LineAllocation struct {
	BatchID            uuid.UUID       `json:"batch_id"`
	AllocatedBaseQty   int             `json:"allocated_base_qty"`
	EffectivePackPrice decimal.Decimal `json:"effective_pack_price"`
}

// OrderLine is a priced line of an order
type OrderLine struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	RequestedQty      int
	SelectedUnit      string
	UnitRatio         int
	ListPrice         decimal.Decimal
	Allocations       []LineAllocation
	LineTotal         decimal.Decimal
	OriginalLineTotal decimal.Decimal
	LineDiscount      decimal.Decimal
}

// BaseQuantity returns the line quantity in base units
func (l OrderLine) BaseQuantity() int {
	return l.RequestedQty * l.UnitRatio
}

// LineInput is everything needed to price one line
type LineInput struct {
	ProductID    uuid.UUID
	RequestedQty int
	Unit         string
	Ratio        int
	ListPrice    decimal.Decimal
	Allocations  []LineAllocation
}

// PriceLine computes the line amounts from its batch allocations.
// lineTotal = Σ(batchQty × effectivePrice) / ratio and originalLineTotal = listPrice × qty,
// each rounded once; lineDiscount is their difference.
func PriceLine(in LineInput) (OrderLine, error) {
	if in.ProductID == uuid.Nil {
		return OrderLine{}, shared.NewValidationError("Product ID is required")
	}
	if in.RequestedQty <= 0 {
		return OrderLine{}, shared.NewValidationError("Quantity must be positive")
	}
	if in.Ratio < 1 {
		return OrderLine{}, shared.NewValidationError("Unit ratio must be at least 1")
	}

	allocated := 0
	sum := decimal.Zero
	allocs := make([]LineAllocation, 0, len(in.Allocations))
	for _, a := range in.Allocations {
		allocated += a.AllocatedBaseQty
		sum = sum.Add(decimal.NewFromInt(int64(a.AllocatedBaseQty)).Mul(a.EffectivePackPrice))
		allocs = append(allocs, LineAllocation{
			BatchID:            a.BatchID,
			AllocatedBaseQty:   a.AllocatedBaseQty,
			EffectivePackPrice: valueobject.RoundMoney(a.EffectivePackPrice),
		})
	}
	if allocated != in.RequestedQty*in.Ratio {
		return OrderLine{}, shared.NewInternalError("allocation does not cover the requested quantity")
	}

	lineTotal := valueobject.RoundMoney(sum.Div(decimal.NewFromInt(int64(in.Ratio))))
	original := valueobject.RoundMoney(in.ListPrice.Mul(decimal.NewFromInt(int64(in.RequestedQty))))

	return OrderLine{
		ID:                uuid.New(),
		ProductID:         in.ProductID,
		RequestedQty:      in.RequestedQty,
		SelectedUnit:      in.Unit,
		UnitRatio:         in.Ratio,
		ListPrice:         in.ListPrice,
		Allocations:       allocs,
		LineTotal:         lineTotal,
		OriginalLineTotal: original,
		LineDiscount:      original.Sub(lineTotal),
	}, nil
}

// Totals are the order-level amounts
type Totals struct {
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalAmount    decimal.Decimal
}

// ValidateTaxRate checks the rate is within [0, 1)
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return shared.NewValidationError("Tax rate must be in [0, 1)")
	}
	return nil
}

// ComputeTotals sums priced lines into order totals.
// finalAmount is derived from the stored components so it equals
// totalAmount - discountAmount + taxAmount exactly.
func ComputeTotals(lines []OrderLine, taxRate decimal.Decimal) Totals {
	total := decimal.Zero
	discount := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.OriginalLineTotal)
		discount = discount.Add(l.LineDiscount)
	}
	tax := valueobject.RoundMoney(total.Sub(discount).Mul(taxRate))
	return Totals{
		TotalAmount:    total,
		DiscountAmount: discount,
		TaxRate:        taxRate,
		TaxAmount:      tax,
		FinalAmount:    total.Sub(discount).Add(tax),
	}
}

// Pricing is a fully priced set of lines
type Pricing struct {
	Lines []OrderLine
	Totals
}

// NewPricing validates the tax rate and computes totals
func NewPricing(lines []OrderLine, taxRate decimal.Decimal) (Pricing, error) {
	if len(lines) == 0 {
		return Pricing{}, shared.NewValidationError("Order must have at least one line")
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Pricing{}, err
	}
	return Pricing{Lines: lines, Totals: ComputeTotals(lines, taxRate)}, nil
}

// AmountsBalanced checks finalAmount against its components within one cent
func (t Totals) AmountsBalanced() bool {
	return valueobject.WithinEpsilon(t.FinalAmount, t.TotalAmount.Sub(t.DiscountAmount).Add(t.TaxAmount))
}
