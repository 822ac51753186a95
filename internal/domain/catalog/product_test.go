package catalog

import (
	"testing"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnits() []ProductUnit {
	return []ProductUnit{
		{Name: "pcs", Ratio: 1, ListPrice: decimal.NewFromInt(100)},
		{Name: "box", Ratio: 10, ListPrice: decimal.NewFromInt(900)},
	}
}

func TestNewProduct(t *testing.T) {
	t.Run("creates product with valid inputs", func(t *testing.T) {
		product, err := NewProduct("sku-001", "Yogurt", testUnits(), []ExpiryDiscountRule{
			{DaysBeforeExpiry: 7, Kind: DiscountKindPercentage, Value: decimal.NewFromInt(30)},
		})
		require.NoError(t, err)

		assert.Equal(t, "SKU-001", product.Code)
		assert.Len(t, product.Units, 2)
		assert.Len(t, product.DiscountRules, 1)
		assert.Equal(t, 1, product.Version)

		base, ok := product.BaseUnit()
		require.True(t, ok)
		assert.Equal(t, "pcs", base.Name)
		assert.True(t, product.BaseListPrice().Equal(decimal.NewFromInt(100)))
	})

	t.Run("fails with empty code", func(t *testing.T) {
		_, err := NewProduct(" ", "Yogurt", testUnits(), nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("fails without units", func(t *testing.T) {
		_, err := NewProduct("SKU", "Yogurt", nil, nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestValidateUnits(t *testing.T) {
	tests := []struct {
		name    string
		units   []ProductUnit
		wantErr bool
	}{
		{"valid", testUnits(), false},
		{"no base unit", []ProductUnit{{Name: "box", Ratio: 10, ListPrice: decimal.NewFromInt(1)}}, true},
		{"duplicate ratio", []ProductUnit{
			{Name: "pcs", Ratio: 1, ListPrice: decimal.NewFromInt(1)},
			{Name: "each", Ratio: 1, ListPrice: decimal.NewFromInt(1)},
		}, true},
		{"duplicate name", []ProductUnit{
			{Name: "pcs", Ratio: 1, ListPrice: decimal.NewFromInt(1)},
			{Name: "PCS", Ratio: 6, ListPrice: decimal.NewFromInt(6)},
		}, true},
		{"zero ratio", []ProductUnit{
			{Name: "pcs", Ratio: 1, ListPrice: decimal.NewFromInt(1)},
			{Name: "bad", Ratio: 0, ListPrice: decimal.NewFromInt(1)},
		}, true},
		{"negative price", []ProductUnit{{Name: "pcs", Ratio: 1, ListPrice: decimal.NewFromInt(-1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnits(tt.units)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDiscountRules(t *testing.T) {
	t.Run("rejects duplicate days", func(t *testing.T) {
		err := ValidateDiscountRules([]ExpiryDiscountRule{
			{DaysBeforeExpiry: 7, Kind: DiscountKindPercentage, Value: decimal.NewFromInt(10)},
			{DaysBeforeExpiry: 7, Kind: DiscountKindFixedAmount, Value: decimal.NewFromInt(5)},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects non-positive days", func(t *testing.T) {
		err := ValidateDiscountRules([]ExpiryDiscountRule{
			{DaysBeforeExpiry: 0, Kind: DiscountKindPercentage, Value: decimal.NewFromInt(10)},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		err := ValidateDiscountRules([]ExpiryDiscountRule{
			{DaysBeforeExpiry: 3, Kind: "bogo", Value: decimal.NewFromInt(10)},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects percentage above 100", func(t *testing.T) {
		err := ValidateDiscountRules([]ExpiryDiscountRule{
			{DaysBeforeExpiry: 3, Kind: DiscountKindPercentage, Value: decimal.NewFromInt(101)},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("accepts empty table", func(t *testing.T) {
		assert.NoError(t, ValidateDiscountRules(nil))
	})
}
