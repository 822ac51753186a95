package trade

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricedOrder is a pricing together with the allocation plan it was computed from
type PricedOrder struct {
	Pricing     trade.Pricing
	Allocations []inventory.Allocation
}

// PricingService turns requested lines into priced order lines and totals.
// For every line it resolves the unit, plans a FEFO allocation and prices
// each batch share with its expiry discount.
type PricingService struct {
	productRepo catalog.ProductRepository
	resolver    *catalog.UnitResolver
	allocator   *appinv.BatchAllocator
}

// NewPricingService creates a new PricingService
func NewPricingService(
	productRepo catalog.ProductRepository,
	resolver *catalog.UnitResolver,
	allocator *appinv.BatchAllocator,
) *PricingService {
	return &PricingService{
		productRepo: productRepo,
		resolver:    resolver,
		allocator:   allocator,
	}
}

// Price prices lines against the stock at loc as of now
func (s *PricingService) Price(
	ctx context.Context,
	lines []OrderLineRequest,
	loc inventory.StockLocation,
	taxRate decimal.Decimal,
	now time.Time,
) (*PricedOrder, error) {
	if len(lines) == 0 {
		return nil, shared.NewValidationError("Order must have at least one line")
	}
	if err := trade.ValidateTaxRate(taxRate); err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	held := make(appinv.Holdings)
	priced := make([]trade.OrderLine, 0, len(lines))
	allocations := make([]inventory.Allocation, 0, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, shared.NewValidationError("Line %d quantity must be positive", i+1)
		}
		product := products[line.ProductID]
		quote, err := s.resolver.Resolve(product, line.Unit)
		if err != nil {
			return nil, err
		}

		req := inventory.AllocationRequest{
			ProductID: product.ID,
			Location:  loc,
			Quantity:  quote.BaseQuantity(line.Quantity),
			Now:       now,
		}
		price := func(b *inventory.Batch) decimal.Decimal {
			return catalog.EffectivePrice(quote.ListPrice, b.ExpiryDate, product.DiscountRules, now)
		}
		alloc, err := s.allocator.AllocateAfter(ctx, req, price, held)
		if err != nil {
			return nil, err
		}
		held.Add(alloc)

		lineAllocs := make([]trade.LineAllocation, 0, len(alloc.Items))
		for _, item := range alloc.Items {
			lineAllocs = append(lineAllocs, trade.LineAllocation{
				BatchID:            item.BatchID,
				AllocatedBaseQty:   item.Quantity,
				EffectivePackPrice: item.EffectivePackPrice,
			})
		}
		orderLine, err := trade.PriceLine(trade.LineInput{
			ProductID:    product.ID,
			RequestedQty: line.Quantity,
			Unit:         quote.UnitName,
			Ratio:        quote.Ratio,
			ListPrice:    quote.ListPrice,
			Allocations:  lineAllocs,
		})
		if err != nil {
			return nil, err
		}
		priced = append(priced, orderLine)
		allocations = append(allocations, alloc)
	}

	pricing, err := trade.NewPricing(priced, taxRate)
	if err != nil {
		return nil, err
	}
	return &PricedOrder{Pricing: pricing, Allocations: allocations}, nil
}

func (s *PricingService) loadProducts(ctx context.Context, lines []OrderLineRequest) (map[uuid.UUID]*catalog.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID == uuid.Nil {
			return nil, shared.NewValidationError("Product ID is required")
		}
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}

	found, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	products := make(map[uuid.UUID]*catalog.Product, len(found))
	for i := range found {
		products[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, shared.NewNotFoundError("product", id)
		}
	}
	return products, nil
}
