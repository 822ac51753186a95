package inventory

import (
	"sort"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRequest asks for Quantity base units of a product from a location
type AllocationRequest struct {
	ProductID uuid.UUID
	Location  StockLocation
	Quantity  int
	Now       time.Time
}

// Validate checks the request
func (r AllocationRequest) Validate() error {
	if r.ProductID == uuid.Nil {
		return shared.NewValidationError("Product ID is required")
	}
	if !r.Location.IsValid() {
		return shared.NewValidationError("Invalid stock location %q", r.Location)
	}
	if r.Quantity <= 0 {
		return shared.NewValidationError("Required quantity must be positive")
	}
	return nil
}

// BatchAllocation is one batch's share of an allocation. EffectivePackPrice is
// the discounted price of one pack of the requested unit, not of one base unit.
type BatchAllocation struct {
	BatchID            uuid.UUID       `json:"batch_id"`
	ExpiryDate         time.Time       `json:"expiry_date"`
	Quantity           int             `json:"quantity"`
	EffectivePackPrice decimal.Decimal `json:"effective_pack_price"`
}

// Allocation is the read-only plan of which batches satisfy a request
type Allocation struct {
	ProductID uuid.UUID         `json:"product_id"`
	Location  StockLocation     `json:"location"`
	Items     []BatchAllocation `json:"items"`
}

// TotalQuantity returns the sum of the allocated quantities
func (a Allocation) TotalQuantity() int {
	total := 0
	for _, item := range a.Items {
		total += item.Quantity
	}
	return total
}

// Delta returns the stock change that committing a would apply
func (a Allocation) Delta() StockDelta {
	return DeltaAt(a.Location, -a.TotalQuantity())
}

// PriceFunc derives the effective unit price of a batch
type PriceFunc func(b *Batch) decimal.Decimal

// SortFEFO orders batches by expiry date, then creation time, then ID
func SortFEFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := &batches[i], &batches[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// PlanFEFO selects batches first-expire-first-out until the request is covered.
// It never mutates the candidates. When the eligible stock cannot cover the
// request nothing is planned and an insufficient stock error is returned.
func PlanFEFO(req AllocationRequest, candidates []Batch, price PriceFunc) (Allocation, error) {
	if err := req.Validate(); err != nil {
		return Allocation{}, err
	}

	eligible := make([]Batch, 0, len(candidates))
	available := 0
	for i := range candidates {
		b := candidates[i]
		if b.ProductID != req.ProductID || !b.IsAllocatable(req.Location, req.Now) {
			continue
		}
		eligible = append(eligible, b)
		available += b.QuantityAt(req.Location)
	}
	if available < req.Quantity {
		return Allocation{}, shared.NewInsufficientStockError(
			"product %s has %d available at %s, requested %d", req.ProductID, available, req.Location, req.Quantity)
	}

	SortFEFO(eligible)

	alloc := Allocation{ProductID: req.ProductID, Location: req.Location}
	remaining := req.Quantity
	for i := range eligible {
		if remaining == 0 {
			break
		}
		b := &eligible[i]
		take := min(remaining, b.QuantityAt(req.Location))
		packPrice := decimal.Zero
		if price != nil {
			packPrice = price(b)
		}
		alloc.Items = append(alloc.Items, BatchAllocation{
			BatchID:            b.ID,
			ExpiryDate:         b.ExpiryDate,
			Quantity:           take,
			EffectivePackPrice: packPrice,
		})
		remaining -= take
	}
	return alloc, nil
}
