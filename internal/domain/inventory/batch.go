package inventory

import (
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeBatch is the aggregate type name for batches
const AggregateTypeBatch = "Batch"

// BatchStatus represents the lifecycle status of a batch
type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "active"
	BatchStatusInactive BatchStatus = "inactive"
	BatchStatusExpired  BatchStatus = "expired"
	BatchStatusSoldOut  BatchStatus = "sold_out"
)

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusActive, BatchStatusInactive, BatchStatusExpired, BatchStatusSoldOut:
		return true
	}
	return false
}

// StockLocation is a physical location holding batch stock
type StockLocation string

const (
	LocationShelf     StockLocation = "shelf"
	LocationWarehouse StockLocation = "warehouse"
)

// IsValid checks if the location is a valid StockLocation
func (l StockLocation) IsValid() bool {
	return l == LocationShelf || l == LocationWarehouse
}

// ParseStockLocation parses a location name, case-insensitively
func ParseStockLocation(s string) (StockLocation, error) {
	l := StockLocation(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", shared.NewValidationError("Invalid stock location %q", s)
	}
	return l, nil
}

// Batch is a single supplier delivery of a product with one expiry date.
// All counters are in base units.
type Batch struct {
	shared.BaseEntity
	ProductID             uuid.UUID
	SupplierID            uuid.UUID
	BatchNumber           string
	ManufactureDate       time.Time
	ExpiryDate            time.Time
	InitialQuantity       int
	RemainingWarehouseQty int
	ShelfQty              int
	SoldQty               int
	LostQty               int
	ImportPrice           decimal.Decimal
	Status                BatchStatus
}

// NewBatch creates a batch received entirely into the warehouse
func NewBatch(
	productID, supplierID uuid.UUID,
	batchNumber string,
	manufactureDate, expiryDate time.Time,
	quantity int,
	importPrice decimal.Decimal,
	now time.Time,
) (*Batch, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("Product ID is required")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("Supplier ID is required")
	}
	if !manufactureDate.Before(expiryDate) {
		return nil, shared.NewValidationError("Manufacture date must be before expiry date")
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("Batch quantity must be positive")
	}
	if importPrice.IsNegative() {
		return nil, shared.NewValidationError("Import price cannot be negative")
	}
	batchNumber = strings.TrimSpace(batchNumber)
	if batchNumber == "" {
		batchNumber = "B" + now.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:6])
	}

	return &Batch{
		BaseEntity:            shared.NewBaseEntityAt(now),
		ProductID:             productID,
		SupplierID:            supplierID,
		BatchNumber:           batchNumber,
		ManufactureDate:       manufactureDate,
		ExpiryDate:            expiryDate,
		InitialQuantity:       quantity,
		RemainingWarehouseQty: quantity,
		ImportPrice:           importPrice,
		Status:                BatchStatusActive,
	}, nil
}

// QuantityAt returns the stock held at a location
func (b *Batch) QuantityAt(loc StockLocation) int {
	switch loc {
	case LocationShelf:
		return b.ShelfQty
	case LocationWarehouse:
		return b.RemainingWarehouseQty
	}
	return 0
}

// OnHand returns the stock held at both locations
func (b *Batch) OnHand() int {
	return b.ShelfQty + b.RemainingWarehouseQty
}

// IsExpiredAt returns true when the expiry date is not after now
func (b *Batch) IsExpiredAt(now time.Time) bool {
	return !b.ExpiryDate.After(now)
}

// IsAllocatable reports whether the batch can serve a sale from loc at now
func (b *Batch) IsAllocatable(loc StockLocation, now time.Time) bool {
	return b.Status == BatchStatusActive && b.QuantityAt(loc) > 0 && !b.IsExpiredAt(now)
}

// Sell moves qty from loc to sold. It is the in-process form of the guarded
// compare-and-decrement and fails with a conflict when the guard does not hold.
func (b *Batch) Sell(loc StockLocation, qty int, now time.Time) error {
	if err := b.decrement(loc, qty); err != nil {
		return err
	}
	b.SoldQty += qty
	b.refreshSoldOut()
	b.Touch(now)
	return nil
}

// Unsell reverses a sale of qty from loc
func (b *Batch) Unsell(loc StockLocation, qty int, now time.Time) error {
	if qty <= 0 {
		return shared.NewValidationError("Quantity must be positive")
	}
	if !loc.IsValid() {
		return shared.NewValidationError("Invalid stock location %q", loc)
	}
	if b.SoldQty < qty {
		return shared.NewConflictError("batch %s has sold %d, cannot restore %d", b.ID, b.SoldQty, qty)
	}
	b.SoldQty -= qty
	switch loc {
	case LocationShelf:
		b.ShelfQty += qty
	case LocationWarehouse:
		b.RemainingWarehouseQty += qty
	}
	if b.Status == BatchStatusSoldOut {
		b.Status = BatchStatusActive
	}
	b.Touch(now)
	return nil
}

// MoveToShelf transfers qty from the warehouse to the shelf
func (b *Batch) MoveToShelf(qty int, now time.Time) error {
	if err := b.decrement(LocationWarehouse, qty); err != nil {
		return err
	}
	b.ShelfQty += qty
	b.Touch(now)
	return nil
}

// Lose writes qty off at loc as damaged or missing
func (b *Batch) Lose(loc StockLocation, qty int, now time.Time) error {
	if err := b.decrement(loc, qty); err != nil {
		return err
	}
	b.LostQty += qty
	b.refreshSoldOut()
	b.Touch(now)
	return nil
}

// Expire takes an active batch out of allocation. Counters are untouched.
func (b *Batch) Expire(now time.Time) error {
	if b.Status != BatchStatusActive {
		return shared.NewStateError("batch %s is %s, only active batches can expire", b.ID, b.Status)
	}
	b.Status = BatchStatusExpired
	b.Touch(now)
	return nil
}

// CountersValid checks that no counter is negative and the counters
// never account for more than the received quantity
func (b *Batch) CountersValid() bool {
	if b.RemainingWarehouseQty < 0 || b.ShelfQty < 0 || b.SoldQty < 0 || b.LostQty < 0 {
		return false
	}
	return b.RemainingWarehouseQty+b.ShelfQty+b.SoldQty+b.LostQty <= b.InitialQuantity
}

func (b *Batch) decrement(loc StockLocation, qty int) error {
	if qty <= 0 {
		return shared.NewValidationError("Quantity must be positive")
	}
	if b.Status != BatchStatusActive {
		return shared.NewConflictError("batch %s is %s", b.ID, b.Status)
	}
	switch loc {
	case LocationShelf:
		if b.ShelfQty < qty {
			return shared.NewConflictError("batch %s has %d on shelf, need %d", b.ID, b.ShelfQty, qty)
		}
		b.ShelfQty -= qty
	case LocationWarehouse:
		if b.RemainingWarehouseQty < qty {
			return shared.NewConflictError("batch %s has %d in warehouse, need %d", b.ID, b.RemainingWarehouseQty, qty)
		}
		b.RemainingWarehouseQty -= qty
	default:
		return shared.NewValidationError("Invalid stock location %q", loc)
	}
	return nil
}

func (b *Batch) refreshSoldOut() {
	if b.Status == BatchStatusActive && b.OnHand() == 0 {
		b.Status = BatchStatusSoldOut
	}
}
