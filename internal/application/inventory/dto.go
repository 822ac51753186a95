package inventory

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockResponse represents a product's stock aggregate in API responses
type StockResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	WarehouseStock int       `json:"warehouse_stock"`
	ShelfStock     int       `json:"shelf_stock"`
	TotalStock     int       `json:"total_stock"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToStockResponse converts the domain aggregate to a response
func ToStockResponse(s *inventory.InventoryStock) *StockResponse {
	return &StockResponse{
		ProductID:      s.ProductID,
		WarehouseStock: s.WarehouseStock,
		ShelfStock:     s.ShelfStock,
		TotalStock:     s.TotalStock,
		UpdatedAt:      s.UpdatedAt,
	}
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID                    uuid.UUID       `json:"id"`
	ProductID             uuid.UUID       `json:"product_id"`
	SupplierID            uuid.UUID       `json:"supplier_id"`
	BatchNumber           string          `json:"batch_number"`
	ManufactureDate       time.Time       `json:"manufacture_date"`
	ExpiryDate            time.Time       `json:"expiry_date"`
	InitialQuantity       int             `json:"initial_quantity"`
	RemainingWarehouseQty int             `json:"remaining_warehouse_qty"`
	ShelfQty              int             `json:"shelf_qty"`
	SoldQty               int             `json:"sold_qty"`
	LostQty               int             `json:"lost_qty"`
	ImportPrice           decimal.Decimal `json:"import_price"`
	Status                string          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// ToBatchResponse converts a batch to a response
func ToBatchResponse(b *inventory.Batch) BatchResponse {
	return BatchResponse{
		ID:                    b.ID,
		ProductID:             b.ProductID,
		SupplierID:            b.SupplierID,
		BatchNumber:           b.BatchNumber,
		ManufactureDate:       b.ManufactureDate,
		ExpiryDate:            b.ExpiryDate,
		InitialQuantity:       b.InitialQuantity,
		RemainingWarehouseQty: b.RemainingWarehouseQty,
		ShelfQty:              b.ShelfQty,
		SoldQty:               b.SoldQty,
		LostQty:               b.LostQty,
		ImportPrice:           b.ImportPrice,
		Status:                string(b.Status),
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []inventory.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, ToBatchResponse(&batches[i]))
	}
	return out
}

// MovementResponse represents a stock movement in API responses
type MovementResponse struct {
	ID        uuid.UUID  `json:"id"`
	BatchID   uuid.UUID  `json:"batch_id"`
	ProductID uuid.UUID  `json:"product_id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Kind      string     `json:"kind"`
	Location  string     `json:"location"`
	Quantity  int        `json:"quantity"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToMovementResponse converts a movement to a response
func ToMovementResponse(m inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		BatchID:   m.BatchID,
		ProductID: m.ProductID,
		OrderID:   m.OrderID,
		Kind:      string(m.Kind),
		Location:  string(m.Location),
		Quantity:  m.Quantity,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

// DriftResponse is the result of a stock reconciliation
type DriftResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	InSync         bool      `json:"in_sync"`
	WarehouseStock int       `json:"warehouse_stock"`
	ShelfStock     int       `json:"shelf_stock"`
	BatchWarehouse int       `json:"batch_warehouse"`
	BatchShelf     int       `json:"batch_shelf"`
}

// ToDriftResponse converts a drift report to a response
func ToDriftResponse(d *inventory.Drift) *DriftResponse {
	return &DriftResponse{
		ProductID:      d.ProductID,
		InSync:         d.InSync(),
		WarehouseStock: d.WarehouseStock,
		ShelfStock:     d.ShelfStock,
		BatchWarehouse: d.BatchWarehouse,
		BatchShelf:     d.BatchShelf,
	}
}

// ReceiveBatchRequest is a supplier delivery posted to the warehouse
type ReceiveBatchRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	SupplierID      uuid.UUID       `json:"supplier_id" binding:"required"`
	BatchNumber     string          `json:"batch_number" binding:"required,max=100"`
	ManufactureDate time.Time       `json:"manufacture_date" binding:"required"`
	ExpiryDate      time.Time       `json:"expiry_date" binding:"required,gtfield=ManufactureDate"`
	Quantity        int             `json:"quantity" binding:"required,gt=0"`
	ImportPrice     decimal.Decimal `json:"import_price"`
}

// ToInput converts the request to a ledger input
func (r ReceiveBatchRequest) ToInput() ReceiveBatchInput {
	return ReceiveBatchInput{
		ProductID:       r.ProductID,
		SupplierID:      r.SupplierID,
		BatchNumber:     r.BatchNumber,
		ManufactureDate: r.ManufactureDate,
		ExpiryDate:      r.ExpiryDate,
		Quantity:        r.Quantity,
		ImportPrice:     r.ImportPrice,
	}
}

// TransferRequest moves warehouse units of a batch to the shelf
type TransferRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// LossRequest writes off units of a batch at one location
type LossRequest struct {
	Location string `json:"location" binding:"required,stock_location"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Reason   string `json:"reason" binding:"required,max=500"`
}

// ListQuery is the paging query of list endpoints
type ListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,max=32"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the query to a repository filter. Without order_by the
// repository picks its natural order (FEFO for batches).
func (q ListQuery) ToFilter() shared.Filter {
	f := shared.DefaultFilter()
	f.OrderBy = q.OrderBy
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = q.PageSize
	}
	if q.OrderDir != "" {
		f.OrderDir = q.OrderDir
	}
	return f
}
