package trade

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineRequest is one requested line
type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,gt=0"`
	Unit      string    `json:"unit" binding:"required,max=50"`
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	Kind           string             `json:"kind" binding:"required,order_kind"`
	PaymentMethod  string             `json:"payment_method" binding:"required,oneof=cash card online"`
	Lines          []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate        *decimal.Decimal   `json:"tax_rate"`
	ExpirationDays *int               `json:"expiration_days" binding:"omitempty,gt=0,max=90"`
	CustomerName   string             `json:"customer_name" binding:"max=200"`
	Note           string             `json:"note" binding:"max=1000"`
	CreatedBy      uuid.UUID          `json:"-"`
}

// QuoteRequest prices lines without placing an order
type QuoteRequest struct {
	Kind    string             `json:"kind" binding:"required,order_kind"`
	Lines   []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate *decimal.Decimal   `json:"tax_rate"`
}

// UpdateOrderRequest edits the descriptive fields of an order
type UpdateOrderRequest struct {
	CustomerName   *string    `json:"customer_name" binding:"omitempty,max=200"`
	Note           *string    `json:"note" binding:"omitempty,max=1000"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

// RecordDepositRequest records a partial payment
type RecordDepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CancelOrderRequest cancels an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PaymentCallbackRequest is a payment gateway notification
type PaymentCallbackRequest struct {
	OrderID   uuid.UUID `json:"order_id" binding:"required"`
	Success   bool      `json:"success"`
	Reference string    `json:"reference" binding:"max=200"`
}

// OrderListFilter represents filter options for order list
type OrderListFilter struct {
	Status   string `form:"status"`
	Kind     string `form:"kind" binding:"omitempty,order_kind"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineAllocationResponse is one batch share of a line
type LineAllocationResponse struct {
	BatchID            uuid.UUID       `json:"batch_id"`
	AllocatedBaseQty   int             `json:"allocated_base_qty"`
	EffectivePackPrice decimal.Decimal `json:"effective_pack_price"`
}

// OrderLineResponse represents a priced line in API responses
type OrderLineResponse struct {
	ID                uuid.UUID                `json:"id"`
	ProductID         uuid.UUID                `json:"product_id"`
	RequestedQty      int                      `json:"requested_qty"`
	SelectedUnit      string                   `json:"selected_unit"`
	UnitRatio         int                      `json:"unit_ratio"`
	BatchAllocations  []LineAllocationResponse `json:"batch_allocations"`
	LineTotal         decimal.Decimal          `json:"line_total"`
	OriginalLineTotal decimal.Decimal          `json:"original_line_total"`
	LineDiscount      decimal.Decimal          `json:"line_discount"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	Kind               string              `json:"kind"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	PaymentMethod      string              `json:"payment_method"`
	CustomerName       string              `json:"customer_name,omitempty"`
	Note               string              `json:"note,omitempty"`
	Lines              []OrderLineResponse `json:"lines"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	DiscountAmount     decimal.Decimal     `json:"discount_amount"`
	TaxRate            decimal.Decimal     `json:"tax_rate"`
	TaxAmount          decimal.Decimal     `json:"tax_amount"`
	FinalAmount        decimal.Decimal     `json:"final_amount"`
	DepositAmount      decimal.Decimal     `json:"deposit_amount"`
	ExpirationDate     *time.Time          `json:"expiration_date,omitempty"`
	InventoryCommitted bool                `json:"inventory_committed"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason       string              `json:"cancel_reason,omitempty"`
	CreatedBy          *uuid.UUID          `json:"created_by,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Version            int                 `json:"version"`
}

// QuoteResponse is a priced order that was not placed
type QuoteResponse struct {
	Lines          []OrderLineResponse `json:"lines"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TaxRate        decimal.Decimal     `json:"tax_rate"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	FinalAmount    decimal.Decimal     `json:"final_amount"`
	PricedAt       time.Time           `json:"priced_at"`
}

// ToOrderLineResponses converts domain lines to responses
func ToOrderLineResponses(lines []trade.OrderLine) []OrderLineResponse {
	out := make([]OrderLineResponse, 0, len(lines))
	for _, l := range lines {
		allocs := make([]LineAllocationResponse, 0, len(l.Allocations))
		for _, a := range l.Allocations {
			allocs = append(allocs, LineAllocationResponse{
				BatchID:            a.BatchID,
				AllocatedBaseQty:   a.AllocatedBaseQty,
				EffectivePackPrice: a.EffectivePackPrice,
			})
		}
		out = append(out, OrderLineResponse{
			ID:                l.ID,
			ProductID:         l.ProductID,
			RequestedQty:      l.RequestedQty,
			SelectedUnit:      l.SelectedUnit,
			UnitRatio:         l.UnitRatio,
			BatchAllocations:  allocs,
			LineTotal:         l.LineTotal,
			OriginalLineTotal: l.OriginalLineTotal,
			LineDiscount:      l.LineDiscount,
		})
	}
	return out
}

// ToOrderResponse converts a domain order to a response
func ToOrderResponse(o *trade.Order) *OrderResponse {
	return &OrderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		Kind:               string(o.Kind),
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PaymentMethod:      string(o.PaymentMethod),
		CustomerName:       o.CustomerName,
		Note:               o.Note,
		Lines:              ToOrderLineResponses(o.Lines),
		TotalAmount:        o.TotalAmount,
		DiscountAmount:     o.DiscountAmount,
		TaxRate:            o.TaxRate,
		TaxAmount:          o.TaxAmount,
		FinalAmount:        o.FinalAmount,
		DepositAmount:      o.DepositAmount,
		ExpirationDate:     o.ExpirationDate,
		InventoryCommitted: o.InventoryCommitted,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		CancelReason:       o.CancelReason,
		CreatedBy:          o.CreatedBy,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		Version:            o.Version,
	}
}

// ToQuoteResponse converts a pricing to a quote
func ToQuoteResponse(p trade.Pricing, at time.Time) *QuoteResponse {
	return &QuoteResponse{
		Lines:          ToOrderLineResponses(p.Lines),
		TotalAmount:    p.TotalAmount,
		DiscountAmount: p.DiscountAmount,
		TaxRate:        p.TaxRate,
		TaxAmount:      p.TaxAmount,
		FinalAmount:    p.FinalAmount,
		PricedAt:       at,
	}
}
