package handler

import (
	"context"

	tradeapp "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler handles checkout and order lifecycle endpoints
type OrderHandler struct {
	BaseHandler
	orderService *tradeapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *tradeapp.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// Create places an instore sale or a pre-order.
// POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req tradeapp.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.CreatedBy = middleware.GetActorID(c)

	order, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	withOrder(c, order.ID)
	h.Created(c, order)
}

// Quote prices lines without placing an order.
// POST /orders/quote
func (h *OrderHandler) Quote(c *gin.Context) {
	var req tradeapp.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	quote, err := h.orderService.Quote(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// List lists orders.
// GET /orders?status=&kind=&page=&page_size=
func (h *OrderHandler) List(c *gin.Context) {
	var filter tradeapp.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID returns one order.
// GET /orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	withOrder(c, id)

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// GetByOrderNumber returns one order by its ORD- number.
// GET /orders/number/:number
func (h *OrderHandler) GetByOrderNumber(c *gin.Context) {
	order, err := h.orderService.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	withOrder(c, order.ID)
	h.Success(c, order)
}

// Update edits the customer name, note or pickup deadline.
// PUT /orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	withOrder(c, id)

	var req tradeapp.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Fulfill allocates and commits a pending pre-order.
// POST /orders/:id/fulfill
func (h *OrderHandler) Fulfill(c *gin.Context) {
	h.transition(c, h.orderService.FulfillPreorder)
}

// Hold parks an order.
// POST /orders/:id/hold
func (h *OrderHandler) Hold(c *gin.Context) {
	h.transition(c, h.orderService.Hold)
}

// Resume takes an order off hold.
// POST /orders/:id/resume
func (h *OrderHandler) Resume(c *gin.Context) {
	h.transition(c, h.orderService.Resume)
}

// Deposit records a partial payment on a pre-order.
// POST /orders/:id/deposit
func (h *OrderHandler) Deposit(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	withOrder(c, id)

	var req tradeapp.RecordDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	order, err := h.orderService.RecordDeposit(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel cancels an order, restoring committed stock.
// POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	withOrder(c, id)

	var req tradeapp.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	order, err := h.orderService.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

func (h *OrderHandler) transition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) (*tradeapp.OrderResponse, error)) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	withOrder(c, id)

	order, err := op(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
