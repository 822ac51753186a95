package handler

import (
	invapp "github.com/erp/fulfillment/internal/application/inventory"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InventoryHandler handles batch receipt, shelf transfer, loss and stock reads
type InventoryHandler struct {
	BaseHandler
	ledger  *invapp.Ledger
	queries *invapp.StockQueryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(ledger *invapp.Ledger, queries *invapp.StockQueryService) *InventoryHandler {
	return &InventoryHandler{
		ledger:  ledger,
		queries: queries,
	}
}

// ReceiveBatch posts a supplier delivery to the warehouse.
// POST /inventory/batches
func (h *InventoryHandler) ReceiveBatch(c *gin.Context) {
	var req invapp.ReceiveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	batch, err := h.ledger.ReceiveBatch(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.GetGinLogger(c).Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("product_id", batch.ProductID.String()),
		zap.Int("quantity", batch.InitialQuantity),
	)
	h.Created(c, invapp.ToBatchResponse(batch))
}

// GetBatch returns one batch.
// GET /inventory/batches/:id
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.queries.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Transfer moves warehouse units of a batch to the shelf.
// POST /inventory/batches/:id/transfer
func (h *InventoryHandler) Transfer(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req invapp.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	batch, err := h.ledger.TransferToShelf(c.Request.Context(), id, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invapp.ToBatchResponse(batch))
}

// RecordLoss writes off damaged or missing units.
// POST /inventory/batches/:id/loss
func (h *InventoryHandler) RecordLoss(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req invapp.LossRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	loc, err := inventory.ParseStockLocation(req.Location)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	batch, err := h.ledger.RecordLoss(c.Request.Context(), id, loc, req.Quantity, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invapp.ToBatchResponse(batch))
}

// ListMovements lists the stock movements of a batch.
// GET /inventory/batches/:id/movements
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var q invapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	movements, err := h.queries.ListMovements(c.Request.Context(), id, q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}

// GetStock returns the stock aggregate of a product.
// GET /inventory/products/:id/stock
func (h *InventoryHandler) GetStock(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	stock, err := h.queries.GetStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// ListBatches lists the batches of a product.
// GET /inventory/products/:id/batches
func (h *InventoryHandler) ListBatches(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var q invapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	batches, err := h.queries.ListBatches(c.Request.Context(), id, q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Reconcile compares the stock aggregate against the batch counters.
// GET /inventory/products/:id/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	drift, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !drift.InSync() {
		logger.GetGinLogger(c).Warn("Stock drift detected",
			zap.String("product_id", id.String()),
			zap.Int("warehouse_stock", drift.WarehouseStock),
			zap.Int("batch_warehouse", drift.BatchWarehouse),
			zap.Int("shelf_stock", drift.ShelfStock),
			zap.Int("batch_shelf", drift.BatchShelf),
		)
	}
	h.Success(c, invapp.ToDriftResponse(drift))
}
