package handler

import (
	invapp "github.com/erp/fulfillment/internal/application/inventory"
	tradeapp "github.com/erp/fulfillment/internal/application/trade"
	"github.com/gin-gonic/gin"
)

// AdminHandler triggers the expiry sweeps on demand
type AdminHandler struct {
	BaseHandler
	sweeper *tradeapp.PreorderSweeper
	expiry  *invapp.BatchExpiryService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sweeper *tradeapp.PreorderSweeper, expiry *invapp.BatchExpiryService) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		expiry:  expiry,
	}
}

// SweepPreorders cancels every pre-order past its pickup deadline.
// POST /admin/sweeps/preorders
func (h *AdminHandler) SweepPreorders(c *gin.Context) {
	stats, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// SweepBatches marks batches past their expiry date as expired.
// POST /admin/sweeps/batches
func (h *AdminHandler) SweepBatches(c *gin.Context) {
	stats, err := h.expiry.MarkExpiredBatches(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
