package router

import (
	"github.com/erp/fulfillment/internal/infrastructure/auth"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers mounted under /api/v1
type Handlers struct {
	Order     *handler.OrderHandler
	Inventory *handler.InventoryHandler
	Payment   *handler.PaymentCallbackHandler
	Admin     *handler.AdminHandler
}

// OrderRoutes is checkout and the order lifecycle; every authenticated role may use it
func OrderRoutes(h *handler.OrderHandler) *DomainGroup {
	g := NewDomainGroup("orders", "/orders")
	g.POST("", h.Create)
	g.POST("/quote", h.Quote)
	g.GET("", h.List)
	g.GET("/number/:number", h.GetByOrderNumber)
	g.GET("/:id", h.GetByID)
	g.PUT("/:id", h.Update)
	g.POST("/:id/fulfill", h.Fulfill)
	g.POST("/:id/hold", h.Hold)
	g.POST("/:id/resume", h.Resume)
	g.POST("/:id/deposit", h.Deposit)
	g.POST("/:id/cancel", h.Cancel)
	return g
}

// PaymentRoutes is the gateway callback; it is authenticated by the callback secret
func PaymentRoutes(h *handler.PaymentCallbackHandler) *DomainGroup {
	g := NewDomainGroup("payments", "/payments")
	g.POST("/callback", h.Handle)
	return g
}

// InventoryRoutes exposes stock reads to every role and stock writes to managers
func InventoryRoutes(h *handler.InventoryHandler) *DomainGroup {
	g := NewDomainGroup("inventory", "/inventory")

	g.GET("/batches/:id", h.GetBatch)
	g.GET("/batches/:id/movements", h.ListMovements)
	g.GET("/products/:id/stock", h.GetStock)
	g.GET("/products/:id/batches", h.ListBatches)
	g.GET("/products/:id/reconcile", h.Reconcile)

	writes := g.Group("inventory-writes", "").
		Use(middleware.RequireRole(auth.RoleAdmin, auth.RoleManager))
	writes.POST("/batches", h.ReceiveBatch)
	writes.POST("/batches/:id/transfer", h.Transfer)
	writes.POST("/batches/:id/loss", h.RecordLoss)
	return g
}

// AdminRoutes runs the expiry sweeps on demand
func AdminRoutes(h *handler.AdminHandler) *DomainGroup {
	g := NewDomainGroup("admin", "/admin").Use(middleware.RequireRole(auth.RoleAdmin))
	g.POST("/sweeps/preorders", h.SweepPreorders)
	g.POST("/sweeps/batches", h.SweepBatches)
	return g
}
