package router

import (
	"github.com/gin-gonic/gin"
	"github.com/pharmacy/backend/internal/interfaces/http/handler"
)

// Handlers bundles the API handlers mounted by Mount
type Handlers struct {
	Stock  *handler.StockHandler
	Sales  *handler.SalesHandler
	Alerts *handler.AlertHandler
	Health *handler.HealthHandler
}

// StockRoutes groups lot, movement and retirement endpoints under /stock
func StockRoutes(h *handler.StockHandler) *DomainGroup {
	g := NewDomainGroup("stock", "/stock")
	g.POST("/inbound", h.RegisterInbound).
		POST("/outbound", h.RegisterManualOutbound)

	items := g.Group("items", "/items")
	items.GET("/:item_id", h.GetConsolidated).
		GET("/:item_id/lots", h.ListLots).
		GET("/:item_id/available", h.GetAvailable).
		GET("/:item_id/movements", h.ListMovements).
		DELETE("/:item_id", h.RetireItem)
	return g
}

// SalesRoutes groups sale endpoints, including the per-purchaser history
func SalesRoutes(h *handler.SalesHandler) *DomainGroup {
	g := NewDomainGroup("sales", "")
	g.Group("sales", "/sales").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID)
	g.Group("purchasers", "/purchasers").
		GET("/:id/sales", h.ListByPurchaser)
	return g
}

// AlertRoutes groups stock alert endpoints under /alerts
func AlertRoutes(h *handler.AlertHandler) *DomainGroup {
	g := NewDomainGroup("alerts", "/alerts")
	g.GET("/low-stock", h.LowStock).
		GET("/near-expiry", h.NearExpiry)
	return g
}

// Mount registers every API route on engine. The health check lives
// outside the versioned API.
func Mount(engine *gin.Engine, h Handlers, opts ...RouterOption) *Router {
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	r := NewRouter(engine, opts...)
	r.Register(
		StockRoutes(h.Stock),
		SalesRoutes(h.Sales),
		AlertRoutes(h.Alerts),
	)
	r.Setup()
	return r
}
