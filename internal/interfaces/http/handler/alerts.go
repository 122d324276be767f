package handler

import (
	"github.com/gin-gonic/gin"
	alertapp "github.com/pharmacy/backend/internal/application/alert"
)

// AlertHandler handles stock alert endpoints
type AlertHandler struct {
	BaseHandler
	alertService *alertapp.AlertService
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alertService *alertapp.AlertService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
	}
}

// LowStockQuery overrides the configured low stock limit
type LowStockQuery struct {
	Threshold *int `form:"threshold"`
}

// NearExpiryQuery overrides the configured near expiry window
type NearExpiryQuery struct {
	Days *int `form:"days"`
}

// LowStock lists items running low
// GET /alerts/low-stock
func (h *AlertHandler) LowStock(c *gin.Context) {
	var query LowStockQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "threshold must be an integer")
		return
	}

	alerts, err := h.alertService.LowStock(c.Request.Context(), alertapp.LowStockQuery{
		Threshold: query.Threshold,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, alerts)
}

// NearExpiry lists lots expiring soon
// GET /alerts/near-expiry
func (h *AlertHandler) NearExpiry(c *gin.Context) {
	var query NearExpiryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "days must be an integer")
		return
	}

	alerts, err := h.alertService.NearExpiry(c.Request.Context(), alertapp.NearExpiryQuery{
		Days: query.Days,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, alerts)
}
