package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/pharmacy/backend/internal/application/catalog"
	stockapp "github.com/pharmacy/backend/internal/application/stock"
	"github.com/pharmacy/backend/internal/interfaces/http/dto"
	"github.com/pharmacy/backend/internal/interfaces/http/middleware"
)

// StockHandler handles lot, movement and item retirement endpoints
type StockHandler struct {
	BaseHandler
	stockService      *stockapp.StockService
	retirementService *catalogapp.RetirementService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *stockapp.StockService, retirementService *catalogapp.RetirementService) *StockHandler {
	return &StockHandler{
		stockService:      stockService,
		retirementService: retirementService,
	}
}

// RegisterInboundRequest is the body of POST /stock/inbound.
// Quantity is checked by the ledger so that it reports INVALID_QUANTITY.
type RegisterInboundRequest struct {
	ItemID    string  `json:"item_id" binding:"required,uuid"`
	Quantity  int     `json:"quantity"`
	ExpiresOn string  `json:"expires_on" binding:"required,isodate"`
	Label     *string `json:"label" binding:"omitempty,max=64"`
}

// ManualOutboundRequest is the body of POST /stock/outbound
type ManualOutboundRequest struct {
	ItemID   string `json:"item_id" binding:"required,uuid"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note" binding:"max=255"`
}

// LotsQuery holds the query parameters of GET /stock/items/:item_id/lots
type LotsQuery struct {
	OnlyAvailable bool `form:"only_available"`
}

// AvailableQuery holds the query parameters of GET /stock/items/:item_id/available
type AvailableQuery struct {
	ExcludeExpired *bool `form:"exclude_expired"`
}

// AvailableResponse is the body of GET /stock/items/:item_id/available
type AvailableResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	Quantity       int       `json:"quantity"`
	ExcludeExpired bool      `json:"exclude_expired"`
}

// itemID binds and parses the item_id path parameter
func (h *StockHandler) itemID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.ItemIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ItemID), true
}

// RegisterInbound receives a new lot
// POST /stock/inbound
func (h *StockHandler) RegisterInbound(c *gin.Context) {
	var req RegisterInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	expiresOn, err := time.Parse(middleware.DateLayout, req.ExpiresOn)
	if err != nil {
		h.BadRequest(c, "Invalid expiry date format")
		return
	}

	lot, err := h.stockService.RegisterInbound(c.Request.Context(), stockapp.RegisterInboundRequest{
		ItemID:    uuid.MustParse(req.ItemID),
		Quantity:  req.Quantity,
		ExpiresOn: expiresOn,
		Label:     req.Label,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, lot)
}

// RegisterManualOutbound removes stock outside of a sale
// POST /stock/outbound
func (h *StockHandler) RegisterManualOutbound(c *gin.Context) {
	var req ManualOutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	lot, err := h.stockService.RegisterManualOutbound(c.Request.Context(), stockapp.ManualOutboundRequest{
		ItemID:   uuid.MustParse(req.ItemID),
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lot)
}

// GetConsolidated returns the stock position of an item
// GET /stock/items/:item_id
func (h *StockHandler) GetConsolidated(c *gin.Context) {
	itemID, ok := h.itemID(c)
	if !ok {
		return
	}

	position, err := h.stockService.ConsolidatedStock(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, position)
}

// ListLots lists the lots of an item in FIFO order
// GET /stock/items/:item_id/lots
func (h *StockHandler) ListLots(c *gin.Context) {
	itemID, ok := h.itemID(c)
	if !ok {
		return
	}

	var query LotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid only_available value")
		return
	}

	lots, err := h.stockService.LotsOf(c.Request.Context(), itemID, query.OnlyAvailable)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lots)
}

// GetAvailable returns the total quantity of an item. Expired lots are
// left out unless exclude_expired=false.
// GET /stock/items/:item_id/available
func (h *StockHandler) GetAvailable(c *gin.Context) {
	itemID, ok := h.itemID(c)
	if !ok {
		return
	}

	var query AvailableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid exclude_expired value")
		return
	}
	excludeExpired := query.ExcludeExpired == nil || *query.ExcludeExpired

	total, err := h.stockService.TotalAvailable(c.Request.Context(), itemID, excludeExpired)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AvailableResponse{
		ItemID:         itemID,
		Quantity:       total,
		ExcludeExpired: excludeExpired,
	})
}

// ListMovements returns the movement history of an item, newest first
// GET /stock/items/:item_id/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	itemID, ok := h.itemID(c)
	if !ok {
		return
	}

	movements, err := h.stockService.MovementsOf(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, movements)
}

// RetireItem removes an item from the ledger. Items with sales history
// are deactivated, others are deleted with their lots and movements.
// DELETE /stock/items/:item_id
func (h *StockHandler) RetireItem(c *gin.Context) {
	itemID, ok := h.itemID(c)
	if !ok {
		return
	}

	result, err := h.retirementService.RetireItem(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
