package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	salesapp "github.com/pharmacy/backend/internal/application/sales"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader carries the client key that deduplicates POST /sales
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a response replayed for a known key
const IdempotentReplayHeader = "Idempotent-Replayed"

// SalesHandler handles sale endpoints
type SalesHandler struct {
	BaseHandler
	saleService *salesapp.SaleService
	idempotent  *salesapp.IdempotentSaleService
}

// NewSalesHandler creates a new SalesHandler. idempotent may be nil, in
// which case the Idempotency-Key header is ignored.
func NewSalesHandler(saleService *salesapp.SaleService, idempotent *salesapp.IdempotentSaleService) *SalesHandler {
	return &SalesHandler{
		saleService: saleService,
		idempotent:  idempotent,
	}
}

// CreateSaleRequest is the body of POST /sales. An empty line list is
// passed through so the ledger reports it as invalid input.
type CreateSaleRequest struct {
	PurchaserID string            `json:"purchaser_id" binding:"required,uuid"`
	Lines       []SaleLineRequest `json:"lines" binding:"required,dive"`
}

// SaleLineRequest is one basket line
type SaleLineRequest struct {
	ItemID   string `json:"item_id" binding:"required,uuid"`
	Quantity int    `json:"quantity"`
}

// Create records a sale. A repeated Idempotency-Key returns the sale
// committed for it with 200 instead of selling again.
// POST /sales
func (h *SalesHandler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	appReq := salesapp.CreateSaleRequest{
		PurchaserID: uuid.MustParse(req.PurchaserID),
		Lines:       make([]salesapp.SaleLineRequest, len(req.Lines)),
	}
	for i, line := range req.Lines {
		appReq.Lines[i] = salesapp.SaleLineRequest{
			ItemID:   uuid.MustParse(line.ItemID),
			Quantity: line.Quantity,
		}
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if h.idempotent == nil || key == "" {
		sale, err := h.saleService.CreateSale(c.Request.Context(), appReq)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Created(c, sale)
		return
	}

	sale, replayed, err := h.idempotent.CreateSale(c.Request.Context(), key, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if replayed {
		c.Header(IdempotentReplayHeader, "true")
		h.Success(c, sale)
		return
	}
	h.Created(c, sale)
}

// List returns sales newest first, one page at a time
// GET /sales
func (h *SalesHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.saleService.ListSales(c.Request.Context(), shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetByID returns one sale
// GET /sales/:id
func (h *SalesHandler) GetByID(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sale)
}

// ListByPurchaser returns the sales of one purchaser, newest first
// GET /purchasers/:id/sales
func (h *SalesHandler) ListByPurchaser(c *gin.Context) {
	purchaserID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid purchaser ID format")
		return
	}

	list, err := h.saleService.ListByPurchaser(c.Request.Context(), purchaserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, list)
}
