package handler

import (
	"fmt"
	"net/http"
	"strings"

	"stockreserve/internal/apierror"
	"stockreserve/internal/dto"
	"stockreserve/internal/model"
	"stockreserve/internal/repository"
	"stockreserve/internal/service"

	"github.com/gin-gonic/gin"
)

type StockHandler struct{ svc service.ReservationService }

func NewStockHandler(svc service.ReservationService) *StockHandler {
	return &StockHandler{svc: svc}
}

// GetStock answers GET /v1/stock/:sku with the available quantity.
// Reads are served from the Redis cache when one is configured.
func (h *StockHandler) GetStock(c *gin.Context) {
	resp, err := h.svc.GetStock(c.Request.Context(), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

const maxBatchSKUs = 100

// GetStocks answers GET /v1/stock?sku=A&sku=B (or sku=A,B). Reads go
// straight to the ledger in one query.
func (h *StockHandler) GetStocks(c *gin.Context) {
	var skus []string
	for _, v := range c.QueryArray("sku") {
		for _, sku := range strings.Split(v, ",") {
			if sku = strings.TrimSpace(sku); sku != "" {
				skus = append(skus, sku)
			}
		}
	}
	if len(skus) == 0 || len(skus) > maxBatchSKUs {
		c.JSON(http.StatusBadRequest, apierror.New(fmt.Sprintf("between 1 and %d sku query parameters are required", maxBatchSKUs)))
		return
	}
	resp, err := h.svc.GetStocks(c.Request.Context(), skus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LoadStock creates a SKU or restocks an existing one.
func (h *StockHandler) LoadStock(c *gin.Context) {
	var req dto.LoadStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.LoadStock(c.Request.Context(), req.SKU, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) ListMovements(c *gin.Context) {
	var q dto.StockMovementFilter
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), repository.StockMovementFilter{
		SKU:   c.Param("sku"),
		Kind:  model.MovementKind(q.Kind),
		Page:  q.Page,
		Limit: q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
