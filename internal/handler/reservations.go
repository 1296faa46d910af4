package handler

import (
	"net/http"

	"stockreserve/internal/apierror"
	"stockreserve/internal/dto"
	"stockreserve/internal/model"
	"stockreserve/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReservationHandler struct{ svc service.ReservationService }

func NewReservationHandler(svc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	items := make([]model.ReserveItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.ReserveItem{SKU: it.SKU, Quantity: it.Quantity}
	}
	if err := h.svc.Reserve(c.Request.Context(), req.OrderID, items); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReservationHandler) Confirm(c *gin.Context) {
	var req dto.OrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Confirm(c.Request.Context(), req.OrderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	var req dto.OrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), req.OrderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get answers GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid reservation id"))
		return
	}
	resp, err := h.svc.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List answers GET /v1/reservations?order_id=...
func (h *ReservationHandler) List(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("order_id query parameter is required"))
		return
	}
	resp, err := h.svc.ListReservations(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
