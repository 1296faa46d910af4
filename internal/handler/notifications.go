package handler

import (
	"net/http"
	"strconv"

	"stockreserve/internal/apierror"
	"stockreserve/internal/worker"

	"github.com/gin-gonic/gin"
)

// NotificationsHandler exposes the order-expired dead letter queue.
type NotificationsHandler struct{ rdb worker.DLQClient }

func NewNotificationsHandler(rdb worker.DLQClient) *NotificationsHandler {
	return &NotificationsHandler{rdb: rdb}
}

func (h *NotificationsHandler) DLQStatus(c *gin.Context) {
	n, err := worker.DLQLength(c.Request.Context(), h.rdb, worker.QueueOrderExpired)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": worker.QueueOrderExpired, "parked": n})
}

// Replay requeues parked notifications. ?limit= caps how many (default 100).
func (h *NotificationsHandler) Replay(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, apierror.New("limit must be a positive integer"))
			return
		}
		limit = v
	}
	n, err := worker.ReplayDLQ(c.Request.Context(), h.rdb, worker.QueueOrderExpired, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": n})
}
