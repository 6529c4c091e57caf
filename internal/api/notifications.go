package api

import (
	"content-market/internal/response"

	"github.com/gin-gonic/gin"
)

// NotificationStats returns notification counts by state
func (h *Handler) NotificationStats(c *gin.Context) {
	stats, err := h.svc.Fanout.Stats(c.Request.Context(), h.opts.MaxNotificationRetries)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessJSON(c, stats)
}
