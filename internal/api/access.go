package api

import (
	"net/http"

	"content-market/internal/response"

	"github.com/gin-gonic/gin"
)

type accessQuery struct {
	UserID    uint `form:"user_id" binding:"required"`
	ContentID uint `form:"content_id" binding:"required"`
}

// CheckAccess reports whether a user may view a content item
func (h *Handler) CheckAccess(c *gin.Context) {
	var q accessQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Entitlement.CheckAccess(c.Request.Context(), q.UserID, q.ContentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !result.Granted {
		h.reject(c, http.StatusForbidden, result.Reason, result)
		return
	}
	response.SuccessJSON(c, result)
}
