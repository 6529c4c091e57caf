package api

import (
	"net/http"

	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"
	"content-market/pkg/logging"

	"github.com/gin-gonic/gin"
)

// DeliverRequest sends a content item to a user through the delivery
// channel. self_destruct_seconds falls back to the configured default.
type DeliverRequest struct {
	UserID              uint             `json:"user_id" binding:"required"`
	Recipient           string           `json:"recipient" binding:"required"`
	ContentID           uint             `json:"content_id" binding:"required"`
	MediaType           models.MediaType `json:"media_type" binding:"required,oneof=photo video"`
	Caption             string           `json:"caption"`
	SelfDestructSeconds int              `json:"self_destruct_seconds" binding:"min=0"`
}

// Deliver checks the user's entitlement and dispatches the media
func (h *Handler) Deliver(c *gin.Context) {
	var req DeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	access, err := h.svc.Entitlement.CheckAccess(ctx, req.UserID, req.ContentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.Granted {
		h.reject(c, http.StatusForbidden, access.Reason, access)
		return
	}

	seconds := req.SelfDestructSeconds
	if seconds == 0 {
		seconds = h.opts.DefaultSelfDestructSeconds
	}
	delivery := services.DeliveryRequest{
		Recipient:           req.Recipient,
		ContentID:           req.ContentID,
		ViewerID:            &req.UserID,
		Caption:             req.Caption,
		SelfDestructSeconds: seconds,
	}

	var result services.DeliveryResult
	if req.MediaType == models.MediaVideo {
		result, err = h.svc.Delivery.DeliverVideo(ctx, delivery)
	} else {
		result, err = h.svc.Delivery.DeliverPhoto(ctx, delivery)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	switch result.Status {
	case services.DeliveryDelivered:
		response.SuccessJSON(c, result)
	case services.DeliveryBlocked:
		h.reject(c, http.StatusPreconditionFailed, result.Reason, result)
	default:
		logging.Warnf("Delivery of content %d to user %d failed: %s (%s)", req.ContentID, req.UserID, result.Reason, result.Detail)
		h.reject(c, http.StatusBadGateway, result.Reason, result)
	}
}
