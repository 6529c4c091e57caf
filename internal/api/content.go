package api

import (
	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"

	"github.com/gin-gonic/gin"
)

// PublishContentRequest represents a content upload
type PublishContentRequest struct {
	CreatorID      uint                         `json:"creator_id" binding:"required"`
	UploaderID     uint                         `json:"uploader_id" binding:"required"`
	Price          int64                        `json:"price" binding:"min=0"`
	Classification models.ContentClassification `json:"classification" binding:"required,oneof=demo premium"`
	MediaType      models.MediaType             `json:"media_type" binding:"required,oneof=photo video"`
	MediaRef       string                       `json:"media_ref" binding:"required"`
	Caption        string                       `json:"caption"`
}

// PublishContentResponse reports the stored item and how many subscribers
// were queued for notification
type PublishContentResponse struct {
	Content  *models.ContentItem `json:"content"`
	Notified int                 `json:"notified"`
}

// PublishContent stores a content item and queues subscriber notifications
func (h *Handler) PublishContent(c *gin.Context) {
	var req PublishContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, notified, err := h.svc.Content.PublishContent(c.Request.Context(), services.NewContent{
		CreatorID:      req.CreatorID,
		UploaderID:     req.UploaderID,
		Price:          req.Price,
		Classification: req.Classification,
		MediaType:      req.MediaType,
		MediaRef:       req.MediaRef,
		Caption:        req.Caption,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.CreatedJSON(c, PublishContentResponse{Content: item, Notified: notified})
}
