package api

import (
	"net/http"
	"strconv"

	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"

	"github.com/gin-gonic/gin"
)

// EnsureUserRequest registers a messaging-platform user
type EnsureUserRequest struct {
	ExternalID   int64  `json:"external_id" binding:"required"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// EnsureUser returns the user for an external id, creating it if needed
func (h *Handler) EnsureUser(c *gin.Context) {
	var req EnsureUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Accounts.EnsureUser(c.Request.Context(), req.ExternalID, req.Username, req.LanguageCode)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessJSON(c, user)
}

// RegisterCreatorRequest represents a creator application
type RegisterCreatorRequest struct {
	UserID            uint   `json:"user_id" binding:"required"`
	DisplayName       string `json:"display_name" binding:"required"`
	SubscriptionPrice *int64 `json:"subscription_price" binding:"omitempty,min=0"`
	SubscriptionDays  *int   `json:"subscription_days" binding:"omitempty,min=1"`
}

// RegisterCreator files a creator application awaiting approval
func (h *Handler) RegisterCreator(c *gin.Context) {
	var req RegisterCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if (req.SubscriptionPrice == nil) != (req.SubscriptionDays == nil) {
		response.ErrorJSON(c, http.StatusBadRequest, "subscription_price and subscription_days go together")
		return
	}

	creator, err := h.svc.Accounts.RegisterCreator(c.Request.Context(), services.CreatorProfile{
		UserID:            req.UserID,
		DisplayName:       req.DisplayName,
		SubscriptionPrice: req.SubscriptionPrice,
		SubscriptionDays:  req.SubscriptionDays,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.CreatedJSON(c, creator)
}

// TransitionCreatorRequest moves a creator to another status
type TransitionCreatorRequest struct {
	Status models.CreatorStatus `json:"status" binding:"required,oneof=approved rejected suspended pending_approval"`
}

// TransitionCreator approves, rejects or suspends a creator
func (h *Handler) TransitionCreator(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid creator id")
		return
	}

	var req TransitionCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	creator, err := h.svc.Accounts.TransitionCreator(c.Request.Context(), uint(id), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessJSON(c, creator)
}
