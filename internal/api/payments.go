package api

import (
	"encoding/json"
	"net/http"

	"content-market/internal/gateway"
	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"
	"content-market/pkg/logging"

	"github.com/gin-gonic/gin"
)

// PaymentCallback settles a purchase from a signed payment provider
// callback. Rejections are final and answered with 200 so the provider does
// not redeliver them; only processing failures ask for a retry.
func (h *Handler) PaymentCallback(c *gin.Context) {
	if h.opts.CallbackSecret == "" {
		response.ErrorJSON(c, http.StatusServiceUnavailable, "Payment callbacks are not configured")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to read body")
		return
	}
	if !gateway.VerifySignature(body, h.opts.CallbackSecret, c.GetHeader(gateway.SignatureHeader)) {
		logging.Warnf("Payment callback with invalid signature from %s", c.ClientIP())
		response.ErrorJSON(c, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event services.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Checkout.SettlePayment(c.Request.Context(), event)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !result.Settled {
		h.reject(c, http.StatusOK, result.Reason, result)
		return
	}
	response.SuccessJSON(c, result)
}

// CreatePurchaseRequest opens an unsettled purchase
type CreatePurchaseRequest struct {
	BuyerID    uint                `json:"buyer_id" binding:"required"`
	Kind       models.PurchaseKind `json:"kind" binding:"required,oneof=content subscription"`
	ContentID  uint                `json:"content_id"`
	CreatorID  uint                `json:"creator_id"`
	CouponCode string              `json:"coupon_code"`
}

// CreatePurchase prices and stores a purchase awaiting payment
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var (
		purchase *models.Purchase
		err      error
	)
	switch req.Kind {
	case models.PurchaseContent:
		if req.ContentID == 0 {
			response.ErrorJSON(c, http.StatusBadRequest, "content_id is required")
			return
		}
		purchase, err = h.svc.Checkout.CreateContentPurchase(ctx, req.BuyerID, req.ContentID, req.CouponCode)
	default:
		if req.CreatorID == 0 {
			response.ErrorJSON(c, http.StatusBadRequest, "creator_id is required")
			return
		}
		purchase, err = h.svc.Checkout.CreateSubscriptionPurchase(ctx, req.BuyerID, req.CreatorID, req.CouponCode)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.CreatedJSON(c, purchase)
}
