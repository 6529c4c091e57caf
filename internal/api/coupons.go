package api

import (
	"net/http"
	"strconv"
	"time"

	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"

	"github.com/gin-gonic/gin"
)

// QuoteCouponRequest checks a code against a prospective purchase
type QuoteCouponRequest struct {
	Code           string                 `json:"code" binding:"required"`
	BuyerID        uint                   `json:"buyer_id" binding:"required"`
	UsageType      models.CouponUsageType `json:"usage_type" binding:"required,oneof=content subscription"`
	CreatorID      uint                   `json:"creator_id" binding:"required"`
	OriginalAmount int64                  `json:"original_amount" binding:"min=0"`
}

// QuoteCouponResponse is the discount a valid code would give
type QuoteCouponResponse struct {
	Code     string            `json:"code"`
	Discount services.Discount `json:"discount"`
}

// QuoteCoupon validates a coupon code without recording a usage
func (h *Handler) QuoteCoupon(c *gin.Context) {
	var req QuoteCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	outcome, err := h.svc.Coupons.Apply(c.Request.Context(), services.CouponRequest{
		Code:           req.Code,
		BuyerID:        req.BuyerID,
		UsageType:      req.UsageType,
		CreatorID:      req.CreatorID,
		OriginalAmount: req.OriginalAmount,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !outcome.Valid {
		h.reject(c, http.StatusOK, outcome.Reason, nil)
		return
	}
	response.SuccessJSON(c, QuoteCouponResponse{
		Code:     outcome.Coupon.Code,
		Discount: outcome.Discount,
	})
}

// CreateCouponRequest represents create coupon request. Platform coupons
// leave creator_id empty.
type CreateCouponRequest struct {
	Code            string                 `json:"code" binding:"required"`
	DiscountPercent int                    `json:"discount_percent" binding:"required"`
	UsageType       models.CouponUsageType `json:"usage_type" binding:"required,oneof=content subscription"`
	CreatorID       *uint                  `json:"creator_id"`
	ValidFrom       *time.Time             `json:"valid_from"`
	ValidTo         *time.Time             `json:"valid_to"`
	MaxUses         *int                   `json:"max_uses" binding:"omitempty,min=1"`
}

// CreateCoupon creates a platform or creator coupon
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ValidFrom != nil && req.ValidTo != nil && req.ValidTo.Before(*req.ValidFrom) {
		response.ErrorJSON(c, http.StatusBadRequest, "valid_to must not be before valid_from")
		return
	}

	coupon, err := h.svc.Coupons.CreateCoupon(c.Request.Context(), services.NewCoupon{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		UsageType:       req.UsageType,
		CreatorID:       req.CreatorID,
		ValidFrom:       req.ValidFrom,
		ValidTo:         req.ValidTo,
		MaxUses:         req.MaxUses,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.CreatedJSON(c, coupon)
}

// DeactivateCouponRequest optionally names the creator acting on the coupon
type DeactivateCouponRequest struct {
	CreatorID *uint `json:"creator_id"`
}

// DeactivateCoupon clears a coupon's active flag
func (h *Handler) DeactivateCoupon(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid coupon id")
		return
	}

	var req DeactivateCouponRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if err := h.svc.Coupons.DeactivateCoupon(c.Request.Context(), uint(id), req.CreatorID); err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{"id": id, "is_active": false})
}
