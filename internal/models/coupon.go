package models

import (
	"strings"
	"time"
)

type CouponUsageType string

const (
	CouponForContent      CouponUsageType = "content"
	CouponForSubscription CouponUsageType = "subscription"
)

type CouponOwnerType string

const (
	CouponOwnerPlatform CouponOwnerType = "platform"
	CouponOwnerCreator  CouponOwnerType = "creator"
)

// Coupon is a percentage discount code. Code is stored normalized so the
// unique index is case-insensitive. The index skips soft-deleted rows, so a
// deleted coupon's code can be issued again.
type Coupon struct {
	BaseModel

	Code            string          `json:"code" gorm:"size:64;not null;uniqueIndex:idx_coupon_code_visible,where:deleted_at IS NULL"`
	DiscountPercent int             `json:"discount_percent" gorm:"not null"`
	UsageType       CouponUsageType `json:"usage_type" gorm:"size:16;not null"`
	OwnerType       CouponOwnerType `json:"owner_type" gorm:"size:16;not null"`
	CreatorID       *uint           `json:"creator_id,omitempty" gorm:"index"`

	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	CurrentUses int        `json:"current_uses" gorm:"not null;default:0"`
	IsActive    bool       `json:"is_active" gorm:"not null;index"`
}

// NormalizeCouponCode trims and upper-cases a user-supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidForUse checks the active flag, validity window, and use cap.
func (c *Coupon) IsValidForUse(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return false
	}
	return true
}

// CouponUsage is an immutable redemption record. One per (coupon, buyer).
type CouponUsage struct {
	ID         uint  `json:"id" gorm:"primaryKey"`
	CouponID   uint  `json:"coupon_id" gorm:"not null;uniqueIndex:idx_coupon_usage_buyer"`
	BuyerID    uint  `json:"buyer_id" gorm:"not null;uniqueIndex:idx_coupon_usage_buyer"`
	PurchaseID *uint `json:"purchase_id,omitempty" gorm:"index"`

	OriginalAmount int64 `json:"original_amount" gorm:"not null"`
	DiscountAmount int64 `json:"discount_amount" gorm:"not null"`
	FinalAmount    int64 `json:"final_amount" gorm:"not null"`
	CreatorShare   int64 `json:"creator_share" gorm:"not null"`
	PlatformShare  int64 `json:"platform_share" gorm:"not null"`

	UsedAt time.Time `json:"used_at" gorm:"not null"`
}
