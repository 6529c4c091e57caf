package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/pkg/logging"

	"github.com/sirupsen/logrus"
)

// Discount is the result of applying a percentage to an amount. The creator
// share is rounded down so the platform absorbs an odd unit.
type Discount struct {
	Percent       int   `json:"percent"`
	Original      int64 `json:"original"`
	Amount        int64 `json:"discount"`
	Final         int64 `json:"final"`
	CreatorShare  int64 `json:"creator_share"`
	PlatformShare int64 `json:"platform_share"`
}

// ComputeDiscount splits a percentage discount between creator and platform.
func ComputeDiscount(original int64, percent int) (Discount, error) {
	if original < 0 {
		return Discount{}, invariant("negative amount %d", original)
	}
	if percent < 0 || percent > 100 {
		return Discount{}, invariant("discount percent %d out of range", percent)
	}

	discount := original * int64(percent) / 100
	creatorShare := discount / 2
	return Discount{
		Percent:       percent,
		Original:      original,
		Amount:        discount,
		Final:         original - discount,
		CreatorShare:  creatorShare,
		PlatformShare: discount - creatorShare,
	}, nil
}

// CouponRequest describes the purchase a code is applied to. CreatorID is
// the owner of the content or subscription being bought.
type CouponRequest struct {
	Code           string
	BuyerID        uint
	UsageType      models.CouponUsageType
	CreatorID      uint
	OriginalAmount int64
}

// CouponOutcome is the validation result. On failure Reason holds the first
// rule that rejected the code.
type CouponOutcome struct {
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	Coupon   *models.Coupon `json:"-"`
	Discount Discount       `json:"discount"`
}

func rejectedCoupon(reason string) CouponOutcome {
	return CouponOutcome{Reason: reason}
}

// NewCoupon describes a coupon to create. CreatorID is required for
// creator-owned coupons and must be nil for platform coupons.
type NewCoupon struct {
	Code            string
	DiscountPercent int
	UsageType       models.CouponUsageType
	CreatorID       *uint
	ValidFrom       *time.Time
	ValidTo         *time.Time
	MaxUses         *int
}

// CouponEngine validates discount codes and records redemptions.
type CouponEngine struct {
	store     *database.Store
	maxActive int
	now       func() time.Time
}

// NewCouponEngine creates an engine allowing each creator maxActive
// simultaneously active coupons.
func NewCouponEngine(store *database.Store, maxActive int) *CouponEngine {
	return &CouponEngine{store: store, maxActive: maxActive, now: utcNow}
}

// Apply validates req.Code against the coupon rules and computes the
// discount. It does not record a usage.
func (e *CouponEngine) Apply(ctx context.Context, req CouponRequest) (CouponOutcome, error) {
	if req.OriginalAmount < 0 {
		return CouponOutcome{}, invariant("negative amount %d", req.OriginalAmount)
	}

	coupon, err := e.store.GetCouponByCode(ctx, models.NormalizeCouponCode(req.Code))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return rejectedCoupon(ReasonCouponNotFound), nil
		}
		return CouponOutcome{}, fmt.Errorf("load coupon: %w", err)
	}

	if !coupon.IsValidForUse(e.now()) {
		return rejectedCoupon(ReasonCouponNotValid), nil
	}

	used, err := e.store.HasCouponUsage(ctx, coupon.ID, req.BuyerID)
	if err != nil {
		return CouponOutcome{}, fmt.Errorf("check coupon usage: %w", err)
	}
	if used {
		return rejectedCoupon(ReasonCouponAlreadyUsed), nil
	}

	if coupon.UsageType != req.UsageType {
		return rejectedCoupon(ReasonCouponWrongUsageType), nil
	}

	if coupon.OwnerType == models.CouponOwnerCreator {
		if coupon.CreatorID == nil || *coupon.CreatorID != req.CreatorID {
			return rejectedCoupon(ReasonCouponWrongCreator), nil
		}
	}

	discount, err := ComputeDiscount(req.OriginalAmount, coupon.DiscountPercent)
	if err != nil {
		return CouponOutcome{}, err
	}
	return CouponOutcome{Valid: true, Coupon: coupon, Discount: discount}, nil
}

// RecordUsage persists a redemption and increments the coupon use counter in
// one transaction. A second redemption by the same buyer is rejected by the
// store and reported as a duplicate.
func (e *CouponEngine) RecordUsage(ctx context.Context, couponID, buyerID uint, purchaseID *uint, discount Discount) (*models.CouponUsage, error) {
	usage := &models.CouponUsage{
		CouponID:       couponID,
		BuyerID:        buyerID,
		PurchaseID:     purchaseID,
		OriginalAmount: discount.Original,
		DiscountAmount: discount.Amount,
		FinalAmount:    discount.Final,
		CreatorShare:   discount.CreatorShare,
		PlatformShare:  discount.PlatformShare,
		UsedAt:         e.now(),
	}

	err := e.store.Transaction(ctx, func(tx *database.Store) error {
		return tx.CreateCouponUsage(ctx, usage)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, reasonError(ErrDuplicateOperation, ReasonCouponAlreadyUsed)
		}
		if errors.Is(err, database.ErrNotFound) {
			return nil, reasonError(ErrNotFound, ReasonCouponNotFound)
		}
		return nil, fmt.Errorf("record coupon usage: %w", err)
	}

	logging.WithFields(logrus.Fields{
		"coupon_id": couponID,
		"buyer_id":  buyerID,
		"discount":  discount.Amount,
	}).Info("Coupon redeemed")
	return usage, nil
}

// CanCreate reports whether creatorID is below its active coupon quota.
func (e *CouponEngine) CanCreate(ctx context.Context, creatorID uint) (bool, error) {
	count, err := e.store.CountActiveCreatorCoupons(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("count active coupons: %w", err)
	}
	return count < int64(e.maxActive), nil
}

// CreateCoupon validates and stores a new coupon. The quota check is
// advisory; concurrent creations can overshoot it by a small amount.
func (e *CouponEngine) CreateCoupon(ctx context.Context, req NewCoupon) (*models.Coupon, error) {
	code := models.NormalizeCouponCode(req.Code)
	if code == "" || len(code) > 64 {
		return nil, reasonError(ErrInvalidState, ReasonCouponInvalidCode)
	}
	if req.DiscountPercent < 1 || req.DiscountPercent > 100 {
		return nil, reasonError(ErrInvalidState, ReasonCouponInvalidPercent)
	}
	if req.UsageType != models.CouponForContent && req.UsageType != models.CouponForSubscription {
		return nil, invariant("unknown coupon usage type %q", req.UsageType)
	}
	if req.ValidFrom != nil && req.ValidTo != nil && req.ValidTo.Before(*req.ValidFrom) {
		return nil, invariant("coupon validity window ends before it starts")
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		return nil, invariant("coupon max uses %d must be positive", *req.MaxUses)
	}

	coupon := &models.Coupon{
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		UsageType:       req.UsageType,
		OwnerType:       models.CouponOwnerPlatform,
		ValidFrom:       req.ValidFrom,
		ValidTo:         req.ValidTo,
		MaxUses:         req.MaxUses,
		IsActive:        true,
	}

	if req.CreatorID != nil {
		creator, err := e.store.GetCreator(ctx, *req.CreatorID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, reasonError(ErrNotFound, ReasonCreatorNotFound)
			}
			return nil, fmt.Errorf("load creator: %w", err)
		}
		if creator.Status != models.CreatorApproved {
			return nil, reasonError(ErrInvalidState, ReasonCreatorNotApproved)
		}

		ok, err := e.CanCreate(ctx, creator.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, reasonError(ErrInvalidState, ReasonCouponLimitReached)
		}

		coupon.OwnerType = models.CouponOwnerCreator
		coupon.CreatorID = &creator.ID
	}

	if err := e.store.CreateCoupon(ctx, coupon); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, reasonError(ErrInvalidState, ReasonCouponCodeTaken)
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	logging.Infof("Coupon %s created (owner=%s, percent=%d)", coupon.Code, coupon.OwnerType, coupon.DiscountPercent)
	return coupon, nil
}

// DeactivateCoupon clears the active flag. When ownerCreatorID is set the
// coupon must belong to that creator.
func (e *CouponEngine) DeactivateCoupon(ctx context.Context, couponID uint, ownerCreatorID *uint) error {
	coupon, err := e.store.GetCoupon(ctx, couponID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return reasonError(ErrNotFound, ReasonCouponNotFound)
		}
		return fmt.Errorf("load coupon: %w", err)
	}
	if ownerCreatorID != nil {
		if coupon.CreatorID == nil || *coupon.CreatorID != *ownerCreatorID {
			return reasonError(ErrInvalidState, ReasonCouponNotOwner)
		}
	}
	if !coupon.IsActive {
		return nil
	}

	if err := e.store.SetCouponActive(ctx, couponID, false); err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	logging.Infof("Coupon %s deactivated", coupon.Code)
	return nil
}
