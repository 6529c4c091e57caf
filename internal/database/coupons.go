package database

import (
	"context"

	"content-market/internal/models"

	"gorm.io/gorm"
)

// CreateCoupon creates a coupon. Code must already be normalized.
func (s *Store) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	return s.db.WithContext(ctx).Create(coupon).Error
}

// GetCoupon gets a visible coupon by id
func (s *Store) GetCoupon(ctx context.Context, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&coupon).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &coupon, nil
}

// GetCouponByCode gets a visible coupon by its normalized code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.WithContext(ctx).Scopes(visible).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &coupon, nil
}

// CountActiveCreatorCoupons counts active coupons owned by a creator
func (s *Store) CountActiveCreatorCoupons(ctx context.Context, creatorID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Coupon{}).
		Scopes(visible).
		Where("owner_type = ? AND creator_id = ? AND is_active = ?", models.CouponOwnerCreator, creatorID, true).
		Count(&count).Error
	return count, err
}

// HasCouponUsage checks whether buyer already redeemed coupon
func (s *Store) HasCouponUsage(ctx context.Context, couponID, buyerID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND buyer_id = ?", couponID, buyerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateCouponUsage inserts the usage row and increments the coupon use
// counter. Callers run it inside a transaction; a second usage for the same
// (coupon, buyer) surfaces as a unique violation.
func (s *Store) CreateCouponUsage(ctx context.Context, usage *models.CouponUsage) error {
	if err := s.db.WithContext(ctx).Create(usage).Error; err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ?", usage.CouponID).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCouponActive flips the active flag of a coupon
func (s *Store) SetCouponActive(ctx context.Context, id uint, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.Coupon{}).
		Scopes(visible).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
