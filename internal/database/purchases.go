package database

import (
	"context"
	"time"

	"content-market/internal/models"
)

// CreatePurchase creates an unsettled purchase
func (s *Store) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return s.db.WithContext(ctx).Create(purchase).Error
}

// GetPurchase gets a visible purchase by id
func (s *Store) GetPurchase(ctx context.Context, id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&purchase).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}

// GetPurchaseByPaymentID finds the purchase a payment id was attached to.
// Soft-deleted purchases are included: a payment id is never reusable.
func (s *Store) GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&purchase).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}

// FindPurchaseWithCoupon gets the oldest visible purchase of buyer carrying
// couponID, settled or not.
func (s *Store) FindPurchaseWithCoupon(ctx context.Context, buyerID, couponID uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Scopes(visible).
		Where("buyer_id = ? AND coupon_id = ?", buyerID, couponID).
		Order("id").
		First(&purchase).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}

// HasSettledContentPurchase checks whether buyer paid for this exact content item
func (s *Store) HasSettledContentPurchase(ctx context.Context, buyerID, contentID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Scopes(visible).
		Where("buyer_id = ? AND kind = ? AND content_item_id = ? AND payment_id IS NOT NULL AND verified_at IS NOT NULL",
			buyerID, models.PurchaseContent, contentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkPurchaseSettled attaches the payment id to an unsettled purchase.
// It returns false when the purchase already carries a payment id; a payment
// id already used elsewhere surfaces as a unique violation.
func (s *Store) MarkPurchaseSettled(ctx context.Context, purchaseID uint, paymentID string, verifiedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND payment_id IS NULL", purchaseID).
		Updates(map[string]interface{}{
			"payment_id":  paymentID,
			"verified_at": verifiedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordPaymentCallback stores the audit row for a settlement attempt
func (s *Store) RecordPaymentCallback(ctx context.Context, callback *models.PaymentCallback) error {
	return s.db.WithContext(ctx).Create(callback).Error
}

// CountSettledPurchasesByPaymentID counts purchases carrying paymentID
func (s *Store) CountSettledPurchasesByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	return count, err
}
