package database

import (
	"context"
	"time"

	"content-market/internal/models"
)

// CreateSubscription creates a subscription row
func (s *Store) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return s.db.WithContext(ctx).Create(subscription).Error
}

// GetSubscription gets a visible subscription by id
func (s *Store) GetSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&subscription).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &subscription, nil
}

// GetActiveSubscription gets the subscription granting buyer access to creator at now
func (s *Store) GetActiveSubscription(ctx context.Context, buyerID, creatorID uint, now time.Time) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).Scopes(visible).
		Where("buyer_id = ? AND creator_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?",
			buyerID, creatorID, true, now, now).
		Order("end_date DESC").
		First(&subscription).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &subscription, nil
}

// GetLastQueuedSubscription gets the active-flagged subscription of the pair
// that ends last, provided it ends at or after now. This covers the running
// subscription and any paid one queued behind it. excludeID is skipped.
func (s *Store) GetLastQueuedSubscription(ctx context.Context, buyerID, creatorID, excludeID uint, now time.Time) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).Scopes(visible, forUpdate).
		Where("buyer_id = ? AND creator_id = ? AND is_active = ? AND end_date >= ? AND id <> ?",
			buyerID, creatorID, true, now, excludeID).
		Order("end_date DESC").
		First(&subscription).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &subscription, nil
}

// CountActiveFlaggedSubscriptions counts visible subscriptions of the pair
// still carrying the active flag, whatever their window. excludeID is skipped.
func (s *Store) CountActiveFlaggedSubscriptions(ctx context.Context, buyerID, creatorID, excludeID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Scopes(visible).
		Where("buyer_id = ? AND creator_id = ? AND is_active = ? AND id <> ?", buyerID, creatorID, true, excludeID).
		Count(&count).Error
	return count, err
}

// ActivateSubscription opens the validity window of an inactive subscription.
// It returns false when the subscription was already active.
func (s *Store) ActivateSubscription(ctx context.Context, id uint, start, end time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Scopes(visible).
		Where("id = ? AND is_active = ?", id, false).
		Updates(map[string]interface{}{
			"start_date": start,
			"end_date":   end,
			"is_active":  true,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListActiveSubscriberIDs lists buyers holding an active subscription to creator at now
func (s *Store) ListActiveSubscriberIDs(ctx context.Context, creatorID uint, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Scopes(visible).
		Where("creator_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?", creatorID, true, now, now).
		Distinct().
		Order("buyer_id").
		Pluck("buyer_id", &ids).Error
	return ids, err
}

// ListLapsedSubscriptions lists subscriptions still flagged active whose window ended before now
func (s *Store) ListLapsedSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := s.db.WithContext(ctx).Scopes(visible).
		Where("is_active = ? AND end_date < ?", true, now).
		Find(&subscriptions).Error
	return subscriptions, err
}

// DeactivateSubscription clears the active flag. It returns false when it was already cleared.
func (s *Store) DeactivateSubscription(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
