package database

import (
	"context"
	"time"

	"content-market/internal/models"

	"gorm.io/gorm"
)

// NotificationExists checks whether a fan-out row exists for (content, subscriber)
func (s *Store) NotificationExists(ctx context.Context, contentID, subscriberID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ContentNotification{}).
		Where("content_id = ? AND subscriber_id = ?", contentID, subscriberID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateNotification inserts a pending notification
func (s *Store) CreateNotification(ctx context.Context, notification *models.ContentNotification) error {
	return s.db.WithContext(ctx).Create(notification).Error
}

// GetNotification gets a notification by id
func (s *Store) GetNotification(ctx context.Context, id uint) (*models.ContentNotification, error) {
	var notification models.ContentNotification
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&notification).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &notification, nil
}

// ListPendingNotifications lists up to limit pending notifications, oldest first
func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]models.ContentNotification, error) {
	var notifications []models.ContentNotification
	err := s.db.WithContext(ctx).Scopes(visible).
		Where("status = ?", models.NotificationPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// transitionNotification moves a notification out of from. It returns false
// when another worker changed the status first.
func (s *Store) transitionNotification(ctx context.Context, id uint, from models.NotificationStatus, updates map[string]interface{}) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.ContentNotification{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimNotification moves a notification from pending to sending
func (s *Store) ClaimNotification(ctx context.Context, id uint) (bool, error) {
	return s.transitionNotification(ctx, id, models.NotificationPending, map[string]interface{}{
		"status": models.NotificationSending,
	})
}

// MarkNotificationSent moves a notification from sending to sent
func (s *Store) MarkNotificationSent(ctx context.Context, id uint, sentAt time.Time) error {
	_, err := s.transitionNotification(ctx, id, models.NotificationSending, map[string]interface{}{
		"status":     models.NotificationSent,
		"sent_at":    sentAt,
		"last_error": "",
	})
	return err
}

// MarkNotificationFailed moves a notification from sending to failed
func (s *Store) MarkNotificationFailed(ctx context.Context, id uint, reason string) error {
	_, err := s.transitionNotification(ctx, id, models.NotificationSending, map[string]interface{}{
		"status":     models.NotificationFailed,
		"last_error": reason,
	})
	return err
}

// ReleaseNotification moves a claimed notification back to pending
func (s *Store) ReleaseNotification(ctx context.Context, id uint) error {
	_, err := s.transitionNotification(ctx, id, models.NotificationSending, map[string]interface{}{
		"status": models.NotificationPending,
	})
	return err
}

// RequeueFailedNotifications resets failed notifications below maxRetries to
// pending and increments their retry counter
func (s *Store) RequeueFailedNotifications(ctx context.Context, maxRetries int) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.ContentNotification{}).
		Scopes(visible).
		Where("status = ? AND retry_count < ?", models.NotificationFailed, maxRetries).
		Updates(map[string]interface{}{
			"status":      models.NotificationPending,
			"retry_count": gorm.Expr("retry_count + 1"),
		})
	return result.RowsAffected, result.Error
}

// CountNotificationsByStatus counts notifications per status
func (s *Store) CountNotificationsByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	var rows []struct {
		Status models.NotificationStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.ContentNotification{}).
		Scopes(visible).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.NotificationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountTerminalFailures counts failed notifications that exhausted their retries
func (s *Store) CountTerminalFailures(ctx context.Context, maxRetries int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ContentNotification{}).
		Scopes(visible).
		Where("status = ? AND retry_count >= ?", models.NotificationFailed, maxRetries).
		Count(&count).Error
	return count, err
}
