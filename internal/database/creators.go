package database

import (
	"context"
	"fmt"

	"content-market/internal/models"

	"gorm.io/gorm"
)

// CreateCreator creates a creator profile
func (s *Store) CreateCreator(ctx context.Context, creator *models.Creator) error {
	return s.db.WithContext(ctx).Create(creator).Error
}

// GetCreator gets a visible creator by id
func (s *Store) GetCreator(ctx context.Context, id uint) (*models.Creator, error) {
	var creator models.Creator
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&creator).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &creator, nil
}

// GetCreatorByUserID gets the creator profile owned by a user
func (s *Store) GetCreatorByUserID(ctx context.Context, userID uint) (*models.Creator, error) {
	var creator models.Creator
	err := s.db.WithContext(ctx).Scopes(visible).Where("user_id = ?", userID).First(&creator).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &creator, nil
}

// TransitionCreatorStatus moves a creator from one status to another.
// It returns false when the creator was no longer in the from status.
func (s *Store) TransitionCreatorStatus(ctx context.Context, id uint, from, to models.CreatorStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Creator{}).
		Scopes(visible).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AdjustCreatorCounters adds the deltas to the subscriber and content counters
func (s *Store) AdjustCreatorCounters(ctx context.Context, id uint, subscribers, content int) error {
	updates := map[string]interface{}{}
	if subscribers != 0 {
		updates["subscriber_count"] = gorm.Expr("subscriber_count + ?", subscribers)
	}
	if content != 0 {
		updates["content_count"] = gorm.Expr("content_count + ?", content)
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Creator{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("adjust creator %d counters: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
