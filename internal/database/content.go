package database

import (
	"context"

	"content-market/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateContent creates a content item
func (s *Store) CreateContent(ctx context.Context, item *models.ContentItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

// GetContent gets a visible content item by id
func (s *Store) GetContent(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// RecordView inserts a view-history row and bumps the content view counter
// in one statement pair. Callers run it inside a transaction.
func (s *Store) RecordView(ctx context.Context, view *models.ViewHistory) error {
	if err := s.db.WithContext(ctx).Create(view).Error; err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("id = ?", view.ContentID).
		Update("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountViews counts view-history rows for a content item
func (s *Store) CountViews(ctx context.Context, contentID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ViewHistory{}).
		Where("content_id = ?", contentID).
		Count(&count).Error
	return count, err
}

// SaveDeliveryHandle caches the remote media handle returned by the delivery channel
func (s *Store) SaveDeliveryHandle(ctx context.Context, contentID uint, handle string, meta map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("id = ?", contentID).
		Updates(map[string]interface{}{
			"delivery_handle": handle,
			"delivery_meta":   datatypes.JSONMap(meta),
		}).Error
}
