package database

import (
	"context"
	"errors"
	"time"

	"content-market/internal/models"

	"gorm.io/gorm"
)

// GetUser gets a visible user by primary key
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Scopes(visible).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// LockUser loads a visible user and locks the row for the rest of the
// transaction. Purchase writes of one buyer serialize on it.
func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Scopes(visible, forUpdate).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByExternalID gets a visible user by messaging-platform id
func (s *Store) GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Scopes(visible).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// EnsureUser returns the user with user.ExternalID, creating it on first
// interaction. A soft-deleted user is restored.
func (s *Store) EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("external_id = ?", user.ExternalID).First(&existing).Error
	if err == nil {
		if existing.DeletedAt != nil {
			if err := s.db.WithContext(ctx).Model(&existing).Update("deleted_at", nil).Error; err != nil {
				return nil, false, err
			}
			existing.DeletedAt = nil
		}
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if user.Role == "" {
		user.Role = models.RolePlain
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			// Lost a race with a concurrent first interaction
			found, ferr := s.GetUserByExternalID(ctx, user.ExternalID)
			return found, false, ferr
		}
		return nil, false, err
	}
	return user, true, nil
}

// UpdateUserRole sets the role and creator link of a user
func (s *Store) UpdateUserRole(ctx context.Context, userID uint, role models.UserRole, creatorID *uint) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Scopes(visible).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"role":       role,
			"creator_id": creatorID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteUser hides a user from every finder
func (s *Store) SoftDeleteUser(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("deleted_at", time.Now().UTC()).Error
}
