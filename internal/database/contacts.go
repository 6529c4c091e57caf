package database

import (
	"context"
	"time"

	"content-market/internal/models"

	"gorm.io/gorm/clause"
)

// GetContactVerification gets the contact record of a user
func (s *Store) GetContactVerification(ctx context.Context, userID uint) (*models.ContactVerification, error) {
	var record models.ContactVerification
	err := s.db.WithContext(ctx).Scopes(visible).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

// SaveContactCheck upserts the contact record with the latest check result.
// A positive check clears the instruction flag.
func (s *Store) SaveContactCheck(ctx context.Context, userID uint, isContact bool, checkedAt time.Time) (*models.ContactVerification, error) {
	assignments := map[string]interface{}{
		"is_contact":      isContact,
		"last_checked_at": checkedAt,
		"updated_at":      checkedAt,
	}
	if isContact {
		assignments["user_instructed"] = false
	}

	record := models.ContactVerification{
		UserID:        userID,
		IsContact:     isContact,
		LastCheckedAt: &checkedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&record).Error
	if err != nil {
		return nil, err
	}

	return s.GetContactVerification(ctx, userID)
}

// MarkUserInstructed records that the user was told to add the contact
func (s *Store) MarkUserInstructed(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.ContactVerification{}).
		Where("user_id = ?", userID).
		Update("user_instructed", true).Error
}

// MarkAdminAlerted flags the record once the operator was alerted. It returns
// false when another attempt already flagged it.
func (s *Store) MarkAdminAlerted(ctx context.Context, userID uint, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.ContactVerification{}).
		Where("user_id = ? AND admin_alerted = ?", userID, false).
		Updates(map[string]interface{}{
			"admin_alerted":    true,
			"admin_alerted_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
