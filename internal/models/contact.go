package models

import "time"

// ContactVerification tracks whether a user has added the delivery identity
// to their contacts. Updated on every delivery attempt.
type ContactVerification struct {
	BaseModel

	UserID         uint       `json:"user_id" gorm:"not null;uniqueIndex"`
	IsContact      bool       `json:"is_contact" gorm:"not null;default:false"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	AdminAlerted   bool       `json:"admin_alerted" gorm:"not null;default:false"`
	AdminAlertedAt *time.Time `json:"admin_alerted_at,omitempty"`
	UserInstructed bool       `json:"user_instructed" gorm:"not null;default:false"`
}
