package models

import "time"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// ContentNotification is the fan-out record for one (content, subscriber) pair.
type ContentNotification struct {
	BaseModel

	ContentID    uint               `json:"content_id" gorm:"not null;uniqueIndex:idx_notification_pair"`
	SubscriberID uint               `json:"subscriber_id" gorm:"not null;uniqueIndex:idx_notification_pair"`
	CreatorID    uint               `json:"creator_id" gorm:"not null;index"`
	Status       NotificationStatus `json:"status" gorm:"size:16;not null;index"`
	RetryCount   int                `json:"retry_count" gorm:"not null;default:0"`
	LastError    string             `json:"last_error,omitempty" gorm:"type:text"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
}
