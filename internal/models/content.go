package models

import (
	"time"

	"gorm.io/datatypes"
)

type ContentClassification string

const (
	ContentDemo    ContentClassification = "demo"    // free preview
	ContentPremium ContentClassification = "premium" // paid
)

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// ContentItem is one piece of sellable media. Only the counters and the
// cached delivery metadata change after creation.
type ContentItem struct {
	BaseModel

	CreatorID      uint                  `json:"creator_id" gorm:"not null;index"`
	UploaderID     uint                  `json:"uploader_id" gorm:"not null"`
	Price          int64                 `json:"price" gorm:"not null"`
	Classification ContentClassification `json:"classification" gorm:"size:16;not null"`
	MediaType      MediaType             `json:"media_type" gorm:"size:16;not null;default:'photo'"`
	MediaRef       string                `json:"media_ref" gorm:"size:512;not null"` // storage path or URL of the original file
	Caption        string                `json:"caption" gorm:"type:text"`
	ViewCount      int64                 `json:"view_count" gorm:"not null;default:0"`
	IsAvailable    bool                  `json:"is_available" gorm:"not null"`

	// Remote handle returned by the delivery channel, reused to avoid re-uploading
	DeliveryHandle string            `json:"delivery_handle,omitempty" gorm:"size:255"`
	DeliveryMeta   datatypes.JSONMap `json:"delivery_meta,omitempty"`
}

// ViewHistory records one delivered view of a content item.
type ViewHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	ContentID uint      `json:"content_id" gorm:"not null;index"`
	ViewedAt  time.Time `json:"viewed_at" gorm:"not null"`
}
