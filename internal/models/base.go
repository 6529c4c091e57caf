package models

import (
	"time"
)

// BaseModel provides common fields for all database models.
// DeletedAt is a plain column: reads filter it explicitly through the
// store's visible scope instead of relying on gorm's implicit soft delete.
type BaseModel struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"index"`
}

// Visible reports whether the row has not been soft-deleted.
func (m BaseModel) Visible() bool {
	return m.DeletedAt == nil
}
