package models

type UserRole string

const (
	RolePlain    UserRole = "plain"
	RoleCreator  UserRole = "creator"
	RoleOperator UserRole = "operator"
)

// User is a messaging-platform identity. Users are soft-deleted only.
type User struct {
	BaseModel

	ExternalID   int64    `json:"external_id" gorm:"not null;uniqueIndex"` // chat id on the messaging platform
	Username     string   `json:"username" gorm:"size:64;index"`
	LanguageCode string   `json:"language_code" gorm:"size:8"`
	Role         UserRole `json:"role" gorm:"size:16;not null;default:'plain'"`
	CreatorID    *uint    `json:"creator_id,omitempty" gorm:"index"`
}
