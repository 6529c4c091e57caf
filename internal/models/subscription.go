package models

import (
	"time"
)

// Model-scoped access window bought by one user from one creator.
// At most one active subscription exists per (buyer, creator).
type Subscription struct {
	BaseModel

	BuyerID   uint `json:"buyer_id" gorm:"not null;index:idx_subscription_pair"`
	CreatorID uint `json:"creator_id" gorm:"not null;index:idx_subscription_pair"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" gorm:"index"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:false;index"`
	AutoRenew bool      `json:"auto_renew" gorm:"not null;default:false"`
}

// IsActiveAt reports whether the subscription grants access at now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.IsActive && !now.Before(s.StartDate) && !now.After(s.EndDate)
}
