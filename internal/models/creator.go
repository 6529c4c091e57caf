package models

import "time"

type CreatorStatus string

const (
	CreatorPendingApproval CreatorStatus = "pending_approval"
	CreatorApproved        CreatorStatus = "approved"
	CreatorRejected        CreatorStatus = "rejected"
	CreatorSuspended       CreatorStatus = "suspended"
)

var creatorTransitions = map[CreatorStatus][]CreatorStatus{
	CreatorPendingApproval: {CreatorApproved, CreatorRejected},
	CreatorApproved:        {CreatorSuspended},
	CreatorSuspended:       {CreatorApproved},
	CreatorRejected:        {CreatorPendingApproval},
}

// Creator is a content owner (a "model" in the marketplace).
type Creator struct {
	BaseModel

	UserID      uint          `json:"user_id" gorm:"not null;uniqueIndex"`
	DisplayName string        `json:"display_name" gorm:"size:128;not null"`
	Status      CreatorStatus `json:"status" gorm:"size:20;not null;index"`

	// Subscription offer, both set or both nil
	SubscriptionPrice *int64 `json:"subscription_price,omitempty"`
	SubscriptionDays  *int   `json:"subscription_days,omitempty"`

	SubscriberCount int `json:"subscriber_count" gorm:"not null;default:0"`
	ContentCount    int `json:"content_count" gorm:"not null;default:0"`
}

// CanTransitionTo reports whether the approval state machine allows moving to target.
func (c *Creator) CanTransitionTo(target CreatorStatus) bool {
	for _, next := range creatorTransitions[c.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// OffersSubscription reports whether a subscription can be bought from this creator.
func (c *Creator) OffersSubscription() bool {
	return c.SubscriptionPrice != nil && c.SubscriptionDays != nil && *c.SubscriptionDays > 0
}

// SubscriptionDuration returns the length of one subscription period.
func (c *Creator) SubscriptionDuration() time.Duration {
	if c.SubscriptionDays == nil {
		return 0
	}
	return time.Duration(*c.SubscriptionDays) * 24 * time.Hour
}
