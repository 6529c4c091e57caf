package models

import (
	"fmt"
	"time"
)

type PurchaseKind string

const (
	PurchaseContent      PurchaseKind = "content"
	PurchaseSubscription PurchaseKind = "subscription"
)

// Purchase is stored as one row with a discriminant. Use Variant to read the
// kind-specific payload.
type Purchase struct {
	BaseModel

	BuyerID        uint         `json:"buyer_id" gorm:"not null;index"`
	Kind           PurchaseKind `json:"kind" gorm:"size:16;not null;index"`
	ContentItemID  *uint        `json:"content_item_id,omitempty" gorm:"index"`
	SubscriptionID *uint        `json:"subscription_id,omitempty" gorm:"index"`

	OriginalAmount int64  `json:"original_amount" gorm:"not null"`
	Amount         int64  `json:"amount" gorm:"not null"` // amount the payer must send
	CouponID       *uint  `json:"coupon_id,omitempty" gorm:"index"`
	InvoicePayload string `json:"invoice_payload" gorm:"size:64;uniqueIndex;not null"`

	PurchasedAt time.Time `json:"purchased_at"`

	// Payment status: nil until settled. PaymentID is the idempotency key.
	PaymentID  *string    `json:"payment_id,omitempty" gorm:"size:191;uniqueIndex"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// PurchaseVariant is either ContentPurchase or SubscriptionPurchase.
type PurchaseVariant interface {
	purchaseVariant()
}

type ContentPurchase struct {
	ContentItemID uint
}

type SubscriptionPurchase struct {
	SubscriptionID uint
}

func (ContentPurchase) purchaseVariant()      {}
func (SubscriptionPurchase) purchaseVariant() {}

// Variant returns the kind-specific payload. A row whose discriminant and
// payload disagree is corrupt and reported as an error.
func (p *Purchase) Variant() (PurchaseVariant, error) {
	switch p.Kind {
	case PurchaseContent:
		if p.ContentItemID == nil {
			return nil, fmt.Errorf("purchase %d: content purchase without content item", p.ID)
		}
		return ContentPurchase{ContentItemID: *p.ContentItemID}, nil
	case PurchaseSubscription:
		if p.SubscriptionID == nil {
			return nil, fmt.Errorf("purchase %d: subscription purchase without subscription", p.ID)
		}
		return SubscriptionPurchase{SubscriptionID: *p.SubscriptionID}, nil
	default:
		return nil, fmt.Errorf("purchase %d: unknown kind %q", p.ID, p.Kind)
	}
}

// IsSettled reports whether a payment has been attached.
func (p *Purchase) IsSettled() bool {
	return p.PaymentID != nil && p.VerifiedAt != nil
}

// PaymentCallback is an audit row for every settlement attempt, accepted or not.
type PaymentCallback struct {
	BaseModel

	PaymentID  string `json:"payment_id" gorm:"size:191;index"`
	PurchaseID uint   `json:"purchase_id" gorm:"index"`
	PayerID    int64  `json:"payer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency" gorm:"size:8"`
	Outcome    string `json:"outcome" gorm:"size:16;not null"` // settled or rejected
	Reason     string `json:"reason,omitempty" gorm:"size:64"`
}
