package services

import (
	"context"
	"time"

	"content-market/pkg/logging"
)

// EventPublisher publishes domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

const (
	EventsExchange           = "market_events"
	EventPurchaseSettled     = "purchase.settled"
	EventContentPublished    = "content.published"
	EventSubscriptionExpired = "subscription.expired"
)

type PurchaseSettledEvent struct {
	PurchaseID     uint      `json:"purchase_id"`
	BuyerID        uint      `json:"buyer_id"`
	Kind           string    `json:"kind"`
	ContentItemID  *uint     `json:"content_item_id,omitempty"`
	SubscriptionID *uint     `json:"subscription_id,omitempty"`
	Amount         int64     `json:"amount"`
	PaymentID      string    `json:"payment_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type ContentPublishedEvent struct {
	ContentID     uint      `json:"content_id"`
	CreatorID     uint      `json:"creator_id"`
	Price         int64     `json:"price"`
	Notifications int       `json:"notifications"`
	Timestamp     time.Time `json:"timestamp"`
}

type SubscriptionExpiredEvent struct {
	SubscriptionID uint      `json:"subscription_id"`
	BuyerID        uint      `json:"buyer_id"`
	CreatorID      uint      `json:"creator_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// publishEvent sends an event after its write committed. Broker failures are
// logged; the write is not undone.
func publishEvent(ctx context.Context, publisher EventPublisher, routingKey string, event interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), EventsExchange, routingKey, event); err != nil {
		logging.Errorf("Failed to publish %s event: %v", routingKey, err)
	}
}
