package services

import (
	"context"
	"fmt"
	"time"

	"content-market/internal/database"
	"content-market/pkg/logging"
)

// ExpirationSweep deactivates subscriptions whose window has ended.
type ExpirationSweep struct {
	store     *database.Store
	publisher EventPublisher
}

func NewExpirationSweep(store *database.Store, publisher EventPublisher) *ExpirationSweep {
	return &ExpirationSweep{store: store, publisher: publisher}
}

// ExpireSubscriptions clears the active flag of every lapsed subscription.
// When the buyer has no other active-flagged subscription to the creator,
// the creator's subscriber counter is decremented in the same transaction.
// It returns the number of subscriptions expired.
func (s *ExpirationSweep) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	lapsed, err := s.store.ListLapsedSubscriptions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list lapsed subscriptions: %w", err)
	}

	expired := 0
	for _, sub := range lapsed {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		var changed bool
		err := s.store.Transaction(ctx, func(tx *database.Store) error {
			ok, err := tx.DeactivateSubscription(ctx, sub.ID)
			if err != nil || !ok {
				return err
			}
			changed = true

			remaining, err := tx.CountActiveFlaggedSubscriptions(ctx, sub.BuyerID, sub.CreatorID, sub.ID)
			if err != nil || remaining > 0 {
				return err
			}
			return tx.AdjustCreatorCounters(ctx, sub.CreatorID, -1, 0)
		})
		if err != nil {
			return expired, fmt.Errorf("expire subscription %d: %w", sub.ID, err)
		}
		if !changed {
			continue
		}

		expired++
		publishEvent(ctx, s.publisher, EventSubscriptionExpired, SubscriptionExpiredEvent{
			SubscriptionID: sub.ID,
			BuyerID:        sub.BuyerID,
			CreatorID:      sub.CreatorID,
			Timestamp:      now,
		})
	}

	if expired > 0 {
		logging.Infof("Expired %d subscriptions", expired)
	}
	return expired, nil
}
