package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-market/internal/database"
)

// AccessVia names the entitlement that granted access.
type AccessVia string

const (
	AccessViaSubscription AccessVia = "subscription"
	AccessViaPurchase     AccessVia = "purchase"
)

// AccessResult is the outcome of an access check. Reason is set only when
// access is denied.
type AccessResult struct {
	Granted bool      `json:"granted"`
	Via     AccessVia `json:"via,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

func granted(via AccessVia) AccessResult {
	return AccessResult{Granted: true, Via: via}
}

func denied(reason string) AccessResult {
	return AccessResult{Reason: reason}
}

// EntitlementResolver decides whether a user may view a content item.
type EntitlementResolver struct {
	store *database.Store
	now   func() time.Time
}

// NewEntitlementResolver creates a resolver over store.
func NewEntitlementResolver(store *database.Store) *EntitlementResolver {
	return &EntitlementResolver{store: store, now: utcNow}
}

// CheckAccess resolves access for userID to contentID. An active
// subscription to the creator wins over a settled purchase of the item.
// Price and classification never grant access on their own.
func (r *EntitlementResolver) CheckAccess(ctx context.Context, userID, contentID uint) (AccessResult, error) {
	item, err := r.store.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return denied(ReasonContentNotFound), nil
		}
		return AccessResult{}, fmt.Errorf("load content %d: %w", contentID, err)
	}
	if !item.IsAvailable {
		return denied(ReasonContentUnavailable), nil
	}

	subscribed, err := r.IsSubscribed(ctx, userID, item.CreatorID)
	if err != nil {
		return AccessResult{}, err
	}
	if subscribed {
		return granted(AccessViaSubscription), nil
	}

	purchased, err := r.store.HasSettledContentPurchase(ctx, userID, contentID)
	if err != nil {
		return AccessResult{}, fmt.Errorf("check purchase of content %d: %w", contentID, err)
	}
	if purchased {
		return granted(AccessViaPurchase), nil
	}

	return denied(ReasonRequiresSubscription), nil
}

// IsSubscribed reports whether userID holds a subscription to creatorID
// that is active now.
func (r *EntitlementResolver) IsSubscribed(ctx context.Context, userID, creatorID uint) (bool, error) {
	_, err := r.store.GetActiveSubscription(ctx, userID, creatorID, r.now())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check subscription to creator %d: %w", creatorID, err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
