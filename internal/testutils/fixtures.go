package testutils

import (
	"context"
	"testing"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"

	"github.com/google/uuid"
)

// CreateUser inserts a plain user with the given messaging-platform id.
func CreateUser(t *testing.T, store *database.Store, externalID int64) *models.User {
	t.Helper()
	user, _, err := store.EnsureUser(context.Background(), &models.User{
		ExternalID:   externalID,
		Username:     "user",
		LanguageCode: "en",
	})
	if err != nil {
		t.Fatalf("create user: %s", err)
	}
	return user
}

// CreateApprovedCreator inserts an approved creator owned by a new user.
// subscriptionPrice <= 0 leaves the creator without a subscription offer.
func CreateApprovedCreator(t *testing.T, store *database.Store, externalID int64, subscriptionPrice int64) *models.Creator {
	t.Helper()
	owner := CreateUser(t, store, externalID)

	creator := &models.Creator{
		UserID:      owner.ID,
		DisplayName: "Creator",
		Status:      models.CreatorApproved,
	}
	if subscriptionPrice > 0 {
		days := 30
		creator.SubscriptionPrice = &subscriptionPrice
		creator.SubscriptionDays = &days
	}
	if err := store.CreateCreator(context.Background(), creator); err != nil {
		t.Fatalf("create creator: %s", err)
	}
	return creator
}

// CreateContent inserts an available premium photo owned by creator.
func CreateContent(t *testing.T, store *database.Store, creator *models.Creator, price int64) *models.ContentItem {
	t.Helper()
	item := &models.ContentItem{
		CreatorID:      creator.ID,
		UploaderID:     creator.UserID,
		Price:          price,
		Classification: models.ContentPremium,
		MediaType:      models.MediaPhoto,
		MediaRef:       "media/" + uuid.NewString() + ".jpg",
		IsAvailable:    true,
	}
	if err := store.CreateContent(context.Background(), item); err != nil {
		t.Fatalf("create content: %s", err)
	}
	return item
}

// CreateActiveSubscription inserts an active subscription covering now.
func CreateActiveSubscription(t *testing.T, store *database.Store, buyer *models.User, creator *models.Creator, now time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		BuyerID:   buyer.ID,
		CreatorID: creator.ID,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		IsActive:  true,
	}
	if err := store.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("create subscription: %s", err)
	}
	return sub
}

// CreateContentPurchase inserts an unsettled content purchase.
func CreateContentPurchase(t *testing.T, store *database.Store, buyer *models.User, item *models.ContentItem) *models.Purchase {
	t.Helper()
	contentID := item.ID
	purchase := &models.Purchase{
		BuyerID:        buyer.ID,
		Kind:           models.PurchaseContent,
		ContentItemID:  &contentID,
		OriginalAmount: item.Price,
		Amount:         item.Price,
		InvoicePayload: uuid.NewString(),
		PurchasedAt:    time.Now().UTC(),
	}
	if err := store.CreatePurchase(context.Background(), purchase); err != nil {
		t.Fatalf("create purchase: %s", err)
	}
	return purchase
}
