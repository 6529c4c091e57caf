package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	store       *database.Store
	coupons     *CouponEngine
	entitlement *EntitlementResolver
	publisher   *fakePublisher
	checkout    *CheckoutService
	buyer       *models.User
	creator     *models.Creator
	item        *models.ContentItem
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	store := testutils.SetupTestStore(t)
	coupons := NewCouponEngine(store, 5)
	entitlement := NewEntitlementResolver(store)
	publisher := &fakePublisher{}
	settlement := NewSettlementGateway(store, "XTR", nil)
	creator := testutils.CreateApprovedCreator(t, store, 1, 300)

	return &checkoutFixture{
		store:       store,
		coupons:     coupons,
		entitlement: entitlement,
		publisher:   publisher,
		checkout:    NewCheckoutService(store, coupons, settlement, entitlement, publisher),
		buyer:       testutils.CreateUser(t, store, 42),
		creator:     creator,
		item:        testutils.CreateContent(t, store, creator, 105),
	}
}

func (f *checkoutFixture) pay(t *testing.T, purchase *models.Purchase, paymentID string) SettlementResult {
	t.Helper()
	result, err := f.checkout.SettlePayment(context.Background(), PaymentEvent{
		PaymentID:  paymentID,
		PurchaseID: purchase.ID,
		PayerID:    f.buyer.ExternalID,
		Amount:     purchase.Amount,
		Currency:   "XTR",
	})
	require.NoError(t, err)
	return result
}

func TestCheckout_ContentPurchaseWithCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	coupon, err := f.coupons.CreateCoupon(ctx, NewCoupon{Code: "HALF", DiscountPercent: 15, UsageType: models.CouponForContent, CreatorID: &f.creator.ID})
	require.NoError(t, err)

	quote, err := f.checkout.QuoteContent(ctx, f.buyer.ID, f.item.ID, "half")
	require.NoError(t, err)
	assert.Equal(t, int64(105), quote.Original)
	assert.Equal(t, int64(90), quote.Final)

	purchase, err := f.checkout.CreateContentPurchase(ctx, f.buyer.ID, f.item.ID, "half")
	require.NoError(t, err)
	assert.Equal(t, int64(90), purchase.Amount)
	require.NotNil(t, purchase.CouponID)

	access, err := f.entitlement.CheckAccess(ctx, f.buyer.ID, f.item.ID)
	require.NoError(t, err)
	assert.False(t, access.Granted, "no access before settlement")

	result := f.pay(t, purchase, "charge-1")
	require.True(t, result.Settled)

	access, err = f.entitlement.CheckAccess(ctx, f.buyer.ID, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, AccessViaPurchase, access.Via)

	var usage models.CouponUsage
	require.NoError(t, f.store.DB().Where("coupon_id = ?", coupon.ID).First(&usage).Error)
	assert.Equal(t, f.buyer.ID, usage.BuyerID)
	assert.Equal(t, purchase.ID, *usage.PurchaseID)
	assert.Equal(t, int64(7), usage.CreatorShare)
	assert.Equal(t, int64(8), usage.PlatformShare)

	assert.Equal(t, []string{EventPurchaseSettled}, f.publisher.Keys())

	// the coupon is spent for this buyer
	_, err = f.checkout.CreateContentPurchase(ctx, f.buyer.ID, f.item.ID, "HALF")
	assert.Equal(t, ReasonCouponAlreadyUsed, ReasonOf(err))
}

func TestCheckout_RejectedCouponFailsPurchase(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	quote, err := f.checkout.QuoteContent(ctx, f.buyer.ID, f.item.ID, "NOPE")
	require.NoError(t, err)
	require.NotNil(t, quote.Coupon)
	assert.Equal(t, ReasonCouponNotFound, quote.Coupon.Reason)
	assert.Equal(t, quote.Original, quote.Final)

	_, err = f.checkout.CreateContentPurchase(ctx, f.buyer.ID, f.item.ID, "NOPE")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, ReasonCouponNotFound, ReasonOf(err))
}

func TestCheckout_ContentNotForSale(t *testing.T) {
	f := newCheckoutFixture(t)
	demo := testutils.CreateContent(t, f.store, f.creator, 0)
	require.NoError(t, f.store.DB().Model(demo).Update("classification", models.ContentDemo).Error)

	_, err := f.checkout.CreateContentPurchase(context.Background(), f.buyer.ID, demo.ID, "")
	assert.Equal(t, ReasonContentNotForSale, ReasonOf(err))

	_, err = f.checkout.CreateContentPurchase(context.Background(), f.buyer.ID, 9999, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckout_SubscriptionPurchase(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	purchase, err := f.checkout.CreateSubscriptionPurchase(ctx, f.buyer.ID, f.creator.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(300), purchase.Amount)
	require.NotNil(t, purchase.SubscriptionID)

	access, err := f.entitlement.CheckAccess(ctx, f.buyer.ID, f.item.ID)
	require.NoError(t, err)
	assert.False(t, access.Granted, "inactive until paid")

	result := f.pay(t, purchase, "charge-sub")
	require.True(t, result.Settled)

	access, err = f.entitlement.CheckAccess(ctx, f.buyer.ID, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, AccessViaSubscription, access.Via)

	creator, err := f.store.GetCreator(ctx, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, creator.SubscriberCount)

	_, err = f.checkout.CreateSubscriptionPurchase(ctx, f.buyer.ID, f.creator.ID, "")
	assert.Equal(t, ReasonSubscriptionAlreadyActive, ReasonOf(err))
}

func TestCheckout_SubscriptionRequiresOffer(t *testing.T) {
	f := newCheckoutFixture(t)
	noOffer := testutils.CreateApprovedCreator(t, f.store, 2, 0)

	_, err := f.checkout.CreateSubscriptionPurchase(context.Background(), f.buyer.ID, noOffer.ID, "")
	assert.Equal(t, ReasonCreatorNoSubscription, ReasonOf(err))
}

func TestExpireSubscriptions(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	purchase, err := f.checkout.CreateSubscriptionPurchase(ctx, f.buyer.ID, f.creator.ID, "")
	require.NoError(t, err)
	require.True(t, f.pay(t, purchase, "charge-sub").Settled)

	sweep := NewExpirationSweep(f.store, f.publisher)

	expired, err := sweep.ExpireSubscriptions(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, expired, "window still open")

	later := time.Now().UTC().Add(f.creator.SubscriptionDuration() + time.Hour)
	expired, err = sweep.ExpireSubscriptions(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	creator, err := f.store.GetCreator(ctx, f.creator.ID)
	require.NoError(t, err)
	assert.Zero(t, creator.SubscriberCount)

	sub, err := f.store.GetSubscription(ctx, *purchase.SubscriptionID)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)

	expired, err = sweep.ExpireSubscriptions(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Contains(t, f.publisher.Keys(), EventSubscriptionExpired)
}

func TestCheckout_StackedSubscriptionsQueueBackToBack(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	var purchases []*models.Purchase
	for i := 0; i < 3; i++ {
		purchase, err := f.checkout.CreateSubscriptionPurchase(ctx, f.buyer.ID, f.creator.ID, "")
		require.NoError(t, err)
		purchases = append(purchases, purchase)
	}
	for i, purchase := range purchases {
		require.True(t, f.pay(t, purchase, fmt.Sprintf("charge-stack-%d", i)).Settled)
	}

	subs := make([]*models.Subscription, len(purchases))
	for i, purchase := range purchases {
		sub, err := f.store.GetSubscription(ctx, *purchase.SubscriptionID)
		require.NoError(t, err)
		require.True(t, sub.IsActive)
		assert.Equal(t, f.creator.SubscriptionDuration(), sub.EndDate.Sub(sub.StartDate))
		subs[i] = sub
	}
	for i := 1; i < len(subs); i++ {
		assert.True(t, subs[i].StartDate.Equal(subs[i-1].EndDate), "window %d starts where %d ends", i, i-1)
	}

	// exactly one window covers any instant of the stack
	for _, sub := range subs {
		at := sub.StartDate.Add(time.Hour)
		covering := 0
		for _, other := range subs {
			if other.IsActiveAt(at) {
				covering++
			}
		}
		assert.Equal(t, 1, covering)
	}

	creator, err := f.store.GetCreator(ctx, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, creator.SubscriberCount)

	sweep := NewExpirationSweep(f.store, f.publisher)
	expired, err := sweep.ExpireSubscriptions(ctx, subs[1].EndDate.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	creator, err = f.store.GetCreator(ctx, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, creator.SubscriberCount, "last window still queued")

	expired, err = sweep.ExpireSubscriptions(ctx, subs[2].EndDate.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	creator, err = f.store.GetCreator(ctx, f.creator.ID)
	require.NoError(t, err)
	assert.Zero(t, creator.SubscriberCount)
}

func TestCheckout_CouponHeldByOpenPurchase(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	coupon, err := f.coupons.CreateCoupon(ctx, NewCoupon{Code: "HALF", DiscountPercent: 50, UsageType: models.CouponForContent, CreatorID: &f.creator.ID})
	require.NoError(t, err)
	other := testutils.CreateContent(t, f.store, f.creator, 200)

	first, err := f.checkout.CreateContentPurchase(ctx, f.buyer.ID, f.item.ID, "HALF")
	require.NoError(t, err)
	require.NotNil(t, first.CouponID)

	_, err = f.checkout.CreateContentPurchase(ctx, f.buyer.ID, f.item.ID, "HALF")
	assert.ErrorIs(t, err, ErrDuplicateOperation)
	assert.Equal(t, ReasonCouponPendingPurchase, ReasonOf(err))

	_, err = f.checkout.CreateContentPurchase(ctx, f.buyer.ID, other.ID, "HALF")
	assert.Equal(t, ReasonCouponPendingPurchase, ReasonOf(err))

	plain, err := f.checkout.CreateContentPurchase(ctx, f.buyer.ID, other.ID, "")
	require.NoError(t, err)
	assert.Nil(t, plain.CouponID)

	// another buyer is not held back
	someone := testutils.CreateUser(t, f.store, 43)
	_, err = f.checkout.CreateContentPurchase(ctx, someone.ID, f.item.ID, "HALF")
	require.NoError(t, err)

	require.True(t, f.pay(t, first, "charge-held").Settled)

	_, err = f.checkout.CreateContentPurchase(ctx, f.buyer.ID, other.ID, "HALF")
	assert.Equal(t, ReasonCouponAlreadyUsed, ReasonOf(err))

	var usages int64
	require.NoError(t, f.store.DB().Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND buyer_id = ?", coupon.ID, f.buyer.ID).
		Count(&usages).Error)
	assert.Equal(t, int64(1), usages)
}
