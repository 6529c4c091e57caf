package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/pkg/logging"

	"github.com/google/uuid"
)

// Quote is the price of a purchase after an optional coupon. When a code
// was given but rejected, Coupon carries the reason and Final equals
// Original.
type Quote struct {
	Original int64          `json:"original"`
	Final    int64          `json:"final"`
	Coupon   *CouponOutcome `json:"coupon,omitempty"`
}

// CheckoutService creates purchases at quoted prices and completes them
// when the payment callback arrives.
type CheckoutService struct {
	store       *database.Store
	coupons     *CouponEngine
	settlement  *SettlementGateway
	entitlement *EntitlementResolver
	publisher   EventPublisher
	now         func() time.Time
}

func NewCheckoutService(store *database.Store, coupons *CouponEngine, settlement *SettlementGateway, entitlement *EntitlementResolver, publisher EventPublisher) *CheckoutService {
	return &CheckoutService{
		store:       store,
		coupons:     coupons,
		settlement:  settlement,
		entitlement: entitlement,
		publisher:   publisher,
		now:         utcNow,
	}
}

func (s *CheckoutService) quote(ctx context.Context, req CouponRequest) (Quote, error) {
	q := Quote{Original: req.OriginalAmount, Final: req.OriginalAmount}
	if strings.TrimSpace(req.Code) == "" {
		return q, nil
	}

	outcome, err := s.coupons.Apply(ctx, req)
	if err != nil {
		return Quote{}, err
	}
	q.Coupon = &outcome
	if outcome.Valid {
		q.Final = outcome.Discount.Final
	}
	return q, nil
}

func (s *CheckoutService) purchasableContent(ctx context.Context, contentID uint) (*models.ContentItem, error) {
	item, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, reasonError(ErrNotFound, ReasonContentNotFound)
		}
		return nil, fmt.Errorf("load content %d: %w", contentID, err)
	}
	if !item.IsAvailable || item.Classification != models.ContentPremium || item.Price <= 0 {
		return nil, reasonError(ErrInvalidState, ReasonContentNotForSale)
	}
	return item, nil
}

func (s *CheckoutService) subscribableCreator(ctx context.Context, creatorID uint) (*models.Creator, error) {
	creator, err := s.store.GetCreator(ctx, creatorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, reasonError(ErrNotFound, ReasonCreatorNotFound)
		}
		return nil, fmt.Errorf("load creator %d: %w", creatorID, err)
	}
	if creator.Status != models.CreatorApproved {
		return nil, reasonError(ErrInvalidState, ReasonCreatorNotApproved)
	}
	if !creator.OffersSubscription() {
		return nil, reasonError(ErrInvalidState, ReasonCreatorNoSubscription)
	}
	return creator, nil
}

// QuoteContent prices a content item for buyerID.
func (s *CheckoutService) QuoteContent(ctx context.Context, buyerID, contentID uint, code string) (Quote, error) {
	item, err := s.purchasableContent(ctx, contentID)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, CouponRequest{
		Code:           code,
		BuyerID:        buyerID,
		UsageType:      models.CouponForContent,
		CreatorID:      item.CreatorID,
		OriginalAmount: item.Price,
	})
}

// QuoteSubscription prices a subscription to creatorID for buyerID.
func (s *CheckoutService) QuoteSubscription(ctx context.Context, buyerID, creatorID uint, code string) (Quote, error) {
	creator, err := s.subscribableCreator(ctx, creatorID)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, CouponRequest{
		Code:           code,
		BuyerID:        buyerID,
		UsageType:      models.CouponForSubscription,
		CreatorID:      creator.ID,
		OriginalAmount: *creator.SubscriptionPrice,
	})
}

// acceptedCoupon returns the coupon to attach, or the rejection as an error.
func acceptedCoupon(q Quote) (*uint, error) {
	if q.Coupon == nil {
		return nil, nil
	}
	if !q.Coupon.Valid {
		return nil, reasonError(ErrInvalidState, q.Coupon.Reason)
	}
	return &q.Coupon.Coupon.ID, nil
}

// reserveCoupon locks the buyer row and refuses a coupon the buyer already
// attached to another purchase, paid or still open. It runs in the purchase
// transaction, so two purchases of one buyer cannot share a coupon.
func reserveCoupon(ctx context.Context, tx *database.Store, buyerID uint, couponID *uint) error {
	if couponID == nil {
		return nil
	}
	if _, err := tx.LockUser(ctx, buyerID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return reasonError(ErrNotFound, ReasonUserNotFound)
		}
		return fmt.Errorf("lock buyer %d: %w", buyerID, err)
	}

	existing, err := tx.FindPurchaseWithCoupon(ctx, buyerID, *couponID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check coupon purchases: %w", err)
	}
	if existing.PaymentID != nil {
		return reasonError(ErrDuplicateOperation, ReasonCouponAlreadyUsed)
	}
	return reasonError(ErrDuplicateOperation, ReasonCouponPendingPurchase)
}

// purchaseError passes reason errors through and wraps the rest.
func purchaseError(err error) error {
	if ReasonOf(err) != "" {
		return err
	}
	return fmt.Errorf("create purchase: %w", err)
}

func newInvoicePayload() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateContentPurchase creates an unsettled purchase of contentID at the
// quoted price. A rejected coupon code fails the purchase.
func (s *CheckoutService) CreateContentPurchase(ctx context.Context, buyerID, contentID uint, code string) (*models.Purchase, error) {
	q, err := s.QuoteContent(ctx, buyerID, contentID, code)
	if err != nil {
		return nil, err
	}
	couponID, err := acceptedCoupon(q)
	if err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		BuyerID:        buyerID,
		Kind:           models.PurchaseContent,
		ContentItemID:  &contentID,
		OriginalAmount: q.Original,
		Amount:         q.Final,
		CouponID:       couponID,
		InvoicePayload: newInvoicePayload(),
		PurchasedAt:    s.now(),
	}
	err = s.store.Transaction(ctx, func(tx *database.Store) error {
		if err := reserveCoupon(ctx, tx, buyerID, couponID); err != nil {
			return err
		}
		return tx.CreatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, purchaseError(err)
	}

	logging.Infof("Content purchase %d created (buyer=%d, content=%d, amount=%d)", purchase.ID, buyerID, contentID, purchase.Amount)
	return purchase, nil
}

// CreateSubscriptionPurchase creates an inactive subscription and its
// unsettled purchase. The subscription window is opened at settlement.
func (s *CheckoutService) CreateSubscriptionPurchase(ctx context.Context, buyerID, creatorID uint, code string) (*models.Purchase, error) {
	subscribed, err := s.entitlement.IsSubscribed(ctx, buyerID, creatorID)
	if err != nil {
		return nil, err
	}
	if subscribed {
		return nil, reasonError(ErrInvalidState, ReasonSubscriptionAlreadyActive)
	}

	creator, err := s.subscribableCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	q, err := s.QuoteSubscription(ctx, buyerID, creatorID, code)
	if err != nil {
		return nil, err
	}
	couponID, err := acceptedCoupon(q)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var purchase *models.Purchase
	err = s.store.Transaction(ctx, func(tx *database.Store) error {
		if err := reserveCoupon(ctx, tx, buyerID, couponID); err != nil {
			return err
		}

		sub := &models.Subscription{
			BuyerID:   buyerID,
			CreatorID: creator.ID,
			StartDate: now,
			EndDate:   now.Add(creator.SubscriptionDuration()),
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		purchase = &models.Purchase{
			BuyerID:        buyerID,
			Kind:           models.PurchaseSubscription,
			SubscriptionID: &sub.ID,
			OriginalAmount: q.Original,
			Amount:         q.Final,
			CouponID:       couponID,
			InvoicePayload: newInvoicePayload(),
			PurchasedAt:    now,
		}
		return tx.CreatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, purchaseError(err)
	}

	logging.Infof("Subscription purchase %d created (buyer=%d, creator=%d, amount=%d)", purchase.ID, buyerID, creatorID, purchase.Amount)
	return purchase, nil
}

// SettlePayment settles the purchase named by event. On success the coupon
// redemption is recorded and purchase.settled is published. A failed
// redemption is logged and does not undo the settlement.
func (s *CheckoutService) SettlePayment(ctx context.Context, event PaymentEvent) (SettlementResult, error) {
	result, err := s.settlement.VerifyAndSettle(ctx, event)
	if err != nil || !result.Settled {
		return result, err
	}
	purchase := result.Purchase

	if purchase.CouponID != nil {
		s.redeemCoupon(context.WithoutCancel(ctx), purchase)
	}

	publishEvent(ctx, s.publisher, EventPurchaseSettled, PurchaseSettledEvent{
		PurchaseID:     purchase.ID,
		BuyerID:        purchase.BuyerID,
		Kind:           string(purchase.Kind),
		ContentItemID:  purchase.ContentItemID,
		SubscriptionID: purchase.SubscriptionID,
		Amount:         purchase.Amount,
		PaymentID:      event.PaymentID,
		Timestamp:      *purchase.VerifiedAt,
	})
	return result, nil
}

func (s *CheckoutService) redeemCoupon(ctx context.Context, purchase *models.Purchase) {
	coupon, err := s.store.GetCoupon(ctx, *purchase.CouponID)
	if err != nil {
		logging.Errorf("Failed to load coupon %d of purchase %d: %v", *purchase.CouponID, purchase.ID, err)
		return
	}
	discount, err := ComputeDiscount(purchase.OriginalAmount, coupon.DiscountPercent)
	if err != nil {
		logging.Errorf("Failed to compute discount of purchase %d: %v", purchase.ID, err)
		return
	}
	if _, err := s.coupons.RecordUsage(ctx, coupon.ID, purchase.BuyerID, &purchase.ID, discount); err != nil {
		logging.Warnf("Coupon %d not recorded for purchase %d: %v", coupon.ID, purchase.ID, err)
	}
}
