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

	"github.com/sirupsen/logrus"
)

// PaymentEvent is an external payment callback. PayerID is the payer's
// messaging-platform identity.
type PaymentEvent struct {
	PaymentID  string `json:"payment_id"`
	PurchaseID uint   `json:"purchase_id"`
	PayerID    int64  `json:"payer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// SettlementResult is either settled or rejected with a reason.
type SettlementResult struct {
	Settled    bool             `json:"settled"`
	PurchaseID uint             `json:"purchase_id"`
	Reason     string           `json:"reason,omitempty"`
	Purchase   *models.Purchase `json:"-"`
}

const (
	callbackSettled  = "settled"
	callbackRejected = "rejected"
)

// rejection aborts the settlement transaction with a business outcome.
type rejection struct {
	reason string
}

func (r *rejection) Error() string {
	return "settlement rejected: " + r.reason
}

func reject(reason string) error {
	return &rejection{reason: reason}
}

// SettlementGateway attaches external payments to purchases exactly once.
type SettlementGateway struct {
	store    *database.Store
	currency string
	cache    SettledPaymentCache
	now      func() time.Time
}

// NewSettlementGateway creates a gateway accepting only currency. cache may
// be nil.
func NewSettlementGateway(store *database.Store, currency string, cache SettledPaymentCache) *SettlementGateway {
	return &SettlementGateway{
		store:    store,
		currency: strings.ToUpper(currency),
		cache:    cache,
		now:      utcNow,
	}
}

// VerifyAndSettle validates event against its purchase and marks the
// purchase settled. Checks run inside one transaction and the payment id is
// unique in storage, so concurrent callbacks with the same id settle at most
// once; the losers see payment.already_processed. Only infrastructure
// failures and corrupt rows are returned as errors.
func (g *SettlementGateway) VerifyAndSettle(ctx context.Context, event PaymentEvent) (SettlementResult, error) {
	event.PaymentID = strings.TrimSpace(event.PaymentID)
	if event.PaymentID == "" {
		return g.finish(ctx, event, nil, reject(ReasonPaymentEmptyID))
	}

	if g.cache != nil {
		seen, err := g.cache.IsSettled(ctx, event.PaymentID)
		if err != nil {
			logging.Warnf("Settled payment cache lookup failed: %v", err)
		} else if seen {
			return g.finish(ctx, event, nil, reject(ReasonPaymentAlreadyProcessed))
		}
	}

	var settled *models.Purchase
	err := g.store.Transaction(ctx, func(tx *database.Store) error {
		purchase, err := g.settle(ctx, tx, event)
		if err != nil {
			return err
		}
		settled = purchase
		return nil
	})
	return g.finish(ctx, event, settled, err)
}

func (g *SettlementGateway) settle(ctx context.Context, tx *database.Store, event PaymentEvent) (*models.Purchase, error) {
	if _, err := tx.GetPurchaseByPaymentID(ctx, event.PaymentID); err == nil {
		return nil, reject(ReasonPaymentAlreadyProcessed)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("look up payment id: %w", err)
	}

	purchase, err := tx.GetPurchase(ctx, event.PurchaseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, reject(ReasonPaymentPurchaseNotFound)
		}
		return nil, fmt.Errorf("load purchase %d: %w", event.PurchaseID, err)
	}

	buyer, err := tx.GetUser(ctx, purchase.BuyerID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load buyer %d: %w", purchase.BuyerID, err)
	}
	if buyer == nil || buyer.ExternalID != event.PayerID {
		return nil, reject(ReasonPaymentPayerMismatch)
	}

	if event.Amount != purchase.Amount {
		return nil, reject(ReasonPaymentAmountMismatch)
	}
	if strings.ToUpper(strings.TrimSpace(event.Currency)) != g.currency {
		return nil, reject(ReasonPaymentCurrencyMismatch)
	}
	if purchase.PaymentID != nil {
		return nil, reject(ReasonPaymentAlreadySettled)
	}

	variant, err := purchase.Variant()
	if err != nil {
		return nil, invariant("%v", err)
	}

	now := g.now()
	ok, err := tx.MarkPurchaseSettled(ctx, purchase.ID, event.PaymentID, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, reject(ReasonPaymentAlreadyProcessed)
		}
		return nil, fmt.Errorf("mark purchase %d settled: %w", purchase.ID, err)
	}
	if !ok {
		// Lost a race for this purchase; tell a replay apart from a second payment.
		current, err := tx.GetPurchase(ctx, purchase.ID)
		if err == nil && current.PaymentID != nil && *current.PaymentID == event.PaymentID {
			return nil, reject(ReasonPaymentAlreadyProcessed)
		}
		return nil, reject(ReasonPaymentAlreadySettled)
	}
	purchase.PaymentID = &event.PaymentID
	purchase.VerifiedAt = &now

	if sub, isSubscription := variant.(models.SubscriptionPurchase); isSubscription {
		if err := activateSubscription(ctx, tx, sub.SubscriptionID, now); err != nil {
			return nil, err
		}
	}

	return purchase, nil
}

// activateSubscription opens the subscription window at now, or where the
// last subscription to the same creator already paid for ends, so windows
// of one buyer queue back to back and never overlap. The buyer row is locked
// first, which serializes concurrent settlements of one buyer. The creator
// counts the buyer as a subscriber once, however many windows are queued.
func activateSubscription(ctx context.Context, tx *database.Store, subscriptionID uint, now time.Time) error {
	sub, err := tx.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return invariant("subscription %d of settled purchase is missing", subscriptionID)
		}
		return fmt.Errorf("load subscription %d: %w", subscriptionID, err)
	}

	length := sub.EndDate.Sub(sub.StartDate)
	if length <= 0 {
		return invariant("subscription %d has an empty window", subscriptionID)
	}

	if _, err := tx.LockUser(ctx, sub.BuyerID); err != nil {
		return fmt.Errorf("lock buyer %d: %w", sub.BuyerID, err)
	}

	start := now
	last, err := tx.GetLastQueuedSubscription(ctx, sub.BuyerID, sub.CreatorID, sub.ID, now)
	switch {
	case err == nil && last.EndDate.After(now):
		start = last.EndDate
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("find queued subscription: %w", err)
	}

	others, err := tx.CountActiveFlaggedSubscriptions(ctx, sub.BuyerID, sub.CreatorID, sub.ID)
	if err != nil {
		return fmt.Errorf("count subscriptions of buyer %d: %w", sub.BuyerID, err)
	}

	activated, err := tx.ActivateSubscription(ctx, sub.ID, start, start.Add(length))
	if err != nil {
		return fmt.Errorf("activate subscription %d: %w", sub.ID, err)
	}
	if !activated {
		logging.Warnf("Subscription %d was already active at settlement", sub.ID)
		return nil
	}
	if others > 0 {
		return nil
	}

	if err := tx.AdjustCreatorCounters(ctx, sub.CreatorID, 1, 0); err != nil {
		return fmt.Errorf("count subscriber on creator %d: %w", sub.CreatorID, err)
	}
	return nil
}

// finish turns the transaction outcome into a result, writes the audit row
// and marks the replay cache.
func (g *SettlementGateway) finish(ctx context.Context, event PaymentEvent, purchase *models.Purchase, err error) (SettlementResult, error) {
	var rej *rejection
	if err != nil && !errors.As(err, &rej) {
		logging.Errorf("Settlement of payment %q for purchase %d failed: %v", event.PaymentID, event.PurchaseID, err)
		return SettlementResult{}, err
	}

	result := SettlementResult{PurchaseID: event.PurchaseID}
	audit := &models.PaymentCallback{
		PaymentID:  event.PaymentID,
		PurchaseID: event.PurchaseID,
		PayerID:    event.PayerID,
		Amount:     event.Amount,
		Currency:   event.Currency,
	}
	if rej != nil {
		result.Reason = rej.reason
		audit.Outcome = callbackRejected
		audit.Reason = rej.reason
	} else {
		result.Settled = true
		result.Purchase = purchase
		audit.Outcome = callbackSettled
	}

	// Audit and cache writes must not be lost to a caller that hung up.
	persistCtx := context.WithoutCancel(ctx)
	if err := g.store.RecordPaymentCallback(persistCtx, audit); err != nil {
		logging.Errorf("Failed to record payment callback %q: %v", event.PaymentID, err)
	}

	fields := logrus.Fields{
		"payment_id":  event.PaymentID,
		"purchase_id": event.PurchaseID,
		"payer_id":    event.PayerID,
	}
	if !result.Settled {
		logging.WithFields(fields).WithField("reason", result.Reason).Info("Payment callback rejected")
		return result, nil
	}

	if g.cache != nil {
		if err := g.cache.MarkSettled(persistCtx, event.PaymentID); err != nil {
			logging.Warnf("Failed to cache settled payment %q: %v", event.PaymentID, err)
		}
	}
	logging.WithFields(fields).Info("Payment settled")
	return result, nil
}
