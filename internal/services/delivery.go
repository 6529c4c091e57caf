package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-market/internal/database"
	"content-market/internal/gateway"
	"content-market/internal/models"
	"content-market/pkg/logging"

	"github.com/sirupsen/logrus"
)

// DeliveryGateway checks contacts and sends self-destructing media through
// the secondary delivery channel.
type DeliveryGateway interface {
	IsContact(ctx context.Context, recipient string) (bool, error)
	SendPhotoWithTimer(ctx context.Context, recipient string, media gateway.MediaRef, caption string, seconds int) (gateway.SendResult, error)
	SendVideoWithTimer(ctx context.Context, recipient string, media gateway.MediaRef, caption string, seconds int) (gateway.SendResult, error)
}

// AdminAlerter tells the operator that a user cannot receive media.
type AdminAlerter interface {
	AlertContactMissing(ctx context.Context, user *models.User, recipient string) error
}

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryBlocked   DeliveryStatus = "blocked"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryRequest describes one media delivery. ViewerID is the user the
// view is attributed to; nil skips analytics and contact bookkeeping.
type DeliveryRequest struct {
	Recipient           string
	ContentID           uint
	ViewerID            *uint
	Caption             string
	SelfDestructSeconds int
}

// DeliveryResult is delivered, blocked (recipient is not a contact) or
// failed. Detail preserves the underlying error text for logs; it is not
// meant for end users.
type DeliveryResult struct {
	Status DeliveryStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Detail string         `json:"-"`
}

func deliveryFailed(reason string, err error) DeliveryResult {
	result := DeliveryResult{Status: DeliveryFailed, Reason: reason}
	if err != nil {
		result.Detail = err.Error()
	}
	return result
}

// DeliveryDispatcher gates media delivery on the contact precondition.
type DeliveryDispatcher struct {
	store   *database.Store
	gateway DeliveryGateway
	alerter AdminAlerter
	now     func() time.Time
}

// NewDeliveryDispatcher creates a dispatcher. alerter may be nil.
func NewDeliveryDispatcher(store *database.Store, gw DeliveryGateway, alerter AdminAlerter) *DeliveryDispatcher {
	return &DeliveryDispatcher{store: store, gateway: gw, alerter: alerter, now: utcNow}
}

// DeliverPhoto delivers a photo content item
func (d *DeliveryDispatcher) DeliverPhoto(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	return d.deliver(ctx, models.MediaPhoto, req)
}

// DeliverVideo delivers a video content item
func (d *DeliveryDispatcher) DeliverVideo(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	return d.deliver(ctx, models.MediaVideo, req)
}

// deliver never fails for gateway or store trouble; those become failed
// results. Only malformed requests are returned as errors.
func (d *DeliveryDispatcher) deliver(ctx context.Context, mediaType models.MediaType, req DeliveryRequest) (DeliveryResult, error) {
	if req.Recipient == "" {
		return DeliveryResult{}, invariant("delivery without recipient")
	}
	if req.SelfDestructSeconds <= 0 {
		return DeliveryResult{}, invariant("self-destruct timer %d must be positive", req.SelfDestructSeconds)
	}

	log := logging.WithFields(logrus.Fields{
		"recipient":  req.Recipient,
		"content_id": req.ContentID,
		"media_type": mediaType,
	})

	item, err := d.store.GetContent(ctx, req.ContentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return deliveryFailed(ReasonDeliveryContentNotFound, err), nil
		}
		log.WithError(err).Error("Failed to load content for delivery")
		return deliveryFailed(ReasonDeliverySendFailed, err), nil
	}
	if item.MediaType != mediaType {
		return deliveryFailed(ReasonDeliveryMediaMismatch, nil), nil
	}

	isContact, err := d.gateway.IsContact(ctx, req.Recipient)
	if err != nil {
		log.WithError(err).Warn("Contact check failed")
		return deliveryFailed(ReasonDeliveryContactCheckError, fmt.Errorf("%w: %v", ErrGatewayFailure, err)), nil
	}

	if req.ViewerID != nil {
		d.recordContactCheck(ctx, *req.ViewerID, req.Recipient, isContact)
	}
	if !isContact {
		log.Info("Recipient has not added the sender contact")
		return DeliveryResult{Status: DeliveryBlocked, Reason: ReasonDeliveryAddContact}, nil
	}

	if req.ViewerID != nil {
		view := &models.ViewHistory{UserID: *req.ViewerID, ContentID: item.ID, ViewedAt: d.now()}
		err := d.store.Transaction(ctx, func(tx *database.Store) error {
			return tx.RecordView(ctx, view)
		})
		if err != nil {
			log.WithError(err).Error("Failed to record view")
			return deliveryFailed(ReasonDeliveryViewRecordFailed, err), nil
		}
	}

	media := gateway.MediaRef{Path: item.MediaRef, CachedHandle: item.DeliveryHandle}
	var sent gateway.SendResult
	if mediaType == models.MediaVideo {
		sent, err = d.gateway.SendVideoWithTimer(ctx, req.Recipient, media, req.Caption, req.SelfDestructSeconds)
	} else {
		sent, err = d.gateway.SendPhotoWithTimer(ctx, req.Recipient, media, req.Caption, req.SelfDestructSeconds)
	}
	if err != nil {
		log.WithError(err).Error("Timed send failed")
		return deliveryFailed(ReasonDeliverySendFailed, fmt.Errorf("%w: %v", ErrGatewayFailure, err)), nil
	}
	if !sent.Success {
		log.WithField("detail", sent.ErrorDetail).Error("Timed send rejected")
		return deliveryFailed(ReasonDeliverySendFailed, fmt.Errorf("%w: %s", ErrGatewayFailure, sent.ErrorDetail)), nil
	}

	if sent.CachedHandle != "" && sent.CachedHandle != item.DeliveryHandle {
		if err := d.store.SaveDeliveryHandle(context.WithoutCancel(ctx), item.ID, sent.CachedHandle, sent.Meta); err != nil {
			log.WithError(err).Warn("Failed to cache delivery handle")
		}
	}

	log.Info("Content delivered")
	return DeliveryResult{Status: DeliveryDelivered}, nil
}

// recordContactCheck updates the viewer's contact record. The first time a
// viewer is found without the contact the operator is alerted. Bookkeeping
// failures are logged and do not affect the delivery outcome.
func (d *DeliveryDispatcher) recordContactCheck(ctx context.Context, viewerID uint, recipient string, isContact bool) {
	now := d.now()
	record, err := d.store.SaveContactCheck(ctx, viewerID, isContact, now)
	if err != nil {
		logging.Errorf("Failed to save contact check for user %d: %v", viewerID, err)
		return
	}
	if isContact {
		return
	}

	if err := d.store.MarkUserInstructed(ctx, viewerID); err != nil {
		logging.Errorf("Failed to mark user %d instructed: %v", viewerID, err)
	}
	if record.AdminAlerted || d.alerter == nil {
		return
	}

	first, err := d.store.MarkAdminAlerted(ctx, viewerID, now)
	if err != nil {
		logging.Errorf("Failed to flag admin alert for user %d: %v", viewerID, err)
		return
	}
	if !first {
		return
	}

	user, err := d.store.GetUser(ctx, viewerID)
	if err != nil {
		logging.Errorf("Failed to load user %d for admin alert: %v", viewerID, err)
		return
	}
	if err := d.alerter.AlertContactMissing(ctx, user, recipient); err != nil {
		logging.Errorf("Failed to alert admin about user %d: %v", viewerID, err)
	}
}
