package services

import (
	"context"
	"fmt"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/pkg/logging"

	"github.com/sirupsen/logrus"
)

// Messenger sends a chat message to a user of the messaging platform.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Localizer maps a reason or message key to text in a language.
type Localizer interface {
	GetString(lang, key string, args ...interface{}) string
}

const newContentMessageKey = "notification.new_content"

// DrainResult counts the outcomes of one drain run.
type DrainResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// NotificationStats counts notifications per state. TerminalFailures are
// failed notifications that will not be retried again.
type NotificationStats struct {
	Pending          int64 `json:"pending"`
	Sending          int64 `json:"sending"`
	Sent             int64 `json:"sent"`
	Failed           int64 `json:"failed"`
	TerminalFailures int64 `json:"terminal_failures"`
}

// NotificationFanout creates one notification per subscriber for new content
// and delivers them in rate-limited batches.
type NotificationFanout struct {
	store     *database.Store
	messenger Messenger
	localizer Localizer
	sendDelay time.Duration
	now       func() time.Time
}

// NewNotificationFanout creates the engine. sendDelay is waited between two
// consecutive sends of a drain.
func NewNotificationFanout(store *database.Store, messenger Messenger, localizer Localizer, sendDelay time.Duration) *NotificationFanout {
	return &NotificationFanout{
		store:     store,
		messenger: messenger,
		localizer: localizer,
		sendDelay: sendDelay,
		now:       utcNow,
	}
}

// CreateForNewContent creates a pending notification for every active
// subscriber of creatorID. Calling it again for the same content creates
// nothing new; the (content, subscriber) pair is unique in storage, so a
// concurrent duplicate insert is skipped as well.
func (f *NotificationFanout) CreateForNewContent(ctx context.Context, creatorID, contentID uint) (int, error) {
	item, err := f.store.GetContent(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("load content %d: %w", contentID, err)
	}
	if item.CreatorID != creatorID {
		return 0, invariant("content %d does not belong to creator %d", contentID, creatorID)
	}

	subscriberIDs, err := f.store.ListActiveSubscriberIDs(ctx, creatorID, f.now())
	if err != nil {
		return 0, fmt.Errorf("list subscribers of creator %d: %w", creatorID, err)
	}

	created := 0
	for _, subscriberID := range subscriberIDs {
		exists, err := f.store.NotificationExists(ctx, contentID, subscriberID)
		if err != nil {
			return created, fmt.Errorf("check notification: %w", err)
		}
		if exists {
			continue
		}

		notification := &models.ContentNotification{
			ContentID:    contentID,
			SubscriberID: subscriberID,
			CreatorID:    creatorID,
			Status:       models.NotificationPending,
		}
		if err := f.store.CreateNotification(ctx, notification); err != nil {
			if database.IsUniqueViolation(err) {
				continue
			}
			return created, fmt.Errorf("create notification: %w", err)
		}
		created++
	}

	logging.WithFields(logrus.Fields{
		"creator_id":  creatorID,
		"content_id":  contentID,
		"subscribers": len(subscriberIDs),
		"created":     created,
	}).Info("Notifications created for new content")
	return created, nil
}

// DrainPending sends up to batchSize pending notifications, oldest first.
// Cancellation is honored between sends only: every claimed notification
// ends Sent or Failed, or goes back to Pending if the send was never issued.
func (f *NotificationFanout) DrainPending(ctx context.Context, batchSize int) (DrainResult, error) {
	var result DrainResult
	if batchSize <= 0 {
		return result, invariant("batch size %d must be positive", batchSize)
	}

	pending, err := f.store.ListPendingNotifications(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("list pending notifications: %w", err)
	}

	// State writes outlive cancellation so nothing is left in Sending.
	persistCtx := context.WithoutCancel(ctx)

	attempted := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if attempted > 0 && f.sendDelay > 0 {
			if !sleepCtx(ctx, f.sendDelay) {
				break
			}
		}

		notification := &pending[i]
		claimed, err := f.store.ClaimNotification(persistCtx, notification.ID)
		if err != nil {
			return result, fmt.Errorf("claim notification %d: %w", notification.ID, err)
		}
		if !claimed {
			continue
		}

		if ctx.Err() != nil {
			if err := f.store.ReleaseNotification(persistCtx, notification.ID); err != nil {
				return result, fmt.Errorf("release notification %d: %w", notification.ID, err)
			}
			break
		}

		attempted++
		sendErr := f.send(persistCtx, notification)
		if sendErr != nil {
			logging.WithFields(logrus.Fields{
				"notification_id": notification.ID,
				"subscriber_id":   notification.SubscriberID,
			}).WithError(sendErr).Warn("Notification send failed")

			if err := f.store.MarkNotificationFailed(persistCtx, notification.ID, sendErr.Error()); err != nil {
				return result, fmt.Errorf("mark notification %d failed: %w", notification.ID, err)
			}
			result.Failed++
			continue
		}

		if err := f.store.MarkNotificationSent(persistCtx, notification.ID, f.now()); err != nil {
			return result, fmt.Errorf("mark notification %d sent: %w", notification.ID, err)
		}
		result.Sent++
	}

	if result.Sent+result.Failed > 0 {
		logging.Infof("Notification drain finished: sent=%d failed=%d", result.Sent, result.Failed)
	}
	return result, ctx.Err()
}

// send resolves the subscriber and content and sends the localized message.
// ctx is not cancelled by the drain's caller: once issued, a send runs to
// completion. A panicking messenger is reported as a failed send.
func (f *NotificationFanout) send(ctx context.Context, notification *models.ContentNotification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: messenger panic: %v", ErrGatewayFailure, r)
		}
	}()

	subscriber, err := f.store.GetUser(ctx, notification.SubscriberID)
	if err != nil {
		return fmt.Errorf("load subscriber %d: %w", notification.SubscriberID, err)
	}
	item, err := f.store.GetContent(ctx, notification.ContentID)
	if err != nil {
		return fmt.Errorf("load content %d: %w", notification.ContentID, err)
	}
	creator, err := f.store.GetCreator(ctx, notification.CreatorID)
	if err != nil {
		return fmt.Errorf("load creator %d: %w", notification.CreatorID, err)
	}

	text := f.localizer.GetString(subscriber.LanguageCode, newContentMessageKey, creator.DisplayName, item.Price)
	if err := f.messenger.SendMessage(ctx, subscriber.ExternalID, text); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	return nil
}

// RetryFailed moves failed notifications with retries left back to pending.
func (f *NotificationFanout) RetryFailed(ctx context.Context, maxRetries int) (int64, error) {
	reset, err := f.store.RequeueFailedNotifications(ctx, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("requeue failed notifications: %w", err)
	}
	if reset > 0 {
		logging.Infof("Requeued %d failed notifications", reset)
	}
	return reset, nil
}

// Stats counts notifications by state.
func (f *NotificationFanout) Stats(ctx context.Context, maxRetries int) (NotificationStats, error) {
	counts, err := f.store.CountNotificationsByStatus(ctx)
	if err != nil {
		return NotificationStats{}, fmt.Errorf("count notifications: %w", err)
	}
	terminal, err := f.store.CountTerminalFailures(ctx, maxRetries)
	if err != nil {
		return NotificationStats{}, fmt.Errorf("count terminal failures: %w", err)
	}

	return NotificationStats{
		Pending:          counts[models.NotificationPending],
		Sending:          counts[models.NotificationSending],
		Sent:             counts[models.NotificationSent],
		Failed:           counts[models.NotificationFailed],
		TerminalFailures: terminal,
	}, nil
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
