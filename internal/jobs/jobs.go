package jobs

import (
	"context"
	"errors"
	"time"

	"content-market/internal/config"
	"content-market/internal/services"
	"content-market/pkg/logging"
)

// NotificationRunner drains and requeues subscriber notifications.
type NotificationRunner interface {
	DrainPending(ctx context.Context, batchSize int) (services.DrainResult, error)
	RetryFailed(ctx context.Context, maxRetries int) (int64, error)
}

// SubscriptionExpirer deactivates lapsed subscriptions.
type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
}

// Jobs contains the scheduled tasks.
type Jobs struct {
	notifications NotificationRunner
	expirer       SubscriptionExpirer
	config        config.Notification
}

// NewJobs creates a new Jobs runner.
func NewJobs(notifications NotificationRunner, expirer SubscriptionExpirer, cfg config.Notification) *Jobs {
	return &Jobs{notifications: notifications, expirer: expirer, config: cfg}
}

// DrainNotifications sends one batch of pending notifications.
func (j *Jobs) DrainNotifications(ctx context.Context) {
	result, err := j.notifications.DrainPending(ctx, j.config.BatchSize)
	if errors.Is(err, context.Canceled) {
		logging.Infof("Notification drain interrupted: sent=%d failed=%d", result.Sent, result.Failed)
		return
	}
	if err != nil {
		logging.Errorf("Notification drain job failed: %v", err)
		return
	}
	if result.Sent+result.Failed > 0 {
		logging.Infof("Notification drain job finished: sent=%d failed=%d", result.Sent, result.Failed)
	}
}

// RetryNotifications requeues failed notifications that have retries left.
func (j *Jobs) RetryNotifications(ctx context.Context) {
	if _, err := j.notifications.RetryFailed(ctx, j.config.MaxRetries); err != nil {
		logging.Errorf("Notification retry job failed: %v", err)
	}
}

// ExpireSubscriptions runs the expiration sweep.
func (j *Jobs) ExpireSubscriptions(ctx context.Context) {
	if _, err := j.expirer.ExpireSubscriptions(ctx, time.Now().UTC()); err != nil {
		logging.Errorf("Subscription expiry job failed: %v", err)
	}
}
