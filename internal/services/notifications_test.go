package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"content-market/internal/database"
	"content-market/internal/models"
	"content-market/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanoutFixture struct {
	store       *database.Store
	messenger   *fakeMessenger
	fanout      *NotificationFanout
	creator     *models.Creator
	item        *models.ContentItem
	subscribers []*models.User
}

func newFanoutFixture(t *testing.T, subscribers int) *fanoutFixture {
	store := testutils.SetupTestStore(t)
	now := time.Now().UTC()
	creator := testutils.CreateApprovedCreator(t, store, 1, 300)

	f := &fanoutFixture{
		store:     store,
		messenger: &fakeMessenger{},
		creator:   creator,
		item:      testutils.CreateContent(t, store, creator, 100),
	}
	f.fanout = NewNotificationFanout(store, f.messenger, fakeLocalizer{}, 0)

	for i := 0; i < subscribers; i++ {
		user := testutils.CreateUser(t, store, int64(100+i))
		testutils.CreateActiveSubscription(t, store, user, creator, now)
		f.subscribers = append(f.subscribers, user)
	}

	// a lapsed subscriber is not notified
	lapsed := testutils.CreateUser(t, store, 999)
	require.NoError(t, store.CreateSubscription(context.Background(), &models.Subscription{
		BuyerID:   lapsed.ID,
		CreatorID: creator.ID,
		StartDate: now.Add(-72 * time.Hour),
		EndDate:   now.Add(-24 * time.Hour),
		IsActive:  true,
	}))
	return f
}

func (f *fanoutFixture) statuses(t *testing.T) map[models.NotificationStatus]int64 {
	t.Helper()
	counts, err := f.store.CountNotificationsByStatus(context.Background())
	require.NoError(t, err)
	return counts
}

func TestCreateForNewContent_NoDuplicates(t *testing.T) {
	f := newFanoutFixture(t, 3)
	ctx := context.Background()

	created, err := f.fanout.CreateForNewContent(ctx, f.creator.ID, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = f.fanout.CreateForNewContent(ctx, f.creator.ID, f.item.ID)
	require.NoError(t, err)
	assert.Zero(t, created)

	assert.Equal(t, int64(3), f.statuses(t)[models.NotificationPending])
}

func TestCreateForNewContent_ConcurrentCallsNoDuplicates(t *testing.T) {
	f := newFanoutFixture(t, 4)

	const workers = 5
	var wg sync.WaitGroup
	totals := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := f.fanout.CreateForNewContent(context.Background(), f.creator.ID, f.item.ID)
			assert.NoError(t, err)
			totals[i] = created
		}(i)
	}
	wg.Wait()

	sum := 0
	for _, n := range totals {
		sum += n
	}
	assert.Equal(t, 4, sum)
	assert.Equal(t, int64(4), f.statuses(t)[models.NotificationPending])
}

func TestCreateForNewContent_ForeignContent(t *testing.T) {
	f := newFanoutFixture(t, 1)
	other := testutils.CreateApprovedCreator(t, f.store, 2, 0)

	_, err := f.fanout.CreateForNewContent(context.Background(), other.ID, f.item.ID)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestDrainPending_SendsAndFails(t *testing.T) {
	f := newFanoutFixture(t, 3)
	ctx := context.Background()
	_, err := f.fanout.CreateForNewContent(ctx, f.creator.ID, f.item.ID)
	require.NoError(t, err)

	broken := f.subscribers[1]
	f.messenger.failFor = map[int64]error{broken.ExternalID: errors.New("bot was blocked by the user")}

	result, err := f.fanout.DrainPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Sent: 2, Failed: 1}, result)

	counts := f.statuses(t)
	assert.Zero(t, counts[models.NotificationSending])
	assert.Zero(t, counts[models.NotificationPending])
	assert.Equal(t, int64(2), counts[models.NotificationSent])
	assert.Equal(t, int64(1), counts[models.NotificationFailed])

	var failed models.ContentNotification
	require.NoError(t, f.store.DB().Where("status = ?", models.NotificationFailed).First(&failed).Error)
	assert.Equal(t, broken.ID, failed.SubscriberID)
	assert.Contains(t, failed.LastError, "bot was blocked")

	sent := f.messenger.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "en:notification.new_content:[Creator 100]", sent[0].Text)
}

func TestDrainPending_RespectsBatchSizeAndOrder(t *testing.T) {
	f := newFanoutFixture(t, 3)
	ctx := context.Background()
	_, err := f.fanout.CreateForNewContent(ctx, f.creator.ID, f.item.ID)
	require.NoError(t, err)

	result, err := f.fanout.DrainPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)

	sent := f.messenger.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, f.subscribers[0].ExternalID, sent[0].ChatID)
	assert.Equal(t, f.subscribers[1].ExternalID, sent[1].ChatID)
	assert.Equal(t, int64(1), f.statuses(t)[models.NotificationPending])
}

func TestDrainPending_CancellationLeavesNothingSending(t *testing.T) {
	f := newFanoutFixture(t, 4)
	_, err := f.fanout.CreateForNewContent(context.Background(), f.creator.ID, f.item.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// cancel while the second message is in flight
	f.messenger.onSend = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	result, err := f.fanout.DrainPending(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Sent+result.Failed)

	counts := f.statuses(t)
	assert.Zero(t, counts[models.NotificationSending])
	assert.Equal(t, int64(2), counts[models.NotificationPending])
}

func TestDrainPending_InFlightSendSurvivesCancellation(t *testing.T) {
	f := newFanoutFixture(t, 4)
	f.messenger.honorCtx = true
	_, err := f.fanout.CreateForNewContent(context.Background(), f.creator.ID, f.item.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.messenger.onSend = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	result, err := f.fanout.DrainPending(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, DrainResult{Sent: 1}, result)
	require.Len(t, f.messenger.Sent(), 1)

	counts := f.statuses(t)
	assert.Equal(t, int64(1), counts[models.NotificationSent])
	assert.Zero(t, counts[models.NotificationFailed])
	assert.Zero(t, counts[models.NotificationSending])
	assert.Equal(t, int64(3), counts[models.NotificationPending])
}

func TestDrainPending_DelayHonorsCancellation(t *testing.T) {
	f := newFanoutFixture(t, 2)
	f.fanout.sendDelay = time.Hour
	_, err := f.fanout.CreateForNewContent(context.Background(), f.creator.ID, f.item.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := f.fanout.DrainPending(ctx, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, int64(1), f.statuses(t)[models.NotificationPending])
}

type panickingMessenger struct{}

func (panickingMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	panic("boom")
}

func TestDrainPending_PanicBecomesFailure(t *testing.T) {
	f := newFanoutFixture(t, 2)
	f.fanout.messenger = panickingMessenger{}
	_, err := f.fanout.CreateForNewContent(context.Background(), f.creator.ID, f.item.ID)
	require.NoError(t, err)

	result, err := f.fanout.DrainPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Failed: 2}, result)
	assert.Zero(t, f.statuses(t)[models.NotificationSending])
}

func TestRetryFailed_AndStats(t *testing.T) {
	f := newFanoutFixture(t, 2)
	ctx := context.Background()
	_, err := f.fanout.CreateForNewContent(ctx, f.creator.ID, f.item.ID)
	require.NoError(t, err)

	f.messenger.failFor = map[int64]error{
		f.subscribers[0].ExternalID: errors.New("timeout"),
		f.subscribers[1].ExternalID: errors.New("timeout"),
	}

	const maxRetries = 2
	for round := 0; round < maxRetries; round++ {
		result, err := f.fanout.DrainPending(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Failed)

		reset, err := f.fanout.RetryFailed(ctx, maxRetries)
		require.NoError(t, err)
		assert.Equal(t, int64(2), reset)
	}

	_, err = f.fanout.DrainPending(ctx, 10)
	require.NoError(t, err)
	reset, err := f.fanout.RetryFailed(ctx, maxRetries)
	require.NoError(t, err)
	assert.Zero(t, reset, "exhausted notifications stay failed")

	stats, err := f.fanout.Stats(ctx, maxRetries)
	require.NoError(t, err)
	assert.Equal(t, NotificationStats{Failed: 2, TerminalFailures: 2}, stats)

	var n models.ContentNotification
	require.NoError(t, f.store.DB().First(&n).Error)
	assert.Equal(t, maxRetries, n.RetryCount)
}
