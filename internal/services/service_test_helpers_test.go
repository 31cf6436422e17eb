package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/database/testutil"
	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/notifications"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notificationFixture struct {
	db    *gorm.DB
	store *notifications.Store
	svc   *NotificationService
	clock *testClock
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := notifications.NewStore(db)
	require.NoError(t, err)

	clock := newTestClock()
	svc, err := NewNotificationService(store, NotificationServiceConfig{Now: clock.Now})
	require.NoError(t, err)

	return &notificationFixture{db: db, store: store, svc: svc, clock: clock}
}

// seedInbox inserts count notifications for recipient with strictly increasing
// creation times and returns their ids oldest first.
func (f *notificationFixture) seedInbox(t *testing.T, recipient, sender string, count int) []string {
	t.Helper()
	base := f.clock.Now().Add(-time.Duration(count) * time.Minute)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n := models.Notification{
			RecipientID: recipient,
			SenderID:    sender,
			Type:        models.NotificationTaskUpdated,
			Title:       "Task Updated",
			Message:     fmt.Sprintf("update %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.db.Create(&n).Error)
		ids = append(ids, n.ID)
	}
	return ids
}

func (f *notificationFixture) unreadInStore(t *testing.T, recipient string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where(map[string]any{"recipient_id": recipient, "read": false}).
		Count(&count).Error)
	return count
}

func reverse(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return out
}

func mustCountUnread(t *testing.T, svc *NotificationService, userID string) int64 {
	t.Helper()
	count, err := svc.CountUnread(context.Background(), userID)
	require.NoError(t, err)
	return count
}
