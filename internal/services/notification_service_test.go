package services

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskflow/internal/database/testutil"
	"github.com/charlesng35/taskflow/internal/models"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
)

func TestNewNotificationServiceDefaults(t *testing.T) {
	_, err := NewNotificationService(nil, NotificationServiceConfig{})
	require.Error(t, err)

	f := newNotificationFixture(t)
	require.Equal(t, defaultNotificationPageSize, f.svc.defaultPageSize)
	require.Equal(t, maxNotificationPageSize, f.svc.maxPageSize)
}

func TestNotificationServiceCreateAndList(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()

	dto, err := f.svc.Create(ctx, bob.ID, CreateNotificationInput{
		RecipientID: alice.ID,
		Type:        models.NotificationTaskComment,
		Title:       "New comment",
		Message:     "Bob commented on your task",
		Metadata:    map[string]any{"comment": "looks good"},
	})
	require.NoError(t, err)
	require.Equal(t, models.NotificationTaskComment, dto.Type)
	require.Equal(t, "Bob", dto.Sender.Name)
	require.Equal(t, "Alice", dto.Recipient.Name)
	require.False(t, dto.Read)
	require.Nil(t, dto.ReadAt)
	require.Equal(t, "looks good", dto.Metadata["comment"])

	page, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, 1, page.Count)
	require.Equal(t, 1, page.Pages)
	require.Equal(t, dto.ID, page.Items[0].ID)
	require.Equal(t, bob.Email, page.Items[0].Sender.Email)
}

func TestNotificationDTOPayloadIsProjectionOnly(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")

	dto, err := f.svc.Create(context.Background(), bob.ID, CreateNotificationInput{
		RecipientID: alice.ID,
		Type:        models.NotificationTaskComment,
		Title:       "New comment",
		Message:     "Bob commented on your task",
		Metadata:    map[string]any{"comment": "looks good"},
	})
	require.NoError(t, err)

	data, err := json.Marshal(dto)
	require.NoError(t, err)
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &payload))

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	require.ElementsMatch(t, []string{
		"id", "recipient", "sender", "type", "title", "message",
		"related_task", "read", "read_at", "metadata", "created_at", "updated_at",
	}, keys)
	require.Equal(t, reflect.TypeOf(NotificationDTO{}).NumField(), len(keys))
}

func TestNotificationServiceCreateSurfacesValidation(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, bob.ID, CreateNotificationInput{
		RecipientID: alice.ID,
		Type:        "task_archived",
		Title:       "Archived",
		Message:     "gone",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Create(ctx, bob.ID, CreateNotificationInput{
		RecipientID: alice.ID,
		Type:        models.NotificationTaskComment,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Create(ctx, "", CreateNotificationInput{RecipientID: alice.ID})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestNotificationServiceMarkReadIsIdempotent(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 1)

	first, err := f.svc.MarkRead(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	require.True(t, first.Read)
	require.NotNil(t, first.ReadAt)
	require.True(t, first.ReadAt.Equal(f.clock.Now()))

	f.clock.Advance(time.Hour)

	second, err := f.svc.MarkRead(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	require.True(t, second.Read)
	require.True(t, second.ReadAt.Equal(*first.ReadAt))

	_, err = f.svc.MarkRead(ctx, alice.ID, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceOwnershipIsolation(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	aliceIDs := f.seedInbox(t, alice.ID, bob.ID, 2)
	f.seedInbox(t, bob.ID, alice.ID, 3)

	_, err := f.svc.MarkRead(ctx, bob.ID, aliceIDs[0])
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, bob.ID, aliceIDs[1]), apperrors.ErrNotFound)

	page, err := f.svc.List(ctx, ListNotificationsInput{UserID: bob.ID, PageSize: 50})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	for _, item := range page.Items {
		require.Equal(t, bob.ID, item.Recipient.ID)
	}

	updated, err := f.svc.MarkAllRead(ctx, bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, updated)
	require.EqualValues(t, 2, f.unreadInStore(t, alice.ID))
}

func TestNotificationServicePaginationCoversInbox(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 23)

	var collected []string
	for page := 1; page <= 3; page++ {
		result, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Page: page, PageSize: 10})
		require.NoError(t, err)
		require.EqualValues(t, 23, result.Total)
		require.Equal(t, 3, result.Pages)
		require.Equal(t, page, result.Page)
		for _, item := range result.Items {
			collected = append(collected, item.ID)
		}
	}
	require.Equal(t, reverse(ids), collected)

	beyond, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Page: 4, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, beyond.Items)
	require.Equal(t, 0, beyond.Count)
	require.EqualValues(t, 23, beyond.Total)
}

func TestNotificationServiceListHugePageIsEmpty(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	f.seedInbox(t, alice.ID, bob.ID, 3)

	for _, page := range []int{2, 1<<62 + 1, math.MaxInt} {
		result, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Page: page, PageSize: 20})
		require.NoError(t, err)
		require.Empty(t, result.Items, "page %d", page)
		require.Equal(t, 0, result.Count)
		require.Equal(t, page, result.Page)
		require.Equal(t, 1, result.Pages)
		require.EqualValues(t, 3, result.Total)
	}
}

func TestNotificationServiceListNormalisesPaging(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	f.seedInbox(t, alice.ID, bob.ID, 25)

	result, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Page: -3})
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 20, result.Count)
	require.Equal(t, 2, result.Pages)

	result, err = f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, PageSize: 10_000})
	require.NoError(t, err)
	require.Equal(t, 25, result.Count)
	require.Equal(t, 1, result.Pages)

	empty, err := f.svc.List(ctx, ListNotificationsInput{UserID: bob.ID})
	require.NoError(t, err)
	require.NotNil(t, empty.Items)
	require.Equal(t, 0, empty.Pages)
}

func TestNotificationServiceReadFilter(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 4)

	_, err := f.svc.MarkRead(ctx, alice.ID, ids[0])
	require.NoError(t, err)

	read := true
	page, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Read: &read})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, ids[0], page.Items[0].ID)

	unread := false
	page, err = f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID, Read: &unread})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
}

func TestNotificationServiceMarkAllReadKeepsExistingTimestamps(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 8)

	earlier := make(map[string]time.Time)
	for _, id := range ids[:3] {
		dto, err := f.svc.MarkRead(ctx, alice.ID, id)
		require.NoError(t, err)
		earlier[id] = *dto.ReadAt
	}
	require.EqualValues(t, 5, mustCountUnread(t, f.svc, alice.ID))

	f.clock.Advance(2 * time.Hour)
	updated, err := f.svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, updated)
	require.EqualValues(t, 0, mustCountUnread(t, f.svc, alice.ID))

	var rows []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", alice.ID).Find(&rows).Error)
	require.Len(t, rows, 8)
	for _, row := range rows {
		require.True(t, row.Read)
		require.NotNil(t, row.ReadAt)
		if at, ok := earlier[row.ID]; ok {
			require.True(t, row.ReadAt.Equal(at), "read_at of %s changed", row.ID)
		} else {
			require.True(t, row.ReadAt.Equal(f.clock.Now()))
		}
	}

	updated, err = f.svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestNotificationServiceUnreadCountTracksTransitions(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 6)

	check := func() {
		require.Equal(t, f.unreadInStore(t, alice.ID), mustCountUnread(t, f.svc, alice.ID))
	}

	check()
	_, err := f.svc.MarkRead(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	check()
	_, err = f.svc.MarkRead(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	check()
	require.NoError(t, f.svc.Delete(ctx, alice.ID, ids[0]))
	check()
	require.NoError(t, f.svc.Delete(ctx, alice.ID, ids[1]))
	check()
	_, err = f.svc.Create(ctx, bob.ID, CreateNotificationInput{
		RecipientID: alice.ID,
		Type:        models.NotificationTaskComment,
		Title:       "Comment",
		Message:     "ping",
	})
	require.NoError(t, err)
	check()
	_, err = f.svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	check()
	require.Zero(t, mustCountUnread(t, f.svc, alice.ID))
}

func TestNotificationServiceStats(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()
	ids := f.seedInbox(t, alice.ID, bob.ID, 5)

	_, err := f.svc.MarkRead(ctx, alice.ID, ids[2])
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, NotificationStats{Total: 5, Unread: 4, Read: 1}, *stats)
}

func TestNotificationServiceCleanupOlderThan(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")
	bob := testutil.MustCreateUser(t, f.db, "user-bob", "Bob")
	ctx := context.Background()

	old := f.clock.Now().Add(-45 * 24 * time.Hour)
	readAt := old.Add(time.Hour)
	rows := []models.Notification{
		{RecipientID: alice.ID, SenderID: bob.ID, Type: models.NotificationTaskUpdated, Title: "old read", Message: "x", CreatedAt: old, Read: true, ReadAt: &readAt},
		{RecipientID: alice.ID, SenderID: bob.ID, Type: models.NotificationTaskUpdated, Title: "old unread", Message: "x", CreatedAt: old},
		{RecipientID: alice.ID, SenderID: bob.ID, Type: models.NotificationTaskUpdated, Title: "recent read", Message: "x", CreatedAt: f.clock.Now(), Read: true, ReadAt: &readAt},
	}
	for i := range rows {
		require.NoError(t, f.db.Create(&rows[i]).Error)
	}

	removed, err := f.svc.CleanupOlderThan(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	page, err := f.svc.List(ctx, ListNotificationsInput{UserID: alice.ID})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
}

func TestNotificationServicePropagatesStoreFailures(t *testing.T) {
	f := newNotificationFixture(t)
	alice := testutil.MustCreateUser(t, f.db, "user-alice", "Alice")

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.List(context.Background(), ListNotificationsInput{UserID: alice.ID})
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	require.True(t, apperrors.IsRetryable(err))

	_, err = f.svc.MarkAllRead(context.Background(), alice.ID)
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestNotificationServiceRequiresUser(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, ListNotificationsInput{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = f.svc.CountUnread(ctx, " ")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = f.svc.MarkRead(ctx, "", "id")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
