package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskflow/internal/handlers/testutil"
	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/services"
)

func seedNotifications(t *testing.T, env *testutil.Env, creatorToken, assigneeID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		createTask(t, env, creatorToken, map[string]any{
			"title":       "Task " + string(rune('A'+i)),
			"assigned_to": assigneeID,
		})
	}
}

func TestNotificationHandler_InboxLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := env.CreateUser("Xavier")
	assignee := env.CreateUser("Yara")
	creatorToken := env.TokenFor(creator)
	token := env.TokenFor(assignee)

	seedNotifications(t, env, creatorToken, assignee.ID, 3)

	w := env.Request(http.MethodGet, "/api/notifications/unread-count", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var unread struct {
		Count int64 `json:"count"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &unread)
	require.EqualValues(t, 3, unread.Count)

	w = env.Request(http.MethodGet, "/api/notifications?page=1&limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var page services.NotificationPage
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.Len(t, page.Items, 2)
	require.EqualValues(t, 3, page.Total)
	require.Equal(t, 2, page.Pages)
	require.Equal(t, `Xavier assigned you a new task: "Task C"`, page.Items[0].Message)

	target := page.Items[0].ID
	w = env.Request(http.MethodPut, "/api/notifications/"+target+"/read", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var marked services.NotificationDTO
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &marked)
	require.True(t, marked.Read)
	require.NotNil(t, marked.ReadAt)

	w = env.Request(http.MethodGet, "/api/notifications?read=false", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.EqualValues(t, 2, page.Total)

	w = env.Request(http.MethodGet, "/api/notifications/stats", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.NotificationStats
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &stats)
	require.Equal(t, services.NotificationStats{Total: 3, Unread: 2, Read: 1}, stats)

	w = env.Request(http.MethodPut, "/api/notifications/mark-all-read", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bulk struct {
		Message string `json:"message"`
		Updated int64  `json:"updated"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &bulk)
	require.Equal(t, "All notifications marked as read", bulk.Message)
	require.EqualValues(t, 2, bulk.Updated)

	w = env.Request(http.MethodDelete, "/api/notifications/"+target, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodDelete, "/api/notifications/"+target, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandler_OwnershipIsEnforced(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := env.CreateUser("Xavier")
	assignee := env.CreateUser("Yara")
	intruder := env.CreateUser("Zane")
	creatorToken := env.TokenFor(creator)

	seedNotifications(t, env, creatorToken, assignee.ID, 1)
	page := inboxOf(t, env, env.TokenFor(assignee))
	require.Len(t, page.Items, 1)
	target := page.Items[0].ID

	intruderToken := env.TokenFor(intruder)
	w := env.Request(http.MethodPut, "/api/notifications/"+target+"/read", nil, intruderToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodDelete, "/api/notifications/"+target, nil, intruderToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	require.EqualValues(t, 0, inboxOf(t, env, intruderToken).Total)

	w = env.Request(http.MethodGet, "/api/notifications", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandler_ListRejectsInvalidReadFilter(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := env.CreateUser("Xavier")
	assignee := env.CreateUser("Yara")
	seedNotifications(t, env, env.TokenFor(creator), assignee.ID, 2)
	token := env.TokenFor(assignee)

	w := env.Request(http.MethodGet, "/api/notifications?read=maybe", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "read")

	w = env.Request(http.MethodGet, "/api/notifications?read=true", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var page services.NotificationPage
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.EqualValues(t, 0, page.Total)
}

func TestNotificationHandler_CreateRequiresAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("Root")
	member := env.CreateUser("Yara")

	payload := map[string]any{
		"recipient_id": member.ID,
		"type":         string(models.NotificationTaskComment),
		"title":        "Heads up",
		"message":      "Maintenance tonight",
		"metadata":     map[string]any{"window": "22:00"},
	}

	w := env.Request(http.MethodPost, "/api/notifications", payload, env.TokenFor(member))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPost, "/api/notifications", payload, env.TokenFor(admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created services.NotificationDTO
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &created)
	require.Equal(t, models.NotificationTaskComment, created.Type)
	require.Equal(t, "22:00", created.Metadata["window"])
	require.NotNil(t, created.Sender)
	require.Equal(t, admin.ID, created.Sender.ID)

	invalid := env.Request(http.MethodPost, "/api/notifications", map[string]any{
		"recipient_id": member.ID,
		"type":         "bogus",
		"title":        "x",
		"message":      "y",
	}, env.TokenFor(admin))
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	missing := env.Request(http.MethodPost, "/api/notifications", map[string]any{"title": "x"}, env.TokenFor(admin))
	require.Equal(t, http.StatusBadRequest, missing.Code)
}
