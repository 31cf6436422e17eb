package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/notifications"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
)

const (
	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
	defaultRetentionDays        = 30
)

// UserSummary is the display projection of a user attached to other resources.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// TaskSummary is the display projection of a task attached to a notification.
type TaskSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID          string                  `json:"id"`
	Recipient   *UserSummary            `json:"recipient"`
	Sender      *UserSummary            `json:"sender"`
	Type        models.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	RelatedTask *TaskSummary            `json:"related_task"`
	Read        bool                    `json:"read"`
	ReadAt      *time.Time              `json:"read_at"`
	Metadata    map[string]any          `json:"metadata,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// NotificationPage is one page of a recipient's inbox.
type NotificationPage struct {
	Items []NotificationDTO `json:"items"`
	Count int               `json:"count"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Pages int               `json:"pages"`
}

// NotificationStats summarises a recipient's inbox.
type NotificationStats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
	Read   int64 `json:"read"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID   string
	Page     int
	PageSize int
	Read     *bool
}

// CreateNotificationInput defines attributes accepted on the manual creation path.
type CreateNotificationInput struct {
	RecipientID   string
	Type          models.NotificationType
	Title         string
	Message       string
	RelatedTaskID string
	Metadata      map[string]any
}

// NotificationServiceConfig tunes inbox paging.
type NotificationServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	Now             func() time.Time
}

// NotificationService exposes the recipient-facing inbox operations.
type NotificationService struct {
	store           *notifications.Store
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store *notifications.Store, cfg NotificationServiceConfig) (*NotificationService, error) {
	if store == nil {
		return nil, errors.New("notification service: store is required")
	}

	svc := &NotificationService{
		store:           store,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		now:             cfg.Now,
	}
	if svc.maxPageSize <= 0 {
		svc.maxPageSize = maxNotificationPageSize
	}
	if svc.defaultPageSize <= 0 {
		svc.defaultPageSize = defaultNotificationPageSize
	}
	if svc.defaultPageSize > svc.maxPageSize {
		svc.defaultPageSize = svc.maxPageSize
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// List returns one page of the user's notifications, newest first. Pages past
// the end yield an empty item list.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	page, pageSize := normalisePage(input.Page, input.PageSize, s.defaultPageSize, s.maxPageSize)
	filter := notifications.Filter{Read: input.Read}

	total, err := s.store.CountByRecipient(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	result := &NotificationPage{
		Items: []NotificationDTO{},
		Total: total,
		Page:  page,
		Pages: totalPages(total, pageSize),
	}

	skip, ok := pageOffset(page, pageSize, total)
	if !ok {
		return result, nil
	}

	rows, err := s.store.FindByRecipient(ctx, userID, filter, notifications.Window{Limit: pageSize, Skip: skip})
	if err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	result.Items = mapNotificationRows(rows)
	result.Count = len(result.Items)
	return result, nil
}

// CountUnread returns the authoritative unread count for the user.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.ErrUnauthorized
	}

	unread := false
	count, err := s.store.CountByRecipient(ctx, userID, notifications.Filter{Read: &unread})
	if err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// Stats reports total, unread and read counts for the user.
func (s *NotificationService) Stats(ctx context.Context, userID string) (*NotificationStats, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	total, err := s.store.CountByRecipient(ctx, userID, notifications.Filter{})
	if err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}
	unread, err := s.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &NotificationStats{
		Total:  total,
		Unread: unread,
		Read:   total - unread,
	}, nil
}

// MarkRead marks a single notification as read. Marking an already read
// notification succeeds and leaves its read timestamp untouched.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	unread := false
	now := s.now().UTC()
	row, err := s.store.UpdateOne(ctx,
		notifications.Match{ID: notificationID, Recipient: userID, Read: &unread},
		notifications.Patch{Read: true, ReadAt: &now},
	)
	if errors.Is(err, apperrors.ErrNotFound) {
		row, err = s.store.FindOne(ctx, notifications.Match{ID: notificationID, Recipient: userID})
	}
	if err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	dto := mapNotification(*row)
	return &dto, nil
}

// MarkAllRead marks every unread notification of the user as read using one
// shared timestamp and returns the number of records changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.ErrUnauthorized
	}

	unread := false
	now := s.now().UTC()
	updated, err := s.store.UpdateMany(ctx,
		notifications.Match{Recipient: userID, Read: &unread},
		notifications.Patch{Read: true, ReadAt: &now},
	)
	if err != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", err)
	}
	return updated, nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.ErrUnauthorized
	}

	if err := s.store.DeleteOne(ctx, notifications.Match{ID: notificationID, Recipient: userID}); err != nil {
		return fmt.Errorf("notification service: delete notification: %w", err)
	}
	return nil
}

// Create stores a notification sent by senderID. Validation failures are
// returned to the caller.
func (s *NotificationService) Create(ctx context.Context, senderID string, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	notification := &models.Notification{
		RecipientID: strings.TrimSpace(input.RecipientID),
		SenderID:    senderID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
	}
	if taskID := strings.TrimSpace(input.RelatedTaskID); taskID != "" {
		notification.RelatedTaskID = &taskID
	}
	if len(input.Metadata) > 0 {
		data, err := encodeJSON(input.Metadata)
		if err != nil {
			return nil, apperrors.NewValidation("metadata must be a JSON object")
		}
		notification.Metadata = data
	}

	id, err := s.store.Insert(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	row, err := s.store.FindOne(ctx, notifications.Match{ID: id, Recipient: notification.RecipientID})
	if err != nil {
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	dto := mapNotification(*row)
	return &dto, nil
}

// CleanupOlderThan deletes read notifications created more than days ago.
func (s *NotificationService) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	ctx = ensureContext(ctx)
	if days <= 0 {
		days = defaultRetentionDays
	}

	read := true
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	removed, err := s.store.DeleteMany(ctx, notifications.Match{Read: &read, CreatedBefore: cutoff})
	if err != nil {
		return 0, fmt.Errorf("notification service: cleanup notifications: %w", err)
	}
	return removed, nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		Recipient: summariseUser(row.Recipient, row.RecipientID),
		Sender:    summariseUser(row.Sender, row.SenderID),
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Read:      row.Read,
		ReadAt:    row.ReadAt,
		Metadata:  decodeJSON(row.Metadata),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.RelatedTask != nil {
		dto.RelatedTask = &TaskSummary{
			ID:       row.RelatedTask.ID,
			Title:    row.RelatedTask.Title,
			Status:   row.RelatedTask.Status,
			Priority: row.RelatedTask.Priority,
		}
	}
	return dto
}

func summariseUser(user *models.User, fallbackID string) *UserSummary {
	if user == nil {
		if fallbackID == "" {
			return nil
		}
		return &UserSummary{ID: fallbackID}
	}
	return &UserSummary{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
	}
}
