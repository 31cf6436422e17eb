package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/services"
	"github.com/charlesng35/taskflow/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the caller's inbox.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{service: service}, nil
}

type createNotificationRequest struct {
	RecipientID   string         `json:"recipient_id" validate:"required"`
	Type          string         `json:"type" validate:"required,max=32"`
	Title         string         `json:"title" validate:"required,max=255"`
	Message       string         `json:"message" validate:"required"`
	RelatedTaskID string         `json:"related_task_id"`
	Metadata      map[string]any `json:"metadata"`
}

// List returns a page of the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	read, ok := parseBoolQuery(c, "read")
	if !ok {
		return
	}

	page, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		UserID:   userID,
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "limit", 0),
		Read:     read,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, page)
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count, err := h.service.CountUnread(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// Stats returns the total, unread and read counts of the inbox.
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// MarkRead marks one notification read and returns it.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks every unread notification of the caller read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// Delete removes a notification owned by the caller.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Notification deleted"})
}

// Create stores a notification on behalf of the caller (administrative path).
func (h *NotificationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var payload createNotificationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Create(requestContext(c), userID, services.CreateNotificationInput{
		RecipientID:   payload.RecipientID,
		Type:          models.NotificationType(payload.Type),
		Title:         payload.Title,
		Message:       payload.Message,
		RelatedTaskID: payload.RelatedTaskID,
		Metadata:      payload.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}
