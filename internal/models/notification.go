package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType enumerates the closed set of notification kinds.
type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskUpdated   NotificationType = "task_updated"
	NotificationTaskCompleted NotificationType = "task_completed"
	NotificationTaskOverdue   NotificationType = "task_overdue"
	NotificationTaskComment   NotificationType = "task_comment"
)

// NotificationTypes lists every accepted NotificationType.
var NotificationTypes = []NotificationType{
	NotificationTaskAssigned,
	NotificationTaskUpdated,
	NotificationTaskCompleted,
	NotificationTaskOverdue,
	NotificationTaskComment,
}

// Valid reports whether t belongs to the closed set.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is a message delivered to a single recipient's inbox.
//
// Recipient, sender, type and related task are fixed at creation; only the
// read flag and its timestamp change afterwards, and Read is true exactly
// when ReadAt is set.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_notifications_recipient_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RecipientID string `gorm:"type:uuid;not null;index:idx_notifications_recipient_read,priority:1;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	Recipient   *User  `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"recipient,omitempty"`
	SenderID    string `gorm:"type:uuid;not null" json:"sender_id"`
	Sender      *User  `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`

	Type    NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`

	RelatedTaskID *string `gorm:"type:uuid;index" json:"related_task_id,omitempty"`
	RelatedTask   *Task   `gorm:"foreignKey:RelatedTaskID;constraint:OnDelete:SET NULL" json:"related_task,omitempty"`

	Read     bool           `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"read"`
	ReadAt   *time.Time     `json:"read_at"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
}

// BeforeCreate assigns the notification identifier.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
