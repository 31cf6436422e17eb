package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task is a unit of work created by one user and assigned to another.
type Task struct {
	BaseModel

	Title       string     `gorm:"type:varchar(100);not null" json:"title"`
	Description string     `gorm:"type:varchar(500)" json:"description"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending';index:idx_tasks_assignee_status,priority:2" json:"status"`
	Priority    string     `gorm:"type:varchar(16);not null;default:'medium'" json:"priority"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	AssignedToID string `gorm:"type:uuid;not null;index:idx_tasks_assignee_status,priority:1" json:"assigned_to_id"`
	AssignedTo   *User  `gorm:"foreignKey:AssignedToID;constraint:OnDelete:CASCADE" json:"assigned_to,omitempty"`
	CreatedByID  string `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy    *User  `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE" json:"created_by,omitempty"`

	Tags datatypes.JSON `json:"tags,omitempty"`
}
