package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/taskflow/internal/models"
)

// Identity is the minimal view of a user taking part in a task mutation.
type Identity struct {
	ID   string
	Name string
}

// TaskState is the notification-relevant snapshot of a task.
type TaskState struct {
	ID          string
	Title       string
	Status      string
	Priority    string
	DueDate     *time.Time
	CompletedAt *time.Time
	Assignee    Identity
	Creator     Identity
}

// StateFromTask builds a TaskState from a task with AssignedTo and CreatedBy loaded.
func StateFromTask(task *models.Task) TaskState {
	state := TaskState{
		ID:          task.ID,
		Title:       task.Title,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		Assignee:    Identity{ID: task.AssignedToID},
		Creator:     Identity{ID: task.CreatedByID},
	}
	if task.AssignedTo != nil {
		state.Assignee.Name = task.AssignedTo.Name
	}
	if task.CreatedBy != nil {
		state.Creator.Name = task.CreatedBy.Name
	}
	return state
}

// Mutation describes one task change. Previous is nil for creation.
type Mutation struct {
	Previous *TaskState
	Current  TaskState
	Actor    Identity
}

// Draft is a derived notification that has not been persisted yet.
type Draft struct {
	Type      models.NotificationType
	Recipient string
	Sender    string
	Title     string
	Message   string
	TaskID    string
	Metadata  map[string]any
}

// SelfAddressed reports whether the draft would notify its own sender.
func (d Draft) SelfAddressed() bool {
	return d.Recipient == d.Sender
}

const (
	titleAssigned  = "New Task Assigned"
	titleUpdated   = "Task Updated"
	titleCompleted = "Task Completed"
	titleOverdue   = "Task Overdue"
)

// Derive applies the mutation rules and returns every draft they produce,
// self-addressed ones included. Assignment takes precedence over the
// generic update rule; completion is evaluated independently.
func Derive(m Mutation) []Draft {
	var drafts []Draft

	assigned := assigneeChanged(m)
	if assigned && m.Current.Assignee.ID != "" {
		drafts = append(drafts, assignmentDraft(m))
	}

	if !assigned && m.Previous != nil {
		if changes := trackedChanges(*m.Previous, m.Current); len(changes) > 0 {
			drafts = append(drafts, updateDraft(m, changes))
		}
	}

	if m.Previous != nil &&
		m.Previous.Status != models.TaskStatusCompleted &&
		m.Current.Status == models.TaskStatusCompleted &&
		m.Current.Creator.ID != "" {
		drafts = append(drafts, completionDraft(m))
	}

	return drafts
}

// DeriveOverdue composes the overdue reminder for task. The caller decides
// that the task is overdue. It returns false when the task has no assignee.
func DeriveOverdue(task TaskState) (Draft, bool) {
	if task.Assignee.ID == "" || task.Creator.ID == "" {
		return Draft{}, false
	}

	metadata := map[string]any{
		"overdue_date":  formatDue(task.DueDate),
		"task_priority": task.Priority,
		"task_due_date": formatDue(task.DueDate),
	}

	return Draft{
		Type:      models.NotificationTaskOverdue,
		Recipient: task.Assignee.ID,
		Sender:    task.Creator.ID,
		Title:     titleOverdue,
		Message:   fmt.Sprintf("Task \"%s\" is now overdue. Please complete it as soon as possible.", task.Title),
		TaskID:    task.ID,
		Metadata:  metadata,
	}, true
}

func assigneeChanged(m Mutation) bool {
	if m.Previous == nil {
		return true
	}
	return m.Current.Assignee.ID != "" && m.Current.Assignee.ID != m.Previous.Assignee.ID
}

func assignmentDraft(m Mutation) Draft {
	return Draft{
		Type:      models.NotificationTaskAssigned,
		Recipient: m.Current.Assignee.ID,
		Sender:    m.Actor.ID,
		Title:     titleAssigned,
		Message:   fmt.Sprintf("%s assigned you a new task: \"%s\"", actorName(m.Actor), m.Current.Title),
		TaskID:    m.Current.ID,
		Metadata:  stateMetadata(m.Current),
	}
}

func updateDraft(m Mutation, changes map[string]any) Draft {
	var message strings.Builder
	fmt.Fprintf(&message, "%s updated the task: \"%s\"", actorName(m.Actor), m.Current.Title)
	if status, ok := changes["status"]; ok {
		fmt.Fprintf(&message, " (Status changed to: %v)", status)
	}
	if priority, ok := changes["priority"]; ok {
		fmt.Fprintf(&message, " (Priority changed to: %v)", priority)
	}
	if _, ok := changes["due_date"]; ok {
		message.WriteString(" (Due date updated)")
	}

	metadata := stateMetadata(m.Current)
	metadata["changes"] = changes

	return Draft{
		Type:      models.NotificationTaskUpdated,
		Recipient: m.Current.Assignee.ID,
		Sender:    m.Actor.ID,
		Title:     titleUpdated,
		Message:   message.String(),
		TaskID:    m.Current.ID,
		Metadata:  metadata,
	}
}

func completionDraft(m Mutation) Draft {
	completedAt := m.Current.CompletedAt
	metadata := map[string]any{
		"completed_at":  formatDue(completedAt),
		"task_priority": m.Current.Priority,
	}

	return Draft{
		Type:      models.NotificationTaskCompleted,
		Recipient: m.Current.Creator.ID,
		Sender:    m.Actor.ID,
		Title:     titleCompleted,
		Message:   fmt.Sprintf("%s completed the task: \"%s\"", actorName(m.Actor), m.Current.Title),
		TaskID:    m.Current.ID,
		Metadata:  metadata,
	}
}

// trackedChanges returns the changed fields among status, priority and due date.
func trackedChanges(prev, cur TaskState) map[string]any {
	changes := make(map[string]any)
	if prev.Status != cur.Status {
		changes["status"] = cur.Status
	}
	if prev.Priority != cur.Priority {
		changes["priority"] = cur.Priority
	}
	if !sameTime(prev.DueDate, cur.DueDate) {
		changes["due_date"] = formatDue(cur.DueDate)
	}
	return changes
}

func stateMetadata(task TaskState) map[string]any {
	return map[string]any{
		"task_priority": task.Priority,
		"task_status":   task.Status,
		"task_due_date": formatDue(task.DueDate),
	}
}

func sameTime(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

func formatDue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func actorName(actor Identity) string {
	if name := strings.TrimSpace(actor.Name); name != "" {
		return name
	}
	return "Someone"
}
