package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/cache"
	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/notifications"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
	"github.com/charlesng35/taskflow/pkg/logger"
)

const (
	defaultTaskPageSize    = 10
	maxTaskPageSize        = 100
	defaultOverdueRenotify = 24 * time.Hour
	overdueSweepBatch      = 100
	overdueMarkPrefix      = "overdue:"
)

// TaskNotifier receives task mutations and overdue triggers.
type TaskNotifier interface {
	OnTaskMutation(ctx context.Context, m notifications.Mutation) []string
	NotifyOverdue(ctx context.Context, task notifications.TaskState) []string
}

// Actor identifies the authenticated user performing a task operation.
type Actor struct {
	ID    string
	Name  string
	Admin bool
}

func (a Actor) identity() notifications.Identity {
	return notifications.Identity{ID: a.ID, Name: a.Name}
}

// TaskDTO is the API representation of a task.
type TaskDTO struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
	CompletedAt *time.Time   `json:"completed_at"`
	AssignedTo  *UserSummary `json:"assigned_to"`
	CreatedBy   *UserSummary `json:"created_by"`
	Tags        []string     `json:"tags"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Items []TaskDTO `json:"items"`
	Count int       `json:"count"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
}

// CreateTaskInput captures the fields accepted when creating a task.
type CreateTaskInput struct {
	Title        string
	Description  string
	Status       string
	Priority     string
	DueDate      *time.Time
	AssignedToID string
	Tags         []string
}

// UpdateTaskInput enumerates mutable task attributes. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
	AssignedToID *string
	Tags         []string
}

// ListTasksInput filters and paginates task listings.
type ListTasksInput struct {
	Status   string
	Priority string
	Page     int
	PageSize int
}

// TaskServiceConfig tunes overdue handling.
type TaskServiceConfig struct {
	OverdueRenotify time.Duration
	Now             func() time.Time
}

// TaskService manages the task lifecycle and feeds mutations to the notifier.
type TaskService struct {
	db       *gorm.DB
	notifier TaskNotifier
	marks    cache.Store
	renotify time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewTaskService constructs a TaskService. marks is optional; without it every
// sweep notifies every overdue task again.
func NewTaskService(db *gorm.DB, notifier TaskNotifier, marks cache.Store, cfg TaskServiceConfig) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("task service: notifier is required")
	}

	svc := &TaskService{
		db:       db,
		notifier: notifier,
		marks:    marks,
		renotify: cfg.OverdueRenotify,
		now:      cfg.Now,
		log:      logger.WithModule("tasks"),
	}
	if svc.renotify <= 0 {
		svc.renotify = defaultOverdueRenotify
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Create stores a new task created by actor and notifies the assignee.
func (s *TaskService) Create(ctx context.Context, actor Actor, input CreateTaskInput) (*TaskDTO, error) {
	ctx = ensureContext(ctx)

	task := &models.Task{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Status:       defaultIfEmpty(strings.TrimSpace(input.Status), models.TaskStatusPending),
		Priority:     defaultIfEmpty(strings.TrimSpace(input.Priority), models.TaskPriorityMedium),
		DueDate:      utcPtr(input.DueDate),
		AssignedToID: strings.TrimSpace(input.AssignedToID),
		CreatedByID:  actor.ID,
	}
	if task.Status == models.TaskStatusCompleted {
		completed := s.now().UTC()
		task.CompletedAt = &completed
	}
	tags, err := encodeJSON(normaliseTags(input.Tags))
	if err != nil {
		return nil, apperrors.NewValidation("tags must be a list of strings")
	}
	task.Tags = tags

	if err := validateTask(task); err != nil {
		return nil, err
	}
	if err := s.ensureUserExists(ctx, task.AssignedToID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("AssignedTo", "CreatedBy").Create(task).Error; err != nil {
		return nil, fmt.Errorf("task service: create task: %w", apperrors.StoreFailure(err))
	}

	created, err := s.load(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.OnTaskMutation(ctx, notifications.Mutation{
		Current: notifications.StateFromTask(created),
		Actor:   actor.identity(),
	})

	dto := mapTask(created)
	return &dto, nil
}

// Get returns a task visible to actor.
func (s *TaskService) Get(ctx context.Context, actor Actor, id string) (*TaskDTO, error) {
	ctx = ensureContext(ctx)

	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, task) {
		return nil, apperrors.ErrNotFound
	}

	dto := mapTask(task)
	return &dto, nil
}

// List returns the tasks visible to actor, newest first.
func (s *TaskService) List(ctx context.Context, actor Actor, input ListTasksInput) (*TaskPage, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalisePage(input.Page, input.PageSize, defaultTaskPageSize, maxTaskPageSize)

	query := s.db.WithContext(ctx).Model(&models.Task{})
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := strings.TrimSpace(input.Priority); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if !actor.Admin {
		query = query.Where("assigned_to_id = ? OR created_by_id = ?", actor.ID, actor.ID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("task service: count tasks: %w", apperrors.StoreFailure(err))
	}

	var rows []models.Task
	if offset, ok := pageOffset(page, pageSize, total); ok {
		if err := withTaskPeople(query).
			Order("created_at DESC").
			Order("id DESC").
			Limit(pageSize).
			Offset(offset).
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("task service: list tasks: %w", apperrors.StoreFailure(err))
		}
	}

	items := make([]TaskDTO, 0, len(rows))
	for i := range rows {
		items = append(items, mapTask(&rows[i]))
	}

	return &TaskPage{
		Items: items,
		Count: len(items),
		Total: total,
		Page:  page,
		Pages: totalPages(total, pageSize),
	}, nil
}

// Update applies input to a task and notifies the affected users.
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, input UpdateTaskInput) (*TaskDTO, error) {
	ctx = ensureContext(ctx)

	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, task) {
		return nil, apperrors.ErrNotFound
	}
	previous := notifications.StateFromTask(task)

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		task.Status = strings.TrimSpace(*input.Status)
	}
	if input.Priority != nil {
		task.Priority = strings.TrimSpace(*input.Priority)
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = utcPtr(input.DueDate)
	}
	if input.AssignedToID != nil {
		task.AssignedToID = strings.TrimSpace(*input.AssignedToID)
	}
	if input.Tags != nil {
		tags, err := encodeJSON(normaliseTags(input.Tags))
		if err != nil {
			return nil, apperrors.NewValidation("tags must be a list of strings")
		}
		task.Tags = tags
	}

	switch {
	case task.Status == models.TaskStatusCompleted && previous.Status != models.TaskStatusCompleted:
		completed := s.now().UTC()
		task.CompletedAt = &completed
	case task.Status != models.TaskStatusCompleted:
		task.CompletedAt = nil
	}

	if err := validateTask(task); err != nil {
		return nil, err
	}
	if task.AssignedToID != previous.Assignee.ID {
		if err := s.ensureUserExists(ctx, task.AssignedToID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":          task.Title,
			"description":    task.Description,
			"status":         task.Status,
			"priority":       task.Priority,
			"due_date":       task.DueDate,
			"completed_at":   task.CompletedAt,
			"assigned_to_id": task.AssignedToID,
			"tags":           task.Tags,
		}).Error; err != nil {
		return nil, fmt.Errorf("task service: update task: %w", apperrors.StoreFailure(err))
	}

	updated, err := s.load(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.OnTaskMutation(ctx, notifications.Mutation{
		Previous: &previous,
		Current:  notifications.StateFromTask(updated),
		Actor:    actor.identity(),
	})

	dto := mapTask(updated)
	return &dto, nil
}

// Delete removes a task. Only its creator or an administrator may delete it.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canView(actor, task) {
		return apperrors.ErrNotFound
	}
	if !actor.Admin && task.CreatedByID != actor.ID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
		return fmt.Errorf("task service: delete task: %w", apperrors.StoreFailure(err))
	}
	return nil
}

// NotifyOverdue sends the overdue reminder for a task on request of its
// creator or an administrator. It returns the number of notifications stored.
func (s *TaskService) NotifyOverdue(ctx context.Context, actor Actor, id string) (int, error) {
	ctx = ensureContext(ctx)

	task, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if !canView(actor, task) {
		return 0, apperrors.ErrNotFound
	}
	if !actor.Admin && task.CreatedByID != actor.ID {
		return 0, apperrors.ErrForbidden
	}
	if task.Status == models.TaskStatusCompleted {
		return 0, apperrors.NewBadRequest("completed tasks cannot be overdue")
	}

	return len(s.notifier.NotifyOverdue(ctx, notifications.StateFromTask(task))), nil
}

// SweepOverdue notifies the assignees of every task past its due date that is
// not completed. Each task is reminded at most once per renotify window.
func (s *TaskService) SweepOverdue(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	var (
		notified int
		errs     error
		batch    []models.Task
	)

	result := withTaskPeople(s.db.WithContext(ctx).Model(&models.Task{})).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status <> ?", models.TaskStatusCompleted).
		Where("assigned_to_id <> ''").
		FindInBatches(&batch, overdueSweepBatch, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				task := &batch[i]
				due, err := s.claimOverdue(ctx, task.ID)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("task %s: %w", task.ID, err))
					continue
				}
				if !due {
					continue
				}
				notified += len(s.notifier.NotifyOverdue(ctx, notifications.StateFromTask(task)))
			}
			return nil
		})
	if result.Error != nil {
		return notified, fmt.Errorf("task service: sweep overdue: %w", apperrors.StoreFailure(result.Error))
	}

	if errs != nil {
		s.log.Warn("overdue sweep skipped tasks", zap.Error(errs))
	}
	return notified, errs
}

func (s *TaskService) claimOverdue(ctx context.Context, taskID string) (bool, error) {
	if s.marks == nil {
		return true, nil
	}
	return s.marks.SetIfAbsent(ctx, overdueMarkPrefix+taskID, []byte(s.now().UTC().Format(time.RFC3339)), s.renotify)
}

func (s *TaskService) load(ctx context.Context, id string) (*models.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ErrNotFound
	}

	var task models.Task
	err := withTaskPeople(s.db.WithContext(ctx)).Take(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: load task: %w", apperrors.StoreFailure(err))
	}
	return &task, nil
}

func (s *TaskService) ensureUserExists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("task service: resolve assignee: %w", apperrors.StoreFailure(err))
	}
	if count == 0 {
		return apperrors.NewValidation("assignee does not exist")
	}
	return nil
}

func withTaskPeople(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("AssignedTo", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email", "avatar")
		}).
		Preload("CreatedBy", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email", "avatar")
		})
}

func validateTask(task *models.Task) error {
	switch {
	case task.Title == "":
		return apperrors.NewValidation("title is required")
	case len(task.Title) > 100:
		return apperrors.NewValidation("title cannot exceed 100 characters")
	case len(task.Description) > 500:
		return apperrors.NewValidation("description cannot exceed 500 characters")
	case task.AssignedToID == "":
		return apperrors.NewValidation("assignee is required")
	}

	switch task.Status {
	case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted:
	default:
		return apperrors.NewValidation(fmt.Sprintf("status %q is not supported", task.Status))
	}
	switch task.Priority {
	case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
	default:
		return apperrors.NewValidation(fmt.Sprintf("priority %q is not supported", task.Priority))
	}
	return nil
}

func canView(actor Actor, task *models.Task) bool {
	return actor.Admin || task.AssignedToID == actor.ID || task.CreatedByID == actor.ID
}

func mapTask(task *models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		AssignedTo:  summariseUser(task.AssignedTo, task.AssignedToID),
		CreatedBy:   summariseUser(task.CreatedBy, task.CreatedByID),
		Tags:        decodeStrings(task.Tags),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	return dto
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
