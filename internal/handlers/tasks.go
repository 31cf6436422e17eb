package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/services"
	"github.com/charlesng35/taskflow/pkg/response"
)

// TaskHandler exposes task CRUD. Every mutation feeds the notification engine
// through the task service.
type TaskHandler struct {
	service *services.TaskService
}

// NewTaskHandler constructs a TaskHandler.
func NewTaskHandler(service *services.TaskService) (*TaskHandler, error) {
	if service == nil {
		return nil, errors.New("task handler: service is required")
	}
	return &TaskHandler{service: service}, nil
}

// nullableTime distinguishes an absent JSON field from an explicit null.
type nullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *nullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var value time.Time
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	n.Value = &value
	return nil
}

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=500"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  string     `json:"assigned_to" validate:"required"`
	Tags        []string   `json:"tags" validate:"omitempty,dive,max=50"`
}

type updateTaskRequest struct {
	Title       *string      `json:"title" validate:"omitempty,max=100"`
	Description *string      `json:"description" validate:"omitempty,max=500"`
	Status      *string      `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    *string      `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     nullableTime `json:"due_date"`
	AssignedTo  *string      `json:"assigned_to"`
	Tags        []string     `json:"tags" validate:"omitempty,dive,max=50"`
}

// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, err := h.service.List(requestContext(c), actor, services.ListTasksInput{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "limit", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, page)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	task, err := h.service.Get(requestContext(c), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.service.Create(requestContext(c), actor, services.CreateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		AssignedToID: req.AssignedTo,
		Tags:         req.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		AssignedToID: req.AssignedTo,
		Tags:         req.Tags,
	}
	if req.DueDate.Set {
		input.DueDate = req.DueDate.Value
		input.ClearDueDate = req.DueDate.Value == nil
	}

	task, err := h.service.Update(requestContext(c), actor, strings.TrimSpace(c.Param("id")), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), actor, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Task deleted"})
}

// POST /api/tasks/:id/overdue
func (h *TaskHandler) NotifyOverdue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	sent, err := h.service.NotifyOverdue(requestContext(c), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notified": sent})
}
