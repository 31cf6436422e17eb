package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/services"
	"github.com/charlesng35/taskflow/pkg/response"
)

// UserHandler serves the user directory used to pick assignees.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service *services.UserService) (*UserHandler, error) {
	if service == nil {
		return nil, errors.New("user handler: service is required")
	}
	return &UserHandler{service: service}, nil
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.Directory(requestContext(c), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}
