package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/middleware"
	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/services"
	"github.com/charlesng35/taskflow/pkg/errors"
	"github.com/charlesng35/taskflow/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requireUserID returns the authenticated user id, writing a 401 when absent.
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// requireActor builds the task actor from the authenticated identity.
func requireActor(c *gin.Context) (services.Actor, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{
		ID:    userID,
		Name:  c.GetString(middleware.CtxUserNameKey),
		Admin: c.GetString(middleware.CtxUserRoleKey) == models.RoleAdmin,
	}, true
}
