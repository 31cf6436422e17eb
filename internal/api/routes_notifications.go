package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/handlers"
	"github.com/charlesng35/taskflow/internal/middleware"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.GET("/stats", handler.Stats)
		group.PUT("/mark-all-read", handler.MarkAllRead)
		group.PUT("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)

		group.POST("", middleware.RequireAdmin(), handler.Create)
	}
}
