package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskflow/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, handler *handlers.AuthHandler, limit gin.HandlerFunc) {
	auth := engine.Group("/api/auth")
	auth.Use(limit)
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
	}

	api.GET("/auth/me", handler.Me)
}
