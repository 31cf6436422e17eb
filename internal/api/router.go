package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/app"
	iauth "github.com/charlesng35/taskflow/internal/auth"
	"github.com/charlesng35/taskflow/internal/handlers"
	"github.com/charlesng35/taskflow/internal/middleware"
	"github.com/charlesng35/taskflow/internal/services"
)

// Services bundles the domain services the HTTP surface exposes.
type Services struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Tasks         *services.TaskService
	Notifications *services.NotificationService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svc Services, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	authHandler, err := handlers.NewAuthHandler(svc.Auth, svc.Users)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(svc.Users)
	if err != nil {
		return nil, err
	}
	taskHandler, err := handlers.NewTaskHandler(svc.Tasks)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(svc.Notifications)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, db)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	authLimit := middleware.RateLimit(rateStore, cfg.Auth.RateLimit.Requests, cfg.Auth.RateLimit.Window)
	registerAuthRoutes(r, api, authHandler, authLimit)
	registerUserRoutes(api, userHandler)
	registerTaskRoutes(api, taskHandler)
	registerNotificationRoutes(api, notificationHandler)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
