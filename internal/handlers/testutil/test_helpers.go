package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/api"
	"github.com/charlesng35/taskflow/internal/app"
	iauth "github.com/charlesng35/taskflow/internal/auth"
	"github.com/charlesng35/taskflow/internal/cache"
	sharedtestutil "github.com/charlesng35/taskflow/internal/database/testutil"
	"github.com/charlesng35/taskflow/internal/middleware"
	"github.com/charlesng35/taskflow/internal/models"
	"github.com/charlesng35/taskflow/internal/notifications"
	"github.com/charlesng35/taskflow/internal/services"
	"github.com/charlesng35/taskflow/pkg/crypto"
	"github.com/charlesng35/taskflow/pkg/response"
)

// DefaultPassword is assigned to users created through the Env helpers.
const DefaultPassword = "Passw0rd!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Config   *app.Config
	Services api.Services
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithRateLimit overrides the authentication rate limit.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Auth.RateLimit.Requests = requests
		cfg.Auth.RateLimit.Window = window
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			RateLimit: app.RateLimitSettings{
				Requests: 1000,
				Window:   time.Minute,
			},
		},
		Notifications: app.NotificationsConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			DeliveryTimeout: time.Second,
			RetentionDays:   30,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	store, err := notifications.NewStore(db)
	require.NoError(t, err)
	engineOpts := append(cfg.Notifications.EngineOptions(), notifications.WithLogger(zap.NewNop()))
	engine, err := notifications.NewEngine(store, engineOpts...)
	require.NoError(t, err)

	notificationSvc, err := services.NewNotificationService(store, cfg.Notifications.ServiceConfig())
	require.NoError(t, err)
	taskSvc, err := services.NewTaskService(db, engine, cache.NewDatabaseStore(db), cfg.Notifications.TaskServiceConfig())
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(db, jwtSvc)
	require.NoError(t, err)
	userSvc, err := services.NewUserService(db)
	require.NoError(t, err)

	svc := api.Services{
		Auth:          authSvc,
		Users:         userSvc,
		Tasks:         taskSvc,
		Notifications: notificationSvc,
	}

	router, err := api.NewRouter(db, jwtSvc, cfg, svc, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Config:   cfg,
		Services: svc,
	}
}

// CreateUser inserts a regular user with DefaultPassword.
func (e *Env) CreateUser(name string) *models.User {
	e.T.Helper()
	return e.createUser(name, models.RoleUser)
}

// CreateAdmin inserts an administrator with DefaultPassword.
func (e *Env) CreateAdmin(name string) *models.User {
	e.T.Helper()
	return e.createUser(name, models.RoleAdmin)
}

func (e *Env) createUser(name, role string) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(DefaultPassword)
	require.NoError(e.T, err)

	user := &models.User{
		Name:     name,
		Email:    "user-" + uuid.NewString()[:8] + "@example.com",
		Password: hashed,
		Role:     role,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserPayload `json:"user"`
}

// Login authenticates with email and password and returns the issued token.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.Equal(e.T, email, result.User.Email)

	return result
}

// TokenFor logs user in with DefaultPassword and returns the bearer token.
func (e *Env) TokenFor(user *models.User) string {
	e.T.Helper()
	return e.Login(user.Email, DefaultPassword).Token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf = bytes.NewBufferString(v)
		default:
			data, err := json.Marshal(body)
			require.NoError(e.T, err)
			buf = bytes.NewBuffer(data)
		}
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
