package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/models"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// UserDTO is the public representation of a user account.
type UserDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserService exposes the user directory.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", apperrors.StoreFailure(err))
	}
	return &user, nil
}

// Directory lists every user as a display summary ordered by name.
func (s *UserService) Directory(ctx context.Context, query string) ([]UserSummary, error) {
	ctx = ensureContext(ctx)

	tx := s.db.WithContext(ctx).Model(&models.User{}).Select("id", "name", "email", "avatar")
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var users []models.User
	if err := tx.Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", apperrors.StoreFailure(err))
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, *summariseUser(&users[i], ""))
	}
	return out, nil
}

// NewUserDTO projects a user record into its public representation.
func NewUserDTO(user *models.User) UserDTO {
	return mapUser(user)
}

func mapUser(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
