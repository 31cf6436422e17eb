package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/taskflow/internal/models"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
)

// Filter narrows recipient queries.
type Filter struct {
	Read *bool
}

// Window selects a slice of an ordered result set.
type Window struct {
	Limit int
	Skip  int
}

// Match identifies the notifications an update or delete applies to.
type Match struct {
	ID            string
	Recipient     string
	Read          *bool
	CreatedBefore time.Time
}

// Patch describes the only mutation notifications support after creation.
type Patch struct {
	Read   bool
	ReadAt *time.Time
}

// Store persists notifications and resolves their display references.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over the supplied database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("notification store: db is required")
	}
	return &Store{db: db}, nil
}

// Insert validates and persists n, assigning its identifier and timestamps.
// New notifications always start unread.
func (s *Store) Insert(ctx context.Context, n *models.Notification) (string, error) {
	if n == nil {
		return "", apperrors.NewValidation("notification is required")
	}
	if err := validate(n); err != nil {
		return "", err
	}

	n.Read = false
	n.ReadAt = nil
	n.Recipient, n.Sender, n.RelatedTask = nil, nil, nil

	if err := s.db.WithContext(ctx).Omit("Recipient", "Sender", "RelatedTask").Create(n).Error; err != nil {
		return "", fmt.Errorf("notification store: insert: %w", classify(err))
	}
	return n.ID, nil
}

// FindByRecipient returns a window of the recipient's notifications, newest first.
func (s *Store) FindByRecipient(ctx context.Context, recipientID string, filter Filter, window Window) ([]models.Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, apperrors.NewValidation("recipient is required")
	}

	query := s.projected(ctx).Where("recipient_id = ?", recipientID)
	query = applyFilter(query, filter).
		Order("created_at DESC").
		Order("id DESC")
	if window.Limit > 0 {
		query = query.Limit(window.Limit)
	}
	if window.Skip > 0 {
		query = query.Offset(window.Skip)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification store: find: %w", classify(err))
	}
	return rows, nil
}

// CountByRecipient counts the recipient's notifications matching filter.
func (s *Store) CountByRecipient(ctx context.Context, recipientID string, filter Filter) (int64, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, apperrors.NewValidation("recipient is required")
	}

	var count int64
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if err := applyFilter(query, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification store: count: %w", classify(err))
	}
	return count, nil
}

// FindOne loads the single notification identified by match.
func (s *Store) FindOne(ctx context.Context, match Match) (*models.Notification, error) {
	if err := requireOwnedID(match); err != nil {
		return nil, err
	}

	var row models.Notification
	err := applyMatch(s.projected(ctx), match).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notification store: find one: %w", classify(err))
	}
	return &row, nil
}

// UpdateOne applies patch to the notification identified by match and returns
// the updated record. The match must name both the notification and its recipient.
func (s *Store) UpdateOne(ctx context.Context, match Match, patch Patch) (*models.Notification, error) {
	if err := requireOwnedID(match); err != nil {
		return nil, err
	}

	result := applyMatch(s.db.WithContext(ctx).Model(&models.Notification{}), match).
		Updates(patchColumns(patch))
	if result.Error != nil {
		return nil, fmt.Errorf("notification store: update: %w", classify(result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}

	return s.FindOne(ctx, Match{ID: match.ID, Recipient: match.Recipient})
}

// UpdateMany applies patch to every notification of a recipient matching match.
func (s *Store) UpdateMany(ctx context.Context, match Match, patch Patch) (int64, error) {
	if strings.TrimSpace(match.Recipient) == "" {
		return 0, apperrors.NewValidation("recipient is required")
	}

	result := applyMatch(s.db.WithContext(ctx).Model(&models.Notification{}), match).
		Updates(patchColumns(patch))
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: update many: %w", classify(result.Error))
	}
	return result.RowsAffected, nil
}

// DeleteOne removes the notification identified by match.
func (s *Store) DeleteOne(ctx context.Context, match Match) error {
	if err := requireOwnedID(match); err != nil {
		return err
	}

	result := applyMatch(s.db.WithContext(ctx), match).Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification store: delete: %w", classify(result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteMany removes every notification matching match. The match must be
// bounded by a recipient or a creation cut-off.
func (s *Store) DeleteMany(ctx context.Context, match Match) (int64, error) {
	if strings.TrimSpace(match.Recipient) == "" && match.CreatedBefore.IsZero() {
		return 0, apperrors.NewValidation("delete many requires a recipient or a cut-off")
	}

	result := applyMatch(s.db.WithContext(ctx), match).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: delete many: %w", classify(result.Error))
	}
	return result.RowsAffected, nil
}

// projected is the single read scope: every query returning notifications
// for display resolves sender, recipient and related task through it.
func (s *Store) projected(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Sender", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email", "avatar")
		}).
		Preload("Recipient", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email")
		}).
		Preload("RelatedTask", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "title", "status", "priority")
		})
}

func applyFilter(query *gorm.DB, filter Filter) *gorm.DB {
	if filter.Read != nil {
		query = query.Where(map[string]any{"read": *filter.Read})
	}
	return query
}

func applyMatch(query *gorm.DB, match Match) *gorm.DB {
	if id := strings.TrimSpace(match.ID); id != "" {
		query = query.Where("id = ?", id)
	}
	if recipient := strings.TrimSpace(match.Recipient); recipient != "" {
		query = query.Where("recipient_id = ?", recipient)
	}
	if match.Read != nil {
		query = query.Where(map[string]any{"read": *match.Read})
	}
	if !match.CreatedBefore.IsZero() {
		query = query.Where("created_at < ?", match.CreatedBefore.UTC())
	}
	return query
}

func patchColumns(patch Patch) map[string]any {
	return map[string]any{
		"read":    patch.Read,
		"read_at": patch.ReadAt,
	}
}

func requireOwnedID(match Match) error {
	if strings.TrimSpace(match.ID) == "" {
		return apperrors.ErrNotFound
	}
	if strings.TrimSpace(match.Recipient) == "" {
		return apperrors.NewValidation("recipient is required")
	}
	return nil
}

func validate(n *models.Notification) error {
	var missing []string
	if strings.TrimSpace(n.RecipientID) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(n.SenderID) == "" {
		missing = append(missing, "sender")
	}
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(n.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return apperrors.NewValidation(strings.Join(missing, ", ") + " required")
	}
	if !n.Type.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("type %q is not a known notification type", n.Type))
	}

	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.RelatedTaskID != nil && strings.TrimSpace(*n.RelatedTaskID) == "" {
		n.RelatedTaskID = nil
	}
	return nil
}

// classify maps driver failures onto the error taxonomy. Context
// cancellation and connection errors are transient; constraint violations
// mean the payload referenced an unknown user or task.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || isForeignKeyError(err) {
		return apperrors.NewValidation("notification references an unknown user or task").WithInternal(err)
	}
	return apperrors.StoreFailure(err)
}

func isForeignKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint")
}
