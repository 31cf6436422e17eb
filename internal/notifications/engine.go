package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/taskflow/internal/models"
	apperrors "github.com/charlesng35/taskflow/pkg/errors"
	"github.com/charlesng35/taskflow/pkg/logger"
	"github.com/charlesng35/taskflow/pkg/metrics"
)

// DefaultDeliveryTimeout bounds a single notification insert.
const DefaultDeliveryTimeout = 5 * time.Second

// Inserter persists a single notification.
type Inserter interface {
	Insert(ctx context.Context, n *models.Notification) (string, error)
}

// Engine turns task mutations into stored notifications on a best-effort basis.
// Nothing it does is reported back to the caller as an error.
type Engine struct {
	store   Inserter
	timeout time.Duration
	log     *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithDeliveryTimeout overrides the per-notification persistence timeout.
func WithDeliveryTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogger replaces the engine logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds an Engine writing through store.
func NewEngine(store Inserter, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("notification engine: store is required")
	}

	engine := &Engine{
		store:   store,
		timeout: DefaultDeliveryTimeout,
		log:     logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine, nil
}

// OnTaskMutation derives and stores the notifications for a task change.
// The returned identifiers are informational only.
func (e *Engine) OnTaskMutation(ctx context.Context, m Mutation) []string {
	return e.dispatch(ctx, Derive(m))
}

// NotifyOverdue stores the overdue reminder for task, if one applies.
func (e *Engine) NotifyOverdue(ctx context.Context, task TaskState) []string {
	draft, ok := DeriveOverdue(task)
	if !ok {
		return nil
	}
	return e.dispatch(ctx, []Draft{draft})
}

func (e *Engine) dispatch(ctx context.Context, drafts []Draft) []string {
	if e == nil || len(drafts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		if draft.SelfAddressed() {
			metrics.NotificationsSuppressed.WithLabelValues(string(draft.Type)).Inc()
			e.log.Debug("self notification suppressed",
				zap.String("type", string(draft.Type)),
				zap.String("task_id", draft.TaskID),
				zap.String("user_id", draft.Recipient),
			)
			continue
		}
		if id, ok := e.deliver(ctx, draft); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// deliver is the only place engine failures are absorbed. Each draft gets its
// own deadline and is detached from the caller's cancellation so an aborted
// request cannot take the side effects of a committed mutation with it.
func (e *Engine) deliver(ctx context.Context, draft Draft) (id string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.drop(draft, "panic", fmt.Errorf("panic: %v", r))
			id, ok = "", false
		}
	}()

	notification, err := draft.toModel()
	if err != nil {
		e.drop(draft, "encode", err)
		return "", false
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	id, err = e.store.Insert(deliverCtx, notification)
	if err != nil {
		e.drop(draft, dropReason(err), err)
		return "", false
	}

	metrics.NotificationsCreated.WithLabelValues(string(draft.Type)).Inc()
	return id, true
}

func (e *Engine) drop(draft Draft, reason string, err error) {
	metrics.NotificationsDropped.WithLabelValues(string(draft.Type), reason).Inc()
	e.log.Warn("notification dropped",
		zap.String("type", string(draft.Type)),
		zap.String("task_id", draft.TaskID),
		zap.String("recipient_id", draft.Recipient),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	default:
		return "store"
	}
}

func (d Draft) toModel() (*models.Notification, error) {
	notification := &models.Notification{
		RecipientID: d.Recipient,
		SenderID:    d.Sender,
		Type:        d.Type,
		Title:       d.Title,
		Message:     d.Message,
	}
	if d.TaskID != "" {
		taskID := d.TaskID
		notification.RelatedTaskID = &taskID
	}
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(raw)
	}
	return notification, nil
}
