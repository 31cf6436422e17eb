package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/taskflow/pkg/logger"
)

// DefaultReconcileInterval is how often Run refreshes the unread count.
const DefaultReconcileInterval = 30 * time.Second

// Feed keeps an Inbox in step with the server. Every local transition is
// applied only after the server acknowledged the matching request.
type Feed struct {
	client   *Client
	inbox    *Inbox
	pageSize int
	now      func() time.Time
	log      *zap.Logger
}

// FeedOption customises a Feed.
type FeedOption func(*Feed)

// WithPageSize sets the page size used by Refresh and LoadMore.
func WithPageSize(size int) FeedOption {
	return func(f *Feed) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

// WithFeedClock overrides the clock used when the server does not report a read time.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFeed binds client to inbox. A nil inbox gets a fresh one.
func NewFeed(client *Client, inbox *Inbox, opts ...FeedOption) (*Feed, error) {
	if client == nil {
		return nil, errors.New("feed: client is required")
	}
	if inbox == nil {
		inbox = NewInbox()
	}

	f := &Feed{
		client: client,
		inbox:  inbox,
		now:    time.Now,
		log:    logger.WithModule("notification-feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Inbox exposes the mirrored state.
func (f *Feed) Inbox() *Inbox {
	return f.inbox
}

// Refresh reloads page 1 and then the authoritative unread count.
func (f *Feed) Refresh(ctx context.Context) error {
	f.inbox.SetLoading(true)
	defer f.inbox.SetLoading(false)

	page, err := f.client.ListNotifications(ctx, ListOptions{Page: 1, Limit: f.pageSize})
	if err != nil {
		return err
	}
	f.inbox.Replace(page)

	return f.ReconcileUnread(ctx)
}

// LoadMore appends the next page. It reports false when nothing is left.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	state := f.inbox.Snapshot()
	if !state.HasMore {
		return false, nil
	}

	f.inbox.SetLoading(true)
	defer f.inbox.SetLoading(false)

	page, err := f.client.ListNotifications(ctx, ListOptions{Page: state.Page + 1, Limit: f.pageSize})
	if err != nil {
		return false, err
	}
	f.inbox.Append(page)
	return len(page.Items) > 0, nil
}

// MarkRead marks id read on the server, then locally with the server's read time.
// When id is not loaded locally the unread count is re-fetched instead.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	n, err := f.client.MarkRead(ctx, id)
	if err != nil {
		return err
	}

	at := f.now()
	if n.ReadAt != nil {
		at = *n.ReadAt
	}
	if !f.inbox.Contains(id) {
		return f.ReconcileUnread(ctx)
	}
	f.inbox.MarkRead(id, at)
	return nil
}

// MarkAllRead marks everything read on the server, then locally.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if _, err := f.client.MarkAllRead(ctx); err != nil {
		return err
	}
	f.inbox.MarkAllRead(f.now())
	return nil
}

// Delete removes id on the server, then locally. A 404 means the local copy
// is stale: it is dropped and the unread count re-fetched before the error
// is returned.
func (f *Feed) Delete(ctx context.Context, id string) error {
	err := f.client.DeleteNotification(ctx, id)
	switch {
	case err == nil:
		if !f.inbox.Remove(id) {
			return f.ReconcileUnread(ctx)
		}
		return nil
	case IsNotFound(err):
		f.inbox.Remove(id)
		if reconcileErr := f.ReconcileUnread(ctx); reconcileErr != nil {
			return errors.Join(err, reconcileErr)
		}
		return err
	default:
		return err
	}
}

// ReconcileUnread replaces the local counter with the server's.
func (f *Feed) ReconcileUnread(ctx context.Context) error {
	count, err := f.client.UnreadCount(ctx)
	if err != nil {
		return err
	}
	f.inbox.SetUnread(count)
	return nil
}

// Run reconciles the unread count every interval until ctx ends. Only the
// count is refreshed; the loaded list is left alone.
func (f *Feed) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.ReconcileUnread(ctx); err != nil && ctx.Err() == nil {
				f.log.Warn("unread reconciliation failed", zap.Error(err))
			}
		}
	}
}
