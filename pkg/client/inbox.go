package client

import (
	"sync"
	"time"
)

// InboxState is a point-in-time copy of an Inbox.
type InboxState struct {
	Items   []Notification
	Unread  int64
	Loading bool
	Page    int
	HasMore bool
}

// Inbox is the local mirror of a recipient's notifications. Its transitions
// are the only way to change it, and each one moves the unread counter by
// exactly the delta the server applies for the same operation. Callers apply
// a transition only after the server has acknowledged the operation.
type Inbox struct {
	mu    sync.Mutex
	state InboxState
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Replace installs page 1. The unread counter is estimated from the page and
// is expected to be superseded by SetUnread.
func (in *Inbox) Replace(page *Page) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.state.Items = cloneItems(page.Items)
	in.state.Unread = countUnread(in.state.Items)
	in.state.Page = max(page.Page, 1)
	in.state.HasMore = page.HasMore()
}

// Append adds a later page to the end of the list. Items are neither
// reordered nor deduplicated; ordering is stable on the server.
func (in *Inbox) Append(page *Page) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.state.Items = append(in.state.Items, cloneItems(page.Items)...)
	in.state.Page = page.Page
	in.state.HasMore = page.HasMore()
}

// SetUnread installs the authoritative unread count.
func (in *Inbox) SetUnread(count int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state.Unread = max(count, 0)
}

// MarkRead flips a locally unread item to read and decrements the counter.
// It reports whether the local state changed; a second call is a no-op.
func (in *Inbox) MarkRead(id string, at time.Time) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.state.Items {
		item := &in.state.Items[i]
		if item.ID != id {
			continue
		}
		if item.Read {
			return false
		}
		item.Read = true
		readAt := at
		item.ReadAt = &readAt
		in.state.Unread = max(in.state.Unread-1, 0)
		return true
	}
	return false
}

// MarkAllRead flips every local item to read and zeroes the counter.
// Items already read keep their original read time.
func (in *Inbox) MarkAllRead(at time.Time) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.state.Items {
		item := &in.state.Items[i]
		if item.Read {
			continue
		}
		item.Read = true
		readAt := at
		item.ReadAt = &readAt
	}
	in.state.Unread = 0
}

// Remove drops an item and decrements the counter only if it was unread.
// It reports whether the item was present.
func (in *Inbox) Remove(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.state.Items {
		if in.state.Items[i].ID != id {
			continue
		}
		if !in.state.Items[i].Read {
			in.state.Unread = max(in.state.Unread-1, 0)
		}
		in.state.Items = append(in.state.Items[:i], in.state.Items[i+1:]...)
		return true
	}
	return false
}

// Contains reports whether id is loaded locally.
func (in *Inbox) Contains(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.state.Items {
		if in.state.Items[i].ID == id {
			return true
		}
	}
	return false
}

// SetLoading toggles the loading flag.
func (in *Inbox) SetLoading(loading bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state.Loading = loading
}

// Reset clears everything, e.g. on logout.
func (in *Inbox) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = InboxState{}
}

// Snapshot returns a deep copy of the current state.
func (in *Inbox) Snapshot() InboxState {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := in.state
	out.Items = cloneItems(in.state.Items)
	return out
}

func countUnread(items []Notification) int64 {
	var n int64
	for i := range items {
		if !items[i].Read {
			n++
		}
	}
	return n
}

func cloneItems(items []Notification) []Notification {
	out := make([]Notification, len(items))
	for i, item := range items {
		if item.ReadAt != nil {
			readAt := *item.ReadAt
			item.ReadAt = &readAt
		}
		out[i] = item
	}
	return out
}
