package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"twinsa/internal/apperrors"
	"twinsa/internal/models"
	"twinsa/internal/persist"
)

// Log is the notification collection. Every change is written through to the
// backend before it becomes visible.
type Log struct {
	mu      sync.RWMutex
	items   []models.Notification
	backend persist.Backend
}

func NewLog(items []models.Notification, backend persist.Backend) *Log {
	if items == nil {
		items = []models.Notification{}
	}
	return &Log{items: items, backend: backend}
}

// save must be called with mu held for writing.
func (l *Log) save(ctx context.Context, next []models.Notification) error {
	data, err := json.Marshal(next)
	if err != nil {
		return apperrors.Persistence(apperrors.CodeWriteFailed, "encode notifications", err)
	}
	if err := l.backend.Save(ctx, persist.CollectionNotifications, data); err != nil {
		return apperrors.Persistence(apperrors.CodeWriteFailed, "write notifications", err)
	}
	l.items = next
	return nil
}

// Append stores n. On failure the log is unchanged.
func (l *Log) Append(ctx context.Context, n models.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]models.Notification, len(l.items), len(l.items)+1)
	copy(next, l.items)
	return l.save(ctx, append(next, n))
}

// Rewrite persists the current contents again, in the current format.
func (l *Log) Rewrite(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(ctx, l.items)
}

// ListFor returns userID's notifications, newest first. usernames resolves the
// sender's current name.
func (l *Log) ListFor(userID int64, usernames func(int64) string) []models.NotificationView {
	l.mu.RLock()
	out := []models.NotificationView{}
	for _, n := range l.items {
		if n.ToUserID == userID {
			out = append(out, models.NotificationView{Notification: n.Clone()})
		}
	}
	l.mu.RUnlock()

	for i := range out {
		if usernames != nil {
			out[i].FromUsername = usernames(out[i].FromUserID)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MarkSeen flips all of userID's unseen notifications to seen with a single write
// and returns how many changed.
func (l *Log) MarkSeen(ctx context.Context, userID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := 0
	next := make([]models.Notification, len(l.items))
	for i, n := range l.items {
		if n.ToUserID == userID && !n.Seen {
			n.Seen = true
			changed++
		}
		next[i] = n
	}
	if changed == 0 {
		return 0, nil
	}
	if err := l.save(ctx, next); err != nil {
		return 0, err
	}
	return changed, nil
}

func (l *Log) UnseenCount(userID int64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, it := range l.items {
		if it.ToUserID == userID && !it.Seen {
			n++
		}
	}
	return n
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// All returns a copy of every stored notification in insertion order.
func (l *Log) All() []models.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Notification, len(l.items))
	for i, n := range l.items {
		out[i] = n.Clone()
	}
	return out
}
