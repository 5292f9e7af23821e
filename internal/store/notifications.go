package store

import (
	"context"
	"time"

	"twinsa/internal/models"
)

func (s *Store) usernames() func(int64) string {
	s.usersMu.RLock()
	names := make(map[int64]string, len(s.users))
	for _, u := range s.users {
		names[u.ID] = u.Username
	}
	s.usersMu.RUnlock()
	return func(id int64) string { return names[id] }
}

func (s *Store) requireUser(userID int64) error {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	if userIndex(s.users, userID) < 0 {
		return userNotFound(userID)
	}
	return nil
}

// ListNotificationsFor returns userID's notifications, newest first, each with
// the sender's current username.
func (s *Store) ListNotificationsFor(ctx context.Context, userID int64) (list []models.NotificationView, err error) {
	defer observe("list_notifications", time.Now(), &err)

	if err := s.requireUser(userID); err != nil {
		return nil, err
	}
	return s.notes.ListFor(userID, s.usernames()), nil
}

// MarkNotificationsSeen flags all of userID's notifications as seen.
func (s *Store) MarkNotificationsSeen(ctx context.Context, userID int64) (n int, err error) {
	defer observe("mark_notifications_seen", time.Now(), &err)

	if err := s.requireUser(userID); err != nil {
		return 0, err
	}
	return s.notes.MarkSeen(ctx, userID)
}

func (s *Store) UnseenCount(ctx context.Context, userID int64) (int, error) {
	if err := s.requireUser(userID); err != nil {
		return 0, err
	}
	return s.notes.UnseenCount(userID), nil
}
