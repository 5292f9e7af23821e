package store

import (
	"context"
	"time"

	"twinsa/internal/apperrors"
	"twinsa/internal/feed"
	"twinsa/internal/models"
)

// snapshot captures users and tweets under their read locks. Collections are
// replaced, never edited in place, so the slices stay valid after unlocking.
func (s *Store) snapshot() feed.Snapshot {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	s.tweetsMu.RLock()
	defer s.tweetsMu.RUnlock()
	return feed.Snapshot{Users: s.users, Tweets: s.tweets}
}

// BuildHomeFeed returns userID's followed and recommended tweets.
func (s *Store) BuildHomeFeed(ctx context.Context, userID int64) (hf models.HomeFeed, err error) {
	defer observe("build_home_feed", time.Now(), &err)

	snap := s.snapshot()
	if userIndex(snap.Users, userID) < 0 {
		return hf, userNotFound(userID)
	}
	return feed.Home(snap, userID), nil
}

// BuildProfileTimeline returns profileUserID's tweets and retweets as seen by viewerID.
func (s *Store) BuildProfileTimeline(ctx context.Context, profileUserID, viewerID int64) (views []models.TweetView, err error) {
	defer observe("build_profile_timeline", time.Now(), &err)

	snap := s.snapshot()
	if userIndex(snap.Users, profileUserID) < 0 {
		return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "profile not found: %d", profileUserID)
	}
	return feed.Profile(snap, profileUserID, viewerID), nil
}
