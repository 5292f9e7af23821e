package store

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"twinsa/internal/apperrors"
	"twinsa/internal/models"
	"twinsa/internal/notify"
)

// Reactions a user may toggle on a tweet.
var allowedReactions = map[string]bool{
	"like":  true,
	"love":  true,
	"laugh": true,
	"wow":   true,
	"sad":   true,
	"angry": true,
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type RetweetResult struct {
	IsRetweeted  bool `json:"is_retweeted"`
	RetweetCount int  `json:"retweet_count"`
}

type ReactionResult struct {
	Reacted bool `json:"reacted"`
	Count   int  `json:"count"`
}

// --- Lookup helpers ---

func tweetIndex(tweets []models.Tweet, id int64) int {
	for i, t := range tweets {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func nextTweetID(tweets []models.Tweet) int64 {
	var highest int64
	for _, t := range tweets {
		if t.ID > highest {
			highest = t.ID
		}
	}
	return highest + 1
}

func tweetNotFound(id int64) error {
	return apperrors.NotFound(apperrors.CodeTweetNotFound, "tweet not found: %d", id)
}

func userNotFound(id int64) error {
	return apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %d", id)
}

func emptyContent() error {
	return apperrors.InvalidInput(apperrors.CodeEmptyContent, "content is required")
}

// --- Operations ---

// CreateTweet posts a tweet by authorID. Either content or at least one image
// ref is required.
func (s *Store) CreateTweet(ctx context.Context, authorID int64, content string, imageRefs []string) (tweet models.Tweet, err error) {
	defer observe("create_tweet", time.Now(), &err)

	content = strings.TrimSpace(content)
	refs := make([]string, 0, len(imageRefs))
	for _, r := range imageRefs {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	s.tweetsMu.Lock()
	defer s.tweetsMu.Unlock()

	ui := userIndex(s.users, authorID)
	if ui < 0 {
		return tweet, userNotFound(authorID)
	}
	if content == "" && len(refs) == 0 {
		return tweet, emptyContent()
	}

	tweet = models.Tweet{
		ID:             nextTweetID(s.tweets),
		AuthorID:       authorID,
		AuthorUsername: s.users[ui].Username,
		Content:        content,
		ImageRefs:      refs,
		CreatedAt:      s.now().UTC(),
		Likes:          models.IDSet{},
		Comments:       []models.Comment{},
		Retweets:       []models.Retweet{},
	}
	next := appended(s.tweets, tweet)
	if err := s.saveTweets(ctx, next); err != nil {
		return models.Tweet{}, err
	}
	s.tweets = next
	s.log.Debug("Tweet created", zap.Int64("tweet_id", tweet.ID), zap.Int64("author_id", authorID))
	return tweet.Clone(), nil
}

func (s *Store) GetTweet(ctx context.Context, id int64) (models.Tweet, error) {
	s.tweetsMu.RLock()
	defer s.tweetsMu.RUnlock()
	i := tweetIndex(s.tweets, id)
	if i < 0 {
		return models.Tweet{}, tweetNotFound(id)
	}
	return s.tweets[i].Clone(), nil
}

// ListTweets returns every tweet in insertion order.
func (s *Store) ListTweets(ctx context.Context) []models.Tweet {
	s.tweetsMu.RLock()
	defer s.tweetsMu.RUnlock()
	out := make([]models.Tweet, len(s.tweets))
	for i, t := range s.tweets {
		out[i] = t.Clone()
	}
	return out
}

// updateTweet runs fn on a clone of tweet id and commits the result. fn may
// return an error to abort without writing.
func (s *Store) updateTweet(ctx context.Context, id int64, fn func(t *models.Tweet) error) (models.Tweet, error) {
	s.tweetsMu.Lock()
	defer s.tweetsMu.Unlock()
	return s.updateTweetLocked(ctx, id, fn)
}

// updateTweetLocked is updateTweet for callers already holding tweetsMu.
func (s *Store) updateTweetLocked(ctx context.Context, id int64, fn func(t *models.Tweet) error) (models.Tweet, error) {
	i := tweetIndex(s.tweets, id)
	if i < 0 {
		return models.Tweet{}, tweetNotFound(id)
	}
	t := s.tweets[i].Clone()
	if err := fn(&t); err != nil {
		return models.Tweet{}, err
	}
	next := replaced(s.tweets, i, t)
	if err := s.saveTweets(ctx, next); err != nil {
		return models.Tweet{}, err
	}
	s.tweets = next
	return t.Clone(), nil
}

// ToggleLike likes tweetID for userID, or takes the like back. A like notification
// that fails to store is logged and dropped; it does not fail the committed toggle.
func (s *Store) ToggleLike(ctx context.Context, tweetID, userID int64) (res LikeResult, err error) {
	defer observe("toggle_like", time.Now(), &err)

	t, err := s.updateTweet(ctx, tweetID, func(t *models.Tweet) error {
		t.Likes, res.Liked = t.Likes.Toggle(userID)
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	res.LikeCount = len(t.Likes)
	s.log.Debug("Like toggled", zap.Int64("tweet_id", tweetID), zap.Int64("user_id", userID), zap.Bool("liked", res.Liked))

	if res.Liked {
		s.dispatch(ctx, notify.Event{Type: models.NotifyLike, To: t.AuthorID, From: userID, TweetID: tweetID})
	}
	return res, nil
}

// ToggleRetweet adds or removes userID's retweet of tweetID. As with ToggleLike,
// a failed notification write does not fail the toggle.
func (s *Store) ToggleRetweet(ctx context.Context, tweetID, userID int64) (res RetweetResult, err error) {
	defer observe("toggle_retweet", time.Now(), &err)

	now := s.now().UTC()
	t, err := s.updateTweet(ctx, tweetID, func(t *models.Tweet) error {
		if _, ok := t.RetweetBy(userID); ok {
			kept := make([]models.Retweet, 0, len(t.Retweets))
			for _, r := range t.Retweets {
				if r.UserID != userID {
					kept = append(kept, r)
				}
			}
			t.Retweets = kept
			return nil
		}
		t.Retweets = append(t.Retweets, models.Retweet{UserID: userID, RetweetedAt: now})
		res.IsRetweeted = true
		return nil
	})
	if err != nil {
		return RetweetResult{}, err
	}
	res.RetweetCount = len(t.Retweets)
	s.log.Debug("Retweet toggled", zap.Int64("tweet_id", tweetID), zap.Int64("user_id", userID), zap.Bool("retweeted", res.IsRetweeted))

	if res.IsRetweeted {
		s.dispatch(ctx, notify.Event{Type: models.NotifyRetweet, To: t.AuthorID, From: userID, TweetID: tweetID})
	}
	return res, nil
}

// ToggleReaction toggles userID's emoji reaction on tweetID.
func (s *Store) ToggleReaction(ctx context.Context, tweetID, userID int64, emoji string) (res ReactionResult, err error) {
	defer observe("toggle_reaction", time.Now(), &err)

	if !allowedReactions[emoji] {
		return res, apperrors.InvalidInput(apperrors.CodeInvalidReaction, "unknown reaction %q", emoji)
	}
	_, err = s.updateTweet(ctx, tweetID, func(t *models.Tweet) error {
		var set models.IDSet
		set, res.Reacted = t.Reactions[emoji].Toggle(userID)
		if t.Reactions == nil {
			t.Reactions = map[string]models.IDSet{}
		}
		if len(set) == 0 {
			delete(t.Reactions, emoji)
		} else {
			t.Reactions[emoji] = set
		}
		if len(t.Reactions) == 0 {
			t.Reactions = nil
		}
		res.Count = len(set)
		return nil
	})
	if err != nil {
		return ReactionResult{}, err
	}
	return res, nil
}

// AddComment appends a comment to tweetID and tells the tweet's author.
func (s *Store) AddComment(ctx context.Context, tweetID, authorID int64, content string) (comment models.Comment, err error) {
	defer observe("add_comment", time.Now(), &err)

	content = strings.TrimSpace(content)
	t, err := s.withAuthor(ctx, tweetID, authorID, content, func(t *models.Tweet, author models.User) error {
		comment = models.Comment{
			ID:             t.NextCommentID(),
			AuthorID:       authorID,
			AuthorUsername: author.Username,
			Content:        content,
			CreatedAt:      s.now().UTC(),
			Likes:          models.IDSet{},
			Replies:        []models.Reply{},
		}
		t.Comments = append(t.Comments, comment)
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	s.log.Debug("Comment added", zap.Int64("tweet_id", tweetID), zap.Int64("comment_id", comment.ID))

	s.dispatch(ctx, notify.Event{
		Type:    models.NotifyComment,
		To:      t.AuthorID,
		From:    authorID,
		TweetID: tweetID,
		Content: notify.Truncate(content),
	})
	return comment.Clone(), nil
}

// AddReply answers comment commentID on tweetID. The comment's author gets a
// reply notification and the tweet's author a reply_on_tweet one; a user who is
// both only gets the first.
func (s *Store) AddReply(ctx context.Context, tweetID, commentID, authorID int64, content string) (reply models.Reply, err error) {
	defer observe("add_reply", time.Now(), &err)

	content = strings.TrimSpace(content)
	var parent models.Comment
	t, err := s.withAuthor(ctx, tweetID, authorID, content, func(t *models.Tweet, author models.User) error {
		ci := t.CommentByID(commentID)
		if ci < 0 {
			return apperrors.NotFound(apperrors.CodeCommentNotFound, "comment not found: %d on tweet %d", commentID, tweetID)
		}
		reply = models.Reply{
			AuthorID:       authorID,
			AuthorUsername: author.Username,
			Content:        content,
			CreatedAt:      s.now().UTC(),
		}
		t.Comments[ci].Replies = append(t.Comments[ci].Replies, reply)
		parent = t.Comments[ci]
		return nil
	})
	if err != nil {
		return models.Reply{}, err
	}
	s.log.Debug("Reply added", zap.Int64("tweet_id", tweetID), zap.Int64("comment_id", commentID))

	quoted := notify.ReplyContent(parent.Content, content)
	var events []notify.Event
	if t.AuthorID != parent.AuthorID {
		events = append(events, notify.Event{
			Type: models.NotifyReplyOnTweet, To: t.AuthorID, From: authorID, TweetID: tweetID, Content: quoted,
		})
	}
	events = append(events, notify.Event{
		Type: models.NotifyReply, To: parent.AuthorID, From: authorID, TweetID: tweetID, Content: quoted,
	})
	s.dispatch(ctx, events...)
	return reply, nil
}

// withAuthor resolves authorID under the users lock and updates tweetID with fn.
// The tweet is checked first, then the author, then content.
func (s *Store) withAuthor(ctx context.Context, tweetID, authorID int64, content string,
	fn func(t *models.Tweet, author models.User) error) (models.Tweet, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	s.tweetsMu.Lock()
	defer s.tweetsMu.Unlock()

	if tweetIndex(s.tweets, tweetID) < 0 {
		return models.Tweet{}, tweetNotFound(tweetID)
	}
	ui := userIndex(s.users, authorID)
	if ui < 0 {
		return models.Tweet{}, userNotFound(authorID)
	}
	if content == "" {
		return models.Tweet{}, emptyContent()
	}
	author := s.users[ui]
	return s.updateTweetLocked(ctx, tweetID, func(t *models.Tweet) error {
		return fn(t, author)
	})
}

// ToggleCommentLike likes or unlikes one comment.
func (s *Store) ToggleCommentLike(ctx context.Context, tweetID, commentID, userID int64) (res LikeResult, err error) {
	defer observe("toggle_comment_like", time.Now(), &err)

	_, err = s.updateTweet(ctx, tweetID, func(t *models.Tweet) error {
		ci := t.CommentByID(commentID)
		if ci < 0 {
			return apperrors.NotFound(apperrors.CodeCommentNotFound, "comment not found: %d on tweet %d", commentID, tweetID)
		}
		t.Comments[ci].Likes, res.Liked = t.Comments[ci].Likes.Toggle(userID)
		res.LikeCount = len(t.Comments[ci].Likes)
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	return res, nil
}
