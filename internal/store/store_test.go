package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"twinsa/internal/apperrors"
	"twinsa/internal/auth"
	"twinsa/internal/models"
	"twinsa/internal/persist"
)

// flakyBackend fails saves for the collections it is told to.
type flakyBackend struct {
	persist.Backend
	mu      sync.Mutex
	failing map[string]bool
}

func (f *flakyBackend) Save(ctx context.Context, collection string, items []byte) error {
	f.mu.Lock()
	fail := f.failing[collection]
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Backend.Save(ctx, collection, items)
}

func (f *flakyBackend) fail(collections ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = map[string]bool{}
	for _, c := range collections {
		f.failing[c] = true
	}
}

func (f *flakyBackend) heal() { f.fail() }

// testClock advances one minute on every reading.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	store   *Store
	backend *flakyBackend
	dir     string
	clock   *testClock
}

func openStore(t *testing.T, dir string) *fixture {
	t.Helper()
	jb, err := persist.NewJSONFileBackend(dir)
	require.NoError(t, err)
	fb := &flakyBackend{Backend: jb}
	clock := newTestClock()
	s, err := Open(context.Background(), Options{
		Backend: fb,
		Logger:  zap.NewNop(),
		Hasher:  auth.NewBcryptHasher(bcrypt.MinCost),
		Now:     clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{store: s, backend: fb, dir: dir, clock: clock}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openStore(t, t.TempDir())
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), name, name+"@example.com", "hash-"+name)
	require.NoError(t, err)
	return u
}

func (f *fixture) tweet(t *testing.T, author int64, content string) models.Tweet {
	t.Helper()
	tw, err := f.store.CreateTweet(context.Background(), author, content, nil)
	require.NoError(t, err)
	return tw
}

func (f *fixture) notifications(t *testing.T, userID int64) []models.NotificationView {
	t.Helper()
	list, err := f.store.ListNotificationsFor(context.Background(), userID)
	require.NoError(t, err)
	return list
}

func feedIDs(views []models.TweetView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestLikeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	require.Equal(t, int64(1), a.ID)
	require.Equal(t, int64(2), b.ID)

	tw := f.tweet(t, a.ID, "hello")
	assert.Equal(t, int64(1), tw.ID)
	assert.Empty(t, tw.Likes)
	assert.Empty(t, tw.Comments)

	res, err := f.store.ToggleLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, LikeCount: 1}, res)

	list := f.notifications(t, 1)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ToUserID)
	assert.Equal(t, int64(2), list[0].FromUserID)
	assert.Equal(t, models.NotifyLike, list[0].Type)
	require.NotNil(t, list[0].TweetID)
	assert.Equal(t, int64(1), *list[0].TweetID)
	assert.Equal(t, "bob", list[0].FromUsername)

	res, err = f.store.ToggleLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, LikeCount: 0}, res)
	assert.Len(t, f.notifications(t, 1), 1)
}

func TestFollowThenFeedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	_, err := f.store.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	tw := f.tweet(t, b.ID, "from bob")

	feed, err := f.store.BuildHomeFeed(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{tw.ID}, feedIDs(feed.Followed))
	assert.Empty(t, feed.Recommended)

	feed, err = f.store.BuildHomeFeed(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{tw.ID}, feedIDs(feed.Followed))
}

func TestRetweetOrderingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")

	old := f.tweet(t, b.ID, "old tweet")
	own := f.tweet(t, a.ID, "alice's own")
	res, err := f.store.ToggleRetweet(ctx, old.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, RetweetResult{IsRetweeted: true, RetweetCount: 1}, res)

	views, err := f.store.BuildProfileTimeline(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{old.ID, own.ID}, feedIDs(views))
	assert.True(t, views[0].IsRetweet)
	assert.Equal(t, "alice", views[0].RetweetedBy)
	assert.True(t, views[0].RetweetedAt.After(own.CreatedAt))

	res, err = f.store.ToggleRetweet(ctx, old.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, RetweetResult{}, res)
	views, err = f.store.BuildProfileTimeline(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{own.ID}, feedIDs(views))
}

func TestFeedPartitionCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var users []models.User
	for _, n := range []string{"alice", "bob", "carol", "dave"} {
		users = append(users, f.user(t, n))
	}
	for i, u := range users {
		f.tweet(t, u.ID, "first")
		f.tweet(t, u.ID, "second")
		_, err := f.store.ToggleFollow(ctx, u.ID, users[(i+1)%len(users)].ID)
		require.NoError(t, err)
	}

	total := f.store.Stats(ctx).Tweets
	for _, u := range users {
		feed, err := f.store.BuildHomeFeed(ctx, u.ID)
		require.NoError(t, err)
		seen := map[int64]bool{}
		for _, v := range append(feed.Followed, feed.Recommended...) {
			assert.False(t, seen[v.ID], "tweet %d listed twice", v.ID)
			seen[v.ID] = true
		}
		assert.Len(t, seen, total)
		assert.Len(t, feed.Followed, 4)
	}
}

func TestSelfNotificationsSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	tw := f.tweet(t, a.ID, "mine")

	_, err := f.store.ToggleLike(ctx, tw.ID, a.ID)
	require.NoError(t, err)
	_, err = f.store.ToggleRetweet(ctx, tw.ID, a.ID)
	require.NoError(t, err)
	c, err := f.store.AddComment(ctx, tw.ID, a.ID, "talking to myself")
	require.NoError(t, err)
	_, err = f.store.AddReply(ctx, tw.ID, c.ID, a.ID, "still me")
	require.NoError(t, err)

	assert.Empty(t, f.notifications(t, a.ID))
	assert.Equal(t, 0, f.store.Stats(ctx).Notifications)
}

func TestBuildFeedsUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.BuildHomeFeed(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.store.BuildProfileTimeline(context.Background(), 42, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOpenRequiresBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOpenMigratesLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	write("users.json", `[
	  {"id": 1, "username": "alice", "email": "alice@example.com", "password": "h1"},
	  {"id": 2, "username": "bob", "email": "bob@example.com", "password_hash": "h2", "followers": [], "following": []}
	]`)
	write("tweets.json", `[
	  {"id": 1, "user_id": 1, "username": "alice", "content": "legacy", "created_at": "2023-01-01 09:00:00",
	   "likes": [2], "retweets": [2], "comments": [{"author_id": 2, "author_username": "bob", "content": "hi"}]}
	]`)

	f := openStore(t, dir)
	ctx := context.Background()
	report := f.store.MigrationReport()
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.Tweets)
	assert.Zero(t, report.Notifications)

	tw, err := f.store.GetTweet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tw.AuthorID)
	assert.Equal(t, "alice", tw.AuthorUsername)
	assert.Equal(t, time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC), tw.CreatedAt)
	require.Len(t, tw.Retweets, 1)
	assert.Equal(t, tw.CreatedAt, tw.Retweets[0].RetweetedAt)
	require.Len(t, tw.Comments, 1)
	assert.Equal(t, int64(1), tw.Comments[0].ID)

	// legacy comment ids map to position + 1
	_, err = f.store.AddReply(ctx, 1, 1, 1, "welcome")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"format_version": 2`)
	assert.NotContains(t, string(raw), `"password":`)

	again := openStore(t, dir)
	assert.Zero(t, again.store.MigrationReport().Total())
}

func TestRewritePersistsEveryCollection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notifications.json"), []byte(`[]`), 0644))
	f := openStore(t, dir)
	require.NoError(t, f.store.Rewrite(context.Background()))

	for _, c := range []string{persist.CollectionUsers, persist.CollectionTweets, persist.CollectionNotifications} {
		raw, err := os.ReadFile(filepath.Join(dir, c+".json"))
		require.NoError(t, err, c)
		assert.Contains(t, string(raw), `"collection": "`+c+`"`)
	}
}
