package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyTweets = `[
  {"id": 1, "user_id": 2, "username": "bob", "content": "hi",
   "created_at": "2024-03-01 10:00:00",
   "retweets": [3, {"user_id": 4, "retweeted_at": "2024-03-02T12:00:00+02:00"}, 3],
   "comments": [{"author_id": 1, "author_username": "alice", "content": "c"}]},
  {"id": 2, "author_id": 1, "author_username": "alice", "content": "old"}
]`

func TestTweetsMigration(t *testing.T) {
	out, n, err := Tweets([]byte(legacyTweets))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.JSONEq(t, `[
	  {"id": 1, "author_id": 2, "author_username": "bob", "content": "hi",
	   "created_at": "2024-03-01T10:00:00Z", "likes": [], "image_refs": [],
	   "retweets": [
	     {"user_id": 3, "retweeted_at": "2024-03-01T10:00:00Z"},
	     {"user_id": 4, "retweeted_at": "2024-03-02T10:00:00Z"}
	   ],
	   "comments": [{"id": 1, "author_id": 1, "author_username": "alice", "content": "c",
	     "created_at": "1970-01-01T00:00:00Z", "likes": [], "replies": []}]},
	  {"id": 2, "author_id": 1, "author_username": "alice", "content": "old",
	   "created_at": "1970-01-01T00:00:00Z", "likes": [], "comments": [],
	   "retweets": [], "image_refs": []}
	]`, string(out))
}

func TestMigrationIsIdempotent(t *testing.T) {
	cases := map[string]struct {
		fn  func([]byte) ([]byte, int, error)
		raw string
	}{
		"tweets": {Tweets, legacyTweets},
		"users":  {Users, `[{"id": 1, "username": "a", "password": "x"}]`},
		"notifications": {Notifications,
			`[{"id": "n1", "to_user_id": 1, "from_user_id": 2, "type": "like", "created_at": 1700000000}]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			once, _, err := tc.fn([]byte(tc.raw))
			require.NoError(t, err)
			twice, n, err := tc.fn(once)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Equal(t, string(once), string(twice))
		})
	}
}

func TestCommentIDsContinueFromHighest(t *testing.T) {
	out, _, err := Tweets([]byte(`[{"id": 1, "created_at": "2024-01-01T00:00:00Z",
	  "comments": [{"id": 5, "content": "a"}, {"content": "b"}, {"id": null, "content": "c"}]}]`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"content":"b","created_at":"1970-01-01T00:00:00Z","id":6`)
	assert.Contains(t, string(out), `"content":"c","created_at":"1970-01-01T00:00:00Z","id":7`)
}

func TestUsersMigration(t *testing.T) {
	out, n, err := Users([]byte(`[{"id": 1, "username": "a", "email": "a@x", "password": "h"},
	  {"id": 2, "username": "b", "email": "b@x", "password_hash": "h", "followers": [1], "following": [], "bio": "hey",
	   "created_at": "2024-02-02T10:00:00Z"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, `[
	  {"id": 1, "username": "a", "email": "a@x", "password_hash": "h", "followers": [], "following": [], "bio": "",
	   "created_at": "1970-01-01T00:00:00Z"},
	  {"id": 2, "username": "b", "email": "b@x", "password_hash": "h", "followers": [1], "following": [], "bio": "hey",
	   "created_at": "2024-02-02T10:00:00Z"}
	]`, string(out))
}

func TestNotificationsMigration(t *testing.T) {
	out, n, err := Notifications([]byte(`[{"id": "n1", "to_user_id": 1, "from_user_id": 2, "type": "follow", "created_at": 1700000000}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, `[{"id": "n1", "to_user_id": 1, "from_user_id": 2, "type": "follow",
	  "seen": false, "created_at": "2023-11-14T22:13:20Z"}]`, string(out))
}

func TestEmptyAndInvalidInput(t *testing.T) {
	out, n, err := Tweets(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, n)

	out, _, err = Users([]byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	_, _, err = Tweets([]byte(`[1, 2]`))
	assert.Error(t, err)
	_, _, err = Tweets([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestNormalizeTimestamp(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"rfc3339 utc":      {"2024-05-01T08:30:00Z", "2024-05-01T08:30:00Z"},
		"offset":           {"2024-05-01T10:30:00+02:00", "2024-05-01T08:30:00Z"},
		"fraction kept":    {"2024-05-01T08:30:00.250Z", "2024-05-01T08:30:00.25Z"},
		"naive iso":        {"2024-05-01T08:30:00.123456", "2024-05-01T08:30:00.123456Z"},
		"sqlite timestamp": {"2024-05-01 08:30:00", "2024-05-01T08:30:00Z"},
		"unix seconds":     {float64(1700000000), "2023-11-14T22:13:20Z"},
		"garbage":          {"yesterday", Epoch},
		"missing":          {nil, Epoch},
		"empty":            {"", Epoch},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTimestamp(tc.in))
		})
	}
}

func TestCollectionDispatch(t *testing.T) {
	out, n, err := Collection("users", []byte(`[{"id": 1}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, string(out), `"followers":[]`)

	raw := []byte(`[{"x": 1}]`)
	out, n, err = Collection("other", raw)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, raw, out)
}

func TestReportTotal(t *testing.T) {
	assert.Equal(t, 6, Report{Users: 1, Tweets: 2, Notifications: 3}.Total())
}
