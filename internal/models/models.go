package models

import "time"

// User represents a registered user.
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"password_hash"`
	Followers         IDSet     `json:"followers"`
	Following         IDSet     `json:"following"`
	ProfilePictureRef string    `json:"profile_picture_ref,omitempty"`
	Bio               string    `json:"bio"`
	CreatedAt         time.Time `json:"created_at"`
}

// Tweet is a short message with its embedded engagement state.
type Tweet struct {
	ID             int64            `json:"id"`
	AuthorID       int64            `json:"author_id"`
	AuthorUsername string           `json:"author_username"`
	Content        string           `json:"content"`
	ImageRefs      []string         `json:"image_refs"`
	CreatedAt      time.Time        `json:"created_at"`
	Likes          IDSet            `json:"likes"`
	Comments       []Comment        `json:"comments"`
	Retweets       []Retweet        `json:"retweets"`
	Reactions      map[string]IDSet `json:"reactions,omitempty"`
}

// Retweet records one user's retweet of a tweet.
type Retweet struct {
	UserID      int64     `json:"user_id"`
	RetweetedAt time.Time `json:"retweeted_at"`
}

// Comment hangs off a tweet and is addressed by its per-tweet ID.
type Comment struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Likes          IDSet     `json:"likes"`
	Replies        []Reply   `json:"replies"`
}

// Reply is an answer to a comment.
type Reply struct {
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationType names what happened.
type NotificationType string

const (
	NotifyLike         NotificationType = "like"
	NotifyFollow       NotificationType = "follow"
	NotifyComment      NotificationType = "comment"
	NotifyRetweet      NotificationType = "retweet"
	NotifyReply        NotificationType = "reply"
	NotifyReplyOnTweet NotificationType = "reply_on_tweet"
)

// Notification is one stored event addressed to a user.
type Notification struct {
	ID         string           `json:"id"`
	ToUserID   int64            `json:"to_user_id"`
	FromUserID int64            `json:"from_user_id"`
	Type       NotificationType `json:"type"`
	TweetID    *int64           `json:"tweet_id,omitempty"`
	Content    string           `json:"content,omitempty"`
	Seen       bool             `json:"seen"`
	CreatedAt  time.Time        `json:"created_at"`
}
