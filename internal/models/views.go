package models

import "time"

// TweetView is a tweet as shown to one viewer. None of the extra fields are persisted.
type TweetView struct {
	Tweet
	Liked             bool      `json:"liked"`
	IsRetweet         bool      `json:"is_retweet"`
	RetweetedBy       string    `json:"retweeted_by,omitempty"`
	RetweetedAt       time.Time `json:"retweeted_at,omitempty"`
	Username          string    `json:"username"`
	ProfilePictureRef string    `json:"profile_picture_ref,omitempty"`
}

// HomeFeed splits all tweets into the viewer's followed and recommended sets.
type HomeFeed struct {
	Followed    []TweetView `json:"followed"`
	Recommended []TweetView `json:"recommended"`
}

// NotificationView carries the sender's current username next to the stored record.
type NotificationView struct {
	Notification
	FromUsername string `json:"from_username"`
}
