package models

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	u.Followers = u.Followers.Clone()
	u.Following = u.Following.Clone()
	return u
}

// Clone returns a deep copy of the tweet, including comments and replies.
func (t Tweet) Clone() Tweet {
	t.ImageRefs = append(make([]string, 0, len(t.ImageRefs)), t.ImageRefs...)
	t.Likes = t.Likes.Clone()
	t.Retweets = append(make([]Retweet, 0, len(t.Retweets)), t.Retweets...)
	comments := make([]Comment, len(t.Comments))
	for i, c := range t.Comments {
		comments[i] = c.Clone()
	}
	t.Comments = comments
	if t.Reactions != nil {
		reactions := make(map[string]IDSet, len(t.Reactions))
		for k, v := range t.Reactions {
			reactions[k] = v.Clone()
		}
		t.Reactions = reactions
	}
	return t
}

// Clone returns a deep copy of the comment.
func (c Comment) Clone() Comment {
	c.Likes = c.Likes.Clone()
	c.Replies = append(make([]Reply, 0, len(c.Replies)), c.Replies...)
	return c
}

// Clone returns a copy of the notification that shares nothing with the original.
func (n Notification) Clone() Notification {
	if n.TweetID != nil {
		id := *n.TweetID
		n.TweetID = &id
	}
	return n
}

// RetweetBy returns the retweet record of userID, if any.
func (t Tweet) RetweetBy(userID int64) (Retweet, bool) {
	for _, r := range t.Retweets {
		if r.UserID == userID {
			return r, true
		}
	}
	return Retweet{}, false
}

// CommentByID returns the position of the comment with the given id, or -1.
func (t Tweet) CommentByID(id int64) int {
	for i, c := range t.Comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// NextCommentID is one past the highest comment id on the tweet.
func (t Tweet) NextCommentID() int64 {
	var highest int64
	for _, c := range t.Comments {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return highest + 1
}
