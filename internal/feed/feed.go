// Package feed builds timelines from a consistent snapshot of users and tweets.
// Nothing here mutates its input.
package feed

import (
	"sort"
	"time"

	"twinsa/internal/models"
)

// Snapshot is the view of the store a feed is built from.
type Snapshot struct {
	Users  []models.User
	Tweets []models.Tweet
}

func (s Snapshot) usersByID() map[int64]models.User {
	m := make(map[int64]models.User, len(s.Users))
	for _, u := range s.Users {
		m[u.ID] = u
	}
	return m
}

// Home splits every tweet into the ones written by userID or someone they follow,
// and everything else. Both lists are newest first.
func Home(snap Snapshot, userID int64) models.HomeFeed {
	users := snap.usersByID()
	following := users[userID].Following

	feed := models.HomeFeed{
		Followed:    []models.TweetView{},
		Recommended: []models.TweetView{},
	}
	for _, t := range snap.Tweets {
		v := view(users, t, userID)
		if t.AuthorID == userID || following.Has(t.AuthorID) {
			feed.Followed = append(feed.Followed, v)
		} else {
			feed.Recommended = append(feed.Recommended, v)
		}
	}
	sortNewestFirst(feed.Followed, createdAt)
	sortNewestFirst(feed.Recommended, createdAt)
	return feed
}

// Profile lists the tweets profileUserID wrote plus the ones they retweeted,
// ordered by when they appeared on the profile.
func Profile(snap Snapshot, profileUserID, viewerID int64) []models.TweetView {
	users := snap.usersByID()
	profile := users[profileUserID]

	out := []models.TweetView{}
	for _, t := range snap.Tweets {
		if t.AuthorID == profileUserID {
			out = append(out, view(users, t, viewerID))
		}
	}
	for _, t := range snap.Tweets {
		r, ok := t.RetweetBy(profileUserID)
		if !ok {
			continue
		}
		v := view(users, t, viewerID)
		v.IsRetweet = true
		v.RetweetedBy = profile.Username
		v.RetweetedAt = r.RetweetedAt
		out = append(out, v)
	}
	sortNewestFirst(out, effectiveTime)
	return out
}

func view(users map[int64]models.User, t models.Tweet, viewerID int64) models.TweetView {
	v := models.TweetView{
		Tweet:    t.Clone(),
		Liked:    t.Likes.Has(viewerID),
		Username: t.AuthorUsername,
	}
	if author, ok := users[t.AuthorID]; ok {
		v.Username = author.Username
		v.ProfilePictureRef = author.ProfilePictureRef
	}
	return v
}

func createdAt(v models.TweetView) time.Time { return v.CreatedAt }

func effectiveTime(v models.TweetView) time.Time {
	if v.IsRetweet {
		return v.RetweetedAt
	}
	return v.CreatedAt
}

// sortNewestFirst keeps insertion order between equal timestamps. Zero times sort
// last, as the oldest entries.
func sortNewestFirst(views []models.TweetView, at func(models.TweetView) time.Time) {
	sort.SliceStable(views, func(i, j int) bool {
		return at(views[i]).After(at(views[j]))
	})
}
