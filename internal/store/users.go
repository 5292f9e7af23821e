package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"twinsa/internal/apperrors"
	"twinsa/internal/models"
	"twinsa/internal/notify"
)

// LiveSearchLimit caps results for search-as-you-type.
const LiveSearchLimit = 10

// FollowResult reports the edge state after ToggleFollow. FollowerCount belongs to
// the followed user, FollowingCount to the follower.
type FollowResult struct {
	IsFollowing    bool `json:"is_following"`
	FollowerCount  int  `json:"follower_count"`
	FollowingCount int  `json:"following_count"`
}

// ProfileUpdate holds the fields EditProfile should change. Nil fields are kept.
type ProfileUpdate struct {
	Username   *string
	Bio        *string
	PictureRef *string
}

// --- Lookup helpers ---

func userIndex(users []models.User, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func nextUserID(users []models.User) int64 {
	var highest int64
	for _, u := range users {
		if u.ID > highest {
			highest = u.ID
		}
	}
	return highest + 1
}

func usernameTaken(users []models.User, username string, except int64) bool {
	for _, u := range users {
		if u.ID != except && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

// --- Operations ---

// CreateUser registers a user. passwordHash is stored as given.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (user models.User, err error) {
	defer observe("create_user", time.Now(), &err)

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return user, apperrors.InvalidInput(apperrors.CodeInvalidInput, "username is required")
	case email == "" || !strings.Contains(email, "@"):
		return user, apperrors.InvalidInput(apperrors.CodeInvalidInput, "a valid email is required")
	case passwordHash == "":
		return user, apperrors.InvalidInput(apperrors.CodeInvalidInput, "password hash is required")
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return user, apperrors.Conflict(apperrors.CodeDuplicateEmail, "email already registered")
		}
	}
	if usernameTaken(s.users, username, 0) {
		return user, apperrors.Conflict(apperrors.CodeDuplicateUsername, "username already taken")
	}

	user = models.User{
		ID:           nextUserID(s.users),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Followers:    models.IDSet{},
		Following:    models.IDSet{},
		CreatedAt:    s.now().UTC(),
	}
	next := appended(s.users, user)
	if err := s.saveUsers(ctx, next); err != nil {
		return models.User{}, err
	}
	s.users = next
	s.log.Debug("User created", zap.Int64("user_id", user.ID), zap.String("username", username))
	return user.Clone(), nil
}

// AuthenticateUser returns the user with email when password matches. Unknown
// email and wrong password fail the same way.
func (s *Store) AuthenticateUser(ctx context.Context, email, password string) (user models.User, err error) {
	defer observe("authenticate_user", time.Now(), &err)

	email = strings.TrimSpace(email)
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, u := range s.users {
		if u.Email == email && s.hasher.Compare(u.PasswordHash, password) {
			return u.Clone(), nil
		}
	}
	return user, apperrors.InvalidInput(apperrors.CodeInvalidCredentials, "invalid email or password")
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	i := userIndex(s.users, id)
	if i < 0 {
		return models.User{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %d", id)
	}
	return s.users[i].Clone(), nil
}

// GetUserByUsername matches case-insensitively.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u.Clone(), nil
		}
	}
	return models.User{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %s", username)
}

// ListUsers returns every user in id order.
func (s *Store) ListUsers(ctx context.Context) []models.User {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := make([]models.User, len(s.users))
	for i, u := range s.users {
		out[i] = u.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ToggleFollow follows followedID when followerID does not follow them yet, and
// unfollows otherwise. Both users change in one write. A follow notification that
// fails to store is logged and dropped; it does not fail the committed toggle.
func (s *Store) ToggleFollow(ctx context.Context, followerID, followedID int64) (res FollowResult, err error) {
	defer observe("toggle_follow", time.Now(), &err)

	res, err = s.toggleFollow(ctx, followerID, followedID)
	if err != nil {
		return res, err
	}
	if res.IsFollowing {
		s.dispatch(ctx, notify.Event{Type: models.NotifyFollow, To: followedID, From: followerID})
	}
	return res, nil
}

func (s *Store) toggleFollow(ctx context.Context, followerID, followedID int64) (FollowResult, error) {
	if followerID == followedID {
		return FollowResult{}, apperrors.Conflict(apperrors.CodeSelfFollow, "cannot follow yourself")
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	fi := userIndex(s.users, followerID)
	if fi < 0 {
		return FollowResult{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %d", followerID)
	}
	ti := userIndex(s.users, followedID)
	if ti < 0 {
		return FollowResult{}, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %d", followedID)
	}

	follower := s.users[fi].Clone()
	followed := s.users[ti].Clone()
	var following bool
	follower.Following, following = follower.Following.Toggle(followedID)
	if following {
		followed.Followers = followed.Followers.Add(followerID)
	} else {
		followed.Followers = followed.Followers.Remove(followerID)
	}

	next := replaced(s.users, fi, follower)
	next[ti] = followed
	if err := s.saveUsers(ctx, next); err != nil {
		return FollowResult{}, err
	}
	s.users = next

	s.log.Debug("Follow toggled",
		zap.Int64("follower", followerID),
		zap.Int64("followed", followedID),
		zap.Bool("following", following))
	return FollowResult{
		IsFollowing:    following,
		FollowerCount:  len(followed.Followers),
		FollowingCount: len(follower.Following),
	}, nil
}

// EditProfile applies update to userID. A new username is copied onto every tweet
// the user wrote; comments and replies keep the name they were written under.
func (s *Store) EditProfile(ctx context.Context, userID int64, update ProfileUpdate) (user models.User, err error) {
	defer observe("edit_profile", time.Now(), &err)

	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.tweetsMu.Lock()
	defer s.tweetsMu.Unlock()

	i := userIndex(s.users, userID)
	if i < 0 {
		return user, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found: %d", userID)
	}
	user = s.users[i].Clone()
	renamed := false

	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		if name == "" {
			return models.User{}, apperrors.InvalidInput(apperrors.CodeInvalidInput, "username is required")
		}
		if usernameTaken(s.users, name, userID) {
			return models.User{}, apperrors.Conflict(apperrors.CodeUsernameTaken, "username already taken")
		}
		renamed = name != user.Username
		user.Username = name
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.PictureRef != nil {
		user.ProfilePictureRef = *update.PictureRef
	}

	nextUsers := replaced(s.users, i, user)
	if err := s.saveUsers(ctx, nextUsers); err != nil {
		return models.User{}, err
	}

	nextTweets := s.tweets
	if renamed {
		nextTweets = make([]models.Tweet, len(s.tweets))
		copy(nextTweets, s.tweets)
		for j, t := range nextTweets {
			if t.AuthorID == userID {
				t = t.Clone()
				t.AuthorUsername = user.Username
				nextTweets[j] = t
			}
		}
		if err := s.saveTweets(ctx, nextTweets); err != nil {
			// Put the users snapshot back so disk matches memory again.
			if rerr := s.saveUsers(ctx, s.users); rerr != nil {
				s.log.Error("Failed to restore users after rename failure",
					zap.Int64("user_id", userID), zap.Error(rerr))
			}
			return models.User{}, err
		}
	}

	s.users = nextUsers
	s.tweets = nextTweets
	s.log.Debug("Profile edited", zap.Int64("user_id", userID), zap.Bool("renamed", renamed))
	return user.Clone(), nil
}

// SearchUsers matches query as a case-insensitive substring of usernames,
// leaving out the searcher. limit <= 0 returns every match.
func (s *Store) SearchUsers(ctx context.Context, query string, searcherID int64, limit int) (users []models.User, err error) {
	defer observe("search_users", time.Now(), &err)

	q := strings.ToLower(strings.TrimSpace(query))
	users = []models.User{}
	if q == "" {
		return users, nil
	}

	s.usersMu.RLock()
	for _, u := range s.users {
		if u.ID != searcherID && strings.Contains(strings.ToLower(u.Username), q) {
			users = append(users, u.Clone())
		}
	}
	s.usersMu.RUnlock()

	sort.SliceStable(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// LiveSearchUsers is SearchUsers capped at LiveSearchLimit results.
func (s *Store) LiveSearchUsers(ctx context.Context, query string, searcherID int64) ([]models.User, error) {
	return s.SearchUsers(ctx, query, searcherID, LiveSearchLimit)
}
