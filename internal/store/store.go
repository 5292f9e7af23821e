// Package store is the shared content and graph store: users, tweets and the
// notification log, with every mutation written through to a persistence backend.
//
// Mutations are copy-on-write. The target record is cloned and changed, the next
// collection is persisted as a whole, and only then does it replace the current
// one. A failed write leaves memory as it was. Locks are always taken in the order
// users, tweets, notifications, and notifications are dispatched after the entity
// locks are released.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twinsa/internal/apperrors"
	"twinsa/internal/auth"
	"twinsa/internal/metrics"
	"twinsa/internal/migrate"
	"twinsa/internal/models"
	"twinsa/internal/notify"
	"twinsa/internal/persist"
)

// PasswordHasher checks passwords against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type Options struct {
	Backend persist.Backend
	Logger  *zap.Logger
	// Defaults to bcrypt at the default cost.
	Hasher PasswordHasher
	// Defaults to time.Now.
	Now func() time.Time
}

type Store struct {
	usersMu sync.RWMutex
	users   []models.User

	tweetsMu sync.RWMutex
	tweets   []models.Tweet

	notes      *notify.Log
	dispatcher *notify.Dispatcher

	backend persist.Backend
	log     *zap.Logger
	hasher  PasswordHasher
	now     func() time.Time
	report  migrate.Report
}

// Stats holds collection sizes.
type Stats struct {
	Users         int `json:"users"`
	Tweets        int `json:"tweets"`
	Notifications int `json:"notifications"`
}

// Open loads all three collections in parallel, migrating older record shapes
// on the way in. Migrated collections are written back before Open returns.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, errors.New("store: nil backend")
	}
	s := &Store{
		backend: opts.Backend,
		log:     opts.Logger,
		hasher:  opts.Hasher,
		now:     opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.hasher == nil {
		s.hasher = auth.NewBcryptHasher(0)
	}
	if s.now == nil {
		s.now = time.Now
	}

	var (
		users  []models.User
		tweets []models.Tweet
		notes  []models.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.report.Users, err = s.load(gctx, persist.CollectionUsers, &users)
		return err
	})
	g.Go(func() (err error) {
		s.report.Tweets, err = s.load(gctx, persist.CollectionTweets, &tweets)
		return err
	})
	g.Go(func() (err error) {
		s.report.Notifications, err = s.load(gctx, persist.CollectionNotifications, &notes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if users == nil {
		users = []models.User{}
	}
	if tweets == nil {
		tweets = []models.Tweet{}
	}
	s.users = users
	s.tweets = tweets
	s.notes = notify.NewLog(notes, s.backend)
	s.dispatcher = notify.NewDispatcher(s.notes, s.log, s.now)

	if s.report.Total() > 0 {
		s.log.Info("Migrated stored records",
			zap.Int("users", s.report.Users),
			zap.Int("tweets", s.report.Tweets),
			zap.Int("notifications", s.report.Notifications))
	}
	s.log.Info("Store loaded",
		zap.Int("users", len(s.users)),
		zap.Int("tweets", len(s.tweets)),
		zap.Int("notifications", s.notes.Len()))
	return s, nil
}

func (s *Store) load(ctx context.Context, collection string, dst any) (int, error) {
	raw, err := s.backend.Load(ctx, collection)
	if err != nil {
		if apperrors.IsPersistence(err) {
			return 0, err
		}
		return 0, apperrors.Persistence(apperrors.CodeReadFailed, "read "+collection, err)
	}
	migrated, n, err := migrate.Collection(collection, raw)
	if err != nil {
		return 0, apperrors.Persistence(apperrors.CodeReadFailed, "migrate "+collection, err)
	}
	if migrated == nil {
		return 0, nil
	}
	if err := json.Unmarshal(migrated, dst); err != nil {
		return 0, apperrors.Persistence(apperrors.CodeReadFailed, "decode "+collection, err)
	}
	if n > 0 {
		metrics.AddMigrated(collection, n)
		if err := s.backend.Save(ctx, collection, migrated); err != nil {
			return 0, apperrors.Persistence(apperrors.CodeWriteFailed, "write migrated "+collection, err)
		}
	}
	return n, nil
}

// MigrationReport returns what Open rewrote.
func (s *Store) MigrationReport() migrate.Report { return s.report }

// Rewrite persists every collection again in the current format.
func (s *Store) Rewrite(ctx context.Context) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.tweetsMu.Lock()
	defer s.tweetsMu.Unlock()

	if err := s.saveUsers(ctx, s.users); err != nil {
		return err
	}
	if err := s.saveTweets(ctx, s.tweets); err != nil {
		return err
	}
	return s.notes.Rewrite(ctx)
}

func (s *Store) Close() error { return s.backend.Close() }

// Stats returns collection sizes.
func (s *Store) Stats(ctx context.Context) Stats {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	s.tweetsMu.RLock()
	defer s.tweetsMu.RUnlock()
	return Stats{Users: len(s.users), Tweets: len(s.tweets), Notifications: s.notes.Len()}
}

// --- Persistence helpers ---

func (s *Store) saveUsers(ctx context.Context, next []models.User) error {
	return s.save(ctx, persist.CollectionUsers, next)
}

func (s *Store) saveTweets(ctx context.Context, next []models.Tweet) error {
	return s.save(ctx, persist.CollectionTweets, next)
}

func (s *Store) save(ctx context.Context, collection string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Persistence(apperrors.CodeWriteFailed, "encode "+collection, err)
	}
	if err := s.backend.Save(ctx, collection, data); err != nil {
		return apperrors.Persistence(apperrors.CodeWriteFailed, "write "+collection, err)
	}
	return nil
}

// --- Notification helpers ---

// dispatch runs after the entity change has been committed. A notification that
// cannot be stored is logged by the dispatcher and dropped; the change stands.
func (s *Store) dispatch(ctx context.Context, events ...notify.Event) {
	for _, ev := range events {
		_ = s.dispatcher.Dispatch(ctx, ev)
	}
}

// --- Slice helpers ---

func replaced[T any](items []T, i int, v T) []T {
	next := make([]T, len(items))
	copy(next, items)
	next[i] = v
	return next
}

func appended[T any](items []T, v T) []T {
	next := make([]T, len(items), len(items)+1)
	copy(next, items)
	return append(next, v)
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveOp(op, start, *err)
}
