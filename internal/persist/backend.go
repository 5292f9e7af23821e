package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"twinsa/internal/apperrors"
	"twinsa/internal/config"
	"twinsa/internal/metrics"
)

// Collections persisted by the store.
const (
	CollectionUsers         = "users"
	CollectionTweets        = "tweets"
	CollectionNotifications = "notifications"
)

// FormatVersion is written with every snapshot. Version 1 is the bare JSON array
// layout of the older files.
const FormatVersion = 2

// Backend stores whole-collection snapshots. items is always a JSON array.
type Backend interface {
	// Load returns the raw item array, or nil when the collection was never written.
	Load(ctx context.Context, collection string) ([]byte, error)
	// Save replaces the collection with items. A failed save leaves the previous
	// snapshot readable.
	Save(ctx context.Context, collection string, items []byte) error
	Close() error
}

type envelope struct {
	FormatVersion int             `json:"format_version"`
	Collection    string          `json:"collection"`
	SavedAt       time.Time       `json:"saved_at"`
	Items         json.RawMessage `json:"items"`
}

// Encode wraps items in a versioned envelope.
func Encode(collection string, items []byte, savedAt time.Time) ([]byte, error) {
	if len(bytes.TrimSpace(items)) == 0 {
		items = []byte("[]")
	}
	return json.MarshalIndent(envelope{
		FormatVersion: FormatVersion,
		Collection:    collection,
		SavedAt:       savedAt.UTC(),
		Items:         items,
	}, "", "  ")
}

// Decode unwraps a stored file. Bare arrays are accepted as version 1.
func Decode(collection string, raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		return raw, nil
	case '{':
	default:
		return nil, apperrors.Persistence(apperrors.CodeUnsupportedFormat,
			fmt.Sprintf("%s: unrecognised snapshot layout", collection), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Persistence(apperrors.CodeReadFailed,
			fmt.Sprintf("%s: decode snapshot", collection), err)
	}
	if err := checkVersion(collection, env.FormatVersion); err != nil {
		return nil, err
	}
	if env.Collection != "" && env.Collection != collection {
		return nil, apperrors.Persistence(apperrors.CodeReadFailed,
			fmt.Sprintf("%s: snapshot belongs to %q", collection, env.Collection), nil)
	}
	if len(env.Items) == 0 || string(env.Items) == "null" {
		return nil, nil
	}
	return env.Items, nil
}

func checkVersion(collection string, v int) error {
	if v < 1 || v > FormatVersion {
		return apperrors.Persistence(apperrors.CodeUnsupportedFormat,
			fmt.Sprintf("%s: unsupported format version %d", collection, v), nil)
	}
	return nil
}

// Open picks a backend for cfg.Driver and wraps it with metrics and logging.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Backend, error) {
	var (
		b   Backend
		err error
	)
	driver := cfg.Driver
	if driver == "" && cfg.DatabaseURL != "" {
		driver = config.DriverPostgres
	}
	switch driver {
	case "", config.DriverJSON:
		b, err = NewJSONFileBackend(cfg.DataDir)
	case config.DriverSQLite:
		b, err = OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		b, err = OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Storage opened", zap.String("driver", driver))
	return Instrument(b, log), nil
}

type instrumented struct {
	Backend
	log *zap.Logger
}

// Instrument records snapshot metrics and logs failed saves.
func Instrument(b Backend, log *zap.Logger) Backend {
	return &instrumented{Backend: b, log: log}
}

func (b *instrumented) Save(ctx context.Context, collection string, items []byte) error {
	err := b.Backend.Save(ctx, collection, items)
	metrics.ObserveSnapshotWrite(collection, len(items), err)
	if err != nil {
		b.log.Error("Snapshot write failed",
			zap.String("collection", collection),
			zap.Int("bytes", len(items)),
			zap.Error(err))
	}
	return err
}
