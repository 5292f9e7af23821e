package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS snapshots (
	collection TEXT PRIMARY KEY,
	format_version INTEGER NOT NULL,
	body BLOB NOT NULL,
	saved_at INTEGER NOT NULL
)`

// SQLiteBackend keeps each collection snapshot as one row of a SQLite database.
type SQLiteBackend struct {
	db  *sql.DB
	Now func() time.Time
}

var _ Backend = (*SQLiteBackend)(nil)

func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; concurrent saves of different collections would
	// otherwise race for the database lock.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteBackend{db: db, Now: time.Now}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	var (
		version int
		body    []byte
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT format_version, body FROM snapshots WHERE collection = ?", collection).
		Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkVersion(collection, version); err != nil {
		return nil, err
	}
	return body, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, collection string, items []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (collection, format_version, body, saved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET
		 format_version = excluded.format_version, body = excluded.body, saved_at = excluded.saved_at`,
		collection, FormatVersion, items, b.Now().Unix())
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }
