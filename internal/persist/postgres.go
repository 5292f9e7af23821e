package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores collection snapshots in a Postgres table.
type PostgresBackend struct {
	Pool *pgxpool.Pool
	Now  func() time.Time
}

var _ Backend = (*PostgresBackend)(nil)

func OpenPostgres(ctx context.Context, connStr string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	b := &PostgresBackend{Pool: pool, Now: time.Now}
	if err := b.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			collection TEXT PRIMARY KEY,
			format_version INTEGER NOT NULL,
			body BYTEA NOT NULL,
			saved_at BIGINT NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := b.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	var (
		version int
		body    []byte
	)
	err := b.Pool.QueryRow(ctx,
		"SELECT format_version, body FROM snapshots WHERE collection = $1", collection).
		Scan(&version, &body)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (b *PostgresBackend) Save(ctx context.Context, collection string, items []byte) error {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (collection, format_version, body, saved_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection) DO UPDATE SET
		 format_version = EXCLUDED.format_version, body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`,
		collection, FormatVersion, items, b.Now().Unix())
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) Close() error {
	b.Pool.Close()
	return nil
}
