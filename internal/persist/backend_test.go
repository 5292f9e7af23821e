package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twinsa/internal/apperrors"
	"twinsa/internal/config"
)

func TestDecodeLegacyArray(t *testing.T) {
	items, err := Decode(CollectionTweets, []byte("  [{\"id\": 1}]\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(items))
}

func TestDecodeEnvelope(t *testing.T) {
	raw, err := Encode(CollectionUsers, []byte(`[{"id":3}]`), time.Unix(100, 0))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"format_version": 2`)

	items, err := Decode(CollectionUsers, raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3}]`, string(items))
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	_, err := Decode(CollectionUsers, []byte(`{"format_version": 9, "items": []}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.Equal(t, apperrors.CodeUnsupportedFormat, apperrors.CodeOf(err))
}

func TestDecodeRejectsOtherCollection(t *testing.T) {
	raw, err := Encode(CollectionUsers, []byte(`[]`), time.Now())
	require.NoError(t, err)
	_, err = Decode(CollectionTweets, raw)
	assert.True(t, apperrors.IsPersistence(err))
}

func TestDecodeEmpty(t *testing.T) {
	items, err := Decode(CollectionUsers, []byte("   "))
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestJSONFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewJSONFileBackend(dir)
	require.NoError(t, err)

	items, err := b.Load(ctx, CollectionTweets)
	require.NoError(t, err)
	assert.Nil(t, items, "missing file is an empty collection")

	require.NoError(t, b.Save(ctx, CollectionTweets, []byte(`[{"id":1,"content":"hi"}]`)))
	items, err = b.Load(ctx, CollectionTweets)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"content":"hi"}]`, string(items))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "tweets.json", entries[0].Name())
}

func TestJSONFileBackendReadsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"),
		[]byte(`[{"id": 1, "username": "alice"}]`), 0644))

	b, err := NewJSONFileBackend(dir)
	require.NoError(t, err)
	items, err := b.Load(context.Background(), CollectionUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "username": "alice"}]`, string(items))
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "twinsa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	items, err := b.Load(ctx, CollectionUsers)
	require.NoError(t, err)
	assert.Nil(t, items)

	require.NoError(t, b.Save(ctx, CollectionUsers, []byte(`[{"id":1}]`)))
	require.NoError(t, b.Save(ctx, CollectionUsers, []byte(`[{"id":1},{"id":2}]`)))

	items, err = b.Load(ctx, CollectionUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(items))
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("TWINSA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TWINSA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	b, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	require.NoError(t, b.Save(ctx, CollectionNotifications, []byte(`[{"id":"a"}]`)))
	items, err := b.Load(ctx, CollectionNotifications)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(items))
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, config.StorageConfig{Driver: config.DriverJSON, DataDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Save(ctx, CollectionUsers, []byte(`[]`)))

	_, err = Open(ctx, config.StorageConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)
}
