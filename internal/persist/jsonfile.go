package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JSONFileBackend keeps one <collection>.json file per collection in Dir.
type JSONFileBackend struct {
	Dir string
	Now func() time.Time
}

var _ Backend = (*JSONFileBackend)(nil)

func NewJSONFileBackend(dir string) (*JSONFileBackend, error) {
	if dir == "" {
		return nil, errors.New("json backend: empty data directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &JSONFileBackend{Dir: dir, Now: time.Now}, nil
}

func (b *JSONFileBackend) path(collection string) string {
	return filepath.Join(b.Dir, collection+".json")
}

func (b *JSONFileBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(b.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(collection, raw)
}

// Save writes to a temp file in the same directory and renames it over the old
// file, so readers never see a partial snapshot.
func (b *JSONFileBackend) Save(ctx context.Context, collection string, items []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(collection, items, b.Now())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.Dir, "."+collection+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path(collection))
}

func (b *JSONFileBackend) Close() error { return nil }
