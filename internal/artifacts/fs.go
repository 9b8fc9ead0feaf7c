package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// FSRepository persists artifacts as zstd-compressed files under a root
// directory, one file per key.
type FSRepository struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewFS creates a filesystem repository rooted at dir.
func NewFS(dir string) (*FSRepository, error) {
	if dir == "" {
		return nil, errors.New("artifacts: root directory is required")
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("artifacts: creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("artifacts: creating decoder: %w", err)
	}
	return &FSRepository{root: dir, enc: enc, dec: dec}, nil
}

func (r *FSRepository) path(key Key) string {
	return filepath.Join(r.root, key.String()+".json.zst")
}

func (r *FSRepository) Put(key Key, data []byte) error {
	path := r.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifacts: creating directory: %w", err)
	}

	compressed := r.enc.EncodeAll(data, nil)

	// Write to a temp file then rename so readers never see partial data.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("artifacts: writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifacts: storing %s: %w", key, err)
	}
	return nil
}

func (r *FSRepository) Get(key Key) ([]byte, bool, error) {
	compressed, err := os.ReadFile(r.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("artifacts: reading %s: %w", key, err)
	}

	data, err := r.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("artifacts: decompressing %s: %w", key, err)
	}
	return data, true, nil
}
