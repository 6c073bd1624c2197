package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// postsFilename is versioned: bumping the version orphans old-shape data
// on purpose, there is no migration path.
const postsFilename = "posts_v1.json"

// FilePersister stores the post list as a single JSON file, written
// atomically via a temp file and rename.
type FilePersister struct {
	dir string
}

// NewFilePersister creates a FilePersister rooted at dir, creating the
// directory if needed.
func NewFilePersister(dir string) (*FilePersister, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FilePersister{dir: dir}, nil
}

// Load reads the persisted post list. A missing file yields an empty list.
func (f *FilePersister) Load() ([]Post, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, postsFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read posts file: %w", err)
	}

	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts file: %w", err)
	}
	return posts, nil
}

// Save writes the post list atomically.
func (f *FilePersister) Save(posts []Post) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, postsFilename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write posts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, postsFilename)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace posts file: %w", err)
	}
	return nil
}
