package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every collection in a single JSON file shaped as
// {"<collection>": [ {...}, ... ], ...}.
//
// The whole file is rewritten on every write, so all reads and writes go through one
// lock. Writes land in a temporary file that is synced and renamed over the original,
// so a crash leaves either the old or the new content on disk. A single process is
// expected to own the file.
type FileStore struct {
	path string
	opts Options
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. The file, and any seeded
// collection missing from it, is created on first access.
func NewFileStore(path string, opts Options) *FileStore {
	return &FileStore{path: path, opts: opts}
}

func (s *FileStore) Collection(name string) Collection {
	return &fileCollection{store: s, name: name}
}

// Ping makes sure the file exists and parses.
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

// load reads the file, creating it with the seed content when it does not exist.
// The caller must hold s.mu.
func (s *FileStore) load() (tables, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
		}
		t := make(tables)
		if _, err := s.seedMissing(t); err != nil {
			return nil, err
		}
		if err := s.save(t); err != nil {
			return nil, err
		}
		return t, nil
	}

	t := make(tables)
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	changed, err := s.seedMissing(t)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.save(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// seedMissing adds every seeded collection absent from t and reports whether t changed.
func (s *FileStore) seedMissing(t tables) (bool, error) {
	changed := false
	for name := range s.opts.Seed {
		c, err := t.ensureSeed(name, s.opts)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

// save atomically replaces the file with t. The caller must hold s.mu.
func (s *FileStore) save(t tables) error {
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dir, err)
	}
	return nil
}

type fileCollection struct {
	store *FileStore
	name  string
}

func (c *fileCollection) Find(ctx context.Context) ([]Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	t, err := c.store.load()
	if err != nil {
		return nil, err
	}
	docs := t[c.name]
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (c *fileCollection) FindOne(ctx context.Context, field string, value any) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	t, err := c.store.load()
	if err != nil {
		return nil, err
	}
	return t.find(c.name, field, value)
}

func (c *fileCollection) InsertOne(ctx context.Context, doc Document) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	t, err := c.store.load()
	if err != nil {
		return nil, err
	}
	inserted, err := t.insert(c.name, doc, c.store.opts.uniqueFields(c.name))
	if err != nil {
		return nil, err
	}
	if err := c.store.save(t); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (c *fileCollection) UpdateOne(ctx context.Context, field string, value any, patch Document) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	t, err := c.store.load()
	if err != nil {
		return nil, err
	}
	updated, ok, err := t.update(c.name, field, value, patch, c.store.opts.uniqueFields(c.name))
	if err != nil || !ok {
		return nil, err
	}
	if err := c.store.save(t); err != nil {
		return nil, err
	}
	return updated, nil
}
