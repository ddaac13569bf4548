package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// tables holds the documents of every collection, keyed by collection name.
// It is the shared engine of the memory and file stores; callers serialize access.
type tables map[string][]Document

// ensureSeed creates a seeded collection that does not exist yet. It reports
// whether the tables changed.
func (t tables) ensureSeed(name string, opts Options) (bool, error) {
	if _, ok := t[name]; ok {
		return false, nil
	}
	seed, err := opts.seedFor(name)
	if err != nil {
		return false, err
	}
	if len(seed) == 0 {
		return false, nil
	}
	for _, doc := range seed {
		if doc.ID() == "" {
			id, err := newID(t[name])
			if err != nil {
				return false, err
			}
			doc[IDField] = id
		}
		t[name] = append(t[name], doc)
	}
	return true, nil
}

func (t tables) find(name, field string, value any) (Document, error) {
	v, err := normalizeValue(value)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	i := indexOf(t[name], field, v)
	if i < 0 {
		return nil, nil
	}
	return copyDocument(t[name][i]), nil
}

func (t tables) insert(name string, doc Document, unique []string) (Document, error) {
	n, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	docs := t[name]
	if raw, ok := n[IDField]; ok && raw != nil && raw != "" {
		id, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", IDField, raw)
		}
		if indexOf(docs, IDField, id) >= 0 {
			return nil, fmt.Errorf("%s %q in %s: %w", IDField, id, name, ErrDuplicate)
		}
	} else {
		id, err := newID(docs)
		if err != nil {
			return nil, err
		}
		n[IDField] = id
	}
	if violatesUnique(docs, n, unique, -1) {
		return nil, fmt.Errorf("insert into %s: %w", name, ErrDuplicate)
	}
	t[name] = append(docs, n)
	return copyDocument(n), nil
}

func (t tables) update(name, field string, value any, patch Document, unique []string) (Document, bool, error) {
	v, err := normalizeValue(value)
	if err != nil {
		return nil, false, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	p, err := normalizeDocument(patch)
	if err != nil {
		return nil, false, err
	}
	docs := t[name]
	i := indexOf(docs, field, v)
	if i < 0 {
		return nil, false, nil
	}
	updated := merge(docs[i], p)
	if violatesUnique(docs, updated, unique, i) {
		return nil, false, fmt.Errorf("update in %s: %w", name, ErrDuplicate)
	}
	docs[i] = updated
	return copyDocument(updated), true, nil
}

// newID returns a time-ordered UUID not yet used in docs.
func newID(docs []Document) (string, error) {
	for {
		u, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		id := u.String()
		if indexOf(docs, IDField, id) < 0 {
			return id, nil
		}
	}
}

// MemoryStore keeps every collection in process memory. It is meant for tests and
// for running the API without any backing medium.
type MemoryStore struct {
	mu   sync.Mutex
	data tables
	opts Options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{data: make(tables), opts: opts}
}

func (s *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: s, name: name}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

type memoryCollection struct {
	store *MemoryStore
	name  string
}

// lock acquires the store lock and seeds the collection on first access.
func (c *memoryCollection) lock() error {
	c.store.mu.Lock()
	if _, err := c.store.data.ensureSeed(c.name, c.store.opts); err != nil {
		c.store.mu.Unlock()
		return err
	}
	return nil
}

func (c *memoryCollection) Find(ctx context.Context) ([]Document, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.store.mu.Unlock()
	return copyDocuments(c.store.data[c.name]), nil
}

func (c *memoryCollection) FindOne(ctx context.Context, field string, value any) (Document, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.store.mu.Unlock()
	return c.store.data.find(c.name, field, value)
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc Document) (Document, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.store.mu.Unlock()
	return c.store.data.insert(c.name, doc, c.store.opts.uniqueFields(c.name))
}

func (c *memoryCollection) UpdateOne(ctx context.Context, field string, value any, patch Document) (Document, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.store.mu.Unlock()
	doc, _, err := c.store.data.update(c.name, field, value, patch, c.store.opts.uniqueFields(c.name))
	return doc, err
}
