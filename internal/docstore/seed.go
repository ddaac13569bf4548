package docstore

import (
	"context"
	"sync"
)

// seedGuard runs the seeding of each collection at most once per process. A failed
// attempt is retried on the next access.
type seedGuard struct {
	mu   sync.Mutex
	done map[string]bool
}

func (g *seedGuard) ensure(ctx context.Context, name string, seed func(ctx context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done[name] {
		return nil
	}
	if err := seed(ctx); err != nil {
		return err
	}
	if g.done == nil {
		g.done = make(map[string]bool)
	}
	g.done[name] = true
	return nil
}
