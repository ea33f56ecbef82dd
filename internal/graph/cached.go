package graph

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentic-research/sitemap/api"
)

// CachedStore fronts a Store with a bounded LRU of decoded records. Long-lived
// surfaces (the MCP server) re-read the same upper levels of the tree on every
// navigation; short CLI runs use the underlying store directly.
type CachedStore struct {
	Store
	cache *lru.Cache[string, *api.Record]

	// gen advances on every write. A miss only fills the cache when no write
	// ran while it was reading the underlying store.
	mu  sync.Mutex
	gen uint64
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *api.Record](size)
	if err != nil {
		return nil, fmt.Errorf("create record cache: %w", err)
	}
	return &CachedStore{Store: inner, cache: cache}, nil
}

// Get serves from the cache when possible. Cached records are never handed out directly.
func (c *CachedStore) Get(ctx context.Context, key string) (*api.Record, error) {
	if rec, ok := c.cache.Get(key); ok {
		return rec.Clone(), nil
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	rec, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.cache.Add(key, rec.Clone())
	}
	c.mu.Unlock()
	return rec, nil
}

func (c *CachedStore) Put(ctx context.Context, key string, rec *api.Record) error {
	defer c.invalidate(key)
	return c.Store.Put(ctx, key, rec)
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	defer c.invalidate(key)
	return c.Store.Delete(ctx, key)
}

func (c *CachedStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}
	defer c.invalidate(keys...)
	return c.Store.Merge(ctx, batch)
}

// invalidate drops keys after a write, failed or not, and fences off any
// fill that started before it.
func (c *CachedStore) invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, key := range keys {
		c.cache.Remove(key)
	}
}

// Close purges the cache and closes the underlying store.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.Store.Close()
}

var _ Store = (*CachedStore)(nil)
