package graph

import (
	"context"
	"sync"

	"github.com/agentic-research/sitemap/api"
)

// HotSwapStore is a thread-safe wrapper that allows swapping the underlying store.
// While detached (during an ingestion rebuild) every operation fails with
// ErrUnavailable, so queries and deletions never run against a store that is
// still being written.
type HotSwapStore struct {
	mu      sync.RWMutex
	current Store
}

func NewHotSwapStore(initial Store) *HotSwapStore {
	return &HotSwapStore{current: initial}
}

// Swap replaces the current store and returns the previous one (possibly nil).
// It waits for in-flight operations on the previous store to finish.
// The caller owns the returned store and is responsible for closing it.
func (h *HotSwapStore) Swap(next Store) Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}

// Detach is Swap(nil).
func (h *HotSwapStore) Detach() Store {
	return h.Swap(nil)
}

// Attached reports whether a store is currently attached.
func (h *HotSwapStore) Attached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current != nil
}

func (h *HotSwapStore) with(fn func(s Store) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return ErrUnavailable
	}
	return fn(h.current)
}

// Get delegates to the current store.
func (h *HotSwapStore) Get(ctx context.Context, key string) (*api.Record, error) {
	var rec *api.Record
	err := h.with(func(s Store) error {
		var err error
		rec, err = s.Get(ctx, key)
		return err
	})
	return rec, err
}

// Put delegates to the current store.
func (h *HotSwapStore) Put(ctx context.Context, key string, rec *api.Record) error {
	return h.with(func(s Store) error { return s.Put(ctx, key, rec) })
}

// Delete delegates to the current store.
func (h *HotSwapStore) Delete(ctx context.Context, key string) error {
	return h.with(func(s Store) error { return s.Delete(ctx, key) })
}

// Merge delegates to the current store.
func (h *HotSwapStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	return h.with(func(s Store) error { return s.Merge(ctx, batch) })
}

// Scan delegates to the current store.
func (h *HotSwapStore) Scan(ctx context.Context, fn func(key string, rec *api.Record) error) error {
	return h.with(func(s Store) error { return s.Scan(ctx, fn) })
}

// Close closes and detaches the current store, if any.
func (h *HotSwapStore) Close() error {
	prev := h.Detach()
	if prev == nil {
		return nil
	}
	return prev.Close()
}

var _ Store = (*HotSwapStore)(nil)
