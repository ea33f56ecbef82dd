package graph

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/agentic-research/sitemap/api"
)

var (
	ErrNotFound = errors.New("node not found")
	// ErrUnavailable is returned while no store is attached, e.g. during a rebuild.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the durable, sorted map from path-key to record.
// This allows us to swap the backend (Badger -> SQLite -> Memory).
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (*api.Record, error)
	Put(ctx context.Context, key string, rec *api.Record) error
	Delete(ctx context.Context, key string) error
	// Merge folds every batch record into the persisted record under the same
	// key (see api.Record.Merge) and writes all results as one atomic unit.
	Merge(ctx context.Context, batch map[string]*api.Record) error
	// Scan visits every record in ascending key order. fn must not mutate the store.
	Scan(ctx context.Context, fn func(key string, rec *api.Record) error) error
	Close() error
}

// mergeInto returns the merged record for key given the persisted one (nil if absent).
func mergeInto(persisted, incoming *api.Record) *api.Record {
	if persisted == nil {
		persisted = api.NewRecord()
	}
	persisted.Merge(incoming)
	return persisted
}

// -----------------------------------------------------------------------------
// In-memory store, used by tests and the "memory" backend
// -----------------------------------------------------------------------------

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*api.Record
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*api.Record)}
}

// Get implements Store. The returned record is a copy.
func (s *MemoryStore) Get(ctx context.Context, key string) (*api.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key string, rec *api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec.Clone()
	return nil
}

// Delete implements Store. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Merge implements Store. The whole batch is applied under one lock.
func (s *MemoryStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range batch {
		s.records[key] = mergeInto(s.records[key], rec)
	}
	return nil
}

// Scan implements Store over a snapshot taken at call time.
func (s *MemoryStore) Scan(ctx context.Context, fn func(key string, rec *api.Record) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	snapshot := make(map[string]*api.Record, len(s.records))
	for k, r := range s.records {
		keys = append(keys, k)
		snapshot[k] = r.Clone()
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
