package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/agentic-research/sitemap/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedStore_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "a.com", rec(false, "http", "x")))

	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	got, err := c.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.ChildNames())

	require.NoError(t, c.Merge(ctx, map[string]*api.Record{"a.com": rec(false, "https", "y")}))
	got, err = c.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got.ChildNames())
	assert.Equal(t, "https", got.Scheme)

	require.NoError(t, c.Delete(ctx, "a.com"))
	_, err = c.Get(ctx, "a.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_HandsOutCopies(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "a.com", rec(false, "", "x")))

	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	first, err := c.Get(ctx, "a.com")
	require.NoError(t, err)
	first.AddChild("mutated")

	second, err := c.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, second.ChildNames())
}

func TestCachedStore_RejectsBadSize(t *testing.T) {
	_, err := NewCachedStore(NewMemoryStore(), 0)
	assert.Error(t, err)
}

// pausedStore parks its first Get after reading, until release is closed.
type pausedStore struct {
	Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausedStore) Get(ctx context.Context, key string) (*api.Record, error) {
	rec, err := p.Store.Get(ctx, key)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return rec, err
}

func TestCachedStore_WriteDuringMissIsNotShadowed(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "a.com", rec(false, "http", "old")))

	paused := &pausedStore{Store: inner, read: make(chan struct{}), release: make(chan struct{})}
	c, err := NewCachedStore(paused, 16)
	require.NoError(t, err)

	done := make(chan *api.Record)
	go func() {
		got, err := c.Get(ctx, "a.com")
		assert.NoError(t, err)
		done <- got
	}()

	<-paused.read
	require.NoError(t, c.Put(ctx, "a.com", rec(false, "https", "new")))
	close(paused.release)

	stale := <-done
	assert.Equal(t, []string{"old"}, stale.ChildNames())

	got, err := c.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, got.ChildNames())
	assert.Equal(t, "https", got.Scheme)
}
