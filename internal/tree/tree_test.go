package tree

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/ingest"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []string{
	`<a href="https://example.com/api/v1/users?id=2">`,
	"//example.com/api/v1/users?id=2",
	"http://example.com/api/v1/users?id=3",
	"https://example.com/about",
	"https://example.com/img/logo.png",
	"http://other.org/",
	"http://other.org/blog/post#comments",
}

// build ingests lines into a fresh memory store.
func build(t *testing.T, lines ...string) graph.Store {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "in.txt", []byte(strings.Join(lines, "\n")), 0o644))
	store := graph.NewMemoryStore()
	_, err := ingest.NewEngine(store).Ingest(context.Background(), fs, "in.txt")
	require.NoError(t, err)
	return store
}

func keys(t *testing.T, s graph.Store) map[string]*api.Record {
	t.Helper()
	out := make(map[string]*api.Record)
	require.NoError(t, s.Scan(context.Background(), func(k string, r *api.Record) error {
		out[k] = r.Clone()
		return nil
	}))
	return out
}

func assertConsistent(t *testing.T, s graph.Store) {
	t.Helper()
	recs := keys(t, s)
	for k := range recs {
		if k == api.RootKey {
			continue
		}
		segs := graph.SplitKey(k)
		parent, ok := recs[graph.ParentKey(segs)]
		require.True(t, ok, "parent of %q missing", k)
		assert.True(t, parent.HasChild(segs[len(segs)-1]), "%q dangling", k)
	}
}

func TestLookup(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	rec, err := Lookup(ctx, s, "example.com/api/v1/users?id=2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsEndpoint)

	rec, err = Lookup(ctx, s, "nope.com")
	require.NoError(t, err)
	assert.Nil(t, rec)

	root, err := Lookup(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "other.org"}, root.ChildNames())
}

func TestChildren(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	got, err := Children(ctx, s, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "api", "img"}, got)

	got, err = Children(ctx, s, "example.com/api/v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"users?id=2", "users?id=3"}, got)

	got, err = Children(ctx, s, "absent")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEndpoints(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	all, err := Endpoints(ctx, s, api.RootKey)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.com/api/v1/users?id=3",
		"http://other.org",
		"http://other.org/blog/post#comments",
		"https://example.com/about",
		"https://example.com/api/v1/users?id=2",
		"https://example.com/img/logo.png",
	}, all)

	sub, err := Endpoints(ctx, s, "example.com/api")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.com/api/v1/users?id=3",
		"https://example.com/api/v1/users?id=2",
	}, sub)

	none, err := Endpoints(ctx, s, "absent")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEndpoints_RootScanMatchesHostWalks(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	var walked []string
	hosts, err := Hosts(ctx, s)
	require.NoError(t, err)
	for _, h := range hosts {
		urls, err := Endpoints(ctx, s, h.Host)
		require.NoError(t, err)
		walked = append(walked, urls...)
	}
	sort.Strings(walked)

	all, err := Endpoints(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, walked, all)
}

func TestEndpoints_NoScheme(t *testing.T) {
	s := graph.NewMemoryStore()
	ctx := context.Background()
	root := api.NewRecord()
	root.AddChild("bare.com")
	require.NoError(t, s.Put(ctx, api.RootKey, root))
	host := api.NewRecord()
	host.IsEndpoint = true
	require.NoError(t, s.Put(ctx, "bare.com", host))

	got, err := Endpoints(ctx, s, api.RootKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"bare.com"}, got)
}

func TestEndpoints_ToleratesSelfReference(t *testing.T) {
	s := graph.NewMemoryStore()
	ctx := context.Background()
	root := api.NewRecord()
	root.AddChild("a.com")
	root.AddChild(api.RootKey) // would revisit the root
	require.NoError(t, s.Put(ctx, api.RootKey, root))
	host := api.NewRecord()
	host.IsEndpoint = true
	host.Scheme = "https"
	require.NoError(t, s.Put(ctx, "a.com", host))

	got, err := Endpoints(ctx, s, api.RootKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com"}, got)
}

func TestHosts(t *testing.T) {
	s := build(t, sample...)
	hosts, err := Hosts(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []HostScheme{
		{Host: "example.com", Scheme: "https"},
		{Host: "other.org", Scheme: "http"},
	}, hosts)
}

func TestDelete_WorkedExample(t *testing.T) {
	s := build(t,
		`<a href="https://example.com/api/v1/users?id=2">`,
		"//example.com/api/v1/users?id=2",
	)
	ctx := context.Background()

	n, err := Delete(ctx, s, []string{"example.com", "api"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs := keys(t, s)
	assert.Len(t, recs, 2)
	assert.Empty(t, recs["example.com"].Children)
	assert.Equal(t, []string{"example.com"}, recs[api.RootKey].ChildNames())
	assertConsistent(t, s)
}

func TestDelete_Completeness(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	before, err := Endpoints(ctx, s, "example.com")
	require.NoError(t, err)

	n, err := Delete(ctx, s, []string{"example.com"})
	require.NoError(t, err)
	assert.Equal(t, len(before), n)

	for k := range keys(t, s) {
		assert.False(t, k == "example.com" || strings.HasPrefix(k, "example.com/"), "%q survived", k)
	}
	root, err := Lookup(ctx, s, api.RootKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"other.org"}, root.ChildNames())
	assertConsistent(t, s)
}

func TestDelete_EndpointWithChildren(t *testing.T) {
	s := build(t, "https://a.com/x", "https://a.com/x/y", "https://a.com/x/y/z")
	n, err := Delete(context.Background(), s, []string{"a.com", "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assertConsistent(t, s)
}

func TestDelete_QueryLeafSplitFromKey(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	n, err := Delete(ctx, s, graph.SplitKey("example.com/api/v1/users?id=3"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := Children(ctx, s, "example.com/api/v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"users?id=2"}, got)
}

func TestDelete_AbsentAndEmpty(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()
	before := keys(t, s)

	n, err := Delete(ctx, s, []string{"nope.com", "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = Delete(ctx, s, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, root := range [][]string{{api.RootKey}, {api.RootKey, ""}, graph.SplitKey(api.RootKey + "/")} {
		n, err = Delete(ctx, s, root)
		require.NoError(t, err)
		assert.Zero(t, n, "path %q", root)
	}

	assert.Equal(t, before, keys(t, s))
}

func TestDelete_RootPrefixedPath(t *testing.T) {
	s := build(t, sample...)
	n, err := Delete(context.Background(), s, []string{api.RootKey, "other.org"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := keys(t, s)["other.org"]
	assert.False(t, ok)
	assertConsistent(t, s)
}

// flakyDeletes lets okDeletes removals through and then fails every one after.
type flakyDeletes struct {
	graph.Store
	okDeletes int
	deletes   int
}

var errDelete = errors.New("delete rejected")

func (s *flakyDeletes) Delete(ctx context.Context, key string) error {
	s.deletes++
	if s.deletes > s.okDeletes {
		return errDelete
	}
	return s.Store.Delete(ctx, key)
}

func TestDelete_PartialFailureReportsProgress(t *testing.T) {
	// v1 holds two endpoint leaves and is removed last; the second delete fails.
	s := &flakyDeletes{Store: build(t, sample...), okDeletes: 1}
	n, err := Delete(context.Background(), s, []string{"example.com", "api", "v1"})
	require.ErrorIs(t, err, errDelete)
	assert.Equal(t, 1, n)

	recs := keys(t, s)
	assert.Len(t, recs, len(keys(t, build(t, sample...)))-1)
	assert.True(t, recs["example.com/api"].HasChild("v1"), "parent is not repaired after a failure")
}

func TestDelete_UnavailableStore(t *testing.T) {
	h := graph.NewHotSwapStore(nil)
	_, err := Delete(context.Background(), h, []string{"a.com"})
	require.ErrorIs(t, err, graph.ErrUnavailable)
}

func TestCountEndpoints(t *testing.T) {
	s := build(t, sample...)
	ctx := context.Background()

	n, err := CountEndpoints(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = CountEndpoints(ctx, s, "other.org")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
