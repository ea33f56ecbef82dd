package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, lines ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "dump.txt", []byte(strings.Join(lines, "\n")), 0o644))
	return fs
}

// dump returns every record in the store keyed by path-key.
func dump(t *testing.T, s graph.Store) map[string]*api.Record {
	t.Helper()
	out := make(map[string]*api.Record)
	err := s.Scan(context.Background(), func(key string, rec *api.Record) error {
		out[key] = rec.Clone()
		return nil
	})
	require.NoError(t, err)
	return out
}

func ingestLines(t *testing.T, batchSize int, lines ...string) (graph.Store, int) {
	t.Helper()
	store := graph.NewMemoryStore()
	eng := NewEngine(store)
	eng.BatchSize = batchSize
	n, err := eng.Ingest(context.Background(), writeSource(t, lines...), "dump.txt")
	require.NoError(t, err)
	return store, n
}

func TestEngine_WorkedExample(t *testing.T) {
	store, n := ingestLines(t, 0, "https://example.com/api/v1/users?id=2")
	assert.Equal(t, 1, n)

	recs := dump(t, store)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"example.com"}, recs[api.RootKey].ChildNames())
	assert.Equal(t, []string{"users?id=2"}, recs["example.com/api/v1"].ChildNames())

	end := recs["example.com/api/v1/users?id=2"]
	require.NotNil(t, end)
	assert.True(t, end.IsEndpoint)
	assert.Equal(t, "https", end.Scheme)
}

func TestEngine_EmptyInput(t *testing.T) {
	store, n := ingestLines(t, 0, "")
	assert.Zero(t, n)

	recs := dump(t, store)
	require.Len(t, recs, 1)
	root := recs[api.RootKey]
	require.NotNil(t, root)
	assert.False(t, root.IsEndpoint)
	assert.Empty(t, root.Children)
	assert.Empty(t, root.Scheme)
}

func TestEngine_LinesWithoutURLs(t *testing.T) {
	store, n := ingestLines(t, 0, "nothing here", "<p>still nothing</p>", "mailto:a@b.com")
	assert.Zero(t, n)
	assert.Len(t, dump(t, store), 1)
}

func TestEngine_CountsEveryHostedURL(t *testing.T) {
	_, n := ingestLines(t, 0,
		"https://a.com/x",
		"https://a.com/x",
		`<a href="https://b.com/">b</a> <a href="/relative">r</a>`,
	)
	assert.Equal(t, 3, n)
}

func TestEngine_BatchSizeDoesNotChangeResult(t *testing.T) {
	lines := []string{
		"https://example.com/a/b/c",
		"http://example.com/a/d",
		"http://other.org/x?y=1#z",
		"https://example.com/a",
		"//cdn.example.com/lib.js",
		"no url on this line",
	}
	small, n1 := ingestLines(t, 1, lines...)
	large, n2 := ingestLines(t, 0, lines...)

	assert.Equal(t, n2, n1)
	assert.Equal(t, dump(t, large), dump(t, small))
}

func TestEngine_Idempotent(t *testing.T) {
	lines := []string{"https://example.com/a/b", "http://other.org/"}
	once, _ := ingestLines(t, 2, lines...)
	twice, _ := ingestLines(t, 2, append(lines, lines...)...)
	assert.Equal(t, dump(t, once), dump(t, twice))
}

func TestEngine_SchemeStickyAcrossFlushes(t *testing.T) {
	store, _ := ingestLines(t, 1,
		"https://example.com/a",
		"http://example.com/a",
		"ftp://example.com/a",
	)
	recs := dump(t, store)
	assert.Equal(t, "https", recs["example.com"].Scheme)
	assert.Equal(t, "https", recs["example.com/a"].Scheme)
}

func TestEngine_ParentChildConsistency(t *testing.T) {
	store, _ := ingestLines(t, 3,
		"https://example.com/a/b/c?q=1",
		"http://example.com/a/e",
		"https://other.org/",
		"https://third.net/x/y#frag",
	)
	recs := dump(t, store)
	for key := range recs {
		if key == api.RootKey {
			continue
		}
		segs := graph.SplitKey(key)
		parent := graph.ParentKey(segs)
		p, ok := recs[parent]
		require.True(t, ok, "parent %q of %q missing", parent, key)
		assert.True(t, p.HasChild(segs[len(segs)-1]), "%q not listed under %q", key, parent)
	}
}

func TestEngine_MissingSource(t *testing.T) {
	eng := NewEngine(graph.NewMemoryStore())
	_, err := eng.Ingest(context.Background(), memfs.New(), "missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat source")
}

func TestEngine_ProgressEndsAtHundred(t *testing.T) {
	var events []Progress
	eng := NewEngine(graph.NewMemoryStore())
	eng.ProgressInterval = -1
	eng.OnProgress = func(p Progress) { events = append(events, p) }

	n, err := eng.Ingest(context.Background(), writeSource(t, "https://a.com/1", "https://a.com/2"), "dump.txt")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.InDelta(t, 100.0, last.Percent, 1e-9)
	assert.Equal(t, n, last.Endpoints)
}

func TestEngine_Metrics(t *testing.T) {
	before := testutil.ToFloat64(urlsIngested)
	ingestLines(t, 0, "https://a.com/1", "https://a.com/2", "nothing")
	assert.InDelta(t, 2.0, testutil.ToFloat64(urlsIngested)-before, 1e-9)
}

func TestEngine_FlushFailsMidStream(t *testing.T) {
	store := &failingStore{Store: graph.NewMemoryStore(), okMerges: 1}
	eng := NewEngine(store)
	eng.BatchSize = 1

	_, err := eng.Ingest(context.Background(),
		writeSource(t, "https://a.com/x", "https://b.com/y", "https://c.com/z"), "dump.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)
	assert.Contains(t, err.Error(), "flush")
	assert.EqualValues(t, 2, store.merges.Load(), "ingestion must stop at the first failed flush")

	_, err = store.Get(context.Background(), "c.com")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestEngine_FinalFlushFails(t *testing.T) {
	store := &failingStore{Store: graph.NewMemoryStore()}
	eng := NewEngine(store)

	_, err := eng.Ingest(context.Background(), writeSource(t, "https://a.com/x"), "dump.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)
	assert.Contains(t, err.Error(), "flush")
	assert.EqualValues(t, 1, store.merges.Load())
	assert.Empty(t, dump(t, store.Store))
}

func TestEngine_ReadErrorAborts(t *testing.T) {
	fs := flakyFS{Filesystem: writeSource(t, manyLines(500)...)}
	store := graph.NewMemoryStore()
	eng := NewEngine(store)

	n, err := eng.Ingest(context.Background(), fs, "dump.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "read source")
	assert.Positive(t, n, "lines read before the failure are counted")
	assert.Less(t, n, 500)
}
