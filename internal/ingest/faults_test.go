package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/go-git/go-billy/v5"
)

var (
	errDisk    = errors.New("disk gone")
	errBackend = errors.New("backend write failed")
)

// flakyFS hands out files whose reads fail after the first successful one.
type flakyFS struct {
	billy.Filesystem
}

func (fs flakyFS) Open(name string) (billy.File, error) {
	f, err := fs.Filesystem.Open(name)
	if err != nil {
		return nil, err
	}
	return &flakyFile{File: f}, nil
}

type flakyFile struct {
	billy.File
	reads int
}

func (f *flakyFile) Read(p []byte) (int, error) {
	f.reads++
	if f.reads > 1 {
		return 0, errDisk
	}
	return f.File.Read(p)
}

// failingStore accepts okMerges merges and then rejects every one after.
type failingStore struct {
	graph.Store
	okMerges int32
	merges   atomic.Int32
}

func (s *failingStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	if s.merges.Add(1) > s.okMerges {
		return errBackend
	}
	return s.Store.Merge(ctx, batch)
}

// manyLines returns n distinct URL lines, enough to span several read buffers.
func manyLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("https://host%d.example.com/%s", i, strings.Repeat("p", 40))
	}
	return lines
}
