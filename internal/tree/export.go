package tree

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/go-git/go-billy/v5"
)

// Export writes the sorted endpoint URLs under key to w, one per line, and
// returns how many were written.
func Export(ctx context.Context, s graph.Store, key string, w io.Writer) (int, error) {
	urls, err := Endpoints(ctx, s, key)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, u := range urls {
		if _, err := bw.WriteString(u + "\n"); err != nil {
			return 0, fmt.Errorf("write export: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	exportedURLs.Add(float64(len(urls)))
	return len(urls), nil
}

// Save exports the subtree at key into the file name on fs, replacing it.
func Save(ctx context.Context, s graph.Store, fs billy.Filesystem, name, key string) (int, error) {
	f, err := fs.Create(name)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	n, err := Export(ctx, s, key, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", name, cerr)
	}
	return n, err
}
