// Package mcpserver exposes the index over the Model Context Protocol so an
// agent can browse, prune, export and rebuild it through tool calls.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/ingest"
	"github.com/agentic-research/sitemap/internal/tree"
	"github.com/go-git/go-billy/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const Version = "0.1.0"

type Options struct {
	// Store describes where ingestion rebuilds the index.
	Store            graph.Options
	BatchSize        int
	ProgressInterval time.Duration
	// CacheSize wraps the live store in an LRU read cache when positive.
	CacheSize int
	// FS resolves ingest sources and export targets. When nil, names are OS
	// paths relative to the working directory.
	FS     billy.Filesystem
	Logger *zap.Logger
}

// Server owns the live store handle. Ingestion detaches it and swaps the
// rebuilt store in when the run finishes.
type Server struct {
	opts Options
	live *graph.HotSwapStore
	log  *zap.Logger

	mu        sync.Mutex
	running   bool
	idle      chan struct{}
	progress  ingest.Progress
	endpoints int
	ingested  int
	lastErr   string
	runID     string
}

// New serves initial, which may be nil until the first ingestion.
func New(initial graph.Store, endpoints int, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		opts:      opts,
		live:      graph.NewHotSwapStore(nil),
		log:       opts.Logger,
		endpoints: endpoints,
		idle:      make(chan struct{}),
	}
	close(s.idle)
	if initial != nil {
		wrapped, err := s.wrap(initial)
		if err != nil {
			return nil, err
		}
		s.live.Swap(wrapped)
	}
	return s, nil
}

func (s *Server) wrap(st graph.Store) (graph.Store, error) {
	if s.opts.CacheSize <= 0 {
		return st, nil
	}
	return graph.NewCachedStore(st, s.opts.CacheSize)
}

// resolve maps a file name argument onto a filesystem and a name inside it.
func (s *Server) resolve(name string) (billy.Filesystem, string, error) {
	if s.opts.FS != nil {
		return s.opts.FS, name, nil
	}
	return ingest.SourceFS(name)
}

// Store returns the hot-swappable handle every tool reads through.
func (s *Server) Store() *graph.HotSwapStore { return s.live }

// MCPServer registers every tool on a new protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sitemap", Version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("children",
		mcp.WithDescription("List the immediate children of a path-key. An empty path lists hosts with their schemes."),
		mcp.WithString("path", mcp.Description("Path-key such as example.com/api; empty for the root")),
	), s.handleChildren)

	srv.AddTool(mcp.NewTool("endpoints",
		mcp.WithDescription("List the sorted full URLs of every endpoint under a path-key."),
		mcp.WithString("path", mcp.Description("Path-key; empty for the whole index")),
	), s.handleEndpoints)

	srv.AddTool(mcp.NewTool("show",
		mcp.WithDescription("Show the stored record of a path-key as JSON, with its URL and leaf kind."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path-key")),
	), s.handleShow)

	srv.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Delete a subtree and report how many URLs it held."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path-key of the subtree root")),
	), s.handleDelete)

	srv.AddTool(mcp.NewTool("export",
		mcp.WithDescription("Write the sorted endpoint URLs under a path-key to a file, one per line."),
		mcp.WithString("out", mcp.Required(), mcp.Description("Output file")),
		mcp.WithString("path", mcp.Description("Path-key; empty for the whole index")),
	), s.handleExport)

	srv.AddTool(mcp.NewTool("ingest",
		mcp.WithDescription("Rebuild the index from a newline-delimited text file. Runs in the background; poll status."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Input file")),
	), s.handleIngest)

	srv.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Report ingestion progress and the indexed URL total."),
	), s.handleStatus)

	return srv
}

// Serve runs the protocol over stdin/stdout until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.MCPServer())
}

// Close waits for a running ingestion and closes the live store.
func (s *Server) Close() error {
	s.waitIdle()
	return s.live.Close()
}

func (s *Server) waitIdle() {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	<-idle
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, graph.ErrUnavailable) {
		return mcp.NewToolResultError("index unavailable: ingestion in progress or failed")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) handleChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("path", "")
	if key == "" || key == api.RootKey {
		hosts, err := tree.Hosts(ctx, s.live)
		if err != nil {
			return toolError(err), nil
		}
		var b strings.Builder
		for _, h := range hosts {
			scheme := h.Scheme
			if scheme == "" {
				scheme = "-"
			}
			fmt.Fprintf(&b, "%s\t%s\n", h.Host, scheme)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
	names, err := tree.Children(ctx, s.live, key)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) handleEndpoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := tree.Endpoints(ctx, s.live, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(urls, "\n")), nil
}

func (s *Server) handleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := tree.Lookup(ctx, s.live, key)
	if err != nil {
		return toolError(err), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no record for %s", key)), nil
	}
	view := Describe(key, rec)
	return mcp.NewToolResultStructured(view, view.String()), nil
}

func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := graph.SplitKey(key)
	if len(path) == 0 {
		return mcp.NewToolResultError("refusing to delete the root"), nil
	}
	n, err := tree.Delete(ctx, s.live, path)
	if err != nil {
		return toolError(err), nil
	}
	s.mu.Lock()
	s.endpoints -= n
	if s.endpoints < 0 {
		s.endpoints = 0
	}
	s.mu.Unlock()
	s.log.Info("deleted subtree", zap.String("path", key), zap.Int("endpoints", n))
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d URLs.", n)), nil
}

func (s *Server) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := req.RequireString("out")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fs, name, err := s.resolve(out)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := tree.Save(ctx, s.live, fs, name, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported %d URLs to %s.", n, out)), nil
}

func (s *Server) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fs, name, err := s.resolve(source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Fail before detaching so a bad path leaves the current index usable.
	if _, err := fs.Stat(name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("source: %v", err)), nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return mcp.NewToolResultError("an ingestion is already running"), nil
	}
	s.running = true
	s.progress = ingest.Progress{}
	s.lastErr = ""
	s.idle = make(chan struct{})
	s.mu.Unlock()

	if prev := s.live.Detach(); prev != nil {
		if err := prev.Close(); err != nil {
			s.log.Warn("close previous store", zap.Error(err))
		}
	}

	w := ingest.Start(context.WithoutCancel(ctx), ingest.Options{
		Source:           name,
		FS:               fs,
		Store:            s.opts.Store,
		BatchSize:        s.opts.BatchSize,
		ProgressInterval: s.opts.ProgressInterval,
		Logger:           s.log,
	})
	s.mu.Lock()
	s.runID = w.RunID()
	s.mu.Unlock()
	go s.watch(w)

	return mcp.NewToolResultText(fmt.Sprintf("Ingestion %s started.", w.RunID())), nil
}

// watch consumes worker events until the terminal one.
func (s *Server) watch(w *ingest.Worker) {
	for ev := range w.Events() {
		switch ev := ev.(type) {
		case ingest.Progress:
			s.mu.Lock()
			s.progress = ev
			s.mu.Unlock()
		case ingest.Finished:
			// The worker counts every URL occurrence; the total reported
			// afterwards, and reduced by deletes, is distinct endpoints.
			distinct, err := tree.CountEndpoints(context.Background(), ev.Store, api.RootKey)
			if err != nil {
				_ = ev.Store.Close() // safe to ignore
				s.finish(0, 0, fmt.Sprintf("count endpoints: %v", err))
				continue
			}
			st, err := s.wrap(ev.Store)
			if err != nil {
				_ = ev.Store.Close() // safe to ignore
				s.finish(0, 0, err.Error())
				continue
			}
			s.live.Swap(st)
			s.finish(distinct, ev.Endpoints, "")
		case ingest.Failed:
			s.finish(0, 0, ev.Message())
		}
	}
}

func (s *Server) finish(endpoints, ingested int, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.endpoints = endpoints
	s.ingested = ingested
	s.lastErr = errMsg
	if errMsg == "" {
		s.progress = ingest.Progress{Percent: 100, Endpoints: ingested}
	}
	close(s.idle)
}

// Status is the payload of the status tool. Endpoints counts distinct
// endpoint URLs in the index; while a run is active it is the number of URL
// occurrences read so far. IngestedURLs is the occurrence count of the last
// completed run.
type Status struct {
	Running      bool    `json:"running"`
	RunID        string  `json:"run_id,omitempty"`
	Percent      float64 `json:"percent"`
	ETA          string  `json:"eta,omitempty"`
	Endpoints    int     `json:"endpoints"`
	IngestedURLs int     `json:"ingested_urls,omitempty"`
	Error        string  `json:"error,omitempty"`
	Available    bool    `json:"available"`
}

func (s *Server) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:      s.running,
		RunID:        s.runID,
		Percent:      s.progress.Percent,
		Endpoints:    s.endpoints,
		IngestedURLs: s.ingested,
		Error:        s.lastErr,
		Available:    s.live.Attached(),
	}
	if s.running {
		st.Endpoints = s.progress.Endpoints
		if s.progress.ETA > 0 {
			st.ETA = s.progress.ETA.Round(time.Second).String()
		}
	}
	return st
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.status()
	var text string
	switch {
	case st.Running:
		text = fmt.Sprintf("Ingesting: %.1f%%, %d URLs so far.", st.Percent, st.Endpoints)
	case st.Error != "":
		text = "Ingestion failed: " + st.Error
	default:
		text = fmt.Sprintf("Total URLs: %d", st.Endpoints)
	}
	return mcp.NewToolResultStructured(st, text), nil
}
