package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventBuffer is the worker channel capacity. One slot is always left free
// for the terminal event.
const eventBuffer = 64

// Event is one message from an ingestion worker: Progress, Finished or Failed.
type Event interface {
	isEvent()
}

// Progress is a lossy snapshot of a running ingestion.
type Progress struct {
	Percent   float64
	ETA       time.Duration
	Endpoints int
}

// Finished carries the rebuilt store. The receiver owns it.
type Finished struct {
	Store     graph.Store
	Endpoints int
}

// Failed reports a terminal ingestion error. No store is handed over.
type Failed struct {
	Err error
}

func (Progress) isEvent() {}
func (Finished) isEvent() {}
func (Failed) isEvent()   {}

func (f Failed) Message() string {
	return f.Err.Error()
}

// Options configures one ingestion run.
type Options struct {
	// Source is the file name inside FS.
	Source string
	FS     billy.Filesystem
	// Store describes the destination; it is removed and rebuilt.
	Store            graph.Options
	BatchSize        int
	ProgressInterval time.Duration
	Logger           *zap.Logger
}

// Worker runs a single ingestion on its own goroutine.
type Worker struct {
	id     string
	events chan Event
	done   chan struct{}
}

// SourceFS returns an OS filesystem rooted at the directory of path together
// with the file name relative to it.
func SourceFS(path string) (billy.Filesystem, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve source: %w", err)
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}

// Start launches an ingestion. Exactly one Finished or Failed event is
// delivered, after which the event channel is closed.
func Start(ctx context.Context, opts Options) *Worker {
	w := &Worker{
		id:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	go w.run(ctx, opts)
	return w
}

func (w *Worker) RunID() string { return w.id }

// Events exposes the event channel for consumers that prefer to block.
func (w *Worker) Events() <-chan Event { return w.events }

// Done is closed once the terminal event has been queued.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Poll returns the next pending event without blocking.
func (w *Worker) Poll() (Event, bool) {
	select {
	case ev, ok := <-w.events:
		if !ok {
			return nil, false
		}
		return ev, true
	default:
		return nil, false
	}
}

func (w *Worker) run(ctx context.Context, opts Options) {
	defer close(w.done)
	defer close(w.events)

	log := opts.Logger.With(
		zap.String("run_id", w.id),
		zap.String("source", opts.Source),
		zap.String("store", opts.Store.Path))
	start := time.Now()

	store, n, err := w.ingest(ctx, opts, log)
	if err != nil {
		ingestRuns.WithLabelValues("failed").Inc()
		log.Error("ingestion failed", zap.Error(err))
		w.events <- Failed{Err: err}
		return
	}
	ingestRuns.WithLabelValues("finished").Inc()
	log.Info("ingestion finished",
		zap.Int("endpoints", n),
		zap.Duration("duration", time.Since(start)))
	w.events <- Finished{Store: store, Endpoints: n}
}

func (w *Worker) ingest(ctx context.Context, opts Options, log *zap.Logger) (graph.Store, int, error) {
	if opts.FS == nil {
		return nil, 0, fmt.Errorf("no source filesystem")
	}
	// Check the source first so a bad path never destroys an existing store.
	if _, err := opts.FS.Stat(opts.Source); err != nil {
		return nil, 0, fmt.Errorf("stat source: %w", err)
	}

	storeOpts := opts.Store
	if storeOpts.Logger == nil {
		storeOpts.Logger = log
	}
	store, err := graph.Rebuild(storeOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("rebuild store: %w", err)
	}

	eng := NewEngine(store)
	eng.Logger = log
	if opts.BatchSize > 0 {
		eng.BatchSize = opts.BatchSize
	}
	if opts.ProgressInterval != 0 {
		eng.ProgressInterval = opts.ProgressInterval
	}
	eng.OnProgress = w.sendProgress

	n, err := eng.Ingest(ctx, opts.FS, opts.Source)
	if err != nil {
		_ = store.Close() // safe to ignore
		// A half-built store must not be mistaken for an index later.
		if storeOpts.Backend != graph.BackendMemory {
			if rerr := graph.RemoveDir(storeOpts.Path); rerr != nil {
				log.Warn("failed to remove partial store", zap.Error(rerr))
			}
		}
		return nil, 0, err
	}
	return store, n, nil
}

// sendProgress drops the event when the consumer lags behind.
func (w *Worker) sendProgress(p Progress) {
	if len(w.events) >= cap(w.events)-1 {
		return
	}
	select {
	case w.events <- p:
	default:
	}
}
