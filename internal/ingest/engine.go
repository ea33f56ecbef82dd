package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of distinct keys cached before a flush.
const DefaultBatchSize = 10000

// Engine drives the ingestion process: it streams a text dump line by line,
// folds every hosted URL into a write batch and merges full batches into the
// store.
type Engine struct {
	Store graph.Store

	// BatchSize caps the write batch; <= 0 means DefaultBatchSize.
	BatchSize int
	// ProgressInterval debounces OnProgress; <= 0 reports on every line.
	ProgressInterval time.Duration
	OnProgress       func(Progress)
	Logger           *zap.Logger

	batch     *Batch
	endpoints int
}

func NewEngine(store graph.Store) *Engine {
	return &Engine{
		Store:            store,
		BatchSize:        DefaultBatchSize,
		ProgressInterval: DefaultProgressInterval,
		Logger:           zap.NewNop(),
	}
}

// Ingest processes the newline-delimited file name in fsys and returns the
// number of URLs indexed. Read and store errors abort the run; lines without
// URLs are skipped.
func (e *Engine) Ingest(ctx context.Context, fsys billy.Filesystem, name string) (int, error) {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	info, err := fsys.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	f, err := fsys.Open(name)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }() // safe to ignore

	e.batch = NewBatch()
	e.endpoints = 0
	// The root always exists, even for an input without URLs.
	e.batch.Touch(api.RootKey)

	progress := newProgressReporter(info.Size(), e.ProgressInterval, e.OnProgress)
	r := bufio.NewReader(f)
	var consumed int64
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return e.endpoints, fmt.Errorf("read source: %w", readErr)
		}
		if line != "" {
			consumed += int64(len(line))
			bytesConsumed.Add(float64(len(line)))
			e.ingestLine(line)
			if e.batch.Len() >= e.batchSize() {
				if err := e.flush(ctx); err != nil {
					return e.endpoints, err
				}
			}
			progress.observe(consumed, e.endpoints)
		}
		if readErr != nil {
			break
		}
	}

	if err := e.flush(ctx); err != nil {
		return e.endpoints, err
	}
	if e.OnProgress != nil {
		e.OnProgress(Progress{Percent: 100, Endpoints: e.endpoints})
	}
	return e.endpoints, nil
}

func (e *Engine) ingestLine(line string) {
	for _, u := range ExtractURLs(line) {
		p, ok := Decompose(u)
		if !ok {
			continue
		}
		e.batch.Add(p)
		e.endpoints++
		urlsIngested.Inc()
	}
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

// flush merges the batch into the store as one atomic unit and empties it.
func (e *Engine) flush(ctx context.Context) error {
	n := e.batch.Len()
	if n == 0 {
		return nil
	}
	start := time.Now()
	if err := e.Store.Merge(ctx, e.batch.Records()); err != nil {
		return fmt.Errorf("flush %d entries: %w", n, err)
	}
	elapsed := time.Since(start)
	flushDuration.Observe(elapsed.Seconds())
	flushRecords.Observe(float64(n))
	e.Logger.Debug("flushed batch",
		zap.Int("entries", n),
		zap.Int("endpoints", e.endpoints),
		zap.Duration("duration", elapsed))
	e.batch.Reset()
	return nil
}
