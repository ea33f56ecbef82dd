package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentic-research/sitemap/api"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives Badger's internal logging. Nil disables it.
	Logger *zap.Logger

	// GCInterval is how often to run value log garbage collection. 0 disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults: synchronous writes and a
// five minute value log GC at a 50% discard ratio.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts zap onto Badger's Logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.s.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.s.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.s.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.s.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// BadgerStore implements Store on an embedded Badger database.
// Keys are raw path-keys; values are JSON-encoded records.
type BadgerStore struct {
	db *badger.DB
	gc *gcRunner
}

// OpenBadger opens (creating if needed) a Badger store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{s: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		logger := cfg.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		s.gc.start()
	}
	return s, nil
}

func getTxn(txn *badger.Txn, key string) (*api.Record, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec *api.Record
	err = item.Value(func(val []byte) error {
		var derr error
		rec, derr = api.Decode(val)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func setTxn(txn *badger.Txn, key string, rec *api.Record) error {
	data, err := api.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, key string) (*api.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *api.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getTxn(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, key string, rec *api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setTxn(txn, key, rec)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Merge implements Store inside a single read-write transaction, so a crash
// mid-flush never exposes a partially merged batch.
func (s *BadgerStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	for key, rec := range batch {
		persisted, err := getTxn(txn, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if err := setTxn(txn, key, mergeInto(persisted, rec)); err != nil {
			if errors.Is(err, badger.ErrTxnTooBig) {
				return fmt.Errorf("batch of %d records exceeds transaction limit: %w", len(batch), err)
			}
			return err
		}
	}
	return txn.Commit()
}

// Scan implements Store with a forward iterator.
func (s *BadgerStore) Scan(ctx context.Context, fn func(key string, rec *api.Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.KeyCopy(nil))
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			rec, err := api.Decode(val)
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if err := fn(key, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops garbage collection (if running) and closes the database.
func (s *BadgerStore) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	return s.db.Close()
}

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *zap.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *zap.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// ErrNoRewrite means no GC was needed, not an error
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		r.logger.Debug("badger value log GC completed")
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		r.logger.Warn("badger value log GC error", zap.Error(err))
	}
}

var _ Store = (*BadgerStore)(nil)
