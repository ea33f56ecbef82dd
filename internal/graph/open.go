package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a store backend.
type Options struct {
	Backend    string
	Path       string
	SyncWrites bool
	GCInterval time.Duration
	Logger     *zap.Logger
}

// Open opens the store described by opts without touching existing data.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendBadger, "":
		cfg := DefaultBadgerConfig()
		cfg.Path = opts.Path
		cfg.SyncWrites = opts.SyncWrites
		cfg.GCInterval = opts.GCInterval
		cfg.Logger = opts.Logger
		return OpenBadger(cfg)
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// Rebuild deletes any store at opts.Path and opens an empty one in its place.
func Rebuild(opts Options) (Store, error) {
	if opts.Backend != BackendMemory {
		if err := RemoveDir(opts.Path); err != nil {
			return nil, fmt.Errorf("remove old store: %w", err)
		}
	}
	return Open(opts)
}

// RemoveDir removes a store directory and all its contents.
// A missing directory is not an error; an empty path is a no-op.
func RemoveDir(path string) error {
	if path == "" {
		return nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	return os.RemoveAll(absPath)
}
