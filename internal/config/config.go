// Package config resolves runtime settings. Later sources override earlier
// ones: built-in defaults, an optional HCL file, .env and SITEMAP_* environment
// variables, and finally command-line flags (applied by the cmd package).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Store   StoreConfig
	Ingest  IngestConfig
	Log     LogConfig
	Metrics MetricsConfig
}

type StoreConfig struct {
	Backend    string
	Path       string
	SyncWrites bool
	GCInterval time.Duration
	// CacheSize is the LRU size for long-lived readers; 0 disables caching.
	CacheSize int
}

type IngestConfig struct {
	BatchSize        int
	ProgressInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	// Addr serves /metrics while ingesting when non-empty, e.g. ":9090".
	Addr string
}

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    graph.BackendBadger,
			Path:       "sitemap.db",
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
			CacheSize:  4096,
		},
		Ingest: IngestConfig{
			BatchSize:        10000,
			ProgressInterval: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatConsole,
		},
	}
}

// Load builds a Config from defaults, the HCL file at path (skipped when
// empty), .env in the working directory and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	_ = godotenv.Load() // .env is optional
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HCL file layout. Pointers distinguish "unset" from zero values so a file
// only overrides what it mentions.
type fileConfig struct {
	Store   *storeBlock   `hcl:"store,block"`
	Ingest  *ingestBlock  `hcl:"ingest,block"`
	Log     *logBlock     `hcl:"log,block"`
	Metrics *metricsBlock `hcl:"metrics,block"`
}

type storeBlock struct {
	Backend    *string `hcl:"backend,optional"`
	Path       *string `hcl:"path,optional"`
	SyncWrites *bool   `hcl:"sync_writes,optional"`
	GCInterval *string `hcl:"gc_interval,optional"`
	CacheSize  *int    `hcl:"cache_size,optional"`
}

type ingestBlock struct {
	BatchSize        *int    `hcl:"batch_size,optional"`
	ProgressInterval *string `hcl:"progress_interval,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type metricsBlock struct {
	Addr *string `hcl:"addr,optional"`
}

// LoadFile overlays the settings of an HCL file onto c.
func (c *Config) LoadFile(path string) error {
	var f fileConfig
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return c.apply(&f)
}

func (c *Config) apply(f *fileConfig) error {
	if s := f.Store; s != nil {
		setString(&c.Store.Backend, s.Backend)
		setString(&c.Store.Path, s.Path)
		if s.SyncWrites != nil {
			c.Store.SyncWrites = *s.SyncWrites
		}
		if err := setDuration(&c.Store.GCInterval, s.GCInterval, "store.gc_interval"); err != nil {
			return err
		}
		if s.CacheSize != nil {
			c.Store.CacheSize = *s.CacheSize
		}
	}
	if in := f.Ingest; in != nil {
		if in.BatchSize != nil {
			c.Ingest.BatchSize = *in.BatchSize
		}
		if err := setDuration(&c.Ingest.ProgressInterval, in.ProgressInterval, "ingest.progress_interval"); err != nil {
			return err
		}
	}
	if l := f.Log; l != nil {
		setString(&c.Log.Level, l.Level)
		setString(&c.Log.Format, l.Format)
	}
	if m := f.Metrics; m != nil {
		setString(&c.Metrics.Addr, m.Addr)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// ApplyEnv overlays SITEMAP_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("SITEMAP_STORE_BACKEND"); ok {
		c.Store.Backend = v
	}
	if v, ok := get("SITEMAP_STORE_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := get("SITEMAP_BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SITEMAP_BATCH_SIZE: %w", err)
		}
		c.Ingest.BatchSize = n
	}
	if v, ok := get("SITEMAP_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("SITEMAP_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := get("SITEMAP_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case graph.BackendBadger, graph.BackendSQLite, graph.BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend != graph.BackendMemory && c.Store.Path == "" {
		return fmt.Errorf("store path is required for backend %q", c.Store.Backend)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store cache_size must not be negative, got %d", c.Store.CacheSize)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// StoreOptions returns the graph options for the configured store.
func (c *Config) StoreOptions(logger *zap.Logger) graph.Options {
	return graph.Options{
		Backend:    c.Store.Backend,
		Path:       c.Store.Path,
		SyncWrites: c.Store.SyncWrites,
		GCInterval: c.Store.GCInterval,
		Logger:     logger,
	}
}
