package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/config"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the resolved configuration shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	backend    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd builds the command tree. Each call has independent flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sitemap",
		Short: "Sitemap: a persistent hierarchical index of the URLs in text dumps",
		Long: `Sitemap streams large text dumps, extracts every URL and folds it into an
on-disk tree keyed by host and path segment. The tree can then be browsed,
pruned subtree by subtree and exported as a sorted URL list.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync() // safe to ignore
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to HCL config file")
	pf.StringVar(&a.dbPath, "db", "", "Store directory (default from config: sitemap.db)")
	pf.StringVar(&a.backend, "backend", "", "Store backend: badger, sqlite or memory")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.ingestCmd(),
		a.lsCmd(),
		a.endpointsCmd(),
		a.rmCmd(),
		a.exportCmd(),
		a.showCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = a.dbPath
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = a.backend
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// openStore opens the existing store. Unlike ingestion it never creates one.
func (a *app) openStore() (graph.Store, error) {
	opts := a.cfg.StoreOptions(a.log)
	if opts.Backend != graph.BackendMemory {
		if _, err := os.Stat(opts.Path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index at %s; run 'sitemap ingest' first", opts.Path)
		}
	}
	st, err := graph.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

// openIndex is openStore behind the configured read cache.
func (a *app) openIndex() (graph.Store, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if a.cfg.Store.CacheSize <= 0 {
		return st, nil
	}
	cached, err := graph.NewCachedStore(st, a.cfg.Store.CacheSize)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return cached, nil
}

// pathArgs turns command arguments into path segments. A single argument is
// a slash-joined key; several arguments are taken as segments verbatim.
func pathArgs(args []string) []string {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return graph.SplitKey(args[0])
	default:
		segs := make([]string, 0, len(args))
		for _, s := range args {
			if s = strings.Trim(s, "/"); s != "" {
				segs = append(segs, s)
			}
		}
		if len(segs) > 0 && segs[0] == api.RootKey {
			segs = segs[1:]
		}
		if len(segs) == 0 {
			return nil
		}
		return segs
	}
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
