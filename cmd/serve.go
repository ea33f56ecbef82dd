package cmd

import (
	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/mcpserver"
	"github.com/agentic-research/sitemap/internal/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to MCP clients over stdio",
		Long: `Serve exposes children, endpoints, show, delete, export, ingest and
status tools over the Model Context Protocol on stdin/stdout. A missing index
is not an error; call the ingest tool to build one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var initial graph.Store
			total := 0
			if st, err := a.openStore(); err == nil {
				initial = st
				if total, err = tree.CountEndpoints(cmd.Context(), st, api.RootKey); err != nil {
					_ = st.Close()
					return err
				}
			} else {
				a.log.Info("starting without an index", zap.Error(err))
			}

			srv, err := mcpserver.New(initial, total, mcpserver.Options{
				Store:            a.cfg.StoreOptions(a.log),
				BatchSize:        a.cfg.Ingest.BatchSize,
				ProgressInterval: a.cfg.Ingest.ProgressInterval,
				CacheSize:        a.cfg.Store.CacheSize,
				Logger:           a.log,
			})
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			stop := a.serveMetrics()
			defer stop()
			return srv.Serve()
		},
	}
}
