package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agentic-research/sitemap/internal/ingest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) ingestCmd() *cobra.Command {
	var quiet bool
	c := &cobra.Command{
		Use:   "ingest <source>",
		Short: "Rebuild the index from a newline-delimited text file",
		Long: `Ingest discards any index at the store path and rebuilds it from source.
Every URL found on any line is indexed; lines without URLs are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, name, err := ingest.SourceFS(args[0])
			if err != nil {
				return err
			}
			stop := a.serveMetrics()
			defer stop()

			start := time.Now()
			w := ingest.Start(cmd.Context(), ingest.Options{
				Source:           name,
				FS:               fsys,
				Store:            a.cfg.StoreOptions(a.log),
				BatchSize:        a.cfg.Ingest.BatchSize,
				ProgressInterval: a.cfg.Ingest.ProgressInterval,
				Logger:           a.log,
			})

			tick := a.cfg.Ingest.ProgressInterval
			if tick <= 0 {
				tick = ingest.DefaultProgressInterval
			}
			ticker := time.NewTicker(tick)
			defer ticker.Stop()

			stderr := cmd.ErrOrStderr()
			for {
				ev, ok := w.Poll()
				if !ok {
					<-ticker.C
					continue
				}
				switch ev := ev.(type) {
				case ingest.Progress:
					if !quiet {
						eta := "-"
						if ev.ETA > 0 {
							eta = ev.ETA.Round(time.Second).String()
						}
						fmt.Fprintf(stderr, "\rProgress: %5.1f%%  ETA %-8s  URLs %d", ev.Percent, eta, ev.Endpoints)
					}
				case ingest.Finished:
					if !quiet {
						fmt.Fprintln(stderr)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d URLs into %s in %v.\n",
						ev.Endpoints, a.cfg.Store.Path, time.Since(start).Round(time.Millisecond))
					return ev.Store.Close()
				case ingest.Failed:
					if !quiet {
						fmt.Fprintln(stderr)
					}
					return fmt.Errorf("ingest %s: %w", args[0], ev.Err)
				}
			}
		},
	}
	c.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return c
}

// serveMetrics exposes /metrics on the configured address for the duration
// of a command. The returned func shuts the listener down.
func (a *app) serveMetrics() func() {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.log.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx) // safe to ignore
	}
}
