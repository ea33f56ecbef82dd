package cmd

import (
	"fmt"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/ingest"
	"github.com/agentic-research/sitemap/internal/tree"
	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var path string
	c := &cobra.Command{
		Use:   "export <out>",
		Short: "Write every endpoint URL, sorted, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openIndex()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			fsys, name, err := ingest.SourceFS(args[0])
			if err != nil {
				return err
			}
			key := graph.JoinKey(graph.SplitKey(path))
			n, err := tree.Save(cmd.Context(), st, fsys, name, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d URLs to %s.\n", n, args[0])
			return nil
		},
	}
	c.Flags().StringVarP(&path, "path", "p", "", "Only export the subtree at this path-key")
	return c
}
