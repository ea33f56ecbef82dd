package cmd

import (
	"fmt"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/tree"
	"github.com/spf13/cobra"
)

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path...]",
		Short: "List hosts, or the children of a path",
		Long: `Without a path, ls lists every host with the scheme recorded for it.
With a path, it lists the children: directories end in "/", endpoints are
marked with "*" and leaves are tagged page, image or asset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openIndex()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			segs := pathArgs(args)
			if len(segs) == 0 {
				hosts, err := tree.Hosts(ctx, st)
				if err != nil {
					return err
				}
				for _, h := range hosts {
					scheme := h.Scheme
					if scheme == "" {
						scheme = "-"
					}
					fmt.Fprintf(out, "%-6s %s/\n", scheme, h.Host)
				}
				return nil
			}

			key := graph.JoinKey(segs)
			names, err := tree.Children(ctx, st, key)
			if err != nil {
				return err
			}
			for _, name := range names {
				rec, err := tree.Lookup(ctx, st, graph.ChildKey(key, name))
				if err != nil {
					return err
				}
				mark := " "
				if rec != nil && rec.IsEndpoint {
					mark = "*"
				}
				if rec != nil && len(rec.Children) > 0 {
					fmt.Fprintf(out, "%s %s/\n", mark, name)
					continue
				}
				fmt.Fprintf(out, "%s %-40s %s\n", mark, name, tree.KindOf(name))
			}
			return nil
		},
	}
}

func (a *app) endpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints [path...]",
		Short: "Print the sorted URLs of every endpoint under a path",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openIndex()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			urls, err := tree.Endpoints(cmd.Context(), st, graph.JoinKey(pathArgs(args)))
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path...>",
		Short: "Delete a subtree from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segs := pathArgs(args)
			if len(segs) == 0 {
				return fmt.Errorf("refusing to delete the root; re-ingest to start over")
			}
			st, err := a.openIndex()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			n, err := tree.Delete(cmd.Context(), st, segs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d URLs.\n", n)
			return nil
		},
	}
}
