package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/mcpserver"
	"github.com/agentic-research/sitemap/internal/tree"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

func (a *app) showCmd() *cobra.Command {
	var sel string
	c := &cobra.Command{
		Use:   "show <path...>",
		Short: "Print the record stored for a path as JSON",
		Long: `Show prints a record together with its full URL, leaf kind and decoded
query parameters. --select applies a JSONPath expression to that document,
e.g. --select '$.children[*]'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openIndex()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			key := graph.JoinKey(pathArgs(args))
			rec, err := tree.Lookup(cmd.Context(), st, key)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no record for %s", key)
			}
			out, err := render(mcpserver.Describe(key, rec), sel)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	c.Flags().StringVar(&sel, "select", "", "JSONPath expression applied to the record document")
	return c
}

// render encodes v as indented JSON, or the JSONPath matches of sel, one per line.
func render(v any, sel string) (string, error) {
	if sel == "" {
		data, err := json.MarshalIndent(v, "", "  ")
		return string(data), err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return "", err
	}
	x, err := jp.ParseString(sel)
	if err != nil {
		return "", fmt.Errorf("invalid jsonpath '%s': %w", sel, err)
	}
	var out string
	for i, m := range x.Get(doc) {
		if i > 0 {
			out += "\n"
		}
		if s, ok := m.(string); ok {
			out += s
			continue
		}
		out += oj.JSON(m, &oj.Options{Sort: true})
	}
	return out, nil
}
