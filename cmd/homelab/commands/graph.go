package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
)

// graphFormat rejects unknown formats at flag parsing time.
type graphFormat string

var graphFormats = []string{"dot", "mermaid"}

var _ pflag.Value = (*graphFormat)(nil)

func (f *graphFormat) String() string { return string(*f) }

func (f *graphFormat) Set(s string) error {
	if !slices.Contains(graphFormats, s) {
		return fmt.Errorf("must be one of %v", graphFormats)
	}
	*f = graphFormat(s)
	return nil
}

func (f *graphFormat) Type() string { return "format" }

// Graph returns the command that prints the resource dependency graph.
func Graph(g *handlers.Globals) *cobra.Command {
	format := graphFormat("dot")

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the resource dependency graph",
		Long: `Print the resource dependency graph.

Edges point from a dependency to the steps that need it.

Examples:
  homelab graph | dot -Tsvg > graph.svg
  homelab graph --format mermaid`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Graph(cmd.Context(), *g, string(format))
		},
	}

	cmd.Flags().VarP(&format, "format", "f", "Output format: dot or mermaid")

	return cmd
}
