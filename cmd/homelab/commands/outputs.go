package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
)

// Outputs returns the command that prints the stack outputs from state.
func Outputs(g *handlers.Globals) *cobra.Command {
	var opts handlers.OutputsOptions

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the cluster outputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Outputs(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print outputs as JSON")
	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "Print outputs as YAML")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Show secret outputs in clear text")

	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return cmd
}
