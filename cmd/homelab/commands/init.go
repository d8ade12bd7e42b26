package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
	"github.com/faulty-technology/homelab/internal/config"
)

// Init returns the command for interactively creating a configuration file.
func Init(g *handlers.Globals) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		Long: `Interactively create a configuration file.

The wizard asks for the cluster name, instance type, the CIDRs allowed
to reach the Talos and Kubernetes APIs, and the optional credentials for
the Cloudflare tunnel, New Relic and the ArgoCD GitHub App. Everything
else keeps its default. The file may contain secrets and is written
with owner-only permissions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), *g, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFile, "Output file path")

	return cmd
}
