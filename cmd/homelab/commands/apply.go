package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
)

// Apply returns the command for creating or updating the cluster.
func Apply(g *handlers.Globals) *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the cluster",
		Long: `Create or update the cluster.

Every resource is converged to the configuration: the VPC and node
security group, the instance role, the Talos node and its bootstrap,
the ArgoCD release and the root application. Resources that already
match are left alone, so a second apply reports no changes.

Examples:
  # Converge using homelab.yaml in the current directory
  homelab apply

  # Show the evaluation order without calling any API
  homelab apply --dry-run

  # Write step metrics for the node_exporter textfile collector
  homelab apply --metrics-file /var/lib/node_exporter/homelab.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the evaluation order without calling any API")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Maximum number of steps running at once")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write step metrics to this file in Prometheus text format")

	return cmd
}
