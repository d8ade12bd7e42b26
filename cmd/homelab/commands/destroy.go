package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes the AWS resources recorded in state in the
// reverse of their creation order.
func Destroy(g *handlers.Globals) *cobra.Command {
	var opts handlers.DestroyOptions

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the cluster and its AWS resources",
		Long: `Destroy removes the cluster's AWS resources recorded in state:

  - Elastic IP association and the EC2 instance
  - Elastic IP
  - Instance profile and IAM role
  - Security group
  - Route table, internet gateway, subnet and VPC

The etcd backup bucket is kept unless --delete-backups is given.
Deletions blocked by a dependency are retried with backoff.

WARNING: This operation is irreversible. All cluster data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.DeleteBackups, "delete-backups", false, "Also empty and delete the etcd backup bucket")

	return cmd
}
