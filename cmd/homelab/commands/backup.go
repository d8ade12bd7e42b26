package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
)

// Backup returns the command that uploads an etcd snapshot.
func Backup(g *handlers.Globals) *cobra.Command {
	var opts handlers.BackupOptions

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload an etcd snapshot to the backup bucket",
		Long: `Take an etcd snapshot through the Talos API and upload it to the
cluster's backup bucket under etcd/<cluster>/<timestamp>.snapshot.

Snapshots expire under the bucket's lifecycle rule. Use --list to see the
snapshots currently stored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Backup(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "List stored snapshots instead of taking one")

	return cmd
}
