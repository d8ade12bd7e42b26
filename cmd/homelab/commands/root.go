// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/faulty-technology/homelab/cmd/homelab/handlers"
	"github.com/faulty-technology/homelab/internal/config"
)

// Root returns the root command for the homelab CLI.
//
// Persistent flags that name configuration keys are bound to viper, so they
// take precedence over HOMELAB_* environment variables and homelab.yaml.
func Root() *cobra.Command {
	g := &handlers.Globals{Viper: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "homelab",
		Short:         "Provision a single-node Talos Kubernetes cluster on AWS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.Out = cmd.OutOrStdout()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "Path to configuration file (default: homelab.yaml)")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.String("cluster-name", config.DefaultClusterName, "Cluster name, prefix of every resource name")
	flags.String("state-dir", config.DefaultStateDir, "Directory holding state and the Talos secrets bundle")
	flags.String("output-dir", config.DefaultOutputDir, "Directory for talosconfig and kubeconfig")

	for key, flag := range map[string]string{
		"clusterName": "cluster-name",
		"stateDir":    "state-dir",
		"outputDir":   "output-dir",
	} {
		_ = g.Viper.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(Init(g))
	cmd.AddCommand(Apply(g))
	cmd.AddCommand(Destroy(g))
	cmd.AddCommand(Graph(g))
	cmd.AddCommand(Outputs(g))
	cmd.AddCommand(Backup(g))
	cmd.AddCommand(Version())

	return cmd
}
