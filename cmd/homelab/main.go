// Package main is the entry point for the homelab CLI.
//
// homelab provisions a single-node Kubernetes cluster running Talos Linux
// on AWS, then hands the cluster to ArgoCD through a root application.
//
// Commands: init, apply, destroy, graph, outputs, backup, version.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/faulty-technology/homelab/cmd/homelab/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
