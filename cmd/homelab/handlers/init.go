package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/faulty-technology/homelab/internal/config"
)

// ErrNotInteractive is returned by Init outside a terminal.
var ErrNotInteractive = errors.New("init requires an interactive terminal")

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard runs the configuration wizard.
	runWizard = config.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = config.Write
)

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, g Globals, outputPath string) error {
	if !isTerminal() {
		return ErrNotInteractive
	}

	out := g.out()
	if fileExists(outputPath) {
		fmt.Fprintf(out, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	cfg := result.ToConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := writeConfig(outputPath, cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "Configuration saved!")
	fmt.Fprintf(out, "  File:          %s\n", outputPath)
	fmt.Fprintf(out, "  Cluster:       %s\n", cfg.ClusterName)
	fmt.Fprintf(out, "  Instance type: %s\n", cfg.InstanceType)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next: homelab apply")
	return nil
}
