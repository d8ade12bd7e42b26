package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/metrics"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/ui"
)

// ApplyOptions are the flags of the apply command.
type ApplyOptions struct {
	DryRun      bool
	Concurrency int
	MetricsFile string
}

// Apply converges the cluster: AWS resources, the Talos node, cluster
// workloads and local client configuration.
//
// The workflow is:
//  1. Load and validate configuration, reporting preflight warnings
//  2. Take the exclusive state lock and load state
//  3. Evaluate the resource graph, saving state as each step completes
//  4. Print the change summary and the stack outputs
//
// With DryRun set, the evaluation order is printed and no API is called.
func Apply(ctx context.Context, g Globals, opts ApplyOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	observer := provisioning.NewLogrObserver(newLogger(g.Verbose))
	if err := provisioning.Preflight(cfg, observer); err != nil {
		return err
	}

	if opts.DryRun {
		return printOrder(ctx, g, cfg)
	}

	s, err := openSession(ctx, cfg, observer, true)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.ctx.State.Update(func(st *state.State) { st.ClusterName = cfg.ClusterName }); err != nil {
		return err
	}

	platform, err := newPlatform(ctx, cfg, s.ctx.Timeouts)
	if err != nil {
		return fmt.Errorf("failed to initialize platform clients: %w", err)
	}

	rec := metrics.New()
	plan := provisioning.NewPlan(s.ctx, platform)
	outputs, report, runErr := plan.Run(opts.Concurrency, rec.Hooks())
	rec.ObserveChanges(s.ctx.Changes)

	if opts.MetricsFile != "" {
		if err := rec.WriteToTextfile(opts.MetricsFile); err != nil {
			observer.Event(provisioning.Event{
				Type:    provisioning.EventValidationWarning,
				Phase:   "metrics",
				Message: err.Error(),
			})
		}
	}

	out := g.out()
	if runErr != nil {
		fmt.Fprint(out, ui.RenderSummary("Apply failed: "+cfg.ClusterName, s.ctx.Changes, report))
		return runErr
	}

	fmt.Fprint(out, ui.RenderSummary("Apply complete: "+cfg.ClusterName, s.ctx.Changes, report))
	fmt.Fprintln(out)
	fmt.Fprint(out, ui.RenderOutputs("Outputs", outputs.Masked().Pairs()))
	return nil
}

// printOrder declares the plan against an in-memory state and lists its
// steps. The steps never run.
func printOrder(ctx context.Context, g Globals, cfg *config.Config) error {
	pctx := provisioning.NewContext(ctx, cfg, state.NewStore(cfg.StateDir), &state.State{}, provisioning.NewRecordingObserver())
	order, err := provisioning.NewPlan(pctx, provisioning.Platform{}).Order()
	if err != nil {
		return err
	}

	out := g.out()
	fmt.Fprintf(out, "Dry run for %s, steps in evaluation order:\n", cfg.ClusterName)
	for i, name := range order {
		fmt.Fprintf(out, "%3d. %s\n", i+1, name)
	}
	fmt.Fprintf(out, "%d steps, no API calls made (%s)\n", len(order), strings.Join(groups(order), ", "))
	return nil
}

// groups returns the distinct step prefixes in first-seen order.
func groups(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range names {
		g, _, _ := strings.Cut(n, ":")
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}
