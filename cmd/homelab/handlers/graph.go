package handlers

import (
	"context"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/state"
)

// Graph prints the resource dependency graph in the given format.
func Graph(ctx context.Context, g Globals, format string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	pctx := provisioning.NewContext(ctx, cfg, state.NewStore(cfg.StateDir), &state.State{}, provisioning.NewRecordingObserver())
	return provisioning.NewPlan(pctx, provisioning.Platform{}).Graph().Render(g.out(), dag.Format(format))
}
