package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/ui"
)

// ErrNoState is returned when there is nothing recorded to report on.
var ErrNoState = errors.New("no cluster recorded in state, run apply first")

// OutputsOptions are the flags of the outputs command.
type OutputsOptions struct {
	JSON        bool
	YAML        bool
	ShowSecrets bool
}

// Outputs prints the stack outputs recorded in state. The ArgoCD admin
// password is masked unless ShowSecrets is set.
func Outputs(ctx context.Context, g Globals, opts OutputsOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, provisioning.NewRecordingObserver(), false)
	if err != nil {
		return err
	}
	defer s.close()

	snapshot := s.ctx.State.Snapshot()
	if snapshot.AWS.InstanceID == "" {
		return ErrNoState
	}

	outputs := provisioning.OutputsFromState(snapshot)
	if !opts.ShowSecrets {
		outputs = outputs.Masked()
	}

	if opts.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return fmt.Errorf("failed to encode outputs: %w", err)
		}
		return nil
	}

	if opts.YAML {
		data, err := yaml.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("failed to encode outputs: %w", err)
		}
		_, err = g.out().Write(data)
		return err
	}

	fmt.Fprint(g.out(), ui.RenderOutputs("Outputs: "+cfg.ClusterName, outputs.Pairs()))
	return nil
}
