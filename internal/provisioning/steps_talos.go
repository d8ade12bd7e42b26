package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/localconfig"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// addTalos declares the bootstrap sequence. Each step consumes the previous
// step's value, so the graph itself enforces apply, bootstrap, health and
// kubeconfig order.
func (p *Plan) addTalos() {
	g := p.graph
	cfg := p.ctx.Config
	inTalos := dag.InGroup(groupTalos)

	p.generator = dag.Add(g, StepTalosSecrets, nil, func(context.Context) (*talos.Generator, error) {
		sb, generated, err := talos.GetOrGenerateSecrets(p.ctx.SecretsPath, cfg.Talos.Version)
		if err != nil {
			return nil, err
		}
		action := change.Unchanged
		if generated {
			action = change.Created
		}
		p.ctx.Record(StepTalosSecrets, "talos-secrets", action)
		return talos.NewGenerator(cfg.ClusterName, cfg.Kubernetes.Version, cfg.Talos.Version, sb), nil
	}, inTalos)

	p.machineConfig = dag.Add(g, StepMachineConfig, dag.Deps(p.generator, p.eip), func(context.Context) (machineConfig, error) {
		data, err := p.generator.Value().MachineConfig(p.eip.Value().PublicIP)
		if err != nil {
			return machineConfig{}, err
		}
		return machineConfig{Data: data, Hash: talos.ConfigHash(data)}, nil
	}, inTalos)

	p.clientConfig = dag.Add(g, StepClientConfig, dag.Deps(p.generator, p.eip, p.instance), func(context.Context) ([]byte, error) {
		previous, err := os.ReadFile(p.localPath(localconfig.TalosconfigFile))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read talosconfig: %w", err)
		}
		return p.generator.Value().ClientConfig(p.eip.Value().PublicIP, p.instance.Value().PrivateIP, previous)
	}, inTalos)

	// The endpoint is the Elastic IP. The node is addressed by its private
	// IP, which is how Talos identifies itself.
	p.node = dag.Add(g, StepApplyConfig, dag.Deps(p.machineConfig, p.clientConfig, p.eip, p.instance),
		func(ctx context.Context) (TalosNode, error) {
			node, err := p.platform.NewNode(p.clientConfig.Value(), p.eip.Value().PublicIP, p.instance.Value().PrivateIP)
			if err != nil {
				return nil, err
			}

			mc := p.machineConfig.Value()
			applied := p.known(func(st *state.State) string { return st.Talos.ConfigHash })
			if applied == mc.Hash {
				p.ctx.Record(StepApplyConfig, "machine-config", change.Unchanged)
				return node, nil
			}

			if _, err := node.ApplyConfig(ctx, mc.Data); err != nil {
				return nil, err
			}
			action := change.Updated
			if applied == "" {
				action = change.Created
			}
			p.ctx.Record(StepApplyConfig, "machine-config", action)
			return node, p.ctx.State.Update(func(st *state.State) { st.Talos.ConfigHash = mc.Hash })
		}, inTalos, dag.After(p.association))

	p.bootstrap = dag.Do(g, StepBootstrap, dag.Deps(p.node), func(ctx context.Context) error {
		var done bool
		p.ctx.State.Read(func(st *state.State) { done = st.Talos.Bootstrapped })
		if done {
			p.ctx.Record(StepBootstrap, "etcd", change.Unchanged)
			return nil
		}

		performed, err := p.node.Value().Bootstrap(ctx)
		if err != nil {
			return err
		}
		action := change.Unchanged
		if performed {
			action = change.Created
		}
		p.ctx.Record(StepBootstrap, "etcd", action)
		return p.ctx.State.Update(func(st *state.State) { st.Talos.Bootstrapped = true })
	}, inTalos)

	p.health = dag.Add(g, StepHealth, dag.Deps(p.node), func(ctx context.Context) (string, error) {
		return p.node.Value().WaitHealthy(ctx)
	}, inTalos, dag.After(p.bootstrap))

	// A fetched kubeconfig carries a newly signed client certificate, so the
	// written one is kept while it still fits the cluster.
	p.kubeconfig = dag.Add(g, StepKubeconfig, dag.Deps(p.health, p.generator, p.clientConfig, p.instance), func(ctx context.Context) ([]byte, error) {
		endpoint := p.health.Value()
		if endpoint == "" {
			return nil, fmt.Errorf("health check: %w", errMissingOutput)
		}
		previous, err := os.ReadFile(p.localPath(localconfig.KubeconfigFile))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read kubeconfig: %w", err)
		}
		if p.generator.Value().KubeconfigCurrent(previous, endpoint) {
			return previous, nil
		}

		node, err := p.platform.NewNode(p.clientConfig.Value(), endpoint, p.instance.Value().PrivateIP)
		if err != nil {
			return nil, err
		}
		return node.Kubeconfig(ctx)
	}, inTalos)
}

func (p *Plan) localPath(name string) string {
	return filepath.Join(p.ctx.Config.OutputDir, name)
}
