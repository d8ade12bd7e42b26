package provisioning

import (
	"context"
	"errors"

	"github.com/faulty-technology/homelab/internal/addons"
	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/localconfig"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
)

func (p *Plan) addWorkloads() {
	g := p.graph
	inKube := dag.InGroup(groupKubernetes)

	p.workloads = dag.Add(g, StepKubeClient, dag.Deps(p.kubeconfig), func(context.Context) (Workloads, error) {
		return p.platform.NewWorkloads(p.kubeconfig.Value(), p.ctx.Recorder(groupKubernetes))
	}, inKube)

	p.namespaces = dag.Do(g, StepNamespaces, dag.Deps(p.workloads), func(ctx context.Context) error {
		return p.workloads.Value().EnsureNamespaces(ctx)
	}, inKube)

	p.secrets = dag.Do(g, StepSecrets, dag.Deps(p.workloads), func(ctx context.Context) error {
		return p.workloads.Value().EnsureSecrets(ctx)
	}, inKube, dag.After(p.namespaces))

	// The release only needs its namespace. Secrets are read by ArgoCD at
	// sync time, not at install time.
	p.argocd = dag.Do(g, StepArgoCD, dag.Deps(p.workloads), func(ctx context.Context) error {
		res, err := p.workloads.Value().InstallArgoCD(ctx)
		if err != nil {
			return err
		}
		return p.ctx.State.Update(func(st *state.State) { st.Kubernetes.ArgoCDReleaseDigest = res.Digest })
	}, inKube, dag.After(p.namespaces))

	p.rootApp = dag.Do(g, StepRootApp, dag.Deps(p.workloads), func(ctx context.Context) error {
		_, err := p.workloads.Value().ApplyRootApp(ctx)
		return err
	}, inKube, dag.After(p.argocd))

	p.adminPassword = dag.Do(g, StepAdminPassword, dag.Deps(p.workloads), func(ctx context.Context) error {
		password, err := p.workloads.Value().AdminPassword(ctx)
		if errors.Is(err, addons.ErrAdminSecretMissing) {
			// Deleted after first login; keep whatever was recorded.
			p.ctx.Record(StepAdminPassword, addons.ArgoCDInitialAdminSecret, change.Skipped)
			return nil
		}
		if err != nil {
			return err
		}
		return p.ctx.State.Update(func(st *state.State) { st.Kubernetes.ArgoCDAdminPassword = password })
	}, inKube, dag.After(p.argocd))
}

func (p *Plan) addLocalFiles() {
	g := p.graph
	writer := localconfig.NewWriter(p.ctx.Config.OutputDir)
	inLocal := dag.InGroup(groupLocal)

	write := func(step, name string, content func() []byte) func(context.Context) error {
		return func(context.Context) error {
			path := writer.Path(name)
			var last string
			p.ctx.State.Read(func(st *state.State) { last = st.Files[path] })

			res, err := writer.Write(name, content(), last)
			if err != nil {
				return err
			}
			p.ctx.Record(step, res.Path, res.Action)
			if res.Hash == last {
				return nil
			}
			return p.ctx.State.Update(func(st *state.State) {
				if st.Files == nil {
					st.Files = map[string]string{}
				}
				st.Files[res.Path] = res.Hash
			})
		}
	}

	p.writeKubeconfig = dag.Do(g, StepWriteKubeconfig, dag.Deps(p.kubeconfig),
		write(StepWriteKubeconfig, localconfig.KubeconfigFile, func() []byte { return p.kubeconfig.Value() }), inLocal)

	p.writeTalos = dag.Do(g, StepWriteTalosconfig, dag.Deps(p.clientConfig),
		write(StepWriteTalosconfig, localconfig.TalosconfigFile, func() []byte { return p.clientConfig.Value() }),
		inLocal, dag.After(p.kubeconfig))
}

func (p *Plan) addOutputs() {
	deps := dag.Deps(p.association, p.securityGroup, p.bucket, p.adminPassword,
		p.rootApp, p.secrets, p.writeKubeconfig, p.writeTalos)
	p.outputs = dag.Add(p.graph, StepOutputs, deps, func(context.Context) (Outputs, error) {
		return OutputsFromState(p.ctx.State.Snapshot()), nil
	})
}
