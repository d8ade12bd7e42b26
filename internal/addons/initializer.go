package addons

import (
	"context"
	"fmt"

	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/addons/k8sclient"
	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// HelmInstaller installs a release idempotently. *helm.Client implements it.
type HelmInstaller interface {
	InstallOrUpgrade(ctx context.Context, rel helm.Release) (helm.Result, error)
}

// Initializer creates the in-cluster objects ArgoCD needs before it takes
// over: namespaces, credential secrets, the ArgoCD release and the root
// application.
type Initializer struct {
	cfg      *config.Config
	creds    Credentials
	kube     k8sclient.Client
	helm     HelmInstaller
	timeouts *config.Timeouts
	changes  change.Recorder
}

// NewInitializer creates an Initializer. A nil recorder discards outcomes.
func NewInitializer(cfg *config.Config, kube k8sclient.Client, h HelmInstaller, timeouts *config.Timeouts, changes change.Recorder) *Initializer {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	if changes == nil {
		changes = &change.Set{}
	}
	return &Initializer{
		cfg:      cfg,
		creds:    CredentialsFrom(cfg),
		kube:     kube,
		helm:     h,
		timeouts: timeouts,
		changes:  changes,
	}
}

// EnsureNamespaces creates every namespace.
func (i *Initializer) EnsureNamespaces(ctx context.Context) error {
	for _, ns := range Namespaces() {
		action, err := i.kube.EnsureNamespace(ctx, ns.Name, ns.Labels)
		if err != nil {
			return err
		}
		i.changes.Add("namespace:"+ns.Name, action)
	}
	return nil
}

// EnsureSecrets creates the secrets whose credentials are configured.
// Unconfigured bundles are recorded as skipped.
func (i *Initializer) EnsureSecrets(ctx context.Context) error {
	for _, s := range DesiredSecrets(i.creds) {
		action, err := i.kube.EnsureSecret(ctx, s)
		if err != nil {
			return err
		}
		i.changes.Add(fmt.Sprintf("secret:%s/%s", s.Namespace, s.Name), action)
	}

	if _, ok := i.creds.CloudflareTunnel(); !ok {
		i.changes.Add("secret:"+NamespaceCloudflared+"/"+CloudflaredTokenSecret, change.Skipped)
	}
	if _, ok := i.creds.GitHubApp(); !ok {
		i.changes.Add("secret:"+NamespaceArgoCD+"/"+GitHubRepoCredsSecret, change.Skipped)
	}
	if _, ok := i.creds.NewRelic(); !ok {
		i.changes.Add("secret:"+NewRelicLicenseKeySecret, change.Skipped)
	}
	return nil
}
