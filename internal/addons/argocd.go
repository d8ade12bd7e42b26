package addons

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/util/change"
	"github.com/faulty-technology/homelab/manifests"
)

// ArgoCDReleaseName is the Helm release name and the prefix of every ArgoCD object.
const ArgoCDReleaseName = "argocd"

// FieldManager identifies homelab in server-side apply managed fields.
const FieldManager = "homelab"

// ErrAdminSecretMissing is returned when ArgoCD has not generated, or has
// already removed, its initial admin secret.
var ErrAdminSecretMissing = errors.New("argocd initial admin secret not found")

// readManifest reads a manifest file. The default paths fall back to the
// copies embedded in the binary when the file does not exist, so the tool
// works outside a checkout of this repository.
func readManifest(path, defaultPath, embedded string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, fs.ErrNotExist) && path == defaultPath {
		return manifests.FS.ReadFile(embedded)
	}
	return nil, fmt.Errorf("failed to read %s: %w", path, err)
}

// ArgoCDValues returns the chart values: the static values file with the
// GitHub App notifications fragment merged on top when the app is configured.
func ArgoCDValues(cfg *config.Config, creds Credentials) (helm.Values, error) {
	raw, err := readManifest(cfg.ArgoCD.ValuesFile, config.DefaultArgoCDValuesFile, manifests.ArgoCDValues)
	if err != nil {
		return nil, err
	}
	base, err := helm.FromYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse argocd values %s: %w", cfg.ArgoCD.ValuesFile, err)
	}

	gh, ok := creds.GitHubApp()
	if !ok {
		return base, nil
	}
	return helm.DeepMerge(base, notificationsValues(gh)), nil
}

// notificationsValues configures the GitHub notifier. The private key lives in
// the notifications secret and is referenced from the notifier by name.
func notificationsValues(gh GitHubApp) helm.Values {
	return helm.Values{
		"notifications": helm.Values{
			"secret": helm.Values{
				"items": helm.Values{
					"github-privateKey": gh.PrivateKey,
				},
			},
			"notifiers": helm.Values{
				"service.github": fmt.Sprintf("appID: %s\ninstallationID: %s\nprivateKey: $github-privateKey\n",
					gh.AppID, gh.InstallationID),
			},
		},
	}
}

// ArgoCDRelease builds the desired ArgoCD Helm release.
func ArgoCDRelease(cfg *config.Config, creds Credentials, timeouts *config.Timeouts) (helm.Release, error) {
	values, err := ArgoCDValues(cfg, creds)
	if err != nil {
		return helm.Release{}, err
	}
	return helm.Release{
		Name: ArgoCDReleaseName,
		Chart: helm.ChartSpec{
			Repository: cfg.ArgoCD.RepoURL,
			Name:       cfg.ArgoCD.Chart,
			Version:    cfg.ArgoCD.ChartVersion,
		},
		Values:  values,
		Timeout: timeouts.Helm,
	}, nil
}

// InstallArgoCD installs or upgrades the ArgoCD release and records the outcome.
func (i *Initializer) InstallArgoCD(ctx context.Context) (helm.Result, error) {
	rel, err := ArgoCDRelease(i.cfg, i.creds, i.timeouts)
	if err != nil {
		return helm.Result{}, err
	}
	res, err := i.helm.InstallOrUpgrade(ctx, rel)
	if err != nil {
		return helm.Result{}, err
	}
	i.changes.Add("helm:"+rel.Name, res.Action)
	return res, nil
}

// ApplyRootApp applies the root application. Discovery is refreshed first
// because the Application CRD only exists once the ArgoCD chart is installed.
func (i *Initializer) ApplyRootApp(ctx context.Context) (change.Action, error) {
	raw, err := readManifest(i.cfg.ArgoCD.RootAppFile, config.DefaultRootAppFile, manifests.RootApp)
	if err != nil {
		return "", err
	}
	if err := i.kube.RefreshDiscovery(ctx); err != nil {
		return "", err
	}
	action, err := i.kube.ApplyManifests(ctx, raw, FieldManager)
	if err != nil {
		return "", fmt.Errorf("failed to apply root application: %w", err)
	}
	i.changes.Add("argocd:root-app", action)
	return action, nil
}

// AdminPassword reads the initial admin password generated by the chart.
// Secret data arrives already base64-decoded from the API.
func (i *Initializer) AdminPassword(ctx context.Context) (string, error) {
	secret, err := i.kube.GetSecret(ctx, NamespaceArgoCD, ArgoCDInitialAdminSecret)
	if apierrors.IsNotFound(err) {
		return "", ErrAdminSecretMissing
	}
	if err != nil {
		return "", err
	}
	password, ok := secret.Data["password"]
	if !ok || len(password) == 0 {
		return "", fmt.Errorf("%w: no password key", ErrAdminSecretMissing)
	}
	return string(password), nil
}
