package helm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// DigestLabel is the release label holding the chart and values digest.
const DigestLabel = "homelab-values-digest"

// digestLabelLength keeps the label value within the Kubernetes label limit.
const digestLabelLength = 40

// Release is the desired state of one Helm release.
type Release struct {
	Name    string
	Chart   ChartSpec
	Values  Values
	Timeout time.Duration
}

// Result describes what InstallOrUpgrade did.
type Result struct {
	Action   change.Action
	Revision int
	Digest   string
}

// Client provides Helm operations using in-memory kubeconfig.
type Client struct {
	namespace    string
	actionConfig *action.Configuration
	loadChart    ChartLoader
}

// NewClient creates a Helm client from kubeconfig bytes. Releases are stored
// as secrets in namespace.
func NewClient(kubeconfig []byte, namespace string) (*Client, error) {
	actionConfig := new(action.Configuration)
	restGetter := newKubeconfigGetter(kubeconfig, namespace)

	// Initialize with a no-op logger (suppress debug output)
	if err := actionConfig.Init(restGetter, namespace, "secret", func(string, ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	return newClient(actionConfig, namespace, DownloadChart), nil
}

func newClient(cfg *action.Configuration, namespace string, loadChart ChartLoader) *Client {
	return &Client{namespace: namespace, actionConfig: cfg, loadChart: loadChart}
}

// InstallOrUpgrade installs the release, or upgrades it when its chart
// version or values changed since the last deployed revision. A deployed
// release with the same digest is left alone and the chart is not fetched.
// Install and upgrade wait for workloads and jobs to become ready.
func (c *Client) InstallOrUpgrade(ctx context.Context, rel Release) (Result, error) {
	digest, err := Digest(rel.Chart.Name, rel.Chart.Version, rel.Values)
	if err != nil {
		return Result{}, err
	}
	label := digest[:digestLabelLength]

	current, err := c.latest(rel.Name)
	if err != nil {
		return Result{}, err
	}
	if current != nil && current.Info != nil && current.Info.Status == release.StatusDeployed &&
		current.Labels[DigestLabel] == label {
		return Result{Action: change.Unchanged, Revision: current.Version, Digest: digest}, nil
	}

	ch, err := c.loadChart(ctx, rel.Chart)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load chart: %w", err)
	}
	labels := map[string]string{DigestLabel: label}
	values := rel.Values.ToMap()

	if current == nil {
		installClient := action.NewInstall(c.actionConfig)
		installClient.ReleaseName = rel.Name
		installClient.Namespace = c.namespace
		installClient.Version = rel.Chart.Version
		installClient.Wait = true
		installClient.WaitForJobs = true
		installClient.Timeout = rel.Timeout
		installClient.Labels = labels

		installed, err := installClient.RunWithContext(ctx, ch, values)
		if err != nil {
			return Result{}, fmt.Errorf("failed to install release %s: %w", rel.Name, err)
		}
		return Result{Action: change.Created, Revision: installed.Version, Digest: digest}, nil
	}

	upgradeClient := action.NewUpgrade(c.actionConfig)
	upgradeClient.Namespace = c.namespace
	upgradeClient.Version = rel.Chart.Version
	upgradeClient.Wait = true
	upgradeClient.WaitForJobs = true
	upgradeClient.Timeout = rel.Timeout
	upgradeClient.ReuseValues = false // Use new values
	upgradeClient.Labels = labels

	upgraded, err := upgradeClient.RunWithContext(ctx, rel.Name, ch, values)
	if err != nil {
		return Result{}, fmt.Errorf("failed to upgrade release %s: %w", rel.Name, err)
	}
	return Result{Action: change.Updated, Revision: upgraded.Version, Digest: digest}, nil
}

// latest returns the newest revision of a release, or nil if it was never
// installed.
func (c *Client) latest(name string) (*release.Release, error) {
	histClient := action.NewHistory(c.actionConfig)
	histClient.Max = 1
	history, err := histClient.Run(name)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history of release %s: %w", name, err)
	}

	var newest *release.Release
	for _, r := range history {
		if newest == nil || r.Version > newest.Version {
			newest = r
		}
	}
	return newest, nil
}

// ReleaseExists checks if a release exists.
func (c *Client) ReleaseExists(name string) (bool, error) {
	r, err := c.latest(name)
	return r != nil, err
}
