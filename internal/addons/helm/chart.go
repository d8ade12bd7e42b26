package helm

import (
	"context"
	"fmt"
	"net/url"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
)

// ChartSpec locates a chart in a classic Helm repository.
type ChartSpec struct {
	Repository string
	Name       string
	Version    string
}

func (s ChartSpec) String() string {
	return fmt.Sprintf("%s/%s@%s", s.Repository, s.Name, s.Version)
}

// ChartLoader fetches and loads a chart.
type ChartLoader func(ctx context.Context, spec ChartSpec) (*chart.Chart, error)

// DownloadChart resolves the chart through the repository index and loads
// the archive from memory.
func DownloadChart(_ context.Context, spec ChartSpec) (*chart.Chart, error) {
	providers := getter.All(cli.New())

	chartURL, err := repo.FindChartInRepoURL(
		spec.Repository,
		spec.Name,
		spec.Version,
		"", "", "",
		providers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", spec.Name, spec.Repository, err)
	}

	u, err := url.Parse(chartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chart URL %q: %w", chartURL, err)
	}
	g, err := providers.ByScheme(u.Scheme)
	if err != nil {
		return nil, fmt.Errorf("no getter for chart URL %q: %w", chartURL, err)
	}

	buf, err := g.Get(chartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart %s: %w", spec, err)
	}

	ch, err := loader.LoadArchive(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", spec, err)
	}
	return ch, nil
}
