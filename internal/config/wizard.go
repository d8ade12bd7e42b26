package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// instanceTypeOptions are the burstable sizes that fit a single-node cluster.
var instanceTypeOptions = []huh.Option[string]{
	huh.NewOption("t3a.medium - 2 vCPU, 4GB RAM", "t3a.medium"),
	huh.NewOption("t3a.large - 2 vCPU, 8GB RAM", "t3a.large"),
	huh.NewOption("t3a.xlarge - 4 vCPU, 16GB RAM", "t3a.xlarge"),
	huh.NewOption("m6a.large - 2 vCPU, 8GB RAM", "m6a.large"),
}

// WizardResult holds the user's choices from the wizard.
type WizardResult struct {
	ClusterName  string
	InstanceType string
	AllowedCIDRs string // comma separated

	CloudflareTunnelToken string
	NewRelicLicenseKey    string

	GitHubApp               bool
	GitHubAppID             string
	GitHubAppInstallationID string
	GitHubAppPrivateKey     string
}

// RunWizard asks for the settings that differ between homelabs and leaves
// everything else at its default.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		ClusterName:  DefaultClusterName,
		InstanceType: DefaultInstanceType,
		AllowedCIDRs: strings.Join(DefaultAllowedCIDRs, ","),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("Prefix for every AWS resource name (lowercase, at most 40 characters)").
				Value(&result.ClusterName).
				Validate(validateClusterName),

			huh.NewSelect[string]().
				Title("Instance type").
				Options(instanceTypeOptions...).
				Value(&result.InstanceType),

			huh.NewInput().
				Title("Allowed CIDRs").
				Description("Comma separated sources allowed to reach the Talos and Kubernetes APIs").
				Value(&result.AllowedCIDRs).
				Validate(validateCIDRList),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Cloudflare tunnel token (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&result.CloudflareTunnelToken),

			huh.NewInput().
				Title("New Relic license key (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&result.NewRelicLicenseKey),

			huh.NewConfirm().
				Title("Configure a GitHub App for ArgoCD?").
				Description("Used for private repository access and commit status notifications").
				Value(&result.GitHubApp),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("GitHub App ID").
				Value(&result.GitHubAppID),

			huh.NewInput().
				Title("GitHub App installation ID").
				Value(&result.GitHubAppInstallationID),

			huh.NewText().
				Title("GitHub App private key (PEM)").
				Value(&result.GitHubAppPrivateKey),
		).WithHideFunc(func() bool { return !result.GitHubApp }),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

// ToConfig converts the wizard result to a Config on top of the defaults.
func (r *WizardResult) ToConfig() *Config {
	cfg := Default()
	cfg.ClusterName = strings.ToLower(strings.TrimSpace(r.ClusterName))
	cfg.InstanceType = r.InstanceType
	cfg.AllowedCIDRs = splitCIDRs(r.AllowedCIDRs)
	cfg.Secrets.CloudflareTunnelToken = strings.TrimSpace(r.CloudflareTunnelToken)
	cfg.Secrets.NewRelicLicenseKey = strings.TrimSpace(r.NewRelicLicenseKey)

	if r.GitHubApp {
		cfg.Secrets.GitHubAppID = strings.TrimSpace(r.GitHubAppID)
		cfg.Secrets.GitHubAppInstallationID = strings.TrimSpace(r.GitHubAppInstallationID)
		cfg.Secrets.GitHubAppPrivateKey = r.GitHubAppPrivateKey
	}
	return cfg
}

func splitCIDRs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateClusterName(s string) error {
	if !clusterNamePattern.MatchString(strings.ToLower(strings.TrimSpace(s))) {
		return fmt.Errorf("cluster name must be lowercase alphanumeric or '-', at most 40 characters")
	}
	return nil
}

func validateCIDRList(s string) error {
	return ValidateCIDRs(splitCIDRs(s))
}
