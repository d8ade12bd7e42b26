package addons

import "github.com/faulty-technology/homelab/internal/config"

// CloudflareTunnel is the credential of the cloudflared connector.
type CloudflareTunnel struct {
	Token string
}

// GitHubApp authenticates ArgoCD against the GitHub organization, both for
// repository access and for commit status notifications.
type GitHubApp struct {
	AppID          string
	InstallationID string
	PrivateKey     string
	OrgURL         string
}

// NewRelic is the license key used by the New Relic agents and Fluent Bit.
type NewRelic struct {
	LicenseKey string
}

// Credentials holds each bundle behind a presence flag. A bundle is present
// only when all of its fields are set; a partially configured bundle is
// treated as absent.
type Credentials struct {
	cloudflare    CloudflareTunnel
	hasCloudflare bool
	github        GitHubApp
	hasGitHub     bool
	newRelic      NewRelic
	hasNewRelic   bool
}

// CredentialsFrom builds the credential bundles from configuration.
func CredentialsFrom(cfg *config.Config) Credentials {
	var c Credentials
	s := cfg.Secrets

	if s.CloudflareTunnelToken != "" {
		c.cloudflare = CloudflareTunnel{Token: s.CloudflareTunnelToken}
		c.hasCloudflare = true
	}
	if s.GitHubAppID != "" && s.GitHubAppInstallationID != "" && s.GitHubAppPrivateKey != "" {
		c.github = GitHubApp{
			AppID:          s.GitHubAppID,
			InstallationID: s.GitHubAppInstallationID,
			PrivateKey:     s.GitHubAppPrivateKey,
			OrgURL:         cfg.GitHub.OrgURL,
		}
		c.hasGitHub = true
	}
	if s.NewRelicLicenseKey != "" {
		c.newRelic = NewRelic{LicenseKey: s.NewRelicLicenseKey}
		c.hasNewRelic = true
	}
	return c
}

// CloudflareTunnel returns the tunnel credential and whether it is configured.
func (c Credentials) CloudflareTunnel() (CloudflareTunnel, bool) {
	return c.cloudflare, c.hasCloudflare
}

// GitHubApp returns the GitHub App credential and whether it is configured.
func (c Credentials) GitHubApp() (GitHubApp, bool) {
	return c.github, c.hasGitHub
}

// NewRelic returns the New Relic credential and whether it is configured.
func (c Credentials) NewRelic() (NewRelic, bool) {
	return c.newRelic, c.hasNewRelic
}
