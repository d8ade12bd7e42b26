package provisioning

import (
	"slices"
	"strings"

	"github.com/faulty-technology/homelab/internal/config"
)

// warning is a setting that is valid but probably unintended.
type warning struct {
	field   string
	message string
}

// warningChecks each return a warning when their setting looks unintended.
var warningChecks = []func(*config.Config) (warning, bool){
	openIngress,
	partialGitHubApp,
	talosVersionPrefix,
}

// Preflight validates the configuration before any API is called. Warnings
// are reported to the observer; an invalid configuration aborts the run.
func Preflight(cfg *config.Config, observer Observer) error {
	if err := cfg.Validate(); err != nil {
		observer.Event(Event{Type: EventValidationError, Phase: "validation", Message: "invalid configuration", Err: err})
		return err
	}
	for _, check := range warningChecks {
		w, found := check(cfg)
		if !found {
			continue
		}
		observer.Event(Event{
			Type:    EventValidationWarning,
			Phase:   "validation",
			Message: w.message,
			Fields:  map[string]string{"field": w.field},
		})
	}
	return nil
}

func openIngress(cfg *config.Config) (warning, bool) {
	return warning{
		field:   "allowedCidrs",
		message: "Talos and Kubernetes APIs are reachable from any address",
	}, slices.Contains(cfg.AllowedCIDRs, "0.0.0.0/0")
}

// partialGitHubApp flags a GitHub App with some but not all of its three
// values, which CredentialsFrom treats as absent.
func partialGitHubApp(cfg *config.Config) (warning, bool) {
	s := cfg.Secrets
	set := 0
	for _, v := range []string{s.GitHubAppID, s.GitHubAppInstallationID, s.GitHubAppPrivateKey} {
		if v != "" {
			set++
		}
	}
	return warning{
		field:   "secrets.githubApp",
		message: "GitHub App is partially configured; repository credentials and notifications are skipped",
	}, set == 1 || set == 2
}

func talosVersionPrefix(cfg *config.Config) (warning, bool) {
	return warning{
		field:   "talos.version",
		message: "version should start with 'v' (e.g. 'v1.12.4')",
	}, !strings.HasPrefix(cfg.Talos.Version, "v")
}
