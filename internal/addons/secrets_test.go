package addons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/faulty-technology/homelab/internal/config"
)

func secretKeys(secrets []*corev1.Secret) []string {
	keys := make([]string, 0, len(secrets))
	for _, s := range secrets {
		keys = append(keys, s.Namespace+"/"+s.Name)
	}
	return keys
}

func TestDesiredSecrets_AllConfigured(t *testing.T) {
	t.Parallel()

	secrets := DesiredSecrets(CredentialsFrom(fullConfig()))
	assert.ElementsMatch(t, []string{
		"cloudflared/cloudflared-token",
		"argocd/argocd-repo-github-app",
		"newrelic/newrelic-license-key",
		"logging/newrelic-license-key",
	}, secretKeys(secrets))

	for _, s := range secrets {
		assert.Equal(t, corev1.SecretTypeOpaque, s.Type)
		if s.Name != GitHubRepoCredsSecret {
			continue
		}
		assert.Equal(t, "repo-creds", s.Labels[ArgoCDSecretTypeLabel])
		assert.Equal(t, "git", s.StringData["type"])
		assert.Equal(t, config.DefaultGitHubOrgURL, s.StringData["url"])
		assert.Equal(t, "123", s.StringData["githubAppID"])
		assert.Equal(t, "456", s.StringData["githubAppInstallationID"])
		assert.Contains(t, s.StringData["githubAppPrivateKey"], "PRIVATE KEY")
	}
}

func TestDesiredSecrets_NothingConfigured(t *testing.T) {
	t.Parallel()

	assert.Empty(t, DesiredSecrets(CredentialsFrom(config.Default())))
}

func TestDesiredSecrets_MissingGitHubPrivateKey(t *testing.T) {
	t.Parallel()

	cfg := fullConfig()
	cfg.Secrets.GitHubAppPrivateKey = ""

	secrets := DesiredSecrets(CredentialsFrom(cfg))
	require.Len(t, secrets, 3)
	assert.NotContains(t, secretKeys(secrets), "argocd/argocd-repo-github-app")
}

func TestNamespaces(t *testing.T) {
	t.Parallel()

	got := map[string]map[string]string{}
	for _, ns := range Namespaces() {
		got[ns.Name] = ns.Labels
	}
	require.Len(t, got, 4)
	assert.Empty(t, got[NamespaceCloudflared])
	assert.Empty(t, got[NamespaceArgoCD])
	assert.Equal(t, "privileged", got[NamespaceNewRelic][PodSecurityEnforceLabel])
	assert.Equal(t, "privileged", got[NamespaceLogging][PodSecurityEnforceLabel])
}
