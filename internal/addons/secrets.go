package addons

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Secret names.
//
//nolint:gosec // These are secret names, not credentials
const (
	CloudflaredTokenSecret   = "cloudflared-token"
	GitHubRepoCredsSecret    = "argocd-repo-github-app"
	NewRelicLicenseKeySecret = "newrelic-license-key"
	ArgoCDInitialAdminSecret = "argocd-initial-admin-secret"
)

// ArgoCDSecretTypeLabel marks a secret as ArgoCD repository configuration.
const ArgoCDSecretTypeLabel = "argocd.argoproj.io/secret-type"

// DesiredSecrets returns the secrets whose credential bundle is present.
// Absent bundles contribute nothing.
func DesiredSecrets(creds Credentials) []*corev1.Secret {
	var secrets []*corev1.Secret

	if cf, ok := creds.CloudflareTunnel(); ok {
		secrets = append(secrets, opaqueSecret(NamespaceCloudflared, CloudflaredTokenSecret, nil, map[string]string{
			"token": cf.Token,
		}))
	}

	if gh, ok := creds.GitHubApp(); ok {
		secrets = append(secrets, opaqueSecret(NamespaceArgoCD, GitHubRepoCredsSecret,
			map[string]string{ArgoCDSecretTypeLabel: "repo-creds"},
			map[string]string{
				"type":                    "git",
				"url":                     gh.OrgURL,
				"githubAppID":             gh.AppID,
				"githubAppInstallationID": gh.InstallationID,
				"githubAppPrivateKey":     gh.PrivateKey,
			}))
	}

	if nr, ok := creds.NewRelic(); ok {
		// Secrets are namespace-scoped: one copy for the agents, one for Fluent Bit.
		for _, ns := range []string{NamespaceNewRelic, NamespaceLogging} {
			secrets = append(secrets, opaqueSecret(ns, NewRelicLicenseKeySecret, nil, map[string]string{
				"licenseKey": nr.LicenseKey,
			}))
		}
	}

	return secrets
}

func opaqueSecret(namespace, name string, labels, data map[string]string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}
}
