// Package addons initializes the workloads of a freshly bootstrapped cluster.
//
// The initializer creates the namespaces used by the GitOps-managed
// components, writes the credential secrets whose configuration is present,
// installs ArgoCD with Helm and applies the root "app of apps" Application.
// From then on ArgoCD owns everything else in the cluster.
//
// Credential bundles are capability gated: a bundle exists only when all of
// its fields are configured. A missing bundle is not an error; its secret
// and Helm values fragment are simply omitted.
package addons
