// Package manifests embeds the ArgoCD values file and root application
// shipped with the binary. Files on disk configured under argocd.valuesFile
// and argocd.rootAppFile take precedence.
package manifests

import "embed"

//go:embed argocd/*.yaml
var FS embed.FS

// Embedded paths inside FS.
const (
	ArgoCDValues = "argocd/argocd-values.yaml"
	RootApp      = "argocd/root-app.yaml"
)
