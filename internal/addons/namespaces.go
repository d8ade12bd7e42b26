package addons

// Namespace names.
const (
	NamespaceCloudflared = "cloudflared"
	NamespaceArgoCD      = "argocd"
	NamespaceNewRelic    = "newrelic"
	NamespaceLogging     = "logging"
)

// PodSecurityEnforceLabel selects the Pod Security Standard of a namespace.
const PodSecurityEnforceLabel = "pod-security.kubernetes.io/enforce"

// NamespaceSpec is a namespace created before any workload.
type NamespaceSpec struct {
	Name   string
	Labels map[string]string
}

// Namespaces returns every namespace the initializer creates. The New Relic
// infrastructure DaemonSet and Fluent Bit need host access, so their
// namespaces enforce the privileged profile.
func Namespaces() []NamespaceSpec {
	privileged := func() map[string]string {
		return map[string]string{PodSecurityEnforceLabel: "privileged"}
	}
	return []NamespaceSpec{
		{Name: NamespaceCloudflared},
		{Name: NamespaceArgoCD},
		{Name: NamespaceNewRelic, Labels: privileged()},
		{Name: NamespaceLogging, Labels: privileged()},
	}
}
