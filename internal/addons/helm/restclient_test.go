package helm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://10.0.1.10:6443
    insecure-skip-tls-verify: true
  name: homelab
contexts:
- context:
    cluster: homelab
    user: admin@homelab
    namespace: kube-system
  name: admin@homelab
current-context: admin@homelab
users:
- name: admin@homelab
  user:
    token: secret-token
`

func TestKubeconfigGetter_RESTConfig(t *testing.T) {
	t.Parallel()

	g := newKubeconfigGetter([]byte(adminKubeconfig), "argocd")

	rc, err := g.ToRESTConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.1.10:6443", rc.Host)
	assert.Equal(t, "secret-token", rc.BearerToken)

	again, err := g.ToRESTConfig()
	require.NoError(t, err)
	assert.Same(t, rc, again)
}

func TestKubeconfigGetter_ReleaseNamespaceWins(t *testing.T) {
	t.Parallel()

	ns, overridden, err := newKubeconfigGetter([]byte(adminKubeconfig), "argocd").ToRawKubeConfigLoader().Namespace()
	require.NoError(t, err)
	assert.Equal(t, "argocd", ns)
	assert.True(t, overridden)
}

func TestKubeconfigGetter_DiscoveryIsCached(t *testing.T) {
	t.Parallel()

	g := newKubeconfigGetter([]byte(adminKubeconfig), "argocd")

	first, err := g.ToDiscoveryClient()
	require.NoError(t, err)
	second, err := g.ToDiscoveryClient()
	require.NoError(t, err)
	assert.Same(t, first, second)

	mapper, err := g.ToRESTMapper()
	require.NoError(t, err)
	assert.NotNil(t, mapper)
}

func TestKubeconfigGetter_InvalidKubeconfig(t *testing.T) {
	t.Parallel()

	g := newKubeconfigGetter([]byte(`not valid yaml: {{{{`), "argocd")

	_, err := g.ToRESTConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid kubeconfig")

	_, err = g.ToRESTMapper()
	assert.Error(t, err)
}
