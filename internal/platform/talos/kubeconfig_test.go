package talos

import (
	stdx509 "crypto/x509"
	"testing"
	"time"

	"github.com/siderolabs/crypto/x509"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// adminKubeconfig signs a fresh client certificate with the bundle's
// Kubernetes CA, the same shape a node serves.
func adminKubeconfig(t *testing.T, sb *SecretsBundle, host string, lifetime time.Duration) []byte {
	t.Helper()

	ca, err := x509.NewCertificateAuthorityFromCertificateAndKey(sb.Certs.K8s)
	require.NoError(t, err)
	kp, err := x509.NewKeyPair(ca,
		x509.CommonName("admin"),
		x509.Organization("system:masters"),
		x509.NotAfter(time.Now().Add(lifetime)),
		x509.ExtKeyUsage([]stdx509.ExtKeyUsage{stdx509.ExtKeyUsageClientAuth}),
	)
	require.NoError(t, err)
	crt := x509.NewCertificateAndKeyFromKeyPair(kp)

	data, err := clientcmd.Write(clientcmdapi.Config{
		Clusters: map[string]*clientcmdapi.Cluster{
			"test-cluster": {Server: ClusterEndpoint(host), CertificateAuthorityData: sb.Certs.K8s.Crt},
		},
		AuthInfos: map[string]*clientcmdapi.AuthInfo{
			"admin@test-cluster": {ClientCertificateData: crt.Crt, ClientKeyData: crt.Key},
		},
		Contexts: map[string]*clientcmdapi.Context{
			"admin@test-cluster": {Cluster: "test-cluster", AuthInfo: "admin@test-cluster", Namespace: "default"},
		},
		CurrentContext: "admin@test-cluster",
	})
	require.NoError(t, err)
	return data
}

func TestKubeconfigCurrent(t *testing.T) {
	gen := newTestGenerator(t)
	fresh := adminKubeconfig(t, gen.secrets, testPublicIP, 365*24*time.Hour)

	assert.True(t, gen.KubeconfigCurrent(fresh, testPublicIP))

	tests := []struct {
		name string
		data []byte
		host string
	}{
		{"empty", nil, testPublicIP},
		{"garbage", []byte("clusters: ["), testPublicIP},
		{"endpoint moved", fresh, "198.51.100.7"},
		{"certificate expiring", adminKubeconfig(t, gen.secrets, testPublicIP, time.Hour), testPublicIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, gen.KubeconfigCurrent(tt.data, tt.host))
		})
	}

	t.Run("different cluster CA", func(t *testing.T) {
		other := newTestGenerator(t)
		assert.False(t, other.KubeconfigCurrent(fresh, testPublicIP))
	})

	t.Run("no secrets", func(t *testing.T) {
		assert.False(t, NewGenerator("test-cluster", "v1.35.0", testTalosVersion, nil).KubeconfigCurrent(fresh, testPublicIP))
	})
}
