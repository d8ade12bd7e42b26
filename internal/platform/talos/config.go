package talos

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
	"github.com/siderolabs/talos/pkg/machinery/config"
	"github.com/siderolabs/talos/pkg/machinery/config/configpatcher"
	"github.com/siderolabs/talos/pkg/machinery/config/encoder"
	"github.com/siderolabs/talos/pkg/machinery/config/generate"
	"github.com/siderolabs/talos/pkg/machinery/config/machine"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/faulty-technology/homelab/internal/util/digest"
)

// KubernetesAPIPort is the port of the cluster endpoint.
const KubernetesAPIPort = 6443

// ClusterEndpoint returns the Kubernetes API URL served on host.
func ClusterEndpoint(host string) string {
	return "https://" + net.JoinHostPort(host, strconv.Itoa(KubernetesAPIPort))
}

// Generator renders the single node's machine config and the matching
// talosconfig from one secrets bundle.
type Generator struct {
	cluster string
	k8s     string // without the leading "v"
	talos   string
	secrets *SecretsBundle
}

func NewGenerator(clusterName, kubernetesVersion, talosVersion string, sb *SecretsBundle) *Generator {
	return &Generator{
		cluster: clusterName,
		k8s:     strings.TrimPrefix(kubernetesVersion, "v"),
		talos:   talosVersion,
		secrets: sb,
	}
}

// input prepares generation for a cluster endpoint on host, pinned to the
// configured Talos version contract.
func (g *Generator) input(host string, extra ...generate.Option) (*generate.Input, error) {
	contract, err := config.ParseContractFromVersion(g.talos)
	if err != nil {
		return nil, fmt.Errorf("invalid talos version %q: %w", g.talos, err)
	}

	opts := append([]generate.Option{
		generate.WithVersionContract(contract),
		generate.WithSecretsBundle(g.secrets),
	}, extra...)

	in, err := generate.NewInput(g.cluster, ClusterEndpoint(host), g.k8s, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare config generation: %w", err)
	}
	return in, nil
}

// MachineConfig renders the patched control plane config for a node reachable
// at publicIP. The output carries no documentation comments.
func (g *Generator) MachineConfig(publicIP string) ([]byte, error) {
	in, err := g.input(publicIP)
	if err != nil {
		return nil, err
	}

	cfg, err := in.Config(machine.TypeControlPlane)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s config: %w", machine.TypeControlPlane, err)
	}

	patches, err := loadPatches(buildSingleNodePatch(publicIP))
	if err != nil {
		return nil, err
	}

	patched, err := configpatcher.Apply(configpatcher.WithConfig(cfg), patches)
	if err != nil {
		return nil, fmt.Errorf("failed to apply config patch: %w", err)
	}
	provider, err := patched.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read patched config: %w", err)
	}

	data, err := provider.EncodeBytes(encoder.WithComments(encoder.CommentsDisabled))
	if err != nil {
		return nil, fmt.Errorf("failed to encode machine config: %w", err)
	}
	return data, nil
}

// ClientConfig renders the talosconfig: it dials publicIP and targets
// privateIP.
//
// Every rendering mints a new admin client certificate, so a previous
// talosconfig is returned unchanged while it still matches the cluster CA,
// the endpoint and the node, and its certificate is not close to expiry.
func (g *Generator) ClientConfig(publicIP, privateIP string, previous []byte) ([]byte, error) {
	if len(previous) > 0 && g.clientConfigCurrent(previous, publicIP, privateIP) {
		return previous, nil
	}

	in, err := g.input(publicIP, generate.WithEndpointList([]string{publicIP}))
	if err != nil {
		return nil, err
	}

	clientCfg, err := in.Talosconfig()
	if err != nil {
		return nil, fmt.Errorf("failed to generate talosconfig: %w", err)
	}
	if ctx, ok := clientCfg.Contexts[clientCfg.Context]; ok {
		ctx.Nodes = []string{privateIP}
	}

	data, err := clientCfg.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode talosconfig: %w", err)
	}
	return data, nil
}

// clientCertRenewBefore is how long before expiry a client certificate is replaced.
const clientCertRenewBefore = 30 * 24 * time.Hour

func (g *Generator) clientConfigCurrent(data []byte, publicIP, privateIP string) bool {
	cfg, err := clientconfig.FromBytes(data)
	if err != nil {
		return false
	}
	ctx, ok := cfg.Contexts[g.cluster]
	if !ok || cfg.Context != g.cluster {
		return false
	}
	if !slices.Equal(ctx.Endpoints, []string{publicIP}) || !slices.Equal(ctx.Nodes, []string{privateIP}) {
		return false
	}
	if g.secrets == nil || g.secrets.Certs == nil || g.secrets.Certs.OS == nil ||
		ctx.CA != base64.StdEncoding.EncodeToString(g.secrets.Certs.OS.Crt) {
		return false
	}

	crtPEM, err := base64.StdEncoding.DecodeString(ctx.Crt)
	if err != nil {
		return false
	}
	crt, err := parseCertificate(crtPEM)
	if err != nil {
		return false
	}
	return time.Until(crt.NotAfter) > clientCertRenewBefore
}

// KubeconfigCurrent reports whether an admin kubeconfig fetched earlier can
// be kept. Talos signs a new client certificate on every fetch, so the old
// one stays while it targets the cluster endpoint on host, trusts the
// cluster CA and holds a certificate from that CA that is not close to expiry.
func (g *Generator) KubeconfigCurrent(data []byte, host string) bool {
	if len(data) == 0 || g.secrets == nil || g.secrets.Certs == nil || g.secrets.Certs.K8s == nil {
		return false
	}
	cfg, err := clientcmd.Load(data)
	if err != nil {
		return false
	}
	kctx, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return false
	}
	cluster, ok := cfg.Clusters[kctx.Cluster]
	if !ok || cluster.Server != ClusterEndpoint(host) ||
		!bytes.Contains(cluster.CertificateAuthorityData, g.secrets.Certs.K8s.Crt) {
		return false
	}
	user, ok := cfg.AuthInfos[kctx.AuthInfo]
	if !ok {
		return false
	}

	ca, err := parseCertificate(g.secrets.Certs.K8s.Crt)
	if err != nil {
		return false
	}
	crt, err := parseCertificate(user.ClientCertificateData)
	if err != nil || crt.CheckSignatureFrom(ca) != nil {
		return false
	}
	return time.Until(crt.NotAfter) > clientCertRenewBefore
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// ConfigHash returns the digest recorded for an applied machine config.
func ConfigHash(machineConfig []byte) string {
	return digest.Sum(machineConfig)
}
