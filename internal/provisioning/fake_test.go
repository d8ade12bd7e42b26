package provisioning

import (
	"context"
	stdx509 "crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/siderolabs/crypto/x509"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
)

const (
	testPublicIP  = "203.0.113.10"
	testPrivateIP = "10.0.1.10"
)

// fakeCloud creates a resource when no identifier is known and reports it
// unchanged otherwise.
type fakeCloud struct {
	mu       sync.Mutex
	created  map[string]int
	cidrs    []string
	policies map[string]bool
	failOn   string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{created: map[string]int{}, policies: map[string]bool{}}
}

func (f *fakeCloud) ensure(kind, knownID string) (string, change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == kind {
		return "", "", fmt.Errorf("%s: UnauthorizedOperation", kind)
	}
	if knownID != "" {
		return knownID, change.Unchanged, nil
	}
	f.created[kind]++
	return fmt.Sprintf("%s-%d", kind, f.created[kind]), change.Created, nil
}

func (f *fakeCloud) LookupImage(context.Context, string, string) (aws.Image, error) {
	return aws.Image{ID: "ami-talos", Name: "talos-v1.12.4-amd64", RootDeviceName: "/dev/xvda"}, nil
}

func (f *fakeCloud) EnsureVPC(_ context.Context, knownID string, _ map[string]string) (string, change.Action, error) {
	return f.ensure("vpc", knownID)
}

func (f *fakeCloud) EnsureSubnet(_ context.Context, _, knownID string, _ map[string]string) (string, change.Action, error) {
	return f.ensure("subnet", knownID)
}

func (f *fakeCloud) EnsureInternetGateway(_ context.Context, _, knownID string, _ map[string]string) (string, change.Action, error) {
	return f.ensure("igw", knownID)
}

func (f *fakeCloud) EnsureRouteTable(_ context.Context, _, _, _, knownID string, _ map[string]string) (aws.RouteTable, change.Action, error) {
	id, action, err := f.ensure("rtb", knownID)
	return aws.RouteTable{ID: id, AssociationID: "rtbassoc-1"}, action, err
}

func (f *fakeCloud) EnsureSecurityGroup(_ context.Context, _, knownID string, cidrs []string, _ map[string]string) (string, change.Action, error) {
	f.mu.Lock()
	f.cidrs = cidrs
	f.mu.Unlock()
	return f.ensure("sg", knownID)
}

func (f *fakeCloud) EnsureRole(_ context.Context, name string, _ map[string]string) (string, change.Action, error) {
	_, action, err := f.ensure("role", f.existing("role", name))
	return name, action, err
}

func (f *fakeCloud) EnsureRolePolicy(_ context.Context, _ string, policy aws.InlinePolicy) (change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.policies[policy.Name] {
		return change.Unchanged, nil
	}
	f.policies[policy.Name] = true
	return change.Created, nil
}

func (f *fakeCloud) EnsureInstanceProfile(_ context.Context, name, _ string, _ map[string]string) (aws.InstanceProfile, change.Action, error) {
	_, action, err := f.ensure("profile", f.existing("profile", name))
	return aws.InstanceProfile{Name: name, ARN: "arn:aws:iam::123456789012:instance-profile/" + name}, action, err
}

// existing returns name when a resource of kind was created before.
func (f *fakeCloud) existing(kind, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created[kind] > 0 {
		return name
	}
	return ""
}

func (f *fakeCloud) EnsureElasticIP(_ context.Context, knownID string, _ map[string]string) (aws.ElasticIP, change.Action, error) {
	id, action, err := f.ensure("eipalloc", knownID)
	return aws.ElasticIP{AllocationID: id, PublicIP: testPublicIP}, action, err
}

func (f *fakeCloud) EnsureInstance(_ context.Context, knownID string, _ aws.InstanceSpec) (aws.Instance, change.Action, error) {
	id, action, err := f.ensure("i", knownID)
	return aws.Instance{ID: id, PrivateIP: testPrivateIP}, action, err
}

func (f *fakeCloud) EnsureAddressAssociation(_ context.Context, _, _ string) (string, change.Action, error) {
	_, action, err := f.ensure("eipassoc", f.existing("eipassoc", "eipassoc-1"))
	return "eipassoc-1", action, err
}

type fakeBucket struct {
	mu      sync.Mutex
	buckets map[string]bool
}

func (f *fakeBucket) EnsureBackupBucket(_ context.Context, name string, _ map[string]string) (change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets == nil {
		f.buckets = map[string]bool{}
	}
	if f.buckets[name] {
		return change.Unchanged, nil
	}
	f.buckets[name] = true
	return change.Created, nil
}

// callLog records backend calls in order across all fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeNode struct {
	log          *callLog
	secretsPath  string
	endpoint     string
	address      string
	bootstrapped bool
	healthErr    error
}

func (n *fakeNode) ApplyConfig(_ context.Context, data []byte) (talos.ApplyMode, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty machine config")
	}
	n.log.add("apply")
	return talos.ApplyModeMaintenance, nil
}

func (n *fakeNode) Bootstrap(context.Context) (bool, error) {
	n.log.add("bootstrap")
	return true, nil
}

func (n *fakeNode) WaitHealthy(context.Context) (string, error) {
	n.log.add("health")
	if n.healthErr != nil {
		return "", n.healthErr
	}
	return n.endpoint, nil
}

// Kubeconfig signs a new client certificate on every call, as a node does.
func (n *fakeNode) Kubeconfig(context.Context) ([]byte, error) {
	n.log.add("kubeconfig@" + n.endpoint)
	sb, err := talos.LoadSecrets(n.secretsPath)
	if err != nil {
		return nil, err
	}
	return issueKubeconfig(sb, n.endpoint, 365*24*time.Hour)
}

// issueKubeconfig builds an admin kubeconfig for the cluster endpoint on host
// with a client certificate from the bundle's Kubernetes CA.
func issueKubeconfig(sb *talos.SecretsBundle, host string, lifetime time.Duration) ([]byte, error) {
	ca, err := x509.NewCertificateAuthorityFromCertificateAndKey(sb.Certs.K8s)
	if err != nil {
		return nil, err
	}
	kp, err := x509.NewKeyPair(ca,
		x509.CommonName("admin"),
		x509.Organization("system:masters"),
		x509.NotAfter(time.Now().Add(lifetime)),
		x509.ExtKeyUsage([]stdx509.ExtKeyUsage{stdx509.ExtKeyUsageClientAuth}),
	)
	if err != nil {
		return nil, err
	}
	crt := x509.NewCertificateAndKeyFromKeyPair(kp)

	return clientcmd.Write(clientcmdapi.Config{
		Clusters: map[string]*clientcmdapi.Cluster{
			"homelab": {Server: talos.ClusterEndpoint(host), CertificateAuthorityData: sb.Certs.K8s.Crt},
		},
		AuthInfos: map[string]*clientcmdapi.AuthInfo{
			"admin@homelab": {ClientCertificateData: crt.Crt, ClientKeyData: crt.Key},
		},
		Contexts: map[string]*clientcmdapi.Context{
			"admin@homelab": {Cluster: "homelab", AuthInfo: "admin@homelab", Namespace: "default"},
		},
		CurrentContext: "admin@homelab",
	})
}

// fakeWorkloads remembers what was created across runs.
type fakeWorkloads struct {
	mu        sync.Mutex
	log       *callLog
	changes   change.Recorder
	installed bool
	applied   bool
	nsDone    bool
}

func (w *fakeWorkloads) EnsureNamespaces(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.add("namespaces")
	w.changes.Add("namespace:argocd", actionFor(&w.nsDone))
	return nil
}

func (w *fakeWorkloads) EnsureSecrets(context.Context) error {
	w.log.add("secrets")
	w.changes.Add("secret:argocd/argocd-repo-github-app", change.Skipped)
	return nil
}

func (w *fakeWorkloads) InstallArgoCD(context.Context) (helm.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.add("argocd")
	action := actionFor(&w.installed)
	w.changes.Add("helm:argocd", action)
	return helm.Result{Action: action, Revision: 1, Digest: "digest-1"}, nil
}

func (w *fakeWorkloads) ApplyRootApp(context.Context) (change.Action, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.add("root-app")
	action := actionFor(&w.applied)
	w.changes.Add("argocd:root-app", action)
	return action, nil
}

func (w *fakeWorkloads) AdminPassword(context.Context) (string, error) {
	w.log.add("admin-password")
	return "initial-password", nil
}

// actionFor reports Created the first time and Unchanged afterwards.
func actionFor(done *bool) change.Action {
	if *done {
		return change.Unchanged
	}
	*done = true
	return change.Created
}

// fakePlatform wires the fakes together.
type fakePlatform struct {
	log         *callLog
	secretsPath string
	cloud       *fakeCloud
	bucket      *fakeBucket
	workloads   *fakeWorkloads
	nodes       []*fakeNode
	healthErr   error
}

func newFakePlatform(cfg *config.Config) *fakePlatform {
	log := &callLog{}
	return &fakePlatform{
		log:         log,
		secretsPath: state.NewStore(cfg.StateDir).SecretsPath(),
		cloud:       newFakeCloud(),
		bucket:      &fakeBucket{},
		workloads:   &fakeWorkloads{log: log},
	}
}

func (f *fakePlatform) platform() Platform {
	var mu sync.Mutex
	return Platform{
		Cloud:  f.cloud,
		Bucket: f.bucket,
		NewNode: func(talosconfig []byte, endpoint, address string) (TalosNode, error) {
			if len(talosconfig) == 0 {
				return nil, fmt.Errorf("empty talosconfig")
			}
			mu.Lock()
			defer mu.Unlock()
			n := &fakeNode{log: f.log, secretsPath: f.secretsPath, endpoint: endpoint, address: address, healthErr: f.healthErr}
			f.nodes = append(f.nodes, n)
			return n, nil
		},
		NewWorkloads: func(kubeconfig []byte, changes change.Recorder) (Workloads, error) {
			if len(kubeconfig) == 0 {
				return nil, fmt.Errorf("empty kubeconfig")
			}
			f.workloads.changes = changes
			return f.workloads, nil
		},
	}
}
