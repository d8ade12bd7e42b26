package k8sclient

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// Client provides the Kubernetes operations of the workload initializer.
type Client interface {
	// EnsureNamespace creates the namespace or brings its labels up to date.
	// Labels not listed are left alone.
	EnsureNamespace(ctx context.Context, name string, labels map[string]string) (change.Action, error)

	// EnsureSecret creates the secret or replaces its data when it differs.
	// StringData is folded into Data before comparing.
	EnsureSecret(ctx context.Context, secret *corev1.Secret) (change.Action, error)

	// GetSecret reads a secret. The error satisfies apierrors.IsNotFound when
	// the secret does not exist.
	GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error)

	// ApplyManifests server-side applies every object in a multi-document
	// YAML stream under fieldManager.
	ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) (change.Action, error)

	// RefreshDiscovery drops cached API discovery so kinds registered since
	// the client was built (CRDs from a chart) become resolvable.
	RefreshDiscovery(ctx context.Context) error
}

type client struct {
	core   kubernetes.Interface
	dyn    dynamic.Interface
	mapper meta.RESTMapper

	// invalidate is nil for clients built from fakes.
	invalidate func()
}

// NewFromKubeconfig builds a Client from raw kubeconfig bytes. Kinds are
// resolved lazily through a cached discovery client.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	rc, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	core, err := kubernetes.NewForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	dc, err := discovery.NewDiscoveryClientForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(dc))
	return &client{
		core:       core,
		dyn:        dyn,
		mapper:     mapper,
		invalidate: mapper.Reset,
	}, nil
}

// NewFromClients wraps existing clients, typically fakes, with a fixed mapper.
func NewFromClients(core kubernetes.Interface, dyn dynamic.Interface, mapper meta.RESTMapper) Client {
	return &client{core: core, dyn: dyn, mapper: mapper}
}

func (c *client) RefreshDiscovery(context.Context) error {
	if c.invalidate != nil {
		c.invalidate()
	}
	return nil
}

// actionRank orders actions by how much they say about a batch: one
// creation outweighs any number of updates.
var actionRank = map[change.Action]int{
	change.Unchanged: 1,
	change.Updated:   2,
	change.Created:   3,
}

func strongest(a, b change.Action) change.Action {
	if actionRank[b] > actionRank[a] {
		return b
	}
	return a
}
