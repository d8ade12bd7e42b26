package helm

import (
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// kubeconfigGetter satisfies Helm's RESTClientGetter from kubeconfig bytes
// held in memory, so the admin kubeconfig never touches disk. The release
// namespace wins over whatever the kubeconfig context selects.
type kubeconfigGetter struct {
	raw       *clientcmdapi.Config
	parseErr  error
	namespace string

	restConfig func() (*rest.Config, error)
	discovery  func() (discovery.CachedDiscoveryInterface, error)
}

func newKubeconfigGetter(kubeconfig []byte, namespace string) *kubeconfigGetter {
	g := &kubeconfigGetter{namespace: namespace}
	g.raw, g.parseErr = clientcmd.Load(kubeconfig)
	if g.parseErr != nil {
		g.raw = clientcmdapi.NewConfig()
	}

	g.restConfig = sync.OnceValues(func() (*rest.Config, error) {
		if g.parseErr != nil {
			return nil, fmt.Errorf("invalid kubeconfig: %w", g.parseErr)
		}
		return g.ToRawKubeConfigLoader().ClientConfig()
	})
	g.discovery = sync.OnceValues(func() (discovery.CachedDiscoveryInterface, error) {
		rc, err := g.restConfig()
		if err != nil {
			return nil, err
		}
		dc, err := discovery.NewDiscoveryClientForConfig(rc)
		if err != nil {
			return nil, err
		}
		return memory.NewMemCacheClient(dc), nil
	})
	return g
}

func (g *kubeconfigGetter) ToRESTConfig() (*rest.Config, error) {
	return g.restConfig()
}

// ToDiscoveryClient caches discovery for the lifetime of the getter.
func (g *kubeconfigGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	return g.discovery()
}

func (g *kubeconfigGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.discovery()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

func (g *kubeconfigGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	overrides := &clientcmd.ConfigOverrides{}
	overrides.Context.Namespace = g.namespace
	return clientcmd.NewDefaultClientConfig(*g.raw, overrides)
}
