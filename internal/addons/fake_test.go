package addons

import (
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// fakeKube records calls and keeps namespaces and secrets in memory.
type fakeKube struct {
	mu         sync.Mutex
	namespaces map[string]map[string]string
	secrets    map[string]*corev1.Secret
	applied    [][]byte
	refreshes  int
	applyErr   error
}

func newFakeKube() *fakeKube {
	return &fakeKube{
		namespaces: map[string]map[string]string{},
		secrets:    map[string]*corev1.Secret{},
	}
}

func (f *fakeKube) EnsureNamespace(_ context.Context, name string, labels map[string]string) (change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.namespaces[name]; ok {
		return change.Unchanged, nil
	}
	f.namespaces[name] = labels
	return change.Created, nil
}

func (f *fakeKube) EnsureSecret(_ context.Context, s *corev1.Secret) (change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := s.Namespace + "/" + s.Name
	prev, ok := f.secrets[key]
	f.secrets[key] = s.DeepCopy()
	switch {
	case !ok:
		return change.Created, nil
	case equalStringData(prev.StringData, s.StringData):
		return change.Unchanged, nil
	default:
		return change.Updated, nil
	}
}

func equalStringData(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeKube) GetSecret(_ context.Context, namespace, name string) (*corev1.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.secrets[namespace+"/"+name]
	if !ok {
		return nil, apierrors.NewNotFound(schema.GroupResource{Resource: "secrets"}, name)
	}
	return s.DeepCopy(), nil
}

func (f *fakeKube) ApplyManifests(_ context.Context, manifests []byte, _ string) (change.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return "", f.applyErr
	}
	f.applied = append(f.applied, manifests)
	if len(f.applied) == 1 {
		return change.Created, nil
	}
	return change.Unchanged, nil
}

func (f *fakeKube) RefreshDiscovery(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

// fakeHelm records releases and reports Unchanged for a repeated digest.
type fakeHelm struct {
	releases []helm.Release
	digests  map[string]string
}

func (f *fakeHelm) InstallOrUpgrade(_ context.Context, rel helm.Release) (helm.Result, error) {
	f.releases = append(f.releases, rel)
	d, err := helm.Digest(rel.Chart.Name, rel.Chart.Version, rel.Values)
	if err != nil {
		return helm.Result{}, err
	}
	if f.digests == nil {
		f.digests = map[string]string{}
	}
	prev, ok := f.digests[rel.Name]
	f.digests[rel.Name] = d
	switch {
	case !ok:
		return helm.Result{Action: change.Created, Revision: 1, Digest: d}, nil
	case prev == d:
		return helm.Result{Action: change.Unchanged, Revision: len(f.releases) - 1, Digest: d}, nil
	default:
		return helm.Result{Action: change.Updated, Revision: len(f.releases), Digest: d}, nil
	}
}
