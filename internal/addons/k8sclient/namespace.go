package k8sclient

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/faulty-technology/homelab/internal/util/change"
)

func (c *client) EnsureNamespace(ctx context.Context, name string, labels map[string]string) (change.Action, error) {
	if name == "" {
		return "", fmt.Errorf("namespace name is required")
	}

	namespaces := c.core.CoreV1().Namespaces()

	existing, err := namespaces.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		ns := &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{Name: name, Labels: copyLabels(labels)},
		}
		if _, err := namespaces.Create(ctx, ns, metav1.CreateOptions{}); err != nil {
			if apierrors.IsAlreadyExists(err) {
				return c.EnsureNamespace(ctx, name, labels)
			}
			return "", fmt.Errorf("failed to create namespace %s: %w", name, err)
		}
		return change.Created, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get namespace %s: %w", name, err)
	}

	if labelsSatisfied(existing.Labels, labels) {
		return change.Unchanged, nil
	}

	if existing.Labels == nil {
		existing.Labels = make(map[string]string, len(labels))
	}
	for k, v := range labels {
		existing.Labels[k] = v
	}
	if _, err := namespaces.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return "", fmt.Errorf("failed to update namespace %s labels: %w", name, err)
	}
	return change.Updated, nil
}

func labelsSatisfied(have, want map[string]string) bool {
	for k, v := range want {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func copyLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
