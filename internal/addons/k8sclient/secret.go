package k8sclient

import (
	"bytes"
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// EnsureSecret writes the secret so that its data is exactly as specified
// (not merged). An existing secret with identical data, type and labels is
// left untouched.
func (c *client) EnsureSecret(ctx context.Context, secret *corev1.Secret) (change.Action, error) {
	if secret.Namespace == "" {
		return "", fmt.Errorf("secret namespace is required")
	}
	if secret.Name == "" {
		return "", fmt.Errorf("secret name is required")
	}

	desired := normalizeSecret(secret)
	secretsClient := c.core.CoreV1().Secrets(secret.Namespace)

	existing, err := secretsClient.Get(ctx, secret.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := secretsClient.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", fmt.Errorf("failed to create secret %s/%s: %w",
				secret.Namespace, secret.Name, err)
		}
		return change.Created, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s/%s: %w", secret.Namespace, secret.Name, err)
	}

	if secretDataEqual(existing.Data, desired.Data) &&
		existing.Type == desired.Type &&
		labelsSatisfied(existing.Labels, desired.Labels) {
		return change.Unchanged, nil
	}

	if existing.Type != desired.Type {
		// The type of a secret is immutable.
		if err := secretsClient.Delete(ctx, secret.Name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
			return "", fmt.Errorf("failed to delete existing secret %s/%s: %w",
				secret.Namespace, secret.Name, err)
		}
		if _, err := secretsClient.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", fmt.Errorf("failed to create secret %s/%s: %w",
				secret.Namespace, secret.Name, err)
		}
		return change.Updated, nil
	}

	existing.Data = desired.Data
	existing.StringData = nil
	if existing.Labels == nil {
		existing.Labels = make(map[string]string, len(desired.Labels))
	}
	for k, v := range desired.Labels {
		existing.Labels[k] = v
	}
	if _, err := secretsClient.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return "", fmt.Errorf("failed to update secret %s/%s: %w", secret.Namespace, secret.Name, err)
	}
	return change.Updated, nil
}

// GetSecret reads a secret.
func (c *client) GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if name == "" {
		return nil, fmt.Errorf("secret name is required")
	}

	secret, err := c.core.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	return secret, nil
}

// normalizeSecret folds StringData into Data the way the API server does and
// defaults the type to Opaque.
func normalizeSecret(in *corev1.Secret) *corev1.Secret {
	out := in.DeepCopy()
	if len(out.StringData) > 0 {
		if out.Data == nil {
			out.Data = make(map[string][]byte, len(out.StringData))
		}
		for k, v := range out.StringData {
			out.Data[k] = []byte(v)
		}
		out.StringData = nil
	}
	if out.Type == "" {
		out.Type = corev1.SecretTypeOpaque
	}
	return out
}

func secretDataEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !bytes.Equal(v, w) {
			return false
		}
	}
	return true
}
