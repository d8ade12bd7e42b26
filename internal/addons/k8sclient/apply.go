package k8sclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// ApplyManifests reports Created if any object was new, Updated if any
// object's resourceVersion moved, and Unchanged otherwise. Empty documents
// are ignored. Nothing is applied when any document fails to decode.
func (c *client) ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) (change.Action, error) {
	objs, err := decodeManifests(manifests)
	if err != nil {
		return "", err
	}

	result := change.Unchanged
	for _, obj := range objs {
		action, err := c.apply(ctx, obj, fieldManager)
		if err != nil {
			return "", fmt.Errorf("failed to apply %s %s/%s: %w", obj.GetKind(), obj.GetNamespace(), obj.GetName(), err)
		}
		result = strongest(result, action)
	}
	return result, nil
}

func decodeManifests(manifests []byte) ([]*unstructured.Unstructured, error) {
	dec := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifests), 4096)

	var objs []*unstructured.Unstructured
	for doc := 0; ; doc++ {
		obj := &unstructured.Unstructured{}
		err := dec.Decode(obj)
		if errors.Is(err, io.EOF) {
			return objs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest document %d: %w", doc, err)
		}
		if len(obj.Object) > 0 {
			objs = append(objs, obj)
		}
	}
}

// resourceFor resolves the dynamic endpoint serving obj. Namespaced objects
// without a namespace land in "default".
func (c *client) resourceFor(obj *unstructured.Unstructured) (dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" {
		return nil, errors.New("object has no kind set")
	}
	if c.mapper == nil {
		return nil, errors.New("no REST mapper available")
	}

	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}

	nri := c.dyn.Resource(mapping.Resource)
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return nri, nil
	}
	ns := obj.GetNamespace()
	if ns == "" {
		ns = "default"
	}
	return nri.Namespace(ns), nil
}

func (c *client) apply(ctx context.Context, obj *unstructured.Unstructured, fieldManager string) (change.Action, error) {
	res, err := c.resourceFor(obj)
	if err != nil {
		return "", err
	}

	before := ""
	current, err := res.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return "", fmt.Errorf("failed to read current object: %w", err)
	}
	if err == nil {
		before = current.GetResourceVersion()
	}

	body, err := obj.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode object: %w", err)
	}
	after, err := res.Patch(ctx, obj.GetName(), types.ApplyPatchType, body, metav1.PatchOptions{FieldManager: fieldManager})
	if err != nil {
		return "", fmt.Errorf("server-side apply failed: %w", err)
	}

	switch {
	case before == "":
		return change.Created, nil
	case after.GetResourceVersion() != before:
		return change.Updated, nil
	}
	return change.Unchanged, nil
}
