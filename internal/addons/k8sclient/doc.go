// Package k8sclient wraps k8s.io/client-go for the workload initializer:
// labelled namespaces, exact-data secrets and Server-Side Apply of
// multi-document YAML, all built directly from kubeconfig bytes.
//
// Every mutating call reports a change.Action so a repeated run can prove it
// changed nothing.
package k8sclient
