// Package talos generates the single-node Talos machine configuration and
// drives the node through its lifecycle.
//
// The generator renders a control plane config from a persisted secrets
// bundle, patched so workloads schedule on the control plane, the Elastic IP
// is a certificate SAN, time comes from the AWS time sync service, and
// KubePrism is on. The node client applies that config (falling back to the
// insecure maintenance API on first boot), bootstraps etcd, waits for the
// cluster to become healthy, and retrieves the admin kubeconfig.
//
// Talos addresses two things separately: the endpoint is the public Elastic
// IP the client dials, the node is the private IP the machine knows itself
// by. Every call that targets a node sets both.
package talos
