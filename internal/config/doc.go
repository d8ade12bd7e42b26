// Package config defines the operator-facing configuration of the homelab
// cluster and loads it from homelab.yaml, HOMELAB_* environment variables and
// command-line flags.
//
// The [Config] struct is the single source of desired state for every
// provisioning step: resource naming, instance sizing, the inbound allow-list,
// version pins and the optional credential values that gate Kubernetes
// secrets.
package config
