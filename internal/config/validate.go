package config

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MinRootVolumeSize is the smallest root volume Talos installs onto, in GiB.
const MinRootVolumeSize = 8

// clusterNamePattern keeps the name usable as an S3 bucket prefix and in AWS Name tags.
var clusterNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,38}[a-z0-9])?$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("%w: clusterName is required", ErrInvalid)
	}
	if !clusterNamePattern.MatchString(c.ClusterName) {
		return fmt.Errorf("%w: clusterName %q must be lowercase alphanumeric or '-', at most 40 characters", ErrInvalid, c.ClusterName)
	}
	if c.InstanceType == "" {
		return fmt.Errorf("%w: instanceType is required", ErrInvalid)
	}
	if c.RootVolumeSize < MinRootVolumeSize {
		return fmt.Errorf("%w: rootVolumeSize must be at least %d GiB, got %d", ErrInvalid, MinRootVolumeSize, c.RootVolumeSize)
	}
	if err := ValidateCIDRs(c.AllowedCIDRs); err != nil {
		return err
	}
	if c.Talos.Version == "" {
		return fmt.Errorf("%w: talos.version is required", ErrInvalid)
	}
	if c.Kubernetes.Version == "" {
		return fmt.Errorf("%w: kubernetes.version is required", ErrInvalid)
	}
	if c.ArgoCD.ChartVersion == "" || c.ArgoCD.RepoURL == "" {
		return fmt.Errorf("%w: argocd.chartVersion and argocd.repoUrl are required", ErrInvalid)
	}
	return nil
}

// ValidateCIDRs requires a non-empty list of parseable IPv4 prefixes.
// An unrestricted rule is only ever the result of an explicit 0.0.0.0/0 entry.
func ValidateCIDRs(cidrs []string) error {
	if len(cidrs) == 0 {
		return fmt.Errorf("%w: allowedCidrs must contain at least one CIDR", ErrInvalid)
	}
	seen := make(map[string]bool, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return fmt.Errorf("%w: allowedCidrs entry %q: %v", ErrInvalid, cidr, err)
		}
		if !prefix.Addr().Is4() {
			return fmt.Errorf("%w: allowedCidrs entry %q is not IPv4", ErrInvalid, cidr)
		}
		if prefix.Masked() != prefix {
			return fmt.Errorf("%w: allowedCidrs entry %q has host bits set", ErrInvalid, cidr)
		}
		if seen[cidr] {
			return fmt.Errorf("%w: allowedCidrs entry %q is duplicated", ErrInvalid, cidr)
		}
		seen[cidr] = true
	}
	return nil
}
