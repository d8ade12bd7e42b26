package talos

import (
	"fmt"

	"github.com/siderolabs/talos/pkg/machinery/config/configpatcher"
	"gopkg.in/yaml.v3"
)

// Node-level settings of the single-node cluster.
const (
	// AWSTimeServer is the Amazon Time Sync Service link-local address.
	AWSTimeServer = "169.254.169.123"
	KubePrismPort = 7445
)

// buildSingleNodePatch builds the strategic merge patch applied on top of the
// generated control plane config.
func buildSingleNodePatch(publicIP string) map[string]any {
	return map[string]any{
		"cluster": map[string]any{
			"allowSchedulingOnControlPlanes": true,
		},
		"machine": map[string]any{
			"certSANs": []string{publicIP},
			"time": map[string]any{
				"servers": []string{AWSTimeServer},
			},
			"features": map[string]any{
				"kubePrism": map[string]any{
					"enabled": true,
					"port":    KubePrismPort,
				},
			},
		},
	}
}

// loadPatches renders patch maps and loads them as Talos config patches.
func loadPatches(patches ...map[string]any) ([]configpatcher.Patch, error) {
	raw := make([]string, 0, len(patches))
	for _, p := range patches {
		data, err := yaml.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config patch: %w", err)
		}
		raw = append(raw, string(data))
	}
	loaded, err := configpatcher.LoadPatches(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load config patch: %w", err)
	}
	return loaded, nil
}
