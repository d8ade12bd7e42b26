package provisioning

import (
	"context"

	"github.com/faulty-technology/homelab/internal/addons"
	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/addons/k8sclient"
	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/s3"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// NewPlatform builds the production backends from configuration.
func NewPlatform(ctx context.Context, cfg *config.Config, timeouts *config.Timeouts) (Platform, error) {
	awsCfg, err := aws.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return Platform{}, err
	}

	return Platform{
		Cloud:  aws.NewClient(awsCfg, timeouts),
		Bucket: s3.NewClient(awsCfg),
		NewNode: func(talosconfig []byte, endpoint, address string) (TalosNode, error) {
			node, err := talos.NewNode(talosconfig, endpoint, address, timeouts)
			if err != nil {
				return nil, err
			}
			return node, nil
		},
		NewWorkloads: func(kubeconfig []byte, changes change.Recorder) (Workloads, error) {
			kube, err := k8sclient.NewFromKubeconfig(kubeconfig)
			if err != nil {
				return nil, err
			}
			h, err := helm.NewClient(kubeconfig, addons.NamespaceArgoCD)
			if err != nil {
				return nil, err
			}
			return addons.NewInitializer(cfg, kube, h, timeouts, changes), nil
		},
	}, nil
}
