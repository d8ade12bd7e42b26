package provisioning

import (
	"context"

	"github.com/faulty-technology/homelab/internal/addons/helm"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// Cloud creates the network, identity and compute resources.
// Implemented by *aws.Client.
type Cloud interface {
	LookupImage(ctx context.Context, owner, pattern string) (aws.Image, error)

	EnsureVPC(ctx context.Context, knownID string, tags map[string]string) (string, change.Action, error)
	EnsureSubnet(ctx context.Context, vpcID, knownID string, tags map[string]string) (string, change.Action, error)
	EnsureInternetGateway(ctx context.Context, vpcID, knownID string, tags map[string]string) (string, change.Action, error)
	EnsureRouteTable(ctx context.Context, vpcID, igwID, subnetID, knownID string, tags map[string]string) (aws.RouteTable, change.Action, error)
	EnsureSecurityGroup(ctx context.Context, vpcID, knownID string, cidrs []string, tags map[string]string) (string, change.Action, error)

	EnsureRole(ctx context.Context, name string, tags map[string]string) (string, change.Action, error)
	EnsureRolePolicy(ctx context.Context, roleName string, policy aws.InlinePolicy) (change.Action, error)
	EnsureInstanceProfile(ctx context.Context, name, roleName string, tags map[string]string) (aws.InstanceProfile, change.Action, error)

	EnsureElasticIP(ctx context.Context, knownID string, tags map[string]string) (aws.ElasticIP, change.Action, error)
	EnsureInstance(ctx context.Context, knownID string, spec aws.InstanceSpec) (aws.Instance, change.Action, error)
	EnsureAddressAssociation(ctx context.Context, allocationID, instanceID string) (string, change.Action, error)
}

// BucketManager converges the etcd backup bucket. Implemented by *s3.Client.
type BucketManager interface {
	EnsureBackupBucket(ctx context.Context, name string, tags map[string]string) (change.Action, error)
}

// TalosNode drives the Talos machine API of the node. Implemented by *talos.Node.
type TalosNode interface {
	ApplyConfig(ctx context.Context, machineConfig []byte) (talos.ApplyMode, error)
	Bootstrap(ctx context.Context) (bool, error)
	WaitHealthy(ctx context.Context) (string, error)
	Kubeconfig(ctx context.Context) ([]byte, error)
}

// NodeFactory connects to the node at address through endpoint using the
// credentials in talosconfig.
type NodeFactory func(talosconfig []byte, endpoint, address string) (TalosNode, error)

// Workloads initializes the cluster workloads. Implemented by *addons.Initializer.
type Workloads interface {
	EnsureNamespaces(ctx context.Context) error
	EnsureSecrets(ctx context.Context) error
	InstallArgoCD(ctx context.Context) (helm.Result, error)
	ApplyRootApp(ctx context.Context) (change.Action, error)
	AdminPassword(ctx context.Context) (string, error)
}

// WorkloadsFactory builds Workloads for the cluster reachable with kubeconfig.
type WorkloadsFactory func(kubeconfig []byte, changes change.Recorder) (Workloads, error)

// Platform bundles the backends a Plan drives.
type Platform struct {
	Cloud        Cloud
	Bucket       BucketManager
	NewNode      NodeFactory
	NewWorkloads WorkloadsFactory
}
