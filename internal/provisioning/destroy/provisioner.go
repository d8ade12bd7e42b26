package destroy

import (
	"context"
	"fmt"
	"time"

	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
)

const phase = "destroy"

// Cloud deletes EC2 and IAM resources. Every method reports change.Deleted,
// or change.Unchanged when the resource was already gone.
type Cloud interface {
	DeleteAddressAssociation(ctx context.Context, associationID string) (change.Action, error)
	DeleteInstance(ctx context.Context, instanceID string) (change.Action, error)
	DeleteElasticIP(ctx context.Context, allocationID string) (change.Action, error)
	DeleteInstanceProfile(ctx context.Context, name string) (change.Action, error)
	DeleteRole(ctx context.Context, name string) (change.Action, error)
	DeleteSecurityGroup(ctx context.Context, groupID string) (change.Action, error)
	DeleteRouteTable(ctx context.Context, rt aws.RouteTable) (change.Action, error)
	DeleteInternetGateway(ctx context.Context, igwID, vpcID string) (change.Action, error)
	DeleteSubnet(ctx context.Context, subnetID string) (change.Action, error)
	DeleteVPC(ctx context.Context, vpcID string) (change.Action, error)
}

// Buckets empties and deletes the backup bucket.
type Buckets interface {
	EmptyBucket(ctx context.Context, name string) (int, error)
	DeleteBucket(ctx context.Context, name string) (change.Action, error)
}

// Options controls what is removed.
type Options struct {
	// DeleteBackups empties and deletes the etcd backup bucket.
	DeleteBackups bool
}

// Provisioner handles cluster destruction.
type Provisioner struct {
	cloud   Cloud
	buckets Buckets
	opts    Options
}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner(cloud Cloud, buckets Buckets, opts Options) *Provisioner {
	return &Provisioner{cloud: cloud, buckets: buckets, opts: opts}
}

// step deletes one recorded resource. id reads the identifier from state;
// an empty identifier means there is nothing to delete.
type step struct {
	resource string
	id       func(st *state.State) string
	delete   func(ctx context.Context, st state.State) (change.Action, error)
	clear    func(st *state.State)
}

func (p *Provisioner) steps() []step {
	return []step{
		{
			resource: "aws:eip-association",
			id:       func(st *state.State) string { return st.AWS.AssociationID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteAddressAssociation(ctx, st.AWS.AssociationID)
			},
			clear: func(st *state.State) { st.AWS.AssociationID = "" },
		},
		{
			resource: "aws:instance",
			id:       func(st *state.State) string { return st.AWS.InstanceID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteInstance(ctx, st.AWS.InstanceID)
			},
			clear: func(st *state.State) {
				st.AWS.InstanceID = ""
				st.AWS.PrivateIP = ""
				st.AWS.AMIID = ""
				st.AWS.AMIName = ""
				st.Talos = state.TalosState{}
				st.Kubernetes = state.KubernetesState{}
			},
		},
		{
			resource: "aws:elastic-ip",
			id:       func(st *state.State) string { return st.AWS.AllocationID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteElasticIP(ctx, st.AWS.AllocationID)
			},
			clear: func(st *state.State) {
				st.AWS.AllocationID = ""
				st.AWS.PublicIP = ""
			},
		},
		{
			resource: "aws:instance-profile",
			id:       func(st *state.State) string { return st.AWS.InstanceProfileName },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteInstanceProfile(ctx, st.AWS.InstanceProfileName)
			},
			clear: func(st *state.State) {
				st.AWS.InstanceProfileName = ""
				st.AWS.InstanceProfileARN = ""
			},
		},
		{
			resource: "aws:instance-role",
			id:       func(st *state.State) string { return st.AWS.RoleName },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteRole(ctx, st.AWS.RoleName)
			},
			clear: func(st *state.State) { st.AWS.RoleName = "" },
		},
		{
			resource: "aws:security-group",
			id:       func(st *state.State) string { return st.AWS.SecurityGroupID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteSecurityGroup(ctx, st.AWS.SecurityGroupID)
			},
			clear: func(st *state.State) { st.AWS.SecurityGroupID = "" },
		},
		{
			resource: "aws:route-table",
			id:       func(st *state.State) string { return st.AWS.RouteTableID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteRouteTable(ctx, aws.RouteTable{
					ID:            st.AWS.RouteTableID,
					AssociationID: st.AWS.RouteTableAssociationID,
				})
			},
			clear: func(st *state.State) {
				st.AWS.RouteTableID = ""
				st.AWS.RouteTableAssociationID = ""
			},
		},
		{
			resource: "aws:internet-gateway",
			id:       func(st *state.State) string { return st.AWS.InternetGatewayID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteInternetGateway(ctx, st.AWS.InternetGatewayID, st.AWS.VPCID)
			},
			clear: func(st *state.State) { st.AWS.InternetGatewayID = "" },
		},
		{
			resource: "aws:subnet",
			id:       func(st *state.State) string { return st.AWS.SubnetID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteSubnet(ctx, st.AWS.SubnetID)
			},
			clear: func(st *state.State) { st.AWS.SubnetID = "" },
		},
		{
			resource: "aws:vpc",
			id:       func(st *state.State) string { return st.AWS.VPCID },
			delete: func(ctx context.Context, st state.State) (change.Action, error) {
				return p.cloud.DeleteVPC(ctx, st.AWS.VPCID)
			},
			clear: func(st *state.State) { st.AWS.VPCID = "" },
		},
	}
}

// Provision destroys the cluster resources recorded in ctx.State. It stops
// at the first failure; resources deleted up to that point are already
// cleared from state.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	start := time.Now()
	provisioning.LogPhaseStart(ctx.Observer, phase)

	steps := p.steps()
	for i, s := range steps {
		ctx.Observer.Progress(phase, i, len(steps)+1)
		if err := p.run(ctx, s); err != nil {
			provisioning.LogPhaseFailed(ctx.Observer, phase, err)
			return err
		}
	}

	ctx.Observer.Progress(phase, len(steps), len(steps)+1)
	if err := p.backups(ctx); err != nil {
		provisioning.LogPhaseFailed(ctx.Observer, phase, err)
		return err
	}

	provisioning.LogPhaseComplete(ctx.Observer, phase, time.Since(start))
	return nil
}

func (p *Provisioner) run(ctx *provisioning.Context, s step) error {
	snapshot := ctx.State.Snapshot()
	if s.id(&snapshot) == "" {
		return nil
	}

	action, err := s.delete(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.resource, err)
	}
	if err := ctx.State.Update(s.clear); err != nil {
		return fmt.Errorf("failed to save state after deleting %s: %w", s.resource, err)
	}
	ctx.Record(phase, s.resource, action)
	return nil
}

func (p *Provisioner) backups(ctx *provisioning.Context) error {
	var bucket string
	ctx.State.Read(func(st *state.State) { bucket = st.AWS.BucketName })
	if bucket == "" {
		return nil
	}

	if !p.opts.DeleteBackups {
		ctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceSkipped,
			Phase:    phase,
			Resource: "s3:backup-bucket",
			Message:  fmt.Sprintf("retaining backup bucket %s", bucket),
		})
		ctx.Changes.Add("s3:backup-bucket", change.Skipped)
		return nil
	}

	removed, err := p.buckets.EmptyBucket(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to empty backup bucket %s: %w", bucket, err)
	}
	ctx.Observer.WithFields(map[string]string{"objects": fmt.Sprint(removed)}).Event(provisioning.Event{
		Type:     provisioning.EventProgress,
		Phase:    phase,
		Resource: "s3:backup-bucket",
		Message:  fmt.Sprintf("emptied backup bucket %s", bucket),
	})

	action, err := p.buckets.DeleteBucket(ctx, bucket)
	if err != nil {
		return err
	}
	if err := ctx.State.Update(func(st *state.State) { st.AWS.BucketName = "" }); err != nil {
		return fmt.Errorf("failed to save state after deleting backup bucket: %w", err)
	}
	ctx.Record(phase, "s3:backup-bucket", action)
	return nil
}
