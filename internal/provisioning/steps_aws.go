package provisioning

import (
	"context"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
	"github.com/faulty-technology/homelab/internal/util/naming"
)

// known reads a recorded identifier.
func (p *Plan) known(field func(st *state.State) string) string {
	var v string
	p.ctx.State.Read(func(st *state.State) { v = field(st) })
	return v
}

func (p *Plan) addNetwork() {
	g := p.graph
	cluster := p.ctx.Config.ClusterName
	inAWS := dag.InGroup(groupAWS)

	p.vpc = dag.Add(g, StepVPC, nil, func(ctx context.Context) (string, error) {
		name := naming.VPC(cluster)
		id, action, err := p.platform.Cloud.EnsureVPC(ctx, p.known(func(st *state.State) string { return st.AWS.VPCID }), p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepVPC, name, action)
		return id, p.ctx.State.Update(func(st *state.State) { st.AWS.VPCID = id })
	}, inAWS)

	p.subnet = dag.Add(g, StepSubnet, dag.Deps(p.vpc), func(ctx context.Context) (string, error) {
		name := naming.PublicSubnet(cluster)
		id, action, err := p.platform.Cloud.EnsureSubnet(ctx, p.vpc.Value(),
			p.known(func(st *state.State) string { return st.AWS.SubnetID }), p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepSubnet, name, action)
		return id, p.ctx.State.Update(func(st *state.State) { st.AWS.SubnetID = id })
	}, inAWS)

	p.igw = dag.Add(g, StepInternetGateway, dag.Deps(p.vpc), func(ctx context.Context) (string, error) {
		name := naming.InternetGateway(cluster)
		id, action, err := p.platform.Cloud.EnsureInternetGateway(ctx, p.vpc.Value(),
			p.known(func(st *state.State) string { return st.AWS.InternetGatewayID }), p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepInternetGateway, name, action)
		return id, p.ctx.State.Update(func(st *state.State) { st.AWS.InternetGatewayID = id })
	}, inAWS)

	p.routeTable = dag.Add(g, StepRouteTable, dag.Deps(p.vpc, p.igw, p.subnet), func(ctx context.Context) (aws.RouteTable, error) {
		name := naming.RouteTable(cluster)
		rt, action, err := p.platform.Cloud.EnsureRouteTable(ctx, p.vpc.Value(), p.igw.Value(), p.subnet.Value(),
			p.known(func(st *state.State) string { return st.AWS.RouteTableID }), p.tags(name))
		if err != nil {
			return aws.RouteTable{}, err
		}
		p.ctx.Record(StepRouteTable, name, action)
		return rt, p.ctx.State.Update(func(st *state.State) {
			st.AWS.RouteTableID = rt.ID
			st.AWS.RouteTableAssociationID = rt.AssociationID
		})
	}, inAWS)

	p.securityGroup = dag.Add(g, StepSecurityGroup, dag.Deps(p.vpc), func(ctx context.Context) (string, error) {
		name := naming.SecurityGroup(cluster)
		id, action, err := p.platform.Cloud.EnsureSecurityGroup(ctx, p.vpc.Value(),
			p.known(func(st *state.State) string { return st.AWS.SecurityGroupID }),
			p.ctx.Config.AllowedCIDRs, p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepSecurityGroup, name, action)
		return id, p.ctx.State.Update(func(st *state.State) { st.AWS.SecurityGroupID = id })
	}, inAWS)
}

func (p *Plan) addIdentity() {
	g := p.graph
	cfg := p.ctx.Config
	inAWS := dag.InGroup(groupAWS)

	p.role = dag.Add(g, StepInstanceRole, nil, func(ctx context.Context) (string, error) {
		name := naming.InstanceRole(cfg.ClusterName)
		roleName, action, err := p.platform.Cloud.EnsureRole(ctx, name, p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepInstanceRole, name, action)
		return roleName, p.ctx.State.Update(func(st *state.State) { st.AWS.RoleName = roleName })
	}, inAWS)

	p.policies = dag.Do(g, StepRolePolicies, dag.Deps(p.role), func(ctx context.Context) error {
		for _, policy := range InstancePolicies(cfg) {
			action, err := p.platform.Cloud.EnsureRolePolicy(ctx, p.role.Value(), policy)
			if err != nil {
				return err
			}
			p.ctx.Record(StepRolePolicies, policy.Name, action)
		}
		return nil
	}, inAWS)

	p.profile = dag.Add(g, StepInstanceProfile, dag.Deps(p.role), func(ctx context.Context) (aws.InstanceProfile, error) {
		name := naming.InstanceProfile(cfg.ClusterName)
		profile, action, err := p.platform.Cloud.EnsureInstanceProfile(ctx, name, p.role.Value(), p.tags(name))
		if err != nil {
			return aws.InstanceProfile{}, err
		}
		p.ctx.Record(StepInstanceProfile, name, action)
		return profile, p.ctx.State.Update(func(st *state.State) {
			st.AWS.InstanceProfileName = profile.Name
			st.AWS.InstanceProfileARN = profile.ARN
		})
	}, inAWS)
}

// InstancePolicies returns the inline policies of the instance role: EBS CSI
// volume lifecycle, etcd backups in the one bucket and CloudWatch Logs under
// the fixed log group prefix.
func InstancePolicies(cfg *config.Config) []aws.InlinePolicy {
	return []aws.InlinePolicy{
		{Name: naming.PolicyEBSCSI, Document: aws.EBSCSIPolicy()},
		{Name: naming.PolicyEtcdBackup, Document: aws.EtcdBackupPolicy(naming.BackupBucket(cfg.ClusterName))},
		{Name: naming.PolicyCloudWatchLogs, Document: aws.CloudWatchLogsPolicy(config.Region, config.LogGroupPrefix)},
	}
}

func (p *Plan) addCompute() {
	g := p.graph
	cfg := p.ctx.Config
	inAWS := dag.InGroup(groupAWS)

	p.ami = dag.Add(g, StepAMI, nil, func(ctx context.Context) (aws.Image, error) {
		return p.platform.Cloud.LookupImage(ctx, cfg.Talos.AMIOwner, cfg.Talos.AMINamePattern)
	}, inAWS)

	p.eip = dag.Add(g, StepElasticIP, nil, func(ctx context.Context) (aws.ElasticIP, error) {
		name := naming.ElasticIP(cfg.ClusterName)
		eip, action, err := p.platform.Cloud.EnsureElasticIP(ctx,
			p.known(func(st *state.State) string { return st.AWS.AllocationID }), p.tags(name))
		if err != nil {
			return aws.ElasticIP{}, err
		}
		p.ctx.Record(StepElasticIP, name, action)
		return eip, p.ctx.State.Update(func(st *state.State) {
			st.AWS.AllocationID = eip.AllocationID
			st.AWS.PublicIP = eip.PublicIP
		})
	}, inAWS)

	// The route table gates the instance so the node can reach the internet
	// (image pulls, NTP) as soon as it boots. The policies gate it so the node
	// never runs with a partial role.
	p.instance = dag.Add(g, StepInstance, dag.Deps(p.ami, p.subnet, p.securityGroup, p.profile),
		func(ctx context.Context) (aws.Instance, error) {
			name := naming.Node(cfg.ClusterName)
			image := p.ami.Value()
			spec := aws.InstanceSpec{
				ImageID:            image.ID,
				RootDeviceName:     image.RootDeviceName,
				InstanceType:       cfg.InstanceType,
				RootVolumeSize:     cfg.RootVolumeSize,
				SubnetID:           p.subnet.Value(),
				SecurityGroupID:    p.securityGroup.Value(),
				InstanceProfileARN: p.profile.Value().ARN,
				Tags:               p.tags(name),
				VolumeTags:         p.tags(naming.RootVolume(cfg.ClusterName)),
			}
			inst, action, err := p.platform.Cloud.EnsureInstance(ctx,
				p.known(func(st *state.State) string { return st.AWS.InstanceID }), spec)
			if err != nil {
				return aws.Instance{}, err
			}
			p.ctx.Record(StepInstance, name, action)
			return inst, p.ctx.State.Update(func(st *state.State) {
				if action == change.Created || st.AWS.AMIID == "" {
					st.AWS.AMIID = image.ID
					st.AWS.AMIName = image.Name
				}
				if action == change.Created {
					// A new machine boots into maintenance mode.
					st.Talos = state.TalosState{}
				}
				st.AWS.InstanceID = inst.ID
				st.AWS.PrivateIP = inst.PrivateIP
			})
		}, inAWS, dag.After(p.routeTable, p.policies), dag.WithTimeout(p.ctx.Timeouts.InstanceRunning))

	p.association = dag.Add(g, StepAddressAssociation, dag.Deps(p.eip, p.instance), func(ctx context.Context) (string, error) {
		id, action, err := p.platform.Cloud.EnsureAddressAssociation(ctx, p.eip.Value().AllocationID, p.instance.Value().ID)
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepAddressAssociation, naming.ElasticIP(cfg.ClusterName)+"-association", action)
		return id, p.ctx.State.Update(func(st *state.State) { st.AWS.AssociationID = id })
	}, inAWS)

	p.bucket = dag.Add(g, StepBackupBucket, nil, func(ctx context.Context) (string, error) {
		name := naming.BackupBucket(cfg.ClusterName)
		action, err := p.platform.Bucket.EnsureBackupBucket(ctx, name, p.tags(name))
		if err != nil {
			return "", err
		}
		p.ctx.Record(StepBackupBucket, name, action)
		return name, p.ctx.State.Update(func(st *state.State) { st.AWS.BucketName = name })
	}, inAWS)
}
