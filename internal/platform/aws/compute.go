package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// DefaultRootDeviceName is used when an image does not report its root device.
const DefaultRootDeviceName = "/dev/xvda"

// Image is a resolved Talos AMI.
type Image struct {
	ID             string
	Name           string
	RootDeviceName string
}

// ElasticIP is an allocated Elastic IP address.
type ElasticIP struct {
	AllocationID string
	PublicIP     string
}

// Instance describes the cluster node.
type Instance struct {
	ID        string
	PrivateIP string
}

// InstanceSpec is the desired shape of the node.
type InstanceSpec struct {
	ImageID            string
	RootDeviceName     string
	InstanceType       string
	RootVolumeSize     int32
	SubnetID           string
	SecurityGroupID    string
	InstanceProfileARN string
	Tags               map[string]string
	VolumeTags         map[string]string
}

// LookupImage returns the most recent x86_64 HVM image owned by owner whose
// name matches pattern.
func (c *Client) LookupImage(ctx context.Context, owner, pattern string) (Image, error) {
	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{owner},
		Filters: []ec2types.Filter{
			filter("name", pattern),
			filter("architecture", "x86_64"),
			filter("virtualization-type", "hvm"),
		},
	})
	if err != nil {
		return Image{}, fmt.Errorf("failed to describe images: %w", err)
	}
	if len(out.Images) == 0 {
		return Image{}, fmt.Errorf("no image matching %q owned by %s", pattern, owner)
	}

	images := out.Images
	// CreationDate is ISO 8601, so lexical order is chronological.
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	latest := images[0]

	root := aws.ToString(latest.RootDeviceName)
	if root == "" {
		root = DefaultRootDeviceName
	}
	return Image{ID: aws.ToString(latest.ImageId), Name: aws.ToString(latest.Name), RootDeviceName: root}, nil
}

// EnsureElasticIP ensures a VPC Elastic IP is allocated.
func (c *Client) EnsureElasticIP(ctx context.Context, knownID string, tags map[string]string) (ElasticIP, change.Action, error) {
	return (&EnsureOperation[ElasticIP]{
		ResourceType: "elastic ip",
		Name:         tags["Name"],
		Find: func(ctx context.Context) (ElasticIP, bool, error) {
			addr, found, err := c.findAddress(ctx, knownID, tags)
			return ElasticIP{AllocationID: aws.ToString(addr.AllocationId), PublicIP: aws.ToString(addr.PublicIp)}, found, err
		},
		Create: func(ctx context.Context) (ElasticIP, error) {
			out, err := c.ec2.AllocateAddress(ctx, &ec2.AllocateAddressInput{
				Domain:            ec2types.DomainTypeVpc,
				TagSpecifications: tagSpec(ec2types.ResourceTypeElasticIp, tags),
			})
			if err != nil {
				return ElasticIP{}, err
			}
			return ElasticIP{AllocationID: aws.ToString(out.AllocationId), PublicIP: aws.ToString(out.PublicIp)}, nil
		},
	}).Execute(ctx)
}

func (c *Client) findAddress(ctx context.Context, allocationID string, tags map[string]string) (ec2types.Address, bool, error) {
	input := &ec2.DescribeAddressesInput{Filters: append(tagFilters(tags), filter("domain", "vpc"))}
	if allocationID != "" {
		input = &ec2.DescribeAddressesInput{AllocationIds: []string{allocationID}}
	}
	out, err := c.ec2.DescribeAddresses(ctx, input)
	if err != nil && !(allocationID != "" && IsNotFound(err)) {
		return ec2types.Address{}, false, err
	}
	if err != nil || len(out.Addresses) == 0 {
		if allocationID != "" {
			return c.findAddress(ctx, "", tags)
		}
		return ec2types.Address{}, false, nil
	}
	return out.Addresses[0], true, nil
}

// EnsureInstance ensures the node is running. An existing instance is started
// if stopped, and its metadata service is switched to token-only access if it
// drifted.
func (c *Client) EnsureInstance(ctx context.Context, knownID string, spec InstanceSpec) (Instance, change.Action, error) {
	var existing ec2types.Instance
	instance, action, err := (&EnsureOperation[Instance]{
		ResourceType: "instance",
		Name:         spec.Tags["Name"],
		Find: func(ctx context.Context) (Instance, bool, error) {
			inst, found, err := c.findInstance(ctx, knownID, spec.Tags)
			existing = inst
			return toInstance(inst), found, err
		},
		Create: func(ctx context.Context) (Instance, error) {
			out, err := c.ec2.RunInstances(ctx, runInstancesInput(spec))
			if err != nil {
				return Instance{}, err
			}
			if len(out.Instances) == 0 {
				return Instance{}, fmt.Errorf("RunInstances returned no instances")
			}
			return toInstance(out.Instances[0]), nil
		},
		Reconcile: func(ctx context.Context, inst Instance) (Instance, bool, error) {
			changed := false
			if existing.State != nil && existing.State.Name == ec2types.InstanceStateNameStopped {
				if _, err := c.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{inst.ID}}); err != nil {
					return inst, false, fmt.Errorf("failed to start instance: %w", err)
				}
				changed = true
			}
			if existing.MetadataOptions == nil || existing.MetadataOptions.HttpTokens != ec2types.HttpTokensStateRequired {
				if _, err := c.ec2.ModifyInstanceMetadataOptions(ctx, &ec2.ModifyInstanceMetadataOptionsInput{
					InstanceId:   aws.String(inst.ID),
					HttpTokens:   ec2types.HttpTokensStateRequired,
					HttpEndpoint: ec2types.InstanceMetadataEndpointStateEnabled,
				}); err != nil {
					return inst, false, fmt.Errorf("failed to require metadata tokens: %w", err)
				}
				changed = true
			}
			return inst, changed, nil
		},
	}).Execute(ctx)
	if err != nil {
		return Instance{}, "", err
	}

	running, err := c.waitForRunning(ctx, instance.ID)
	if err != nil {
		return Instance{}, "", err
	}
	return running, action, nil
}

func runInstancesInput(spec InstanceSpec) *ec2.RunInstancesInput {
	root := spec.RootDeviceName
	if root == "" {
		root = DefaultRootDeviceName
	}
	return &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     ec2types.InstanceType(spec.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(spec.SubnetID),
		SecurityGroupIds: []string{spec.SecurityGroupID},
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Arn: aws.String(spec.InstanceProfileARN),
		},
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String(root),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(spec.RootVolumeSize),
				VolumeType:          ec2types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		MetadataOptions: &ec2types.InstanceMetadataOptionsRequest{
			HttpTokens:   ec2types.HttpTokensStateRequired,
			HttpEndpoint: ec2types.InstanceMetadataEndpointStateEnabled,
		},
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeInstance, Tags: ec2Tags(spec.Tags)},
			{ResourceType: ec2types.ResourceTypeVolume, Tags: ec2Tags(spec.VolumeTags)},
		},
	}
}

func (c *Client) waitForRunning(ctx context.Context, id string) (Instance, error) {
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	waiter := ec2.NewInstanceRunningWaiter(c.ec2)
	out, err := waiter.WaitForOutput(ctx, input, c.timeouts.InstanceRunning)
	if err != nil {
		return Instance{}, fmt.Errorf("instance %s did not reach running: %w", id, err)
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == id {
				return toInstance(inst), nil
			}
		}
	}
	return Instance{}, fmt.Errorf("instance %s not found after waiting", id)
}

func (c *Client) findInstance(ctx context.Context, knownID string, tags map[string]string) (ec2types.Instance, bool, error) {
	live := filter("instance-state-name", "pending", "running", "stopping", "stopped")
	input := &ec2.DescribeInstancesInput{Filters: append(tagFilters(tags), live)}
	if knownID != "" {
		input = &ec2.DescribeInstancesInput{InstanceIds: []string{knownID}, Filters: []ec2types.Filter{live}}
	}
	out, err := c.ec2.DescribeInstances(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return ec2types.Instance{}, false, err
	}
	if err == nil {
		for _, r := range out.Reservations {
			if len(r.Instances) > 0 {
				return r.Instances[0], true, nil
			}
		}
	}
	if knownID != "" {
		return c.findInstance(ctx, "", tags)
	}
	return ec2types.Instance{}, false, nil
}

func toInstance(inst ec2types.Instance) Instance {
	return Instance{ID: aws.ToString(inst.InstanceId), PrivateIP: aws.ToString(inst.PrivateIpAddress)}
}

// EnsureAddressAssociation ensures the Elastic IP is associated with the instance.
func (c *Client) EnsureAddressAssociation(ctx context.Context, allocationID, instanceID string) (string, change.Action, error) {
	var current ec2types.Address
	return (&EnsureOperation[string]{
		ResourceType: "eip association",
		Name:         allocationID,
		Find: func(ctx context.Context) (string, bool, error) {
			out, err := c.ec2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{AllocationIds: []string{allocationID}})
			if err != nil {
				return "", false, err
			}
			if len(out.Addresses) == 0 {
				return "", false, fmt.Errorf("elastic ip %s not found", allocationID)
			}
			current = out.Addresses[0]
			if current.AssociationId == nil {
				return "", false, nil
			}
			return aws.ToString(current.AssociationId), true, nil
		},
		Create: func(ctx context.Context) (string, error) {
			return c.associateAddress(ctx, allocationID, instanceID)
		},
		Reconcile: func(ctx context.Context, associationID string) (string, bool, error) {
			if aws.ToString(current.InstanceId) == instanceID {
				return associationID, false, nil
			}
			id, err := c.associateAddress(ctx, allocationID, instanceID)
			return id, err == nil, err
		},
	}).Execute(ctx)
}

func (c *Client) associateAddress(ctx context.Context, allocationID, instanceID string) (string, error) {
	out, err := c.ec2.AssociateAddress(ctx, &ec2.AssociateAddressInput{
		AllocationId:       aws.String(allocationID),
		InstanceId:         aws.String(instanceID),
		AllowReassociation: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.AssociationId), nil
}
