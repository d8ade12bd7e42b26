package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// Address plan of the cluster network.
const (
	VPCCIDR          = "10.0.0.0/16"
	PublicSubnetCIDR = "10.0.1.0/24"
	DefaultRouteCIDR = "0.0.0.0/0"
)

// RouteTable identifies the public route table and its subnet association.
type RouteTable struct {
	ID            string
	AssociationID string
}

// EnsureVPC ensures the cluster VPC exists with DNS support and hostnames enabled.
func (c *Client) EnsureVPC(ctx context.Context, knownID string, tags map[string]string) (string, change.Action, error) {
	return (&EnsureOperation[string]{
		ResourceType: "vpc",
		Name:         tags["Name"],
		Find: func(ctx context.Context) (string, bool, error) {
			return c.findVPC(ctx, knownID, tags)
		},
		Create: func(ctx context.Context) (string, error) {
			out, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
				CidrBlock:         aws.String(VPCCIDR),
				TagSpecifications: tagSpec(ec2types.ResourceTypeVpc, tags),
			})
			if err != nil {
				return "", err
			}
			id := aws.ToString(out.Vpc.VpcId)

			// EC2 accepts only one attribute per ModifyVpcAttribute call.
			if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
				VpcId:            aws.String(id),
				EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
			}); err != nil {
				return id, fmt.Errorf("failed to enable DNS support: %w", err)
			}
			if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
				VpcId:              aws.String(id),
				EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
			}); err != nil {
				return id, fmt.Errorf("failed to enable DNS hostnames: %w", err)
			}
			return id, nil
		},
	}).Execute(ctx)
}

func (c *Client) findVPC(ctx context.Context, knownID string, tags map[string]string) (string, bool, error) {
	input := &ec2.DescribeVpcsInput{Filters: tagFilters(tags)}
	if knownID != "" {
		input = &ec2.DescribeVpcsInput{VpcIds: []string{knownID}}
	}
	out, err := c.ec2.DescribeVpcs(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return "", false, err
	}
	if err != nil || len(out.Vpcs) == 0 {
		if knownID != "" {
			return c.findVPC(ctx, "", tags)
		}
		return "", false, nil
	}
	return aws.ToString(out.Vpcs[0].VpcId), true, nil
}

// EnsureSubnet ensures the public subnet exists in the fixed availability zone
// and maps public IPs on launch.
func (c *Client) EnsureSubnet(ctx context.Context, vpcID, knownID string, tags map[string]string) (string, change.Action, error) {
	var existing ec2types.Subnet
	return (&EnsureOperation[string]{
		ResourceType: "subnet",
		Name:         tags["Name"],
		Find: func(ctx context.Context) (string, bool, error) {
			subnet, found, err := c.findSubnet(ctx, vpcID, knownID, tags)
			existing = subnet
			return aws.ToString(subnet.SubnetId), found, err
		},
		Create: func(ctx context.Context) (string, error) {
			out, err := c.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
				VpcId:             aws.String(vpcID),
				CidrBlock:         aws.String(PublicSubnetCIDR),
				AvailabilityZone:  aws.String(config.AvailabilityZone),
				TagSpecifications: tagSpec(ec2types.ResourceTypeSubnet, tags),
			})
			if err != nil {
				return "", err
			}
			id := aws.ToString(out.Subnet.SubnetId)
			return id, c.enablePublicIPOnLaunch(ctx, id)
		},
		Reconcile: func(ctx context.Context, id string) (string, bool, error) {
			if aws.ToBool(existing.MapPublicIpOnLaunch) {
				return id, false, nil
			}
			return id, true, c.enablePublicIPOnLaunch(ctx, id)
		},
	}).Execute(ctx)
}

func (c *Client) enablePublicIPOnLaunch(ctx context.Context, subnetID string) error {
	_, err := c.ec2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(subnetID),
		MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to enable public IP on launch: %w", err)
	}
	return nil
}

func (c *Client) findSubnet(ctx context.Context, vpcID, knownID string, tags map[string]string) (ec2types.Subnet, bool, error) {
	input := &ec2.DescribeSubnetsInput{Filters: append(tagFilters(tags), filter("vpc-id", vpcID))}
	if knownID != "" {
		input = &ec2.DescribeSubnetsInput{SubnetIds: []string{knownID}}
	}
	out, err := c.ec2.DescribeSubnets(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return ec2types.Subnet{}, false, err
	}
	if err != nil || len(out.Subnets) == 0 {
		if knownID != "" {
			return c.findSubnet(ctx, vpcID, "", tags)
		}
		return ec2types.Subnet{}, false, nil
	}
	return out.Subnets[0], true, nil
}

// EnsureInternetGateway ensures an internet gateway exists and is attached to the VPC.
func (c *Client) EnsureInternetGateway(ctx context.Context, vpcID, knownID string, tags map[string]string) (string, change.Action, error) {
	var existing ec2types.InternetGateway
	return (&EnsureOperation[string]{
		ResourceType: "internet gateway",
		Name:         tags["Name"],
		Find: func(ctx context.Context) (string, bool, error) {
			igw, found, err := c.findInternetGateway(ctx, knownID, tags)
			existing = igw
			return aws.ToString(igw.InternetGatewayId), found, err
		},
		Create: func(ctx context.Context) (string, error) {
			out, err := c.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
				TagSpecifications: tagSpec(ec2types.ResourceTypeInternetGateway, tags),
			})
			if err != nil {
				return "", err
			}
			id := aws.ToString(out.InternetGateway.InternetGatewayId)
			return id, c.attachInternetGateway(ctx, id, vpcID)
		},
		Reconcile: func(ctx context.Context, id string) (string, bool, error) {
			for _, a := range existing.Attachments {
				if aws.ToString(a.VpcId) == vpcID {
					return id, false, nil
				}
			}
			return id, true, c.attachInternetGateway(ctx, id, vpcID)
		},
	}).Execute(ctx)
}

func (c *Client) attachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := c.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to attach internet gateway to %s: %w", vpcID, err)
	}
	return nil
}

func (c *Client) findInternetGateway(ctx context.Context, knownID string, tags map[string]string) (ec2types.InternetGateway, bool, error) {
	input := &ec2.DescribeInternetGatewaysInput{Filters: tagFilters(tags)}
	if knownID != "" {
		input = &ec2.DescribeInternetGatewaysInput{InternetGatewayIds: []string{knownID}}
	}
	out, err := c.ec2.DescribeInternetGateways(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return ec2types.InternetGateway{}, false, err
	}
	if err != nil || len(out.InternetGateways) == 0 {
		if knownID != "" {
			return c.findInternetGateway(ctx, "", tags)
		}
		return ec2types.InternetGateway{}, false, nil
	}
	return out.InternetGateways[0], true, nil
}

// EnsureRouteTable ensures the public route table exists with a default route
// through the internet gateway and is associated with the subnet.
func (c *Client) EnsureRouteTable(ctx context.Context, vpcID, igwID, subnetID, knownID string, tags map[string]string) (RouteTable, change.Action, error) {
	var existing ec2types.RouteTable
	return (&EnsureOperation[RouteTable]{
		ResourceType: "route table",
		Name:         tags["Name"],
		Find: func(ctx context.Context) (RouteTable, bool, error) {
			rt, found, err := c.findRouteTable(ctx, vpcID, knownID, tags)
			existing = rt
			return RouteTable{ID: aws.ToString(rt.RouteTableId), AssociationID: subnetAssociation(rt, subnetID)}, found, err
		},
		Create: func(ctx context.Context) (RouteTable, error) {
			out, err := c.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
				VpcId:             aws.String(vpcID),
				TagSpecifications: tagSpec(ec2types.ResourceTypeRouteTable, tags),
			})
			if err != nil {
				return RouteTable{}, err
			}
			rt := RouteTable{ID: aws.ToString(out.RouteTable.RouteTableId)}
			if err := c.createDefaultRoute(ctx, rt.ID, igwID); err != nil {
				return rt, err
			}
			rt.AssociationID, err = c.associateRouteTable(ctx, rt.ID, subnetID)
			return rt, err
		},
		Reconcile: func(ctx context.Context, rt RouteTable) (RouteTable, bool, error) {
			changed := false
			if target, ok := defaultRouteTarget(existing); !ok {
				if err := c.createDefaultRoute(ctx, rt.ID, igwID); err != nil {
					return rt, false, err
				}
				changed = true
			} else if target != igwID {
				return rt, false, fmt.Errorf("default route of %s points at %s, expected %s", rt.ID, target, igwID)
			}
			if rt.AssociationID == "" {
				id, err := c.associateRouteTable(ctx, rt.ID, subnetID)
				if err != nil {
					return rt, false, err
				}
				rt.AssociationID = id
				changed = true
			}
			return rt, changed, nil
		},
	}).Execute(ctx)
}

func (c *Client) createDefaultRoute(ctx context.Context, routeTableID, igwID string) error {
	_, err := c.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(DefaultRouteCIDR),
		GatewayId:            aws.String(igwID),
	})
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("failed to create default route: %w", err)
	}
	return nil
}

func (c *Client) associateRouteTable(ctx context.Context, routeTableID, subnetID string) (string, error) {
	out, err := c.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate route table with %s: %w", subnetID, err)
	}
	return aws.ToString(out.AssociationId), nil
}

func (c *Client) findRouteTable(ctx context.Context, vpcID, knownID string, tags map[string]string) (ec2types.RouteTable, bool, error) {
	input := &ec2.DescribeRouteTablesInput{Filters: append(tagFilters(tags), filter("vpc-id", vpcID))}
	if knownID != "" {
		input = &ec2.DescribeRouteTablesInput{RouteTableIds: []string{knownID}}
	}
	out, err := c.ec2.DescribeRouteTables(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return ec2types.RouteTable{}, false, err
	}
	if err != nil || len(out.RouteTables) == 0 {
		if knownID != "" {
			return c.findRouteTable(ctx, vpcID, "", tags)
		}
		return ec2types.RouteTable{}, false, nil
	}
	return out.RouteTables[0], true, nil
}

func defaultRouteTarget(rt ec2types.RouteTable) (string, bool) {
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == DefaultRouteCIDR {
			return aws.ToString(r.GatewayId), true
		}
	}
	return "", false
}

func subnetAssociation(rt ec2types.RouteTable, subnetID string) string {
	for _, a := range rt.Associations {
		if aws.ToString(a.SubnetId) == subnetID {
			return aws.ToString(a.RouteTableAssociationId)
		}
	}
	return ""
}
