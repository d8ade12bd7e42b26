package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// DeleteAddressAssociation detaches the Elastic IP from the instance.
func (c *Client) DeleteAddressAssociation(ctx context.Context, associationID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "eip association",
		ID:           associationID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{AssociationId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteInstance terminates the node and waits until it is gone.
// Termination wipes the Talos install; no graceful reset is attempted.
func (c *Client) DeleteInstance(ctx context.Context, instanceID string) (change.Action, error) {
	action, err := (&DeleteOperation{
		ResourceType: "instance",
		ID:           instanceID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
			return err
		},
	}).Execute(ctx, c)
	if err != nil || action != change.Deleted {
		return action, err
	}

	waiter := ec2.NewInstanceTerminatedWaiter(c.ec2)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, c.timeouts.Delete); err != nil {
		return "", fmt.Errorf("instance %s did not terminate: %w", instanceID, err)
	}
	return action, nil
}

// DeleteElasticIP releases the address.
func (c *Client) DeleteElasticIP(ctx context.Context, allocationID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "elastic ip",
		ID:           allocationID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteInstanceProfile detaches roles from the profile and deletes it.
func (c *Client) DeleteInstanceProfile(ctx context.Context, name string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "instance profile",
		ID:           name,
		Delete: func(ctx context.Context, id string) error {
			out, err := c.iam.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: aws.String(id)})
			if err != nil {
				return err
			}
			for _, r := range out.InstanceProfile.Roles {
				if _, err := c.iam.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
					InstanceProfileName: aws.String(id),
					RoleName:            r.RoleName,
				}); err != nil && !IsNotFound(err) {
					return err
				}
			}
			_, err = c.iam.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{InstanceProfileName: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteRole deletes the role's inline policies and then the role.
func (c *Client) DeleteRole(ctx context.Context, name string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "iam role",
		ID:           name,
		Delete: func(ctx context.Context, id string) error {
			out, err := c.iam.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: aws.String(id)})
			if err != nil {
				return err
			}
			for _, policy := range out.PolicyNames {
				if _, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
					RoleName:   aws.String(id),
					PolicyName: aws.String(policy),
				}); err != nil && !IsNotFound(err) {
					return err
				}
			}
			_, err = c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteSecurityGroup deletes the node security group.
func (c *Client) DeleteSecurityGroup(ctx context.Context, groupID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "security group",
		ID:           groupID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteRouteTable removes the subnet association and deletes the table.
func (c *Client) DeleteRouteTable(ctx context.Context, rt RouteTable) (change.Action, error) {
	if rt.AssociationID != "" {
		if _, err := (&DeleteOperation{
			ResourceType: "route table association",
			ID:           rt.AssociationID,
			Delete: func(ctx context.Context, id string) error {
				_, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{AssociationId: aws.String(id)})
				return err
			},
		}).Execute(ctx, c); err != nil {
			return "", err
		}
	}
	return (&DeleteOperation{
		ResourceType: "route table",
		ID:           rt.ID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteInternetGateway detaches the gateway from the VPC and deletes it.
func (c *Client) DeleteInternetGateway(ctx context.Context, igwID, vpcID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "internet gateway",
		ID:           igwID,
		Delete: func(ctx context.Context, id string) error {
			if vpcID != "" {
				_, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
					InternetGatewayId: aws.String(id),
					VpcId:             aws.String(vpcID),
				})
				if err != nil && !IsNotFound(err) && errorCode(err) != "Gateway.NotAttached" {
					return err
				}
			}
			_, err := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteSubnet deletes the public subnet.
func (c *Client) DeleteSubnet(ctx context.Context, subnetID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "subnet",
		ID:           subnetID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteVPC deletes the VPC.
func (c *Client) DeleteVPC(ctx context.Context, vpcID string) (change.Action, error) {
	return (&DeleteOperation{
		ResourceType: "vpc",
		ID:           vpcID,
		Delete: func(ctx context.Context, id string) error {
			_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}
