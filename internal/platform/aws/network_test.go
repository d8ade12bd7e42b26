package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulty-technology/homelab/internal/util/change"
)

func TestEnsureVPC(t *testing.T) {
	t.Parallel()
	tags := map[string]string{"Name": "talos-homelab-vpc", "Project": "talos-homelab"}

	t.Run("creates with DNS enabled", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeVpcs: func(in *ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
				assert.Len(t, in.Filters, 2)
				return &ec2.DescribeVpcsOutput{}, nil
			},
			createVpc: func(in *ec2.CreateVpcInput) (*ec2.CreateVpcOutput, error) {
				assert.Equal(t, VPCCIDR, aws.ToString(in.CidrBlock))
				return &ec2.CreateVpcOutput{Vpc: &ec2types.Vpc{VpcId: aws.String("vpc-1")}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		id, action, err := c.EnsureVPC(context.Background(), "", tags)
		require.NoError(t, err)
		assert.Equal(t, "vpc-1", id)
		assert.Equal(t, change.Created, action)
		assert.Equal(t, []string{"DescribeVpcs", "CreateVpc", "ModifyVpcAttribute", "ModifyVpcAttribute"}, fake.calls)
	})

	t.Run("known id is unchanged", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeVpcs: func(in *ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
				assert.Equal(t, []string{"vpc-1"}, in.VpcIds)
				return &ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-1")}}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		id, action, err := c.EnsureVPC(context.Background(), "vpc-1", tags)
		require.NoError(t, err)
		assert.Equal(t, "vpc-1", id)
		assert.Equal(t, change.Unchanged, action)
	})

	t.Run("stale id falls back to tags", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeVpcs: func(in *ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
				if len(in.VpcIds) > 0 {
					return nil, apiError("InvalidVpcID.NotFound")
				}
				return &ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-2")}}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		id, action, err := c.EnsureVPC(context.Background(), "vpc-gone", tags)
		require.NoError(t, err)
		assert.Equal(t, "vpc-2", id)
		assert.Equal(t, change.Unchanged, action)
	})

	t.Run("describe failure is returned", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeVpcs: func(*ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
				return nil, apiError("UnauthorizedOperation")
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		_, _, err := c.EnsureVPC(context.Background(), "", tags)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to look up vpc")
	})
}

func TestEnsureSubnet_EnablesPublicIP(t *testing.T) {
	t.Parallel()
	fake := &fakeEC2{
		describeSubnets: func(*ec2.DescribeSubnetsInput) (*ec2.DescribeSubnetsOutput, error) {
			return &ec2.DescribeSubnetsOutput{Subnets: []ec2types.Subnet{{
				SubnetId:            aws.String("subnet-1"),
				MapPublicIpOnLaunch: aws.Bool(false),
			}}}, nil
		},
	}
	c := NewFromAPIs(fake, nil, testTimeouts())

	id, action, err := c.EnsureSubnet(context.Background(), "vpc-1", "subnet-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "subnet-1", id)
	assert.Equal(t, change.Updated, action)
	assert.Contains(t, fake.calls, "ModifySubnetAttribute")
}

func TestEnsureRouteTable(t *testing.T) {
	t.Parallel()

	t.Run("adds missing association", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeRouteTables: func(*ec2.DescribeRouteTablesInput) (*ec2.DescribeRouteTablesOutput, error) {
				return &ec2.DescribeRouteTablesOutput{RouteTables: []ec2types.RouteTable{{
					RouteTableId: aws.String("rtb-1"),
					Routes: []ec2types.Route{{
						DestinationCidrBlock: aws.String(DefaultRouteCIDR),
						GatewayId:            aws.String("igw-1"),
					}},
				}}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		rt, action, err := c.EnsureRouteTable(context.Background(), "vpc-1", "igw-1", "subnet-1", "rtb-1", nil)
		require.NoError(t, err)
		assert.Equal(t, RouteTable{ID: "rtb-1", AssociationID: "rtbassoc-new"}, rt)
		assert.Equal(t, change.Updated, action)
		assert.NotContains(t, fake.calls, "CreateRoute")
	})

	t.Run("fully configured is unchanged", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeRouteTables: func(*ec2.DescribeRouteTablesInput) (*ec2.DescribeRouteTablesOutput, error) {
				return &ec2.DescribeRouteTablesOutput{RouteTables: []ec2types.RouteTable{{
					RouteTableId: aws.String("rtb-1"),
					Routes: []ec2types.Route{{
						DestinationCidrBlock: aws.String(DefaultRouteCIDR),
						GatewayId:            aws.String("igw-1"),
					}},
					Associations: []ec2types.RouteTableAssociation{{
						SubnetId:                aws.String("subnet-1"),
						RouteTableAssociationId: aws.String("rtbassoc-1"),
					}},
				}}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		rt, action, err := c.EnsureRouteTable(context.Background(), "vpc-1", "igw-1", "subnet-1", "rtb-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "rtbassoc-1", rt.AssociationID)
		assert.Equal(t, change.Unchanged, action)
	})

	t.Run("foreign default route is an error", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			describeRouteTables: func(*ec2.DescribeRouteTablesInput) (*ec2.DescribeRouteTablesOutput, error) {
				return &ec2.DescribeRouteTablesOutput{RouteTables: []ec2types.RouteTable{{
					RouteTableId: aws.String("rtb-1"),
					Routes: []ec2types.Route{{
						DestinationCidrBlock: aws.String(DefaultRouteCIDR),
						GatewayId:            aws.String("igw-other"),
					}},
				}}}, nil
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		_, _, err := c.EnsureRouteTable(context.Background(), "vpc-1", "igw-1", "subnet-1", "rtb-1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "igw-other")
	})
}
