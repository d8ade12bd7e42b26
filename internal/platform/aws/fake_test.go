package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"

	"github.com/faulty-technology/homelab/internal/config"
)

// fakeEC2 implements EC2API. Calls to methods without a handler panic through
// the nil embedded interface.
type fakeEC2 struct {
	EC2API

	calls []string

	describeImages        func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error)
	createVpc             func(*ec2.CreateVpcInput) (*ec2.CreateVpcOutput, error)
	describeVpcs          func(*ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error)
	deleteVpc             func(*ec2.DeleteVpcInput) (*ec2.DeleteVpcOutput, error)
	describeSubnets       func(*ec2.DescribeSubnetsInput) (*ec2.DescribeSubnetsOutput, error)
	describeRouteTables   func(*ec2.DescribeRouteTablesInput) (*ec2.DescribeRouteTablesOutput, error)
	describeSGs           func(*ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
	createSG              func(*ec2.CreateSecurityGroupInput) (*ec2.CreateSecurityGroupOutput, error)
	authorizeIngress      func(*ec2.AuthorizeSecurityGroupIngressInput) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	revokeIngress         func(*ec2.RevokeSecurityGroupIngressInput) (*ec2.RevokeSecurityGroupIngressOutput, error)
	describeAddresses     func(*ec2.DescribeAddressesInput) (*ec2.DescribeAddressesOutput, error)
	associateAddress      func(*ec2.AssociateAddressInput) (*ec2.AssociateAddressOutput, error)
	describeInstances     func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	runInstances          func(*ec2.RunInstancesInput) (*ec2.RunInstancesOutput, error)
	modifyMetadataOptions func(*ec2.ModifyInstanceMetadataOptionsInput) (*ec2.ModifyInstanceMetadataOptionsOutput, error)
	deleteSecurityGroup   func(*ec2.DeleteSecurityGroupInput) (*ec2.DeleteSecurityGroupOutput, error)
}

func (f *fakeEC2) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.record("DescribeImages")
	return f.describeImages(in)
}

func (f *fakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.record("CreateVpc")
	return f.createVpc(in)
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.record("DescribeVpcs")
	return f.describeVpcs(in)
}

func (f *fakeEC2) ModifyVpcAttribute(_ context.Context, _ *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.record("ModifyVpcAttribute")
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *fakeEC2) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.record("DeleteVpc")
	return f.deleteVpc(in)
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.record("DescribeSubnets")
	return f.describeSubnets(in)
}

func (f *fakeEC2) ModifySubnetAttribute(_ context.Context, _ *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.record("ModifySubnetAttribute")
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.record("DescribeRouteTables")
	return f.describeRouteTables(in)
}

func (f *fakeEC2) CreateRoute(_ context.Context, _ *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.record("CreateRoute")
	return &ec2.CreateRouteOutput{}, nil
}

func (f *fakeEC2) AssociateRouteTable(_ context.Context, _ *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.record("AssociateRouteTable")
	return &ec2.AssociateRouteTableOutput{AssociationId: aws.String("rtbassoc-new")}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.record("DescribeSecurityGroups")
	return f.describeSGs(in)
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.record("CreateSecurityGroup")
	return f.createSG(in)
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.record("AuthorizeSecurityGroupIngress")
	if f.authorizeIngress == nil {
		return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
	}
	return f.authorizeIngress(in)
}

func (f *fakeEC2) RevokeSecurityGroupIngress(_ context.Context, in *ec2.RevokeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	f.record("RevokeSecurityGroupIngress")
	if f.revokeIngress == nil {
		return &ec2.RevokeSecurityGroupIngressOutput{}, nil
	}
	return f.revokeIngress(in)
}

func (f *fakeEC2) AuthorizeSecurityGroupEgress(_ context.Context, _ *ec2.AuthorizeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	f.record("AuthorizeSecurityGroupEgress")
	return &ec2.AuthorizeSecurityGroupEgressOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.record("DeleteSecurityGroup")
	return f.deleteSecurityGroup(in)
}

func (f *fakeEC2) DescribeAddresses(_ context.Context, in *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	f.record("DescribeAddresses")
	return f.describeAddresses(in)
}

func (f *fakeEC2) AssociateAddress(_ context.Context, in *ec2.AssociateAddressInput, _ ...func(*ec2.Options)) (*ec2.AssociateAddressOutput, error) {
	f.record("AssociateAddress")
	return f.associateAddress(in)
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.record("DescribeInstances")
	return f.describeInstances(in)
}

func (f *fakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.record("RunInstances")
	return f.runInstances(in)
}

func (f *fakeEC2) ModifyInstanceMetadataOptions(_ context.Context, in *ec2.ModifyInstanceMetadataOptionsInput, _ ...func(*ec2.Options)) (*ec2.ModifyInstanceMetadataOptionsOutput, error) {
	f.record("ModifyInstanceMetadataOptions")
	if f.modifyMetadataOptions == nil {
		return &ec2.ModifyInstanceMetadataOptionsOutput{}, nil
	}
	return f.modifyMetadataOptions(in)
}

// fakeIAM implements IAMAPI over an in-memory role and profile table.
type fakeIAM struct {
	IAMAPI

	calls    []string
	roles    map[string]string            // role name -> trust policy
	policies map[string]map[string]string // role name -> policy name -> document
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{roles: map[string]string{}, policies: map[string]map[string]string{}}
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.calls = append(f.calls, "GetRole")
	trust, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, apiError("NoSuchEntity")
	}
	return &iam.GetRoleOutput{Role: iamRole(aws.ToString(in.RoleName), trust)}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.calls = append(f.calls, "CreateRole")
	f.roles[aws.ToString(in.RoleName)] = aws.ToString(in.AssumeRolePolicyDocument)
	return &iam.CreateRoleOutput{Role: iamRole(aws.ToString(in.RoleName), aws.ToString(in.AssumeRolePolicyDocument))}, nil
}

func (f *fakeIAM) GetRolePolicy(_ context.Context, in *iam.GetRolePolicyInput, _ ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error) {
	f.calls = append(f.calls, "GetRolePolicy")
	doc, ok := f.policies[aws.ToString(in.RoleName)][aws.ToString(in.PolicyName)]
	if !ok {
		return nil, apiError("NoSuchEntity")
	}
	return &iam.GetRolePolicyOutput{PolicyDocument: aws.String(doc)}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.calls = append(f.calls, "PutRolePolicy")
	role := aws.ToString(in.RoleName)
	if f.policies[role] == nil {
		f.policies[role] = map[string]string{}
	}
	f.policies[role][aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		InstanceRunning:   time.Second,
		Delete:            time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
	}
}

func runningInstance(id string) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:       aws.String(id),
		PrivateIpAddress: aws.String("10.0.1.10"),
		State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		MetadataOptions:  &ec2types.InstanceMetadataOptionsResponse{HttpTokens: ec2types.HttpTokensStateRequired},
	}
}

func iamRole(name, trust string) *iamtypes.Role {
	return &iamtypes.Role{RoleName: aws.String(name), AssumeRolePolicyDocument: aws.String(trust)}
}
