package aws

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// Inbound ports opened on the node.
const (
	TalosAPIPort      int32 = 50000
	KubernetesAPIPort int32 = 6443
)

// SecurityGroupDescription is immutable once the group exists.
const SecurityGroupDescription = "Talos single-node cluster"

// IngressRules returns the complete inbound rule set: the Talos API and the
// Kubernetes API, each reachable only from cidrs.
func IngressRules(cidrs []string) []ec2types.IpPermission {
	return []ec2types.IpPermission{
		tcpRule(TalosAPIPort, "Talos API (talosctl)", cidrs),
		tcpRule(KubernetesAPIPort, "Kubernetes API", cidrs),
	}
}

// EgressRules permits all outbound traffic.
func EgressRules() []ec2types.IpPermission {
	return []ec2types.IpPermission{{
		IpProtocol: aws.String("-1"),
		FromPort:   aws.Int32(0),
		ToPort:     aws.Int32(0),
		IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(DefaultRouteCIDR)}},
	}}
}

func tcpRule(port int32, description string, cidrs []string) ec2types.IpPermission {
	ranges := make([]ec2types.IpRange, 0, len(cidrs))
	for _, cidr := range cidrs {
		ranges = append(ranges, ec2types.IpRange{CidrIp: aws.String(cidr), Description: aws.String(description)})
	}
	return ec2types.IpPermission{
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(port),
		ToPort:     aws.Int32(port),
		IpRanges:   ranges,
	}
}

// EnsureSecurityGroup ensures the node security group exists and that its
// inbound rules are exactly IngressRules(cidrs). Rules not in the desired set
// are revoked.
func (c *Client) EnsureSecurityGroup(ctx context.Context, vpcID, knownID string, cidrs []string, tags map[string]string) (string, change.Action, error) {
	name := tags["Name"]
	var existing ec2types.SecurityGroup
	return (&EnsureOperation[string]{
		ResourceType: "security group",
		Name:         name,
		Find: func(ctx context.Context) (string, bool, error) {
			sg, found, err := c.findSecurityGroup(ctx, vpcID, knownID, name)
			existing = sg
			return aws.ToString(sg.GroupId), found, err
		},
		Create: func(ctx context.Context) (string, error) {
			out, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
				GroupName:         aws.String(name),
				Description:       aws.String(SecurityGroupDescription),
				VpcId:             aws.String(vpcID),
				TagSpecifications: tagSpec(ec2types.ResourceTypeSecurityGroup, tags),
			})
			if err != nil {
				return "", err
			}
			id := aws.ToString(out.GroupId)
			// New groups come with the allow-all egress rule and no ingress.
			_, err = c.reconcileRules(ctx, ec2types.SecurityGroup{
				GroupId:             aws.String(id),
				IpPermissionsEgress: EgressRules(),
			}, cidrs)
			return id, err
		},
		Reconcile: func(ctx context.Context, id string) (string, bool, error) {
			changed, err := c.reconcileRules(ctx, existing, cidrs)
			return id, changed, err
		},
	}).Execute(ctx)
}

func (c *Client) reconcileRules(ctx context.Context, sg ec2types.SecurityGroup, cidrs []string) (bool, error) {
	groupID := sg.GroupId
	missing, extra := DiffRules(IngressRules(cidrs), sg.IpPermissions)
	changed := false

	if len(extra) > 0 {
		if _, err := c.ec2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       groupID,
			IpPermissions: extra,
		}); err != nil && !IsNotFound(err) {
			return false, fmt.Errorf("failed to revoke ingress rules: %w", err)
		}
		changed = true
	}
	if len(missing) > 0 {
		if _, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       groupID,
			IpPermissions: missing,
		}); err != nil && !isDuplicate(err) {
			return false, fmt.Errorf("failed to authorize ingress rules: %w", err)
		}
		changed = true
	}

	missingEgress, _ := DiffRules(EgressRules(), sg.IpPermissionsEgress)
	if len(missingEgress) > 0 {
		if _, err := c.ec2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       groupID,
			IpPermissions: missingEgress,
		}); err != nil && !isDuplicate(err) {
			return false, fmt.Errorf("failed to authorize egress rule: %w", err)
		}
		changed = true
	}
	return changed, nil
}

func (c *Client) findSecurityGroup(ctx context.Context, vpcID, knownID, name string) (ec2types.SecurityGroup, bool, error) {
	input := &ec2.DescribeSecurityGroupsInput{Filters: []ec2types.Filter{
		filter("vpc-id", vpcID),
		filter("group-name", name),
	}}
	if knownID != "" {
		input = &ec2.DescribeSecurityGroupsInput{GroupIds: []string{knownID}}
	}
	out, err := c.ec2.DescribeSecurityGroups(ctx, input)
	if err != nil && !(knownID != "" && IsNotFound(err)) {
		return ec2types.SecurityGroup{}, false, err
	}
	if err != nil || len(out.SecurityGroups) == 0 {
		if knownID != "" {
			return c.findSecurityGroup(ctx, vpcID, "", name)
		}
		return ec2types.SecurityGroup{}, false, nil
	}
	return out.SecurityGroups[0], true, nil
}

type ruleEntry struct {
	key  string
	perm ec2types.IpPermission
}

// flattenRules splits permissions into one entry per source so two rule sets
// can be compared regardless of how AWS groups them. Descriptions are ignored.
func flattenRules(perms []ec2types.IpPermission) []ruleEntry {
	var out []ruleEntry
	for _, p := range perms {
		base := fmt.Sprintf("%s|%d|%d", aws.ToString(p.IpProtocol), aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort))
		single := func() ec2types.IpPermission {
			return ec2types.IpPermission{IpProtocol: p.IpProtocol, FromPort: p.FromPort, ToPort: p.ToPort}
		}
		for _, r := range p.IpRanges {
			perm := single()
			perm.IpRanges = []ec2types.IpRange{r}
			out = append(out, ruleEntry{key: base + "|ipv4|" + aws.ToString(r.CidrIp), perm: perm})
		}
		for _, r := range p.Ipv6Ranges {
			perm := single()
			perm.Ipv6Ranges = []ec2types.Ipv6Range{r}
			out = append(out, ruleEntry{key: base + "|ipv6|" + aws.ToString(r.CidrIpv6), perm: perm})
		}
		for _, g := range p.UserIdGroupPairs {
			perm := single()
			perm.UserIdGroupPairs = []ec2types.UserIdGroupPair{g}
			out = append(out, ruleEntry{key: base + "|group|" + aws.ToString(g.GroupId), perm: perm})
		}
		for _, pl := range p.PrefixListIds {
			perm := single()
			perm.PrefixListIds = []ec2types.PrefixListId{pl}
			out = append(out, ruleEntry{key: base + "|pl|" + aws.ToString(pl.PrefixListId), perm: perm})
		}
	}
	return out
}

// DiffRules returns the single-source permissions present in desired but not
// in current, and those present in current but not in desired.
func DiffRules(desired, current []ec2types.IpPermission) (missing, extra []ec2types.IpPermission) {
	want := flattenRules(desired)
	have := flattenRules(current)

	haveKeys := make([]string, 0, len(have))
	for _, e := range have {
		haveKeys = append(haveKeys, e.key)
	}
	wantKeys := make([]string, 0, len(want))
	for _, e := range want {
		wantKeys = append(wantKeys, e.key)
	}

	for _, e := range want {
		if !slices.Contains(haveKeys, e.key) {
			missing = append(missing, e.perm)
		}
	}
	for _, e := range have {
		if !slices.Contains(wantKeys, e.key) {
			extra = append(extra, e.perm)
		}
	}
	return missing, extra
}
