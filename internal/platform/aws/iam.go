package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// InstanceProfile identifies the instance profile passed to RunInstances.
type InstanceProfile struct {
	Name string
	ARN  string
}

// InlinePolicy is a named policy embedded in the instance role.
type InlinePolicy struct {
	Name     string
	Document PolicyDocument
}

// EnsureRole ensures the instance role exists with the EC2 trust policy.
func (c *Client) EnsureRole(ctx context.Context, name string, tags map[string]string) (string, change.Action, error) {
	trust, err := AssumeRolePolicy().JSON()
	if err != nil {
		return "", "", err
	}

	var existing *iamtypes.Role
	return (&EnsureOperation[string]{
		ResourceType: "iam role",
		Name:         name,
		Find: func(ctx context.Context) (string, bool, error) {
			out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
			if IsNotFound(err) {
				return "", false, nil
			}
			if err != nil {
				return "", false, err
			}
			existing = out.Role
			return aws.ToString(out.Role.RoleName), true, nil
		},
		Create: func(ctx context.Context) (string, error) {
			out, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
				RoleName:                 aws.String(name),
				AssumeRolePolicyDocument: aws.String(trust),
				Tags:                     iamTags(tags),
			})
			if err != nil {
				return "", err
			}
			return aws.ToString(out.Role.RoleName), nil
		},
		Reconcile: func(ctx context.Context, roleName string) (string, bool, error) {
			if existing == nil || policyEqual(aws.ToString(existing.AssumeRolePolicyDocument), AssumeRolePolicy()) {
				return roleName, false, nil
			}
			_, err := c.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
				RoleName:       aws.String(roleName),
				PolicyDocument: aws.String(trust),
			})
			return roleName, err == nil, err
		},
	}).Execute(ctx)
}

// EnsureRolePolicy ensures an inline policy with exactly the given document is
// attached to the role.
func (c *Client) EnsureRolePolicy(ctx context.Context, roleName string, policy InlinePolicy) (change.Action, error) {
	doc, err := policy.Document.JSON()
	if err != nil {
		return "", err
	}

	put := func(ctx context.Context) error {
		_, err := c.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(roleName),
			PolicyName:     aws.String(policy.Name),
			PolicyDocument: aws.String(doc),
		})
		return err
	}

	var current string
	_, action, err := (&EnsureOperation[string]{
		ResourceType: "iam role policy",
		Name:         policy.Name,
		Find: func(ctx context.Context) (string, bool, error) {
			out, err := c.iam.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(policy.Name),
			})
			if IsNotFound(err) {
				return "", false, nil
			}
			if err != nil {
				return "", false, err
			}
			current = aws.ToString(out.PolicyDocument)
			return policy.Name, true, nil
		},
		Create: func(ctx context.Context) (string, error) {
			return policy.Name, put(ctx)
		},
		Reconcile: func(ctx context.Context, name string) (string, bool, error) {
			if policyEqual(current, policy.Document) {
				return name, false, nil
			}
			return name, true, put(ctx)
		},
	}).Execute(ctx)
	return action, err
}

// EnsureInstanceProfile ensures the instance profile exists and carries the role.
func (c *Client) EnsureInstanceProfile(ctx context.Context, name, roleName string, tags map[string]string) (InstanceProfile, change.Action, error) {
	var existing *iamtypes.InstanceProfile
	return (&EnsureOperation[InstanceProfile]{
		ResourceType: "instance profile",
		Name:         name,
		Find: func(ctx context.Context) (InstanceProfile, bool, error) {
			out, err := c.iam.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: aws.String(name)})
			if IsNotFound(err) {
				return InstanceProfile{}, false, nil
			}
			if err != nil {
				return InstanceProfile{}, false, err
			}
			existing = out.InstanceProfile
			return InstanceProfile{Name: name, ARN: aws.ToString(out.InstanceProfile.Arn)}, true, nil
		},
		Create: func(ctx context.Context) (InstanceProfile, error) {
			out, err := c.iam.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
				InstanceProfileName: aws.String(name),
				Tags:                iamTags(tags),
			})
			if err != nil {
				return InstanceProfile{}, err
			}
			profile := InstanceProfile{Name: name, ARN: aws.ToString(out.InstanceProfile.Arn)}
			if err := c.addRoleToProfile(ctx, name, roleName); err != nil {
				return profile, err
			}
			// RunInstances rejects a profile IAM has not propagated yet.
			waiter := iam.NewInstanceProfileExistsWaiter(c.iam)
			if err := waiter.Wait(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: aws.String(name)}, c.timeouts.InstanceRunning); err != nil {
				return profile, fmt.Errorf("instance profile did not become visible: %w", err)
			}
			return profile, nil
		},
		Reconcile: func(ctx context.Context, profile InstanceProfile) (InstanceProfile, bool, error) {
			for _, r := range existing.Roles {
				if aws.ToString(r.RoleName) == roleName {
					return profile, false, nil
				}
			}
			// A profile holds at most one role.
			for _, r := range existing.Roles {
				if _, err := c.iam.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
					InstanceProfileName: aws.String(name),
					RoleName:            r.RoleName,
				}); err != nil {
					return profile, false, fmt.Errorf("failed to detach role %s: %w", aws.ToString(r.RoleName), err)
				}
			}
			return profile, true, c.addRoleToProfile(ctx, name, roleName)
		},
	}).Execute(ctx)
}

func (c *Client) addRoleToProfile(ctx context.Context, profileName, roleName string) error {
	_, err := c.iam.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil {
		return fmt.Errorf("failed to add role %s to instance profile: %w", roleName, err)
	}
	return nil
}
