package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulty-technology/homelab/internal/util/change"
)

func TestDeleteOperation(t *testing.T) {
	t.Parallel()

	t.Run("empty id is a no-op", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{}
		c := NewFromAPIs(fake, nil, testTimeouts())

		action, err := c.DeleteVPC(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, change.Unchanged, action)
		assert.Empty(t, fake.calls)
	})

	t.Run("not found is unchanged", func(t *testing.T) {
		t.Parallel()
		fake := &fakeEC2{
			deleteVpc: func(*ec2.DeleteVpcInput) (*ec2.DeleteVpcOutput, error) {
				return nil, apiError("InvalidVpcID.NotFound")
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		action, err := c.DeleteVPC(context.Background(), "vpc-1")
		require.NoError(t, err)
		assert.Equal(t, change.Unchanged, action)
	})

	t.Run("dependency violations are retried", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		fake := &fakeEC2{
			deleteSecurityGroup: func(*ec2.DeleteSecurityGroupInput) (*ec2.DeleteSecurityGroupOutput, error) {
				attempts++
				if attempts < 3 {
					return nil, apiError("DependencyViolation")
				}
				return &ec2.DeleteSecurityGroupOutput{}, nil
			},
		}
		var retried []int
		c := NewFromAPIs(fake, nil, testTimeouts()).OnDeleteRetry(func(resourceType, id string, attempt int, _ time.Duration, _ error) {
			assert.Equal(t, "security group", resourceType)
			assert.Equal(t, "sg-1", id)
			retried = append(retried, attempt)
		})

		action, err := c.DeleteSecurityGroup(context.Background(), "sg-1")
		require.NoError(t, err)
		assert.Equal(t, change.Deleted, action)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("other errors fail immediately", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		fake := &fakeEC2{
			deleteVpc: func(*ec2.DeleteVpcInput) (*ec2.DeleteVpcOutput, error) {
				attempts++
				return nil, apiError("UnauthorizedOperation")
			},
		}
		c := NewFromAPIs(fake, nil, testTimeouts())

		_, err := c.DeleteVPC(context.Background(), "vpc-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete vpc vpc-1")
		assert.Equal(t, 1, attempts)
	})
}
