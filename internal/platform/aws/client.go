package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/faulty-technology/homelab/internal/config"
)

// Client provisions EC2 and IAM resources.
type Client struct {
	ec2      EC2API
	iam      IAMAPI
	timeouts *config.Timeouts

	onDeleteRetry RetryFunc
}

// RetryFunc is told about every delete attempt that is blocked by a
// dependent resource and will be retried after delay.
type RetryFunc func(resourceType, id string, attempt int, delay time.Duration, err error)

// LoadConfig resolves AWS credentials for the fixed region. Static keys from
// the configuration take precedence over a named profile, which takes
// precedence over the default credential chain.
func LoadConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	case cfg.Profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewClient creates a Client from an SDK configuration.
func NewClient(awsCfg aws.Config, timeouts *config.Timeouts) *Client {
	return NewFromAPIs(ec2.NewFromConfig(awsCfg), iam.NewFromConfig(awsCfg), timeouts)
}

// NewFromAPIs creates a Client from pre-configured API implementations.
// This is useful for testing with fakes.
func NewFromAPIs(ec2API EC2API, iamAPI IAMAPI, timeouts *config.Timeouts) *Client {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Client{ec2: ec2API, iam: iamAPI, timeouts: timeouts}
}

// OnDeleteRetry registers fn to observe retried deletes.
func (c *Client) OnDeleteRetry(fn RetryFunc) *Client {
	c.onDeleteRetry = fn
	return c
}
