package s3

import (
	"context"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/faulty-technology/homelab/internal/util/change"
	"github.com/faulty-technology/homelab/internal/util/labels"
)

// Lifecycle settings of the backup bucket.
const (
	LifecycleRuleID          = "expire-old-backups"
	ExpirationDays           = 30
	NoncurrentExpirationDays = 7
)

// deleteBatchSize is the DeleteObjects per-request limit.
const deleteBatchSize = 1000

// BucketSettings is the desired configuration of the backup bucket.
type BucketSettings struct {
	Versioning        types.BucketVersioningStatus
	Lifecycle         []types.LifecycleRule
	Encryption        types.ServerSideEncryptionConfiguration
	PublicAccessBlock types.PublicAccessBlockConfiguration
}

// BackupBucketSettings returns the fixed backup bucket configuration.
func BackupBucketSettings() BucketSettings {
	return BucketSettings{
		Versioning: types.BucketVersioningStatusEnabled,
		Lifecycle: []types.LifecycleRule{{
			ID:     aws.String(LifecycleRuleID),
			Status: types.ExpirationStatusEnabled,
			Filter: &types.LifecycleRuleFilter{Prefix: aws.String("")},
			Expiration: &types.LifecycleExpiration{
				Days: aws.Int32(ExpirationDays),
			},
			NoncurrentVersionExpiration: &types.NoncurrentVersionExpiration{
				NoncurrentDays: aws.Int32(NoncurrentExpirationDays),
			},
		}},
		Encryption: types.ServerSideEncryptionConfiguration{
			Rules: []types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{
					SSEAlgorithm: types.ServerSideEncryptionAes256,
				},
			}},
		},
		PublicAccessBlock: types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}
}

// EnsureBackupBucket creates the bucket if needed and converges every
// setting in BackupBucketSettings.
func (c *Client) EnsureBackupBucket(ctx context.Context, name string, tags map[string]string) (change.Action, error) {
	exists, err := c.BucketExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := c.createBucket(ctx, name); err != nil {
			return "", err
		}
	}

	settings := BackupBucketSettings()
	steps := []func(context.Context, string) (bool, error){
		func(ctx context.Context, name string) (bool, error) { return c.ensureVersioning(ctx, name, settings.Versioning) },
		func(ctx context.Context, name string) (bool, error) { return c.ensureLifecycle(ctx, name, settings.Lifecycle) },
		func(ctx context.Context, name string) (bool, error) { return c.ensureEncryption(ctx, name, settings.Encryption) },
		func(ctx context.Context, name string) (bool, error) {
			return c.ensurePublicAccessBlock(ctx, name, settings.PublicAccessBlock)
		},
		func(ctx context.Context, name string) (bool, error) { return c.ensureTags(ctx, name, tags) },
	}

	updated := false
	for _, step := range steps {
		changed, err := step(ctx, name)
		if err != nil {
			return "", fmt.Errorf("bucket %s: %w", name, err)
		}
		updated = updated || changed
	}

	switch {
	case !exists:
		return change.Created, nil
	case updated:
		return change.Updated, nil
	default:
		return change.Unchanged, nil
	}
}

func (c *Client) createBucket(ctx context.Context, name string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 rejects an explicit location constraint.
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	_, err := c.s3.CreateBucket(ctx, input)
	if err != nil && !isBucketAlreadyOwnedByYou(err) {
		return fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return nil
}

func (c *Client) ensureVersioning(ctx context.Context, name string, status types.BucketVersioningStatus) (bool, error) {
	out, err := c.s3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(name)})
	if err != nil {
		return false, fmt.Errorf("failed to read versioning: %w", err)
	}
	if out.Status == status {
		return false, nil
	}
	if _, err := c.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket:                  aws.String(name),
		VersioningConfiguration: &types.VersioningConfiguration{Status: status},
	}); err != nil {
		return false, fmt.Errorf("failed to enable versioning: %w", err)
	}
	return true, nil
}

func (c *Client) ensureLifecycle(ctx context.Context, name string, rules []types.LifecycleRule) (bool, error) {
	out, err := c.s3.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: aws.String(name)})
	if err != nil && !isMissingConfiguration(err) {
		return false, fmt.Errorf("failed to read lifecycle configuration: %w", err)
	}
	if err == nil && lifecycleEqual(out.Rules, rules) {
		return false, nil
	}
	if _, err := c.s3.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket:                 aws.String(name),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{Rules: rules},
	}); err != nil {
		return false, fmt.Errorf("failed to put lifecycle configuration: %w", err)
	}
	return true, nil
}

func (c *Client) ensureEncryption(ctx context.Context, name string, desired types.ServerSideEncryptionConfiguration) (bool, error) {
	out, err := c.s3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)})
	if err != nil && !isMissingConfiguration(err) {
		return false, fmt.Errorf("failed to read encryption: %w", err)
	}
	if err == nil && encryptionEqual(out.ServerSideEncryptionConfiguration, desired) {
		return false, nil
	}
	if _, err := c.s3.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket:                            aws.String(name),
		ServerSideEncryptionConfiguration: &desired,
	}); err != nil {
		return false, fmt.Errorf("failed to put encryption: %w", err)
	}
	return true, nil
}

func (c *Client) ensurePublicAccessBlock(ctx context.Context, name string, desired types.PublicAccessBlockConfiguration) (bool, error) {
	out, err := c.s3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(name)})
	if err != nil && !isMissingConfiguration(err) {
		return false, fmt.Errorf("failed to read public access block: %w", err)
	}
	if err == nil && publicAccessBlockEqual(out.PublicAccessBlockConfiguration, desired) {
		return false, nil
	}
	if _, err := c.s3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket:                         aws.String(name),
		PublicAccessBlockConfiguration: &desired,
	}); err != nil {
		return false, fmt.Errorf("failed to put public access block: %w", err)
	}
	return true, nil
}

func (c *Client) ensureTags(ctx context.Context, name string, tags map[string]string) (bool, error) {
	if len(tags) == 0 {
		return false, nil
	}
	out, err := c.s3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	if err != nil && !isMissingConfiguration(err) {
		return false, fmt.Errorf("failed to read tags: %w", err)
	}
	current := map[string]string{}
	if err == nil {
		for _, t := range out.TagSet {
			current[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
	}
	if maps.Equal(current, tags) {
		return false, nil
	}

	tagSet := make([]types.Tag, 0, len(tags))
	for _, k := range labels.Keys(tags) {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	if _, err := c.s3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(name),
		Tagging: &types.Tagging{TagSet: tagSet},
	}); err != nil {
		return false, fmt.Errorf("failed to put tags: %w", err)
	}
	return true, nil
}

func lifecycleEqual(have, want []types.LifecycleRule) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range want {
		h, w := have[i], want[i]
		if aws.ToString(h.ID) != aws.ToString(w.ID) || h.Status != w.Status {
			return false
		}
		if h.Expiration == nil || aws.ToInt32(h.Expiration.Days) != aws.ToInt32(w.Expiration.Days) {
			return false
		}
		if h.NoncurrentVersionExpiration == nil ||
			aws.ToInt32(h.NoncurrentVersionExpiration.NoncurrentDays) != aws.ToInt32(w.NoncurrentVersionExpiration.NoncurrentDays) {
			return false
		}
	}
	return true
}

func encryptionEqual(have *types.ServerSideEncryptionConfiguration, want types.ServerSideEncryptionConfiguration) bool {
	if have == nil || len(have.Rules) != len(want.Rules) {
		return false
	}
	for i, rule := range want.Rules {
		h := have.Rules[i].ApplyServerSideEncryptionByDefault
		if h == nil || h.SSEAlgorithm != rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm {
			return false
		}
	}
	return true
}

func publicAccessBlockEqual(have *types.PublicAccessBlockConfiguration, want types.PublicAccessBlockConfiguration) bool {
	if have == nil {
		return false
	}
	return aws.ToBool(have.BlockPublicAcls) == aws.ToBool(want.BlockPublicAcls) &&
		aws.ToBool(have.BlockPublicPolicy) == aws.ToBool(want.BlockPublicPolicy) &&
		aws.ToBool(have.IgnorePublicAcls) == aws.ToBool(want.IgnorePublicAcls) &&
		aws.ToBool(have.RestrictPublicBuckets) == aws.ToBool(want.RestrictPublicBuckets)
}

// EmptyBucket deletes every object version and delete marker in the bucket.
// It returns the number of entries removed.
func (c *Client) EmptyBucket(ctx context.Context, name string) (int, error) {
	removed := 0
	input := &s3.ListObjectVersionsInput{Bucket: aws.String(name)}
	for {
		out, err := c.s3.ListObjectVersions(ctx, input)
		if err != nil {
			if isNotFoundError(err) {
				return removed, nil
			}
			return removed, fmt.Errorf("failed to list object versions in %s: %w", name, err)
		}

		var ids []types.ObjectIdentifier
		for _, v := range out.Versions {
			ids = append(ids, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			ids = append(ids, types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		n, err := c.deleteObjects(ctx, name, ids)
		removed += n
		if err != nil {
			return removed, err
		}

		if !aws.ToBool(out.IsTruncated) {
			return removed, nil
		}
		input.KeyMarker = out.NextKeyMarker
		input.VersionIdMarker = out.NextVersionIdMarker
	}
}

func (c *Client) deleteObjects(ctx context.Context, bucket string, ids []types.ObjectIdentifier) (int, error) {
	removed := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]
		out, err := c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete objects in %s: %w", bucket, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return removed, fmt.Errorf("failed to delete %d objects in %s, first %s: %s",
				len(out.Errors), bucket, aws.ToString(first.Key), aws.ToString(first.Message))
		}
		removed += len(batch)
	}
	return removed, nil
}

// DeleteBucket deletes the bucket. The bucket must be empty.
func (c *Client) DeleteBucket(ctx context.Context, name string) (change.Action, error) {
	_, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFoundError(err) {
			return change.Unchanged, nil
		}
		return "", fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	return change.Deleted, nil
}

