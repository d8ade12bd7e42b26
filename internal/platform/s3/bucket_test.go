package s3

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// fakeBucket is an in-memory single bucket.
type fakeBucket struct {
	API

	exists     bool
	created    *s3.CreateBucketInput
	versioning types.BucketVersioningStatus
	lifecycle  []types.LifecycleRule
	encryption *types.ServerSideEncryptionConfiguration
	pab        *types.PublicAccessBlockConfiguration
	tags       []types.Tag
	versions   []types.ObjectVersion
	puts       int
}

func notFound(code string) error { return &smithy.GenericAPIError{Code: code} }

func (f *fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.exists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeBucket) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.exists = true
	f.created = in
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeBucket) GetBucketVersioning(context.Context, *s3.GetBucketVersioningInput, ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	return &s3.GetBucketVersioningOutput{Status: f.versioning}, nil
}

func (f *fakeBucket) PutBucketVersioning(_ context.Context, in *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	f.puts++
	f.versioning = in.VersioningConfiguration.Status
	return &s3.PutBucketVersioningOutput{}, nil
}

func (f *fakeBucket) GetBucketLifecycleConfiguration(context.Context, *s3.GetBucketLifecycleConfigurationInput, ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error) {
	if f.lifecycle == nil {
		return nil, notFound("NoSuchLifecycleConfiguration")
	}
	return &s3.GetBucketLifecycleConfigurationOutput{Rules: f.lifecycle}, nil
}

func (f *fakeBucket) PutBucketLifecycleConfiguration(_ context.Context, in *s3.PutBucketLifecycleConfigurationInput, _ ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error) {
	f.puts++
	f.lifecycle = in.LifecycleConfiguration.Rules
	return &s3.PutBucketLifecycleConfigurationOutput{}, nil
}

func (f *fakeBucket) GetBucketEncryption(context.Context, *s3.GetBucketEncryptionInput, ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	if f.encryption == nil {
		return nil, notFound("ServerSideEncryptionConfigurationNotFoundError")
	}
	return &s3.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: f.encryption}, nil
}

func (f *fakeBucket) PutBucketEncryption(_ context.Context, in *s3.PutBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error) {
	f.puts++
	f.encryption = in.ServerSideEncryptionConfiguration
	return &s3.PutBucketEncryptionOutput{}, nil
}

func (f *fakeBucket) GetPublicAccessBlock(context.Context, *s3.GetPublicAccessBlockInput, ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	if f.pab == nil {
		return nil, notFound("NoSuchPublicAccessBlockConfiguration")
	}
	return &s3.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: f.pab}, nil
}

func (f *fakeBucket) PutPublicAccessBlock(_ context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	f.puts++
	f.pab = in.PublicAccessBlockConfiguration
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (f *fakeBucket) GetBucketTagging(context.Context, *s3.GetBucketTaggingInput, ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	if f.tags == nil {
		return nil, notFound("NoSuchTagSet")
	}
	return &s3.GetBucketTaggingOutput{TagSet: f.tags}, nil
}

func (f *fakeBucket) PutBucketTagging(_ context.Context, in *s3.PutBucketTaggingInput, _ ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error) {
	f.puts++
	f.tags = in.Tagging.TagSet
	return &s3.PutBucketTaggingOutput{}, nil
}

func (f *fakeBucket) ListObjectVersions(_ context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	start := 0
	if in.KeyMarker != nil {
		fmt.Sscanf(aws.ToString(in.KeyMarker), "%d", &start)
	}
	end := min(start+2, len(f.versions))
	out := &s3.ListObjectVersionsOutput{Versions: f.versions[start:end]}
	if end < len(f.versions) {
		out.IsTruncated = aws.Bool(true)
		out.NextKeyMarker = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func (f *fakeBucket) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeBucket) DeleteBucket(context.Context, *s3.DeleteBucketInput, ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if !f.exists {
		return nil, notFound("NoSuchBucket")
	}
	f.exists = false
	return &s3.DeleteBucketOutput{}, nil
}

func TestEnsureBackupBucket_CreateThenUnchanged(t *testing.T) {
	t.Parallel()
	fake := &fakeBucket{}
	c := NewFromAPI(fake, "us-east-1")
	tags := map[string]string{"Name": "talos-homelab-etcd-backups", "Project": "talos-homelab"}

	action, err := c.EnsureBackupBucket(context.Background(), "talos-homelab-etcd-backups", tags)
	require.NoError(t, err)
	assert.Equal(t, change.Created, action)
	require.NotNil(t, fake.created)
	assert.Nil(t, fake.created.CreateBucketConfiguration, "us-east-1 takes no location constraint")

	assert.Equal(t, types.BucketVersioningStatusEnabled, fake.versioning)
	require.Len(t, fake.lifecycle, 1)
	assert.Equal(t, LifecycleRuleID, aws.ToString(fake.lifecycle[0].ID))
	assert.Equal(t, int32(30), aws.ToInt32(fake.lifecycle[0].Expiration.Days))
	assert.Equal(t, int32(7), aws.ToInt32(fake.lifecycle[0].NoncurrentVersionExpiration.NoncurrentDays))
	assert.Equal(t, types.ServerSideEncryptionAes256, fake.encryption.Rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm)
	assert.True(t, aws.ToBool(fake.pab.BlockPublicAcls))
	assert.True(t, aws.ToBool(fake.pab.BlockPublicPolicy))
	assert.True(t, aws.ToBool(fake.pab.IgnorePublicAcls))
	assert.True(t, aws.ToBool(fake.pab.RestrictPublicBuckets))

	puts := fake.puts
	action, err = c.EnsureBackupBucket(context.Background(), "talos-homelab-etcd-backups", tags)
	require.NoError(t, err)
	assert.Equal(t, change.Unchanged, action)
	assert.Equal(t, puts, fake.puts)
}

func TestEnsureBackupBucket_RepairsDrift(t *testing.T) {
	t.Parallel()
	settings := BackupBucketSettings()
	fake := &fakeBucket{
		exists:     true,
		versioning: types.BucketVersioningStatusSuspended,
		lifecycle:  settings.Lifecycle,
		encryption: &settings.Encryption,
		pab: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(false),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}
	c := NewFromAPI(fake, "us-east-1")

	action, err := c.EnsureBackupBucket(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.Equal(t, change.Updated, action)
	assert.Equal(t, 2, fake.puts)
	assert.Equal(t, types.BucketVersioningStatusEnabled, fake.versioning)
	assert.True(t, aws.ToBool(fake.pab.BlockPublicPolicy))
}

func TestCreateBucket_OtherRegion(t *testing.T) {
	t.Parallel()
	fake := &fakeBucket{}
	c := NewFromAPI(fake, "eu-central-1")

	require.NoError(t, c.createBucket(context.Background(), "b"))
	require.NotNil(t, fake.created.CreateBucketConfiguration)
	assert.Equal(t, types.BucketLocationConstraint("eu-central-1"), fake.created.CreateBucketConfiguration.LocationConstraint)
}

func TestEmptyBucket(t *testing.T) {
	t.Parallel()
	fake := &fakeBucket{exists: true}
	for i := range 5 {
		fake.versions = append(fake.versions, types.ObjectVersion{
			Key:       aws.String(fmt.Sprintf("etcd/c/%d.snapshot", i)),
			VersionId: aws.String(fmt.Sprint(i)),
		})
	}
	c := NewFromAPI(fake, "us-east-1")

	removed, err := c.EmptyBucket(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	action, err := c.DeleteBucket(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, change.Deleted, action)

	action, err = c.DeleteBucket(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, change.Unchanged, action)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	assert.True(t, isNotFoundError(fmt.Errorf("wrapped: %w", &types.NoSuchBucket{})))
	assert.True(t, isNotFoundError(notFound("404")))
	assert.False(t, isNotFoundError(notFound("AccessDenied")))
	assert.True(t, isBucketAlreadyOwnedByYou(fmt.Errorf("wrapped: %w", &types.BucketAlreadyOwnedByYou{})))
	assert.False(t, isBucketAlreadyOwnedByYou(notFound("BucketAlreadyExists")))
	assert.True(t, isMissingConfiguration(notFound("NoSuchTagSet")))
	assert.False(t, isMissingConfiguration(nil))
}
