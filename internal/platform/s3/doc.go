// Package s3 manages the etcd backup bucket.
//
// The bucket is created in the cluster region with versioning, a 30-day
// expiration lifecycle, default AES256 encryption, and every public access
// block flag set. Each setting is read back and rewritten only when it
// drifted, so repeated applies leave an unchanged bucket untouched. The
// client also uploads and lists etcd snapshots and can empty the bucket,
// including every object version, ahead of deletion.
package s3
