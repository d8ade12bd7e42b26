package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/localconfig"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/s3"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/ui"
)

// Snapshotter streams an etcd snapshot from the node. Implemented by *talos.Node.
type Snapshotter interface {
	EtcdSnapshot(ctx context.Context) ([]byte, error)
}

// ObjectStore stores and lists snapshots. Implemented by *s3.Client.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]s3.Object, error)
}

// Factory function variables for backup - can be replaced in tests.
var (
	// newSnapshotter connects to the node with the written talosconfig.
	newSnapshotter = func(talosconfig []byte, endpoint, address string, timeouts *config.Timeouts) (Snapshotter, error) {
		node, err := talos.NewNode(talosconfig, endpoint, address, timeouts)
		if err != nil {
			return nil, err
		}
		return node, nil
	}

	// newObjectStore creates an S3 client.
	newObjectStore = func(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
		awsCfg, err := aws.LoadConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return s3.NewClient(awsCfg), nil
	}

	// now returns the snapshot timestamp.
	now = time.Now
)

// BackupKey returns the object key of a snapshot taken at t.
func BackupKey(cluster string, t time.Time) string {
	return backupPrefix(cluster) + t.UTC().Format("20060102T150405Z") + ".snapshot"
}

func backupPrefix(cluster string) string {
	return "etcd/" + cluster + "/"
}

// BackupOptions are the flags of the backup command.
type BackupOptions struct {
	// List prints the stored snapshots instead of taking a new one.
	List bool
}

// Backup takes an etcd snapshot from the node and uploads it to the backup
// bucket, or lists the stored snapshots.
func Backup(ctx context.Context, g Globals, opts BackupOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, provisioning.NewRecordingObserver(), false)
	if err != nil {
		return err
	}
	defer s.close()

	snapshot := s.ctx.State.Snapshot()
	if snapshot.AWS.BucketName == "" {
		return fmt.Errorf("no backup bucket recorded in state, run apply first")
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	if opts.List {
		return listBackups(ctx, g, store, snapshot.AWS.BucketName, cfg.ClusterName)
	}

	if snapshot.AWS.PublicIP == "" || snapshot.AWS.PrivateIP == "" || !snapshot.Talos.Bootstrapped {
		return ErrNoState
	}

	talosconfig, err := os.ReadFile(filepath.Join(cfg.OutputDir, localconfig.TalosconfigFile))
	if err != nil {
		return fmt.Errorf("failed to read talosconfig: %w", err)
	}
	node, err := newSnapshotter(talosconfig, snapshot.AWS.PublicIP, snapshot.AWS.PrivateIP, s.ctx.Timeouts)
	if err != nil {
		return err
	}
	data, err := node.EtcdSnapshot(ctx)
	if err != nil {
		return err
	}

	key := BackupKey(cfg.ClusterName, now())
	if err := store.PutObject(ctx, snapshot.AWS.BucketName, key, data); err != nil {
		return err
	}

	fmt.Fprintf(g.out(), "Uploaded etcd snapshot (%d bytes) to s3://%s/%s\n", len(data), snapshot.AWS.BucketName, key)
	return nil
}

// listBackups prints the cluster's snapshots, newest first.
func listBackups(ctx context.Context, g Globals, store ObjectStore, bucket, cluster string) error {
	prefix := backupPrefix(cluster)
	objects, err := store.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		fmt.Fprintf(g.out(), "No snapshots in s3://%s/%s\n", bucket, prefix)
		return nil
	}

	slices.SortFunc(objects, func(a, b s3.Object) int { return b.LastModified.Compare(a.LastModified) })
	pairs := make([][2]string, 0, len(objects))
	for _, o := range objects {
		pairs = append(pairs, [2]string{
			strings.TrimPrefix(o.Key, prefix),
			fmt.Sprintf("%d bytes  %s", o.Size, o.LastModified.UTC().Format(time.RFC3339)),
		})
	}
	fmt.Fprint(g.out(), ui.RenderOutputs("Snapshots: s3://"+bucket+"/"+prefix, pairs))
	return nil
}
