package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/localconfig"
	"github.com/faulty-technology/homelab/internal/platform/s3"
	"github.com/faulty-technology/homelab/internal/state"
)

type fakeSnapshotter struct{ data []byte }

func (f fakeSnapshotter) EtcdSnapshot(context.Context) ([]byte, error) { return f.data, nil }

type fakeStore struct {
	bucket, key string
	data        []byte

	listPrefix string
	objects    []s3.Object
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, data []byte) error {
	f.bucket, f.key, f.data = bucket, key, data
	return nil
}

func (f *fakeStore) ListObjects(_ context.Context, bucket, prefix string) ([]s3.Object, error) {
	f.bucket, f.listPrefix = bucket, prefix
	return f.objects, nil
}

func stubObjectStore(t *testing.T, store *fakeStore) {
	t.Helper()
	orig := newObjectStore
	t.Cleanup(func() { newObjectStore = orig })
	newObjectStore = func(context.Context, *config.Config) (ObjectStore, error) { return store, nil }
}

func TestBackupKey(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "etcd/homelab/20260304T040607Z.snapshot", BackupKey("homelab", ts))
}

func TestBackup_UploadsSnapshot(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, localconfig.TalosconfigFile), []byte("context: homelab"), 0600))

	origSnap, origNow := newSnapshotter, now
	defer func() { newSnapshotter, now = origSnap, origNow }()

	var endpoint, address string
	newSnapshotter = func(talosconfig []byte, e, a string, _ *config.Timeouts) (Snapshotter, error) {
		assert.Equal(t, "context: homelab", string(talosconfig))
		endpoint, address = e, a
		return fakeSnapshotter{data: []byte("snapshot")}, nil
	}
	writer := &fakeStore{}
	stubObjectStore(t, writer)
	now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, Backup(context.Background(), g, BackupOptions{}))

	assert.Equal(t, "203.0.113.10", endpoint)
	assert.Equal(t, "10.0.1.10", address)
	assert.Equal(t, "homelab-etcd-backups", writer.bucket)
	assert.Equal(t, "etcd/homelab/20260102T030405Z.snapshot", writer.key)
	assert.Equal(t, []byte("snapshot"), writer.data)
	assert.Contains(t, out.String(), "s3://homelab-etcd-backups/etcd/homelab/20260102T030405Z.snapshot")
}

func TestBackup_RequiresBootstrappedCluster(t *testing.T) {
	g, cfg, _ := testGlobals(t)
	st := appliedState()
	st.Talos.Bootstrapped = false
	saveState(t, cfg, st)
	stubObjectStore(t, &fakeStore{})

	err := Backup(context.Background(), g, BackupOptions{})
	assert.ErrorIs(t, err, ErrNoState)
}

func TestBackup_RequiresBucket(t *testing.T) {
	g, cfg, _ := testGlobals(t)
	saveState(t, cfg, &state.State{ClusterName: cfg.ClusterName})

	err := Backup(context.Background(), g, BackupOptions{List: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup bucket")
}

func TestBackup_ListNewestFirst(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())
	store := &fakeStore{objects: []s3.Object{
		{Key: "etcd/homelab/20260101T000000Z.snapshot", Size: 10, LastModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "etcd/homelab/20260301T000000Z.snapshot", Size: 30, LastModified: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}}
	stubObjectStore(t, store)

	require.NoError(t, Backup(context.Background(), g, BackupOptions{List: true}))

	assert.Equal(t, "homelab-etcd-backups", store.bucket)
	assert.Equal(t, "etcd/homelab/", store.listPrefix)
	text := out.String()
	assert.Contains(t, text, "30 bytes  2026-03-01T00:00:00Z")
	assert.Less(t, strings.Index(text, "20260301T000000Z"), strings.Index(text, "20260101T000000Z"))
}

func TestBackup_ListEmpty(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())
	stubObjectStore(t, &fakeStore{})

	require.NoError(t, Backup(context.Background(), g, BackupOptions{List: true}))
	assert.Contains(t, out.String(), "No snapshots in s3://homelab-etcd-backups/etcd/homelab/")
}
