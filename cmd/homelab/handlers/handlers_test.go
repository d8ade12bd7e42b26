package handlers

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/state"

	"github.com/stretchr/testify/require"
)

// testGlobals points state and output directories into a temp dir and
// replaces config loading and logging. Tests using it must not run in
// parallel because they swap package-level factories.
func testGlobals(t *testing.T) (Globals, *config.Config, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.ClusterName = "homelab"
	cfg.StateDir = filepath.Join(dir, ".homelab")
	cfg.OutputDir = filepath.Join(dir, ".talos")

	origLoad, origLogger := loadConfig, newLogger
	t.Cleanup(func() {
		loadConfig = origLoad
		newLogger = origLogger
	})
	loadConfig = func(Globals) (*config.Config, error) { return cfg, nil }
	newLogger = func(bool) logr.Logger { return logr.Discard() }

	var out bytes.Buffer
	return Globals{Out: &out}, cfg, &out
}

func saveState(t *testing.T, cfg *config.Config, st *state.State) {
	t.Helper()
	require.NoError(t, state.NewStore(cfg.StateDir).Save(st))
}

func appliedState() *state.State {
	return &state.State{
		Version:     state.CurrentVersion,
		ClusterName: "homelab",
		AWS: state.AWSResources{
			VPCID:           "vpc-1",
			SubnetID:        "subnet-1",
			SecurityGroupID: "sg-1",
			AllocationID:    "eipalloc-1",
			PublicIP:        "203.0.113.10",
			InstanceID:      "i-1",
			PrivateIP:       "10.0.1.10",
			AMIID:           "ami-1",
			AMIName:         "talos-v1.12.4-us-east-1-amd64",
			BucketName:      "homelab-etcd-backups",
		},
		Talos:      state.TalosState{ConfigHash: "h", Bootstrapped: true},
		Kubernetes: state.KubernetesState{ArgoCDAdminPassword: "hunter2"},
	}
}
