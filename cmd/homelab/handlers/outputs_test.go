package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestOutputs_MasksSecretsByDefault(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())

	require.NoError(t, Outputs(context.Background(), g, OutputsOptions{}))

	assert.Contains(t, out.String(), "203.0.113.10")
	assert.Contains(t, out.String(), "us-east-1a")
	assert.Contains(t, out.String(), "[secret]")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestOutputs_JSONWithSecrets(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())

	require.NoError(t, Outputs(context.Background(), g, OutputsOptions{JSON: true, ShowSecrets: true}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "i-1", got["nodeInstanceId"])
	assert.Equal(t, "homelab-etcd-backups", got["etcdBackupBucketName"])
	assert.Equal(t, "us-east-1", got["region"])
	assert.Equal(t, "hunter2", got["argocdAdminPassword"])
}

func TestOutputs_NoState(t *testing.T) {
	g, _, _ := testGlobals(t)

	err := Outputs(context.Background(), g, OutputsOptions{})
	assert.ErrorIs(t, err, ErrNoState)
}

func TestOutputs_YAMLUsesJSONNames(t *testing.T) {
	g, cfg, out := testGlobals(t)
	saveState(t, cfg, appliedState())

	require.NoError(t, Outputs(context.Background(), g, OutputsOptions{YAML: true}))

	var got map[string]string
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "i-1", got["nodeInstanceId"])
	assert.Equal(t, "[secret]", got["argocdAdminPassword"])
}
