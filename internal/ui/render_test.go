package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/util/change"
)

func TestRenderOutputs_AlignsKeys(t *testing.T) {
	t.Parallel()

	out := RenderOutputs("Outputs", [][2]string{
		{"nodePublicIp", "203.0.113.10"},
		{"region", "us-east-1"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Outputs")
	assert.Equal(t, strings.Index(lines[1], "203.0.113.10"), strings.Index(lines[2], "us-east-1"))
}

func TestRenderSummary_ListsOnlyMutations(t *testing.T) {
	t.Parallel()

	set := &change.Set{}
	set.Add("aws:vpc", change.Created)
	set.Add("aws:subnet", change.Unchanged)
	set.Add("talos:apply-config", change.Updated)

	out := RenderSummary("Apply complete", set, nil)

	assert.Contains(t, out, "aws:vpc")
	assert.Contains(t, out, "talos:apply-config")
	assert.NotContains(t, out, "aws:subnet")
	assert.Contains(t, out, "1 created, 1 updated, 1 unchanged")
}

func TestRenderSummary_NoChanges(t *testing.T) {
	t.Parallel()

	set := &change.Set{}
	set.Add("aws:vpc", change.Unchanged)

	out := RenderSummary("Apply complete", set, &dag.Report{Results: map[string]*dag.Result{}})

	assert.NotContains(t, out, "Changes")
	assert.Contains(t, out, "1 unchanged")
}

func TestRenderSummary_ReportsFailedAndSkippedSteps(t *testing.T) {
	t.Parallel()

	report := &dag.Report{
		Results: map[string]*dag.Result{
			"talos:health":     {Name: "talos:health", Status: dag.StatusFailed, Err: errors.New("etcd not healthy")},
			"talos:kubeconfig": {Name: "talos:kubeconfig", Status: dag.StatusSkipped},
			"aws:vpc":          {Name: "aws:vpc", Status: dag.StatusSucceeded},
		},
		Completed: []string{"aws:vpc", "talos:health", "talos:kubeconfig"},
	}

	out := RenderSummary("Apply failed", &change.Set{}, report)

	assert.Contains(t, out, "talos:health: etcd not healthy")
	assert.Contains(t, out, "talos:kubeconfig")
	assert.Contains(t, out, "no changes")
}
