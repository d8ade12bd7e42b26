package provisioning

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulty-technology/homelab/internal/util/change"
)

func TestLogResource_MapsActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action change.Action
		want   EventType
	}{
		{change.Created, EventResourceCreated},
		{change.Updated, EventResourceUpdated},
		{change.Unchanged, EventResourceExists},
		{change.Skipped, EventResourceSkipped},
		{change.Deleted, EventResourceDeleted},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			t.Parallel()
			obs := NewRecordingObserver()
			LogResource(obs, "aws:vpc", "talos-homelab-vpc", tt.action)

			events := obs.Events()
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Type)
			assert.Equal(t, "aws:vpc", events[0].Phase)
			assert.Equal(t, "talos-homelab-vpc", events[0].Resource)
			assert.Equal(t, string(tt.action), events[0].Fields["action"])
		})
	}
}

func TestRecordingObserver_WithFieldsSharesLog(t *testing.T) {
	t.Parallel()

	obs := NewRecordingObserver()
	child := obs.WithFields(map[string]string{"cluster": "talos-homelab"})

	LogPhaseStart(child, "talos:bootstrap")
	LogPhaseComplete(obs, "talos:bootstrap", 1500*time.Millisecond)

	events := obs.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "talos-homelab", events[0].Fields["cluster"])
	assert.Empty(t, events[1].Fields["cluster"])
	assert.Equal(t, "completed in 1.5s", events[1].Message)
}

func TestRecordingObserver_Concurrent(t *testing.T) {
	t.Parallel()

	obs := NewRecordingObserver()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs.Progress("apply", 1, 20)
		}()
	}
	wg.Wait()
	assert.Len(t, obs.OfType(EventProgress), 20)
}

func TestLogrObserver(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		lines []string
	)
	log := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	obs := NewLogrObserver(log).WithFields(map[string]string{"cluster": "talos-homelab"})
	LogResource(obs, "aws:vpc", "talos-homelab-vpc", change.Created)
	LogPhaseFailed(obs, "talos:health", errors.New("apiserver not ready"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"resource"="talos-homelab-vpc"`)
	assert.Contains(t, lines[0], `"cluster"="talos-homelab"`)
	assert.Contains(t, lines[0], `"event"="resource.created"`)
	assert.Contains(t, lines[1], `"error"="apiserver not ready"`)
}

func TestContext_RecorderAddsToChangeSet(t *testing.T) {
	t.Parallel()

	obs := NewRecordingObserver()
	ctx := &Context{Changes: &change.Set{}, Observer: obs}

	rec := ctx.Recorder("kubernetes")
	rec.Add("namespace:argocd", change.Created)
	rec.Add("namespace:logging", change.Unchanged)

	assert.Equal(t, 1, ctx.Changes.Changed())
	events := obs.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "kubernetes", events[0].Phase)
}

func TestLogrObserver_VerboseEventsNeedV1(t *testing.T) {
	t.Parallel()

	var lines []string
	log := funcr.New(func(_, args string) { lines = append(lines, args) }, funcr.Options{})

	obs := NewLogrObserver(log)
	LogPhaseStart(obs, "aws:vpc")
	obs.Progress("apply", 3, 29)
	LogPhaseComplete(obs, "aws:vpc", time.Second)

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"event"="phase.completed"`)
}

func TestLogResource_UnknownActionReportsExisting(t *testing.T) {
	t.Parallel()

	obs := NewRecordingObserver()
	LogResource(obs, "aws:vpc", "vpc", change.Action("noop"))
	assert.Len(t, obs.OfType(EventResourceExists), 1)
}
