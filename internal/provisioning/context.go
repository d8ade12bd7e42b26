package provisioning

import (
	"context"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/state"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// Context wraps all dependencies and state needed for a provisioning run.
type Context struct {
	context.Context
	Config      *config.Config
	State       *state.Session
	Changes     *change.Set
	Observer    Observer
	Timeouts    *config.Timeouts
	SecretsPath string // Talos secrets bundle
}

// NewContext creates a new provisioning context. State changes are saved to
// store as steps complete.
func NewContext(ctx context.Context, cfg *config.Config, store *state.Store, st *state.State, observer Observer) *Context {
	return &Context{
		Context:     ctx,
		Config:      cfg,
		State:       state.NewSession(store, st),
		Changes:     &change.Set{},
		Observer:    observer,
		Timeouts:    config.LoadTimeouts(),
		SecretsPath: store.SecretsPath(),
	}
}

// Record adds the outcome of an operation to the change set and emits it.
func (c *Context) Record(phase, resource string, action change.Action) {
	c.Changes.Add(resource, action)
	LogResource(c.Observer, phase, resource, action)
}

// Recorder returns a change.Recorder that records under phase.
func (c *Context) Recorder(phase string) change.Recorder {
	return phaseRecorder{ctx: c, phase: phase}
}

type phaseRecorder struct {
	ctx   *Context
	phase string
}

func (r phaseRecorder) Add(resource string, action change.Action) {
	r.ctx.Record(r.phase, resource, action)
}
