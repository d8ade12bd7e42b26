package dag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a single node.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result records how a node finished.
type Result struct {
	Name     string
	Status   Status
	Duration time.Duration
	Err      error
}

// Report is the outcome of a Run. Completed lists node names in the order
// they finished.
type Report struct {
	Results   map[string]*Result
	Completed []string
}

// Failed returns the names of nodes that ran and returned an error.
func (r *Report) Failed() []string {
	var names []string
	for _, name := range r.Completed {
		if r.Results[name].Status == StatusFailed {
			names = append(names, name)
		}
	}
	return names
}

// Hooks observe node execution. Hooks may be called from several goroutines.
type Hooks struct {
	OnStart  func(name string)
	OnFinish func(result Result)
}

type runOptions struct {
	concurrency int
	hooks       Hooks
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithConcurrency limits how many nodes execute at once. Values below one mean one.
func WithConcurrency(n int) RunOption {
	return func(o *runOptions) {
		o.concurrency = max(n, 1)
	}
}

// WithHooks installs execution hooks.
func WithHooks(h Hooks) RunOption {
	return func(o *runOptions) {
		o.hooks = h
	}
}

// Run evaluates the graph. A node starts once all of its dependencies have
// succeeded. When a node fails, its transitive dependents are skipped and
// independent branches keep running. The returned error joins every node
// failure; it is nil only if all nodes succeeded.
func (g *Graph) Run(ctx context.Context, opts ...RunOption) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	o := runOptions{concurrency: 4}
	for _, opt := range opts {
		opt(&o)
	}

	report := &Report{Results: make(map[string]*Result, len(g.names))}
	if len(g.names) == 0 {
		return report, nil
	}

	pending := make(map[string]int, len(g.names))
	dependents := make(map[string][]string, len(g.names))
	for _, name := range g.names {
		n := g.nodes[name]
		pending[name] = len(n.deps)
		for _, dep := range n.deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Buffered so workers never block on a scheduler waiting for a free slot.
	results := make(chan Result, len(g.names))

	var eg errgroup.Group
	eg.SetLimit(o.concurrency)

	finish := func(r Result) {
		res := r
		report.Results[r.Name] = &res
		report.Completed = append(report.Completed, r.Name)
		if o.hooks.OnFinish != nil {
			o.hooks.OnFinish(r)
		}
	}

	var ready []string
	for _, name := range g.names {
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	running := 0
	for len(report.Completed) < len(g.names) {
		for len(ready) > 0 {
			name := ready[0]
			ready = ready[1:]

			if blocker := g.failedDependency(report, name); blocker != "" {
				finish(Result{Name: name, Status: StatusSkipped, Err: fmt.Errorf("%w: %s did not succeed", ErrSkipped, blocker)})
				ready = append(ready, g.release(name, pending, dependents)...)
				continue
			}
			if err := ctx.Err(); err != nil {
				finish(Result{Name: name, Status: StatusSkipped, Err: fmt.Errorf("%w: %w", ErrSkipped, err)})
				ready = append(ready, g.release(name, pending, dependents)...)
				continue
			}

			n := g.nodes[name]
			running++
			eg.Go(func() error {
				results <- g.execute(ctx, n, o.hooks)
				return nil
			})
		}

		if running == 0 {
			break
		}

		r := <-results
		running--
		finish(r)
		ready = append(ready, g.release(r.Name, pending, dependents)...)
	}

	_ = eg.Wait()

	var errs []error
	for _, name := range report.Completed {
		if res := report.Results[name]; res.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
	}
	return report, errors.Join(errs...)
}

func (g *Graph) execute(ctx context.Context, n *node, hooks Hooks) Result {
	if hooks.OnStart != nil {
		hooks.OnStart(n.name)
	}

	runCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := time.Now()
	err := n.run(runCtx)
	elapsed := time.Since(start)

	if err != nil {
		if n.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %v: %w", n.timeout, err)
		}
		return Result{Name: n.name, Status: StatusFailed, Duration: elapsed, Err: err}
	}
	return Result{Name: n.name, Status: StatusSucceeded, Duration: elapsed}
}

// failedDependency returns the first dependency of name that did not succeed.
func (g *Graph) failedDependency(report *Report, name string) string {
	for _, dep := range g.nodes[name].deps {
		if res, ok := report.Results[dep]; ok && res.Status != StatusSucceeded {
			return dep
		}
	}
	return ""
}

// release marks name as finished and returns the dependents that became ready.
func (g *Graph) release(name string, pending map[string]int, dependents map[string][]string) []string {
	var ready []string
	for _, d := range dependents[name] {
		pending[d]--
		if pending[d] == 0 {
			ready = append(ready, d)
		}
	}
	return ready
}
