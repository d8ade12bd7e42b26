// Package metrics records per-step timings and change counts of a run in a
// private Prometheus registry, which can be written to a node_exporter
// textfile.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/util/change"
)

const namespace = "homelab"

// Recorder owns the run metrics.
type Recorder struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	stepChanges  *prometheus.CounterVec
	stepFailures *prometheus.CounterVec
}

// New creates a Recorder with its own registry. The default registry is
// never touched, so several recorders can coexist in tests.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Duration of each provisioning step in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"step", "status"},
		),
		stepChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "changes_total",
				Help:      "Resource operations by group and action",
			},
			[]string{"group", "action"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "failures_total",
				Help:      "Provisioning steps that returned an error",
			},
			[]string{"step"},
		),
	}
	r.registry.MustRegister(r.stepDuration, r.stepChanges, r.stepFailures)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Hooks returns DAG hooks that observe every finished step. Skipped steps
// never ran and are not timed.
func (r *Recorder) Hooks() dag.Hooks {
	return dag.Hooks{
		OnFinish: r.ObserveStep,
	}
}

// ObserveStep records the outcome of one step.
func (r *Recorder) ObserveStep(res dag.Result) {
	switch res.Status {
	case dag.StatusSkipped:
		return
	case dag.StatusFailed:
		r.stepFailures.WithLabelValues(res.Name).Inc()
	}
	r.stepDuration.WithLabelValues(res.Name, string(res.Status)).Observe(res.Duration.Seconds())
}

// ObserveChanges counts every record of set by resource group, the part of
// the resource name before the first colon.
func (r *Recorder) ObserveChanges(set *change.Set) {
	for _, rec := range set.Records() {
		r.stepChanges.WithLabelValues(group(rec.Resource), string(rec.Action)).Inc()
	}
}

// WriteToTextfile writes all metrics in the text exposition format.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func group(resource string) string {
	if g, _, ok := strings.Cut(resource, ":"); ok {
		return g
	}
	return resource
}
