package provisioning

import (
	"fmt"
	"time"

	"github.com/faulty-technology/homelab/internal/util/change"
)

// Observer is where steps report what they do. Implementations must be safe
// for concurrent use: independent steps run in parallel.
type Observer interface {
	Event(event Event)
	Progress(phase string, current, total int)
	// WithFields returns an Observer that adds fields to every event.
	WithFields(fields map[string]string) Observer
}

// Event is one structured record of a run. Phase names the step
// ("aws:vpc") or the whole phase ("destroy"); Err is set on failures.
type Event struct {
	Type     EventType
	Phase    string
	Message  string
	Resource string
	Err      error
	Fields   map[string]string
}

// EventType classifies an Event.
type EventType string

// Step lifecycle.
const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"
	EventPhaseSkipped   EventType = "phase.skipped" // a dependency failed
)

// Resource outcomes, one per change.Action.
const (
	EventResourceCreated EventType = "resource.created"
	EventResourceUpdated EventType = "resource.updated"
	EventResourceExists  EventType = "resource.exists"
	EventResourceSkipped EventType = "resource.skipped"
	EventResourceDeleted EventType = "resource.deleted"
)

const (
	EventValidationWarning EventType = "validation.warning"
	EventValidationError   EventType = "validation.error"
	EventProgress          EventType = "progress"
)

// Failure reports whether events of this type carry an error.
func (t EventType) Failure() bool {
	return t == EventPhaseFailed || t == EventValidationError
}

// verbose events are only shown at -v.
func (t EventType) verbose() bool {
	return t == EventPhaseStarted || t == EventProgress
}

var actionEvents = map[change.Action]EventType{
	change.Created:   EventResourceCreated,
	change.Updated:   EventResourceUpdated,
	change.Unchanged: EventResourceExists,
	change.Skipped:   EventResourceSkipped,
	change.Deleted:   EventResourceDeleted,
}

func progressEvent(phase string, current, total int) Event {
	return Event{Type: EventProgress, Phase: phase, Message: fmt.Sprintf("%d/%d steps done", current, total)}
}

func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{Type: EventPhaseStarted, Phase: phase, Message: "starting"})
}

func LogPhaseComplete(observer Observer, phase string, took time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: "completed in " + took.Round(time.Millisecond).String(),
	})
}

func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseFailed, Phase: phase, Message: "failed", Err: err})
}

// LogPhaseSkipped reports a step that never ran; err says why.
func LogPhaseSkipped(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseSkipped, Phase: phase, Message: err.Error()})
}

// LogResource reports the outcome of one ensure or delete call. Unknown
// actions are reported as already existing.
func LogResource(observer Observer, phase, resource string, action change.Action) {
	t, ok := actionEvents[action]
	if !ok {
		t = EventResourceExists
	}
	observer.Event(Event{
		Type:     t,
		Phase:    phase,
		Resource: resource,
		Message:  resource + " " + string(action),
		Fields:   map[string]string{"action": string(action)},
	})
}
