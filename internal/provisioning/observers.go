package provisioning

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/go-logr/logr"
)

// withFields returns base overlaid with extra without touching either.
func withFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

// LogrObserver writes events as structured log lines. Started and progress
// events go to V(1); failures are logged as errors.
type LogrObserver struct {
	log    logr.Logger
	fields map[string]string
}

func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log}
}

func (o *LogrObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	fields := withFields(o.fields, event.Fields)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kv = append(kv, k, fields[k])
	}

	switch {
	case event.Type.Failure():
		err := event.Err
		if err == nil {
			err = errors.New(event.Message)
		}
		o.log.Error(err, event.Message, kv...)
	case event.Type.verbose():
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

func (o *LogrObserver) Progress(phase string, current, total int) {
	o.Event(progressEvent(phase, current, total))
}

func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	return &LogrObserver{log: o.log, fields: withFields(o.fields, fields)}
}

// eventLog is shared by a RecordingObserver and everything derived from it
// through WithFields.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

// RecordingObserver keeps every event in memory for inspection.
type RecordingObserver struct {
	log    *eventLog
	fields map[string]string
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{log: &eventLog{}}
}

func (o *RecordingObserver) Event(event Event) {
	if len(o.fields) > 0 {
		event.Fields = withFields(o.fields, event.Fields)
	}
	o.log.mu.Lock()
	o.log.events = append(o.log.events, event)
	o.log.mu.Unlock()
}

func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(progressEvent(phase, current, total))
}

func (o *RecordingObserver) WithFields(fields map[string]string) Observer {
	return &RecordingObserver{log: o.log, fields: withFields(o.fields, fields)}
}

// Events returns a copy of everything recorded so far.
func (o *RecordingObserver) Events() []Event {
	o.log.mu.Lock()
	defer o.log.mu.Unlock()
	return slices.Clone(o.log.events)
}

// OfType filters Events by type.
func (o *RecordingObserver) OfType(t EventType) []Event {
	return slices.DeleteFunc(o.Events(), func(e Event) bool { return e.Type != t })
}
