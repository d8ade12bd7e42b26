// Package change describes what a reconcile step did to a resource.
package change

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Action is the effect of one ensure or delete operation.
type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
	Skipped   Action = "skipped"
	Deleted   Action = "deleted"
)

// Mutating reports whether the action changed anything.
func (a Action) Mutating() bool {
	return a == Created || a == Updated || a == Deleted
}

// Recorder receives the outcome of each resource operation. *Set is a Recorder.
type Recorder interface {
	Add(resource string, action Action)
}

// Record is one entry of a Set.
type Record struct {
	Resource string
	Action   Action
}

// Set collects records from concurrently running steps.
type Set struct {
	mu      sync.Mutex
	records []Record
}

// Add appends a record.
func (s *Set) Add(resource string, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{Resource: resource, Action: action})
}

// Records returns records sorted by resource name.
func (s *Set) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// Count returns how many records carry the action.
func (s *Set) Count(action Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Action == action {
			n++
		}
	}
	return n
}

// Changed returns the number of mutating records.
func (s *Set) Changed() int {
	return s.Count(Created) + s.Count(Updated) + s.Count(Deleted)
}

// Summary renders counts, e.g. "3 created, 1 updated, 12 unchanged".
func (s *Set) Summary() string {
	var parts []string
	for _, a := range []Action{Created, Updated, Deleted, Unchanged, Skipped} {
		if n := s.Count(a); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, a))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}
