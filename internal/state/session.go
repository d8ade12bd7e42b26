package state

import "sync"

// Session shares one State between concurrently running steps and persists
// every update, so an interrupted run resumes from the last recorded step.
type Session struct {
	mu    sync.Mutex
	store *Store
	state *State
}

// NewSession wraps st. A nil store keeps the state in memory only.
func NewSession(store *Store, st *State) *Session {
	if st == nil {
		st = &State{Version: CurrentVersion}
	}
	return &Session{store: store, state: st}
}

// Read calls fn with the state under the session lock. fn must not retain it.
func (s *Session) Read(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Update mutates the state and saves it.
func (s *Session) Update(fn func(st *State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.state)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.state
	if s.state.Files != nil {
		cp.Files = make(map[string]string, len(s.state.Files))
		for k, v := range s.state.Files {
			cp.Files[k] = v
		}
	}
	return cp
}
