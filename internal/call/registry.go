package call

import (
	"fmt"
	"sync"
)

// Registry maps live call identifiers to their sessions. It is the single
// source of truth for binding a telephony socket to an AI socket: exactly one
// session exists per live callID. Handlers on different goroutines mutate it,
// so all access is mutex-guarded.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under its CallID. Registering a second session for
// a live callID is an error.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.CallID]; exists {
		return fmt.Errorf("call: session for %q already registered", s.CallID)
	}
	r.sessions[s.CallID] = s
	return nil
}

// Get returns the session for callID, or nil when none is registered.
func (r *Registry) Get(callID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callID]
}

// Remove deregisters callID. Reports whether a session was present.
func (r *Registry) Remove(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callID]; !ok {
		return false
	}
	delete(r.sessions, callID)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
