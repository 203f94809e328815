package engine

import (
	"sync"
	"time"

	"github.com/MrWong99/callyx/internal/call"
)

// entry wraps one session with its own lock. The per-entry lock serializes
// all turns for one call while the registry map lock is held only for
// lookup, so independent calls never block each other.
type entry struct {
	mu sync.Mutex

	sess *call.Session

	// retired marks an entry that was removed from the map while another
	// goroutine was waiting on mu. Waiters must re-resolve through the map
	// instead of touching a dead session.
	retired bool
}

// Registry is the concurrency-safe store of active sessions keyed by call
// ID. It guarantees atomic get-or-create on first contact and per-call
// mutual exclusion thereafter.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// WithSession runs fn under the per-call lock, creating the session on
// first contact. When fn reports retire, the session is removed from the
// registry before the lock is released; a later event for the same call ID
// starts a fresh session.
//
// Two invocations for the same call ID never run fn concurrently.
func (r *Registry) WithSession(callID string, now time.Time, fn func(s *call.Session) (retire bool)) {
	for {
		r.mu.Lock()
		e, ok := r.sessions[callID]
		if !ok {
			e = &entry{sess: call.NewSession(callID, call.CallerIdentity{}, now)}
			r.sessions[callID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.retired {
			// Lost the race against a terminal turn; the map no longer
			// holds this entry. Resolve again.
			e.mu.Unlock()
			continue
		}
		if fn(e.sess) {
			r.retire(callID, e)
		}
		e.mu.Unlock()
		return
	}
}

// WithExisting is like [Registry.WithSession] but never creates a session.
// It reports whether a session existed. Teardown paths use it so a signal
// arriving after the terminal transition stays a no-op.
func (r *Registry) WithExisting(callID string, fn func(s *call.Session) (retire bool)) bool {
	for {
		r.mu.Lock()
		e, ok := r.sessions[callID]
		r.mu.Unlock()
		if !ok {
			return false
		}

		e.mu.Lock()
		if e.retired {
			e.mu.Unlock()
			continue
		}
		if fn(e.sess) {
			r.retire(callID, e)
		}
		e.mu.Unlock()
		return true
	}
}

// retire removes the entry from the map and marks it dead. Callers must
// hold e.mu.
func (r *Registry) retire(callID string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.sessions[callID]; ok && cur == e {
		delete(r.sessions, callID)
	}
	r.mu.Unlock()
	e.retired = true
}

// IdleBefore returns the call IDs of sessions whose last event precedes
// cutoff. The sweep acts on the returned IDs through [Registry.WithExisting],
// so a session that receives an event between snapshot and sweep is judged
// again under its lock.
func (r *Registry) IdleBefore(cutoff time.Time) []string {
	r.mu.Lock()
	entries := make(map[string]*entry, len(r.sessions))
	for id, e := range r.sessions {
		entries[id] = e
	}
	r.mu.Unlock()

	var idle []string
	for id, e := range entries {
		e.mu.Lock()
		if !e.retired && e.sess.LastEventAt().Before(cutoff) {
			idle = append(idle, id)
		}
		e.mu.Unlock()
	}
	return idle
}
