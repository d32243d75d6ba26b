package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry owns every live session. Sessions share no parser state; the
// registry lock only guards the map.
type Registry struct {
	cfg      Config
	dispatch Dispatcher

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config, d Dispatcher) *Registry {
	return &Registry{
		cfg:      cfg.WithDefaults(),
		dispatch: d,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Config() Config {
	return r.cfg
}

// Open starts a session with a fresh parser for a newly connected peer.
func (r *Registry) Open(remote string, n Notifier) *Session {
	s := newSession(uuid.NewString(), remote, r.cfg, n, r.dispatch)
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close drops the session; further deliveries fail with ErrClosed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns session status ordered by open time.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(list))
	for _, s := range list {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}
