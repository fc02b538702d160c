package services

import (
	"sync"

	"busclient/internal/domain/models"
)

// PrincipalListener receives identity changes in the order they were written.
type PrincipalListener func(prev, next models.Principal)

// PrincipalStore holds the process-wide Principal. Only SessionResolver writes it (set is unexported);
// everything else reads Current or subscribes.
type PrincipalStore struct {
	writeMu sync.Mutex // serializes set + listener fan-out

	mu        sync.RWMutex
	current   models.Principal
	listeners map[uint64]PrincipalListener
	seq       uint64
}

func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{current: models.NoPrincipal(), listeners: map[uint64]PrincipalListener{}}
}

func (s *PrincipalStore) Current() models.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for identity changes. Listeners must not write the store.
func (s *PrincipalStore) Subscribe(fn PrincipalListener) (cancel func()) {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// set stores p and notifies listeners when the identity (kind + id) changed.
// Profile-only updates of the same identity are stored silently.
func (s *PrincipalStore) set(p models.Principal) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev := s.current
	s.current = p
	changed := !prev.SameIdentity(p)
	var fns []PrincipalListener
	if changed {
		fns = make([]PrincipalListener, 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(prev, p)
	}
	return changed
}
