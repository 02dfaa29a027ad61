package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/spektr-org/datadash/engine"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Store keeps independent sessions by id for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     []engine.Option
}

// NewStore creates an empty store. opts are given to every new session.
func NewStore(opts ...engine.Option) *Store {
	return &Store{sessions: make(map[string]*Session), opts: opts}
}

// Create starts and registers a new session.
func (st *Store) Create() *Session {
	s := New(st.opts...)
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get looks up a session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// IDs lists session ids in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
