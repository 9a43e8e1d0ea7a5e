package session

import (
	"sync"

	"github.com/google/uuid"
)

// Store is the registry of active sessions, owned by the transport layer and
// injected where needed. Insert on connect, remove on disconnect.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session in the greeting stage with fresh stream
// records.
func (st *Store) Create() *Session {
	s := &Session{ID: uuid.NewString(), Stage: StageGreeting}
	s.ResetStreams()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	return s, ok
}

// Remove destroys a session, cancelling all of its timers so no callback can
// fire against a torn-down record.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.Lock()
		s.CancelTimers()
		s.Unlock()
	}
}

// Len reports the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
