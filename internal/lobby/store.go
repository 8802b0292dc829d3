// internal/lobby/store.go
package lobby

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/models"
)

// Store tracks live sessions in memory. It is also the idempotency point
// for match-found events: the same match id always resolves to the same
// session, no matter how many times clients are notified.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	byMatch  map[uuid.UUID]uuid.UUID // match id -> session id
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		byMatch:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Add registers a hosted session and wires its OnEmpty cleanup.
func (st *Store) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.sessions[s.ID]; exists {
		log.Printf("lobby store: session %s already registered", s.ID)
		return
	}
	st.registerLocked(s)
}

// GetOrCreateForMatch returns the session for a formed match, creating it
// on first sight. The bool reports whether the session was created now.
func (st *Store) GetOrCreateForMatch(m models.ActiveMatch) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sid, ok := st.byMatch[m.ID]; ok {
		if s, ok := st.sessions[sid]; ok {
			return s, false
		}
	}

	s := FromMatch(m)
	st.registerLocked(s)
	st.byMatch[m.ID] = s.ID
	return s, true
}

// Get returns a session by id.
func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete drops a session, typically via its OnEmpty callback.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return
	}
	delete(st.sessions, id)
	if s.MatchID != uuid.Nil {
		delete(st.byMatch, s.MatchID)
	}
}

// List returns a snapshot of all live sessions, for the listing endpoint.
func (st *Store) List() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

func (st *Store) registerLocked(s *Session) {
	if s.OnEmpty == nil {
		s.OnEmpty = st.Delete
	}
	st.sessions[s.ID] = s
}
