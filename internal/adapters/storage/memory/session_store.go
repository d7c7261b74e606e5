package memory

import (
	"sync"

	"github.com/PabloGalante/farum-therapy/internal/domain"
)

type entry struct {
	state    *domain.ConversationState
	revision uint64
}

// SessionStore is the in-process session map. States are copied in and out,
// so a caller never holds a pointer the store also owns.
// Revisions come from one store-wide counter and are never reused, even across
// a delete and re-create of the same id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]entry
	lastRev  uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]entry),
	}
}

func (s *SessionStore) Create(state *domain.ConversationState) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[state.SessionID]; exists {
		return 0, domain.ErrSessionExists
	}

	s.lastRev++
	s.sessions[state.SessionID] = entry{state: state.Clone(), revision: s.lastRev}
	return s.lastRev, nil
}

func (s *SessionStore) Get(id domain.SessionID) (*domain.ConversationState, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, 0, domain.ErrSessionNotFound
	}

	return e.state.Clone(), e.revision, nil
}

// Commit replaces the stored state only if nobody committed since revision was read.
func (s *SessionStore) Commit(state *domain.ConversationState, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[state.SessionID]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	if e.revision != revision {
		return 0, domain.ErrStaleRevision
	}

	s.lastRev++
	s.sessions[state.SessionID] = entry{state: state.Clone(), revision: s.lastRev}
	return s.lastRev, nil
}

func (s *SessionStore) Delete(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// IdleSince lists sessions whose last update is before cutoff.
func (s *SessionStore) IdleSince(cutoff domain.Timestamp) []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []domain.SessionID
	for id, e := range s.sessions {
		if e.state.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
