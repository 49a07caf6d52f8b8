package breakglass

import (
	"context"
	"sort"
	"sync"

	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map guarded by a RWMutex.
// Suitable for tests and single-instance deployments.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*Session)}
}

// Create stores a new session. The active-session check and the insert happen
// under the same lock so two concurrent activations for one user cannot both
// succeed.
func (s *InMemorySessionStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.UserID == session.UserID && existing.IsActive {
			return sentinel.ErrConflict
		}
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(session), nil
}

func (s *InMemorySessionStore) FindActiveByUser(_ context.Context, userID id.UserID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive {
			return copySession(session), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, copySession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActivatedAt.After(out[j].ActivatedAt)
	})
	return out, nil
}

func (s *InMemorySessionStore) Execute(_ context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(session); err != nil {
		return nil, err
	}
	mutate(session)
	return copySession(session), nil
}

func copySession(session *Session) *Session {
	out := *session
	if session.DeactivatedAt != nil {
		t := *session.DeactivatedAt
		out.DeactivatedAt = &t
	}
	if session.DeactivatedBy != nil {
		u := *session.DeactivatedBy
		out.DeactivatedBy = &u
	}
	return &out
}
