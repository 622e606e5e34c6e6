package api

import (
	"sync"

	"github.com/google/uuid"
)

// Session is a client's logical identity across requests, used for SSE
// routing and observability — never for authorization. Sessions are soft:
// created on first contact and never expire on their own.
type Session struct {
	ID        string
	AgentID   string
	CreatedAt int64

	mu     sync.Mutex
	scents map[string]struct{}
}

func newSession(id, agentID string, now int64) *Session {
	return &Session{ID: id, AgentID: agentID, CreatedAt: now, scents: make(map[string]struct{})}
}

func (s *Session) subscribe(scentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scents[scentID] = struct{}{}
}

func (s *Session) unsubscribe(scentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scents, scentID)
}

func (s *Session) isSubscribed(scentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scents[scentID]
	return ok
}

func (s *Session) subscribedScents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.scents))
	for id := range s.scents {
		out = append(out, id)
	}
	return out
}

// SessionStore tracks sessions by id, created lazily on first contact.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    func() int64
}

func newSessionStore(clock func() int64) *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), clock: clock}
}

// getOrCreate returns the session for id, creating one if id is empty or
// unknown.
func (st *SessionStore) getOrCreate(id, agentID string) *Session {
	if id != "" {
		st.mu.RLock()
		s, ok := st.sessions[id]
		st.mu.RUnlock()
		if ok {
			return s
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Re-check under the write lock in case of a race with another request
	// bearing the same (client-chosen) id.
	if id != "" {
		if s, ok := st.sessions[id]; ok {
			return s
		}
	}

	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	s := newSession(id, agentID, st.clock())
	st.sessions[id] = s
	return s
}

func (st *SessionStore) get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// subscribedTo returns the ids of every known session currently subscribed
// to scentID.
func (st *SessionStore) subscribedTo(scentID string) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var ids []string
	for id, s := range st.sessions {
		if s.isSubscribed(scentID) {
			ids = append(ids, id)
		}
	}
	return ids
}
