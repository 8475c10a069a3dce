package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// sessionStore holds per-session conversation history in memory. The router
// itself never retains history, so all state lives here, keyed by an opaque
// session ID the client carries between requests.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string][]backend.Message
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string][]backend.Message)}
}

// Resolve returns the history for id, minting a fresh session when id is
// empty or unknown. The returned slice is a copy; commit changes with Set.
func (s *sessionStore) Resolve(id string) (string, []backend.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	history := s.sessions[id]
	out := make([]backend.Message, len(history))
	copy(out, history)
	return id, out
}

// Set replaces the history for id.
func (s *sessionStore) Set(id string, history []backend.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = history
}

// Clear drops the history for id.
func (s *sessionStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
