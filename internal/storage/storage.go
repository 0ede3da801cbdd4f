package storage

import (
	"sync"
	"time"

	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/coursesnap/coursesnap/internal/session"
	"github.com/google/uuid"
)

// SessionStore keeps in-memory sessions, one per browser tab. Nothing is
// persisted; sessions disappear when the process exits.
type SessionStore struct {
	sessions map[string]*session.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
	}
}

// Create registers a new idle session under a random id
func (s *SessionStore) Create() *session.Session {
	sess := session.New(uuid.NewString())
	s.Set(sess.ID, sess)
	return sess
}

func (s *SessionStore) Get(sessionID string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, exists := s.sessions[sessionID]
	return sess, exists
}

func (s *SessionStore) Set(sessionID string, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = sess
}

func (s *SessionStore) GetAll() map[string]*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*session.Session, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Prune removes sessions untouched for longer than maxIdle. Sessions with a
// batch in flight are kept. It returns the number removed.
func (s *SessionStore) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Status() == models.StatusProcessing {
			continue
		}
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
