// internal/httpserver/sessions.go
//
// In-memory player sessions.
// Login is username-only: the first claim of a name mints a player id,
// and the same name relogs into the same identity as long as the process
// lives. Names are reserved while their player sits in an unfinished
// game; the login handler enforces that with the registry's view.

package httpserver

import (
	"strings"
	"sync"
	"time"
)

// Session is one known player.
type Session struct {
	PlayerID  string
	Username  string
	CreatedAt time.Time
}

// Sessions maps usernames and player ids to sessions. Safe for
// concurrent use.
type Sessions struct {
	mu     sync.RWMutex
	byName map[string]*Session // keyed by lowercase username
	byID   map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{
		byName: make(map[string]*Session),
		byID:   make(map[string]*Session),
	}
}

// Lookup finds a session by username, case-insensitively.
func (s *Sessions) Lookup(username string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byName[strings.ToLower(username)]
	return sess, ok
}

// Get finds a session by player id.
func (s *Sessions) Get(playerID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[playerID]
	return sess, ok
}

// Put stores a session under both keys.
func (s *Sessions) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[strings.ToLower(sess.Username)] = sess
	s.byID[sess.PlayerID] = sess
}
