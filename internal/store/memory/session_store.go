package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type SessionStore struct {
	mu sync.RWMutex

	sessions       map[string]*models.Session // token -> Session
	sessionsByUser map[uuid.UUID][]string     // user_id -> []token

	users *UserStore // optional; supplies fresh username/role on Get
}

// NewSessionStore creates a new in-memory session store. The user store is
// optional and, when present, Get refreshes display attributes from it the
// way the Postgres implementation joins the users table.
func NewSessionStore(users *UserStore) *SessionStore {
	return &SessionStore{
		sessions:       make(map[string]*models.Session),
		sessionsByUser: make(map[uuid.UUID][]string),
		users:          users,
	}
}

// Create persists a new session row.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.Token] = &clone

	s.sessionsByUser[session.UserID] = append(
		s.sessionsByUser[session.UserID],
		session.Token,
	)

	return nil
}

// Get retrieves a session by token, enforcing both expiry bounds.
func (s *SessionStore) Get(ctx context.Context, token string, timeout time.Duration) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[token]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	if session.IsExpired(time.Now(), timeout) {
		return nil, store.ErrSessionExpired
	}

	clone := *session

	// Refresh display attributes from the authoritative user row.
	if s.users != nil {
		if user, err := s.users.GetByID(ctx, session.UserID); err == nil {
			clone.Username = user.Username
			clone.Role = user.Role
		}
	}

	return &clone, nil
}

// Touch sets last_activity to now for the given token.
func (s *SessionStore) Touch(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[token]
	if !exists {
		return store.ErrSessionNotFound
	}

	session.LastActivity = time.Now()
	return nil
}

// Rotate atomically replaces oldToken with newToken.
func (s *SessionStore) Rotate(ctx context.Context, oldToken, newToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[oldToken]
	if !exists {
		return store.ErrRotationLost
	}

	delete(s.sessions, oldToken)
	s.removeFromUserIndex(session.UserID, oldToken)

	session.Token = newToken
	session.RotatedAt = time.Now()
	session.LastActivity = time.Now()
	s.sessions[newToken] = session
	s.sessionsByUser[session.UserID] = append(s.sessionsByUser[session.UserID], newToken)

	return nil
}

// Delete removes a session by token. Absent tokens are ignored.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[token]
	if !exists {
		return nil
	}

	s.removeFromUserIndex(session.UserID, token)
	delete(s.sessions, token)

	return nil
}

// DeleteByUser removes all sessions for a user (logout everywhere).
func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, exists := s.sessionsByUser[userID]
	if !exists {
		return 0, nil
	}

	count := len(tokens)
	for _, token := range tokens {
		delete(s.sessions, token)
	}
	delete(s.sessionsByUser, userID)

	return count, nil
}

// PruneUserSessions keeps the `keep` most recently active sessions for the
// user and deletes the rest.
func (s *SessionStore) PruneUserSessions(ctx context.Context, userID uuid.UUID, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.sessionsByUser[userID]
	if len(tokens) <= keep {
		return 0, nil
	}

	sessions := make([]*models.Session, 0, len(tokens))
	for _, token := range tokens {
		sessions = append(sessions, s.sessions[token])
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})

	deleted := 0
	for _, session := range sessions[keep:] {
		s.removeFromUserIndex(userID, session.Token)
		delete(s.sessions, session.Token)
		deleted++
	}

	return deleted, nil
}

// DeleteExpired removes sessions past either expiry bound.
func (s *SessionStore) DeleteExpired(ctx context.Context, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var toDelete []string
	for token, session := range s.sessions {
		if session.IsExpired(now, timeout) {
			toDelete = append(toDelete, token)
		}
	}

	for _, token := range toDelete {
		session := s.sessions[token]
		s.removeFromUserIndex(session.UserID, token)
		delete(s.sessions, token)
	}

	return len(toDelete), nil
}

// CountActive returns the number of live sessions for a user.
func (s *SessionStore) CountActive(ctx context.Context, userID uuid.UUID, timeout time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, token := range s.sessionsByUser[userID] {
		if session := s.sessions[token]; session != nil && !session.IsExpired(now, timeout) {
			count++
		}
	}
	return count, nil
}

// removeFromUserIndex removes a token from the user's session list.
func (s *SessionStore) removeFromUserIndex(userID uuid.UUID, token string) {
	tokens := s.sessionsByUser[userID]
	for i, candidate := range tokens {
		if candidate == token {
			s.sessionsByUser[userID] = append(tokens[:i], tokens[i+1:]...)
			break
		}
	}
	// Clean up empty entries
	if len(s.sessionsByUser[userID]) == 0 {
		delete(s.sessionsByUser, userID)
	}
}
