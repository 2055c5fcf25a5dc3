package auth

import (
	"context"
	"sync"
	"time"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// Save persists the provided session record, replacing any with the same ID.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// FindByAccessToken retrieves a session by access token.
func (s *InMemorySessionStore) FindByAccessToken(_ context.Context, accessToken string) (Session, error) {
	return s.find(func(session Session) bool { return session.AccessToken == accessToken })
}

// FindByRefreshToken retrieves a session by refresh token.
func (s *InMemorySessionStore) FindByRefreshToken(_ context.Context, refreshToken string) (Session, error) {
	return s.find(func(session Session) bool { return session.RefreshToken == refreshToken })
}

// Delete removes the session with the given ID.
func (s *InMemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// DeleteExpired removes and returns sessions whose refresh window has closed.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Session
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	return expired, nil
}

// Has reports whether a session exists. Useful for tests.
func (s *InMemorySessionStore) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

func (s *InMemorySessionStore) find(match func(Session) bool) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if match(session) {
			return session, nil
		}
	}
	return Session{}, ErrSessionNotFound
}
