package auth

import (
	"context"
	"errors"
)

// TokenSource exposes the session behind one bearer token together with the
// event stream for that session.
type TokenSource struct {
	manager   *Manager
	token     string
	sessionID string
}

// Source binds a TokenSource to accessToken. The session id is resolved once so
// that later token rotations are still delivered to subscribers.
func (m *Manager) Source(ctx context.Context, accessToken string) *TokenSource {
	src := &TokenSource{manager: m, token: accessToken}
	if session, err := m.Authenticate(ctx, accessToken); err == nil {
		src.sessionID = session.ID
	}
	return src
}

// CurrentSession returns the live session, or nil when the token does not map to one.
func (s *TokenSource) CurrentSession(ctx context.Context) (*Session, error) {
	if s.token == "" {
		return nil, nil
	}

	session, err := s.manager.Authenticate(ctx, s.token)
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrAccessTokenExpired):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &session, nil
}

// Subscribe delivers events for this source's session only.
func (s *TokenSource) Subscribe(handler func(Event)) Subscription {
	sessionID := s.sessionID
	return s.manager.Subscribe(func(event Event) {
		if sessionID == "" || event.SessionID != sessionID {
			return
		}
		handler(event)
	})
}
