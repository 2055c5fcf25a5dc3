package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrAccessTokenExpired indicates the access token is no longer valid.
	ErrAccessTokenExpired = errors.New("access token expired")
)

// SessionStore persists issued sessions so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	FindByAccessToken(ctx context.Context, accessToken string) (Session, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) ([]Session, error)
}

// Session is a signed-in identity. ExpiresAt bounds the refresh token and
// therefore the session itself.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	AccessToken     string    `json:"-"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	RefreshToken    string    `json:"-"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Manager manages the lifecycle of issued sessions and publishes a session
// event for every transition.
type Manager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	store SessionStore
	bus   Bus
	now   func() time.Time
}

// NewManager constructs a Manager that issues access and refresh tokens with the provided TTLs.
// A nil bus defaults to an in-process LocalBus.
func NewManager(accessTTL, refreshTTL time.Duration, store SessionStore, bus Bus) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if bus == nil {
		bus = NewLocalBus()
	}
	return &Manager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a new session for the provided user identifier.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	session, err := m.mint(Session{ID: uuid.NewString(), UserID: userID})
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Save(ctx, session); err != nil {
		return models.SessionTokens{}, err
	}

	m.publish(ctx, EventSignedIn, session)
	return tokensFor(session), nil
}

// Refresh exchanges a refresh token for a new token pair on the same session.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if m.now().After(session.ExpiresAt) {
		if err := m.store.Delete(ctx, session.ID); err != nil {
			logging.FromContext(ctx).Warn("delete expired session", "sessionId", session.ID, "error", err)
		}
		m.publish(ctx, EventSignedOut, session)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	rotated, err := m.mint(Session{ID: session.ID, UserID: session.UserID})
	if err != nil {
		return models.SessionTokens{}, err
	}
	if err := m.store.Save(ctx, rotated); err != nil {
		return models.SessionTokens{}, err
	}

	m.publish(ctx, EventSignedIn, rotated)
	return tokensFor(rotated), nil
}

// Revoke removes the session owning the refresh token and announces the sign-out.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrSessionNotFound
	}

	session, err := m.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	m.publish(ctx, EventSignedOut, session)
	return nil
}

// Authenticate resolves an access token to its session.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, ErrSessionNotFound
	}

	session, err := m.store.FindByAccessToken(ctx, accessToken)
	if err != nil {
		return Session{}, err
	}
	if !m.now().Before(session.AccessExpiresAt) {
		return Session{}, ErrAccessTokenExpired
	}
	return session, nil
}

// Sweep deletes expired sessions and publishes a sign-out for each.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	expired, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		m.publish(ctx, EventSignedOut, session)
	}
	return len(expired), nil
}

// Run sweeps expired sessions on the given interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				logging.FromContext(ctx).Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logging.FromContext(ctx).Info("expired sessions swept", "count", n)
			}
		}
	}
}

// Subscribe registers handler for every session event.
func (m *Manager) Subscribe(handler func(Event)) Subscription {
	return m.bus.Subscribe(handler)
}

func (m *Manager) mint(session Session) (Session, error) {
	now := m.now()
	accessToken, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return Session{}, err
	}

	session.AccessToken = accessToken
	session.AccessExpiresAt = now.Add(m.accessTTL)
	session.RefreshToken = refreshToken
	session.ExpiresAt = now.Add(m.refreshTTL)
	return session, nil
}

func (m *Manager) publish(ctx context.Context, kind EventKind, session Session) {
	event := Event{Kind: kind, SessionID: session.ID, UserID: session.UserID}
	if kind == EventSignedIn {
		payload := session
		event.Session = &payload
	}
	if err := m.bus.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish session event", "kind", kind, "sessionId", session.ID, "error", err)
	}
}

func tokensFor(session Session) models.SessionTokens {
	return models.SessionTokens{
		AccessToken:      session.AccessToken,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.ExpiresAt,
	}
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
