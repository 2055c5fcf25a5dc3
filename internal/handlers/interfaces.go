package handlers

import (
	"context"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User, role models.Role) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues, rotates and revokes sessions for operators.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string) error
	Source(ctx context.Context, accessToken string) *auth.TokenSource
}

// ProfileReader loads the role record consulted by the admin gate.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// CatalogService is the curated video catalog exposed to admins.
type CatalogService interface {
	List(ctx context.Context) (videos.CatalogView, error)
	Save(ctx context.Context, input videos.VideoInput, existingID string) (videos.CatalogView, error)
	Delete(ctx context.Context, id string, confirmed bool) (videos.CatalogView, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
