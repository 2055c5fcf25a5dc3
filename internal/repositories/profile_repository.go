package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vidcurate/backend/internal/db"
	"github.com/vidcurate/backend/internal/models"
)

// PostgresProfileRepository reads and assigns operator roles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// GetProfile loads the profile for userID. Stored roles outside the known set
// come back as models.RoleUnknown.
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT user_id::text, role, created_at
        FROM profiles
        WHERE user_id = $1
    `, userID)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile, nil
}

// SetRole assigns role to the user registered under email.
func (r *PostgresProfileRepository) SetRole(ctx context.Context, email string, role models.Role) (models.Profile, error) {
	if role == models.RoleUnknown {
		return models.Profile{}, fmt.Errorf("set role: unknown role")
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO profiles (user_id, role)
        SELECT id, $2 FROM users WHERE email = $1
        ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING user_id::text, role, created_at
    `, strings.ToLower(email), string(role))

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("upsert profile role: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var (
		profile models.Profile
		role    string
	)
	if err := row.Scan(&profile.UserID, &role, &profile.CreatedAt); err != nil {
		return models.Profile{}, err
	}
	profile.Role = models.ParseRole(role)
	return profile, nil
}
