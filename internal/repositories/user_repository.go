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

// PostgresUserRepository provides PostgreSQL-backed persistence for operator accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user together with its profile in one statement.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User, role models.Role) error {
	if role == models.RoleUnknown {
		role = models.RoleMember
	}

	_, err := r.pool.Exec(ctx, `
        WITH created AS (
            INSERT INTO users (id, email, password_hash, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, created_at
        )
        INSERT INTO profiles (user_id, role, created_at)
        SELECT id, $6, created_at FROM created
    `, user.ID, strings.ToLower(user.Email), user.Password, user.CreatedAt, user.UpdatedAt, string(role))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT id::text, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `, strings.ToLower(email))

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by email: %w", err)
	}

	return user, nil
}
