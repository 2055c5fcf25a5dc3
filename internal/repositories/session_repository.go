package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/db"
)

const sessionColumns = `id::text, user_id::text, access_token, access_expires_at, refresh_token, expires_at`

// PostgresSessionStore persists issued sessions to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores or rotates a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO sessions (id, user_id, access_token, access_expires_at, refresh_token, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id)
        DO UPDATE SET access_token = EXCLUDED.access_token,
                      access_expires_at = EXCLUDED.access_expires_at,
                      refresh_token = EXCLUDED.refresh_token,
                      expires_at = EXCLUDED.expires_at
    `, session.ID, session.UserID, session.AccessToken, session.AccessExpiresAt.UTC(), session.RefreshToken, session.ExpiresAt.UTC())
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// FindByAccessToken loads a session by its access token.
func (s *PostgresSessionStore) FindByAccessToken(ctx context.Context, accessToken string) (auth.Session, error) {
	return s.findOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE access_token = $1`, accessToken)
}

// FindByRefreshToken loads a session by its refresh token.
func (s *PostgresSessionStore) FindByRefreshToken(ctx context.Context, refreshToken string) (auth.Session, error) {
	return s.findOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, refreshToken)
}

// Delete removes a session by its ID.
func (s *PostgresSessionStore) Delete(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return auth.ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// DeleteExpired removes and returns every session whose refresh window closed before now.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) ([]auth.Session, error) {
	rows, err := s.pool.Query(ctx, `DELETE FROM sessions WHERE expires_at < $1 RETURNING `+sessionColumns, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	defer rows.Close()

	var expired []auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		expired = append(expired, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}

	return expired, nil
}

func (s *PostgresSessionStore) findOne(ctx context.Context, query, token string) (auth.Session, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (auth.Session, error) {
	var session auth.Session
	if err := row.Scan(&session.ID, &session.UserID, &session.AccessToken, &session.AccessExpiresAt, &session.RefreshToken, &session.ExpiresAt); err != nil {
		return auth.Session{}, err
	}
	session.AccessExpiresAt = session.AccessExpiresAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
