package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/vidcurate/backend/migrations"
)

// Pool is the subset of a pgx connection pool used by repositories. It is
// satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Connect initialises a PostgreSQL connection pool using the provided database URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// Migration commands understood by Migrate.
const (
	MigrateUp     = "up"
	MigrateStatus = "status"
)

// ErrUnknownMigrateCommand is returned for commands other than up and status.
var ErrUnknownMigrateCommand = errors.New("unknown migrate command")

// Migrate runs the embedded goose migrations against databaseURL.
func Migrate(ctx context.Context, databaseURL, command string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch command {
	case "", MigrateUp:
		backoff := retry.WithMaxRetries(migrationMaxRetries, retry.WithCappedDuration(migrationMaxBackoff, retry.NewExponential(migrationBaseBackoff)))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := goose.UpContext(ctx, conn, "."); err != nil {
				if isTransient(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	case MigrateStatus:
		if err := goose.StatusContext(ctx, conn, "."); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMigrateCommand, command)
	}
	return nil
}

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// isTransient reports whether a migration failure is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed)
}
