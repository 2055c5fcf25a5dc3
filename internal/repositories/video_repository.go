package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidcurate/backend/internal/db"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/videos"
)

const videoColumns = `id::text, url, title, category, description, thumbnail_url, duration_seconds, view_count, created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for curated videos.
type PostgresVideoRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// List returns every curated video, newest first.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.VideoRecord, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        ORDER BY created_at DESC, id
    `)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	records := []models.VideoRecord{}
	for rows.Next() {
		record, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return records, nil
}

// Insert stores a new curated video. The store assigns the ID.
func (r *PostgresVideoRepository) Insert(ctx context.Context, fields videos.VideoFields) (models.VideoRecord, error) {
	createdAt := fields.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO videos (url, title, category, description, thumbnail_url, duration_seconds, view_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        RETURNING `+videoColumns,
		fields.URL, fields.Title, string(fields.Category), fields.Description, fields.ThumbnailURL,
		fields.DurationSeconds, fields.ViewCount, createdAt.UTC())

	record, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoRecord{}, videos.ErrEmptyResult
		}
		if pgCode(err) == codeUniqueViolation {
			return models.VideoRecord{}, ErrConflict
		}
		return models.VideoRecord{}, fmt.Errorf("insert video: %w", err)
	}
	return record, nil
}

// Update rewrites every mutable field of id. created_at is never touched.
func (r *PostgresVideoRepository) Update(ctx context.Context, id string, fields videos.VideoFields) (models.VideoRecord, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE videos
        SET url = $2,
            title = $3,
            category = $4,
            description = $5,
            thumbnail_url = $6,
            duration_seconds = $7,
            view_count = $8,
            updated_at = $9
        WHERE id = $1
        RETURNING `+videoColumns,
		id, fields.URL, fields.Title, string(fields.Category), fields.Description, fields.ThumbnailURL,
		fields.DurationSeconds, fields.ViewCount, r.now())

	record, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText {
			return models.VideoRecord{}, ErrNotFound
		}
		return models.VideoRecord{}, fmt.Errorf("update video: %w", err)
	}
	return record, nil
}

// Delete removes the video with the given ID.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return ErrNotFound
		}
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetThumbnail records a mirrored thumbnail location as long as the record
// still carries expected. A record that was edited or removed in the meantime
// yields videos.ErrThumbnailSuperseded.
func (r *PostgresVideoRepository) SetThumbnail(ctx context.Context, id, expected, thumbnailURL string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE videos
        SET thumbnail_url = $3
        WHERE id = $1 AND thumbnail_url = $2
    `, id, expected, thumbnailURL)
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return videos.ErrThumbnailSuperseded
		}
		return fmt.Errorf("update video thumbnail: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return videos.ErrThumbnailSuperseded
	}

	return nil
}

func scanVideo(row pgx.Row) (models.VideoRecord, error) {
	var (
		record   models.VideoRecord
		category string
	)
	if err := row.Scan(&record.ID, &record.URL, &record.Title, &category, &record.Description, &record.ThumbnailURL,
		&record.DurationSeconds, &record.ViewCount, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoRecord{}, err
		}
		return models.VideoRecord{}, fmt.Errorf("scan video: %w", err)
	}

	parsed, ok := models.ParseCategory(category)
	if !ok {
		return models.VideoRecord{}, fmt.Errorf("video %s: unknown category %q", record.ID, category)
	}
	record.Category = parsed
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

var (
	_ videos.Store            = (*PostgresVideoRepository)(nil)
	_ videos.ThumbnailUpdater = (*PostgresVideoRepository)(nil)
)
