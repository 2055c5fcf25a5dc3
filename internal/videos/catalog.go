package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/metrics"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/validation"
)

// CategoryAll is the filter value that matches every category. It is never a
// valid category for a stored record.
const CategoryAll models.Category = "all"

// DefaultCategory is assigned when the operator leaves the category empty.
const DefaultCategory = models.CategoryOnboarding

// VideoFields is the writable part of a VideoRecord handed to the store.
// CreatedAt is only honoured on insert.
type VideoFields struct {
	URL             string
	Title           string
	Category        models.Category
	Description     string
	ThumbnailURL    string
	DurationSeconds int
	ViewCount       int64
	CreatedAt       time.Time
}

// Store persists curated videos. Insert and Update return the affected record.
type Store interface {
	List(ctx context.Context) ([]models.VideoRecord, error)
	Insert(ctx context.Context, fields VideoFields) (models.VideoRecord, error)
	Update(ctx context.Context, id string, fields VideoFields) (models.VideoRecord, error)
	Delete(ctx context.Context, id string) error
}

// ThumbnailQueue accepts saved records for asynchronous thumbnail mirroring.
type ThumbnailQueue interface {
	Enqueue(ctx context.Context, record models.VideoRecord) error
}

// VideoInput is what an operator submits from the add or edit form.
type VideoInput struct {
	URL          string `json:"url" validate:"required,max=2048"`
	Title        string `json:"title" validate:"required,max=200"`
	Category     string `json:"category" validate:"omitempty,oneof=onboarding product sales support compliance webinar"`
	Description  string `json:"description" validate:"max=5000"`
	ThumbnailURL string `json:"thumbnailUrl" validate:"omitempty,url"`
}

// CatalogEntry is a record annotated with its display fields.
type CatalogEntry struct {
	models.VideoRecord
	FormattedDuration string `json:"formattedDuration"`
	FormattedViews    string `json:"formattedViews"`
	FormattedDate     string `json:"formattedDate"`
}

// CatalogView is the derived list rendered to operators.
type CatalogView []CatalogEntry

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithThumbnailQueue mirrors thumbnails of every saved record through q.
func WithThumbnailQueue(q ThumbnailQueue) CatalogOption {
	return func(c *Catalog) { c.thumbnails = q }
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// Catalog manages the curated video list. Every mutation is followed by a
// full re-read of the store.
type Catalog struct {
	store      Store
	enricher   *Enricher
	thumbnails ThumbnailQueue
	now        func() time.Time
}

// NewCatalog constructs a Catalog. A nil enricher behaves as an unconfigured one.
func NewCatalog(store Store, enricher *Enricher, opts ...CatalogOption) *Catalog {
	if store == nil {
		panic("videos: store must not be nil")
	}
	if enricher == nil {
		enricher = NewEnricher(nil, 0)
	}
	c := &Catalog{
		store:    store,
		enricher: enricher,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List reads every record, newest first, and derives its display fields.
// Store failures are returned as *LoadError and no partial view.
func (c *Catalog) List(ctx context.Context) (view CatalogView, err error) {
	ctx, span := logging.StartSpan(ctx, "catalog.list")
	defer func() { span.Fail(err); span.End() }()
	defer func() { recordOp("list", err) }()

	return c.list(ctx)
}

func (c *Catalog) list(ctx context.Context) (CatalogView, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	view := make(CatalogView, 0, len(records))
	for _, record := range records {
		view = append(view, newEntry(record))
	}
	return view, nil
}

// Save validates input, enriches it and inserts a new record, or updates
// existingID when it is non-empty. The refreshed view is returned on success;
// a failed refresh after the write is reported as *RefreshError.
func (c *Catalog) Save(ctx context.Context, input VideoInput, existingID string) (view CatalogView, err error) {
	op := "create"
	attrs := []slog.Attr{slog.String("op", op)}
	if existingID != "" {
		op = "update"
		attrs = []slog.Attr{slog.String("op", op), slog.String("recordId", existingID)}
	}
	ctx, span := logging.StartSpan(ctx, "catalog.save", attrs...)
	defer func() { span.Fail(err); span.End() }()
	defer func() { recordOp(op, err) }()

	fields, videoID, err := c.candidate(input)
	if err != nil {
		return nil, err
	}

	metadata := c.enricher.Enrich(ctx, videoID)
	fields.DurationSeconds = metadata.DurationSeconds
	fields.ViewCount = metadata.ViewCount

	var saved models.VideoRecord
	if existingID == "" {
		fields.CreatedAt = c.now()
		saved, err = c.store.Insert(ctx, fields)
		if err != nil {
			return nil, fmt.Errorf("insert video: %w", err)
		}
	} else {
		saved, err = c.store.Update(ctx, existingID, fields)
		if err != nil {
			return nil, fmt.Errorf("update video %s: %w", existingID, err)
		}
	}
	if saved.ID == "" {
		return nil, fmt.Errorf("%s video: %w", op, ErrEmptyResult)
	}

	logger := logging.FromContext(ctx)
	if existingID == "" {
		logger = logger.With("recordId", saved.ID)
	}
	logger.Info("video saved", "videoId", videoID,
		"durationSeconds", fields.DurationSeconds, "viewCount", fields.ViewCount)

	if c.thumbnails != nil && input.ThumbnailURL == "" {
		saved.VideoID = videoID
		if err := c.thumbnails.Enqueue(ctx, saved); err != nil {
			logger.Warn("thumbnail mirror enqueue failed", "error", err)
		}
	}

	return c.refresh(ctx, saved)
}

// Delete removes id once the operator has confirmed, then re-reads the store.
func (c *Catalog) Delete(ctx context.Context, id string, confirmed bool) (view CatalogView, err error) {
	ctx, span := logging.StartSpan(ctx, "catalog.delete", slog.String("recordId", id))
	defer func() { span.Fail(err); span.End() }()
	defer func() { recordOp("delete", err) }()

	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Message: "id is required"}
	}
	if !confirmed {
		return nil, ErrNotConfirmed
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete video %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("video deleted")

	return c.refresh(ctx, models.VideoRecord{ID: id})
}

// refresh re-reads the store after a successful write. A failed re-read is
// reported as *RefreshError so callers know the write itself went through.
func (c *Catalog) refresh(ctx context.Context, written models.VideoRecord) (CatalogView, error) {
	view, err := c.list(ctx)
	if err != nil {
		return nil, &RefreshError{Record: written, Err: err}
	}
	return view, nil
}

// Filter keeps entries whose title or description contains search
// (case-insensitively) and whose category matches. CategoryAll or an empty
// category matches every entry; Filter(v, "", CategoryAll) returns v itself.
func Filter(view CatalogView, search string, category models.Category) CatalogView {
	matchAll := category == CategoryAll || category == ""
	if search == "" && matchAll {
		return view
	}

	needle := strings.ToLower(search)
	filtered := make(CatalogView, 0, len(view))
	for _, entry := range view {
		if !matchAll && entry.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(entry.Title), needle) &&
			!strings.Contains(strings.ToLower(entry.Description), needle) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// ParseFilterCategory accepts a category or CategoryAll. Empty means all.
func ParseFilterCategory(raw string) (models.Category, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" || trimmed == string(CategoryAll) {
		return CategoryAll, true
	}
	return models.ParseCategory(trimmed)
}

func (c *Catalog) candidate(input VideoInput) (VideoFields, string, error) {
	input.URL = strings.TrimSpace(input.URL)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.ToLower(strings.TrimSpace(input.Category))
	input.ThumbnailURL = strings.TrimSpace(input.ThumbnailURL)

	if err := validation.Struct(input); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return VideoFields{}, "", &ValidationError{Field: fe.Field, Message: fe.Message}
		}
		return VideoFields{}, "", fmt.Errorf("validate video input: %w", err)
	}

	videoID, ok := ExtractID(input.URL)
	if !ok {
		return VideoFields{}, "", &ValidationError{Field: "url", Message: "url must link to a video with an 11-character identifier"}
	}

	category := DefaultCategory
	if input.Category != "" {
		category, _ = models.ParseCategory(input.Category)
	}

	thumbnail := input.ThumbnailURL
	if thumbnail == "" {
		thumbnail = DefaultThumbnail(videoID)
	}

	return VideoFields{
		URL:          input.URL,
		Title:        input.Title,
		Category:     category,
		Description:  input.Description,
		ThumbnailURL: thumbnail,
	}, videoID, nil
}

func newEntry(record models.VideoRecord) CatalogEntry {
	record.VideoID, _ = ExtractID(record.URL)
	if record.ThumbnailURL == "" {
		record.ThumbnailURL = DefaultThumbnail(record.VideoID)
	}
	return CatalogEntry{
		VideoRecord:       record,
		FormattedDuration: FormatDuration(record.DurationSeconds),
		FormattedViews:    FormatViews(record.ViewCount),
		FormattedDate:     FormatDate(record.CreatedAt),
	}
}

func recordOp(op string, err error) {
	result := "ok"
	var ve *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &ve), errors.Is(err, ErrNotConfirmed):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.CatalogOperationsTotal.WithLabelValues(op, result).Inc()
}
