package videos

import (
	"errors"
	"fmt"

	"github.com/vidcurate/backend/internal/models"
)

var (
	// ErrProviderUnavailable indicates the metadata provider is not configured.
	ErrProviderUnavailable = errors.New("video metadata provider unavailable")
	// ErrEmptyResult indicates a provider or store call returned nothing.
	ErrEmptyResult = errors.New("empty result")
	// ErrNotConfirmed is returned when a delete is attempted without operator confirmation.
	ErrNotConfirmed = errors.New("delete requires confirmation")
	// ErrAssetStorageUnavailable indicates no object store is configured.
	ErrAssetStorageUnavailable = errors.New("asset storage unavailable")
	// ErrThumbnailSuperseded is returned when a record no longer carries the
	// thumbnail a mirror job was started for.
	ErrThumbnailSuperseded = errors.New("thumbnail superseded")
)

// ValidationError reports caller input that was rejected before reaching the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadError wraps a failure to read the catalog from the store.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load videos: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RefreshError reports a write that reached the store but whose follow-up
// re-read failed. Record is the affected record; only its ID is set after a
// delete.
type RefreshError struct {
	Record models.VideoRecord
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("video %s stored, refresh failed: %v", e.Record.ID, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
