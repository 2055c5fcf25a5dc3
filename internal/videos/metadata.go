package videos

import "context"

// Defaults substituted whenever enrichment cannot produce real metadata.
const (
	DefaultDurationSeconds = 300
	DefaultViewCount       = int64(0)
)

// Metadata captures the provider statistics stored alongside a curated video.
type Metadata struct {
	DurationSeconds int   `json:"durationSeconds"`
	ViewCount       int64 `json:"viewCount"`
}

// DefaultMetadata is the fallback used when no provider data is available.
func DefaultMetadata() Metadata {
	return Metadata{DurationSeconds: DefaultDurationSeconds, ViewCount: DefaultViewCount}
}

// Provider returns metadata for the supplied video identifier.
type Provider interface {
	Lookup(ctx context.Context, videoID string) (Metadata, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, videoID string) (Metadata, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, videoID string) (Metadata, error) {
	return f(ctx, videoID)
}
