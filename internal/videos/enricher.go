package videos

import (
	"context"
	"errors"
	"time"

	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/metrics"
)

// DefaultEnrichTimeout bounds a single provider lookup.
const DefaultEnrichTimeout = 10 * time.Second

// Enricher resolves duration and view statistics for a video identifier and
// substitutes defaults whenever the provider cannot answer.
type Enricher struct {
	provider Provider
	timeout  time.Duration
}

// NewEnricher returns an Enricher backed by provider. A nil provider means no
// credential is configured and every call returns DefaultMetadata.
func NewEnricher(provider Provider, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	return &Enricher{provider: provider, timeout: timeout}
}

// Configured reports whether a provider is wired in.
func (e *Enricher) Configured() bool {
	return e != nil && e.provider != nil
}

// Enrich never fails; provider errors are logged and replaced by DefaultMetadata.
func (e *Enricher) Enrich(ctx context.Context, videoID string) Metadata {
	if !e.Configured() {
		metrics.EnrichmentTotal.WithLabelValues("unconfigured").Inc()
		return DefaultMetadata()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	metadata, err := e.provider.Lookup(lookupCtx, videoID)
	metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())

	if errors.Is(err, ErrProviderUnavailable) {
		metrics.EnrichmentTotal.WithLabelValues("unconfigured").Inc()
		return DefaultMetadata()
	}
	if err == nil && (metadata.DurationSeconds < 0 || metadata.ViewCount < 0) {
		err = errors.New("provider returned negative statistics")
	}
	if err != nil {
		logging.FromContext(ctx).Warn("metadata enrichment failed, using defaults", "videoId", videoID, "error", err)
		metrics.EnrichmentTotal.WithLabelValues("fallback").Inc()
		return DefaultMetadata()
	}

	metrics.EnrichmentTotal.WithLabelValues("ok").Inc()
	return metadata
}
