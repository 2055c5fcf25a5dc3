package videos

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/metrics"
)

// SharedCache is a cross-instance metadata cache such as RedisCache.
type SharedCache interface {
	Get(ctx context.Context, videoID string) (Metadata, bool, error)
	Set(ctx context.Context, videoID string, metadata Metadata, ttl time.Duration) error
}

type cacheEntry struct {
	metadata Metadata
	expires  time.Time
}

// CachingProvider wraps another Provider with a TTL-based in-memory cache,
// an optional shared cache, and de-duplication of concurrent lookups.
type CachingProvider struct {
	base   Provider
	shared SharedCache
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingProvider returns a Provider that caches lookups for the provided TTL.
// shared may be nil.
func NewCachingProvider(base Provider, ttl time.Duration, shared SharedCache) *CachingProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingProvider{
		base:   base,
		shared: shared,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]cacheEntry),
	}
}

// Lookup returns cached metadata when available, otherwise it delegates to the
// underlying provider and stores the result. Failures are never cached.
func (c *CachingProvider) Lookup(ctx context.Context, videoID string) (Metadata, error) {
	if c == nil || c.base == nil {
		return Metadata{}, ErrProviderUnavailable
	}

	if metadata, ok := c.local(videoID); ok {
		metrics.MetadataCacheTotal.WithLabelValues("hit").Inc()
		return metadata, nil
	}

	ch := c.group.DoChan(videoID, func() (any, error) {
		ctx, cancel := detach(ctx, DefaultEnrichTimeout)
		defer cancel()

		if c.shared != nil {
			metadata, ok, err := c.shared.Get(ctx, videoID)
			if err != nil {
				logging.FromContext(ctx).Warn("shared metadata cache read failed", "videoId", videoID, "error", err)
			} else if ok {
				metrics.MetadataCacheTotal.WithLabelValues("hit").Inc()
				c.store(videoID, metadata)
				return metadata, nil
			}
		}

		metrics.MetadataCacheTotal.WithLabelValues("miss").Inc()
		metadata, err := c.base.Lookup(ctx, videoID)
		if err != nil {
			return Metadata{}, err
		}

		c.store(videoID, metadata)
		if c.shared != nil {
			if err := c.shared.Set(ctx, videoID, metadata, c.ttl); err != nil {
				logging.FromContext(ctx).Warn("shared metadata cache write failed", "videoId", videoID, "error", err)
			}
		}
		return metadata, nil
	})

	select {
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Metadata{}, res.Err
		}
		return res.Val.(Metadata), nil
	}
}

// detach keeps the values and deadline of ctx but not its cancellation, so a
// caller that gives up does not fail the others waiting on the same lookup.
func detach(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallback)
	}
	return context.WithDeadline(context.WithoutCancel(ctx), deadline)
}

func (c *CachingProvider) local(videoID string) (Metadata, bool) {
	c.mu.RLock()
	entry, ok := c.items[videoID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return Metadata{}, false
	}
	return entry.metadata, true
}

func (c *CachingProvider) store(videoID string, metadata Metadata) {
	c.mu.Lock()
	c.items[videoID] = cacheEntry{metadata: metadata, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
