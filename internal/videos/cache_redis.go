package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheKeyPrefix namespaces metadata entries in Redis.
const DefaultCacheKeyPrefix = "vidcurate:metadata:"

// RedisCache shares enrichment results between service instances.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache wraps a go-redis client. An empty prefix uses DefaultCacheKeyPrefix.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultCacheKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get returns the cached metadata for videoID. A miss is (Metadata{}, false, nil).
func (c *RedisCache) Get(ctx context.Context, videoID string) (Metadata, bool, error) {
	raw, err := c.client.Get(ctx, c.key(videoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("redis get: %w", err)
	}
	metadata, err := decodeMetadata(raw)
	if err != nil {
		return Metadata{}, false, err
	}
	return metadata, true, nil
}

// Set stores metadata for videoID with the given expiry.
func (c *RedisCache) Set(ctx context.Context, videoID string, metadata Metadata, ttl time.Duration) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := c.client.Set(ctx, c.key(videoID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) key(videoID string) string {
	return c.prefix + videoID
}

func decodeMetadata(raw []byte) (Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("decode cached metadata: %w", err)
	}
	if metadata.DurationSeconds < 0 || metadata.ViewCount < 0 {
		return Metadata{}, errors.New("decode cached metadata: negative values")
	}
	return metadata, nil
}
