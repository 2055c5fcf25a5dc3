package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/config"
	"github.com/vidcurate/backend/internal/db"
	"github.com/vidcurate/backend/internal/handlers"
	"github.com/vidcurate/backend/internal/middleware"
	"github.com/vidcurate/backend/internal/repositories"
	"github.com/vidcurate/backend/internal/storage"
	"github.com/vidcurate/backend/internal/videos"
)

const thumbnailFetchTimeout = 15 * time.Second

// services holds the long-lived collaborators of a running server.
type services struct {
	routes   handlers.Dependencies
	sessions *auth.Manager
	catalog  *videos.Catalog
	bus      *auth.RedisBus
	mirror   *videos.ThumbnailMirror
	redis    *redis.Client
}

// buildServices wires together concrete implementations used by the HTTP handlers.
func buildServices(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*services, error) {
	svc := &services{}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		svc.redis = redis.NewClient(opts)
		svc.bus = auth.NewRedisBus(svc.redis, auth.DefaultEventChannel)
	}

	var bus auth.Bus
	if svc.bus != nil {
		bus = svc.bus
	}
	svc.sessions = auth.NewManager(cfg.Session.AccessTTL, cfg.Session.RefreshTTL, repositories.NewPostgresSessionStore(pool), bus)

	var shared videos.SharedCache
	if svc.redis != nil {
		shared = videos.NewRedisCache(svc.redis, videos.DefaultCacheKeyPrefix)
	}
	provider := newMetadataProvider(cfg.Metadata, shared)
	enricher := videos.NewEnricher(provider, cfg.Metadata.Timeout)
	if !enricher.Configured() {
		logger.Warn("video metadata provider not configured, using defaults", "provider", cfg.Metadata.Provider)
	}

	videoRepo := repositories.NewPostgresVideoRepository(pool)
	var catalogOpts []videos.CatalogOption
	if cfg.Objects.Enabled() {
		assets, err := storage.NewS3Storage(ctx, cfg.Objects)
		if err != nil {
			_ = svc.close(ctx)
			return nil, err
		}
		svc.mirror = videos.NewThumbnailMirror(
			&http.Client{Timeout: thumbnailFetchTimeout},
			assets,
			videoRepo,
			videos.ThumbnailMirrorConfig{Workers: cfg.Objects.Workers, Timeout: thumbnailFetchTimeout},
			logger,
		)
		catalogOpts = append(catalogOpts, videos.WithThumbnailQueue(svc.mirror))
	}
	svc.catalog = videos.NewCatalog(videoRepo, enricher, catalogOpts...)

	checks := map[string]handlers.Pinger{"database": pool}
	if svc.redis != nil {
		checks["redis"] = redisPinger{svc.redis}
	}

	svc.routes = handlers.Dependencies{
		Users:        repositories.NewPostgresUserRepository(pool),
		Sessions:     svc.sessions,
		Profiles:     repositories.NewPostgresProfileRepository(pool),
		Catalog:      svc.catalog,
		LoginLimiter: middleware.NewLoginLimiter(cfg.Session.LoginPerMinute),
		HealthChecks: checks,
	}
	return svc, nil
}

// newMetadataProvider returns nil when the selected provider cannot run.
func newMetadataProvider(cfg config.MetadataConfig, shared videos.SharedCache) videos.Provider {
	var base videos.Provider
	switch cfg.Provider {
	case config.ProviderYTDLP:
		base = videos.NewYTDLPProvider(cfg.YTDLPPath, cfg.Timeout)
	default:
		if yt := videos.NewYouTubeProvider(cfg.YouTubeAPIKey, cfg.Timeout); yt != nil {
			base = yt
		}
	}
	if base == nil {
		return nil
	}
	return videos.NewCachingProvider(base, cfg.CacheTTL, shared)
}

// close drains the thumbnail mirror and releases the redis client.
func (s *services) close(ctx context.Context) error {
	var errs []error
	if s.mirror != nil {
		if err := s.mirror.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown thumbnail mirror: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
