package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

const (
	rateLimiterTTL = 10 * time.Minute
	cleanupTimeout = 30 * time.Second
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains background asset removals.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewTokenService(cfg.Tokens)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure tokens: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	stager, err := media.NewStager(cfg.Media.UploadDir)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	janitor := media.NewJanitor(store, media.JanitorConfig{
		QueueSize: cfg.Media.CleanupQueue,
		Workers:   cfg.Media.CleanupWorkers,
		Timeout:   cleanupTimeout,
	}, logger)
	prober := media.NewFFProbe(cfg.Media.FFProbePath, cfg.Media.FFProbeTimeout)

	users := repositories.NewPostgresUserRepository(pool)
	sessions := auth.NewManager(tokens, repositories.NewPostgresSessionStore(pool))

	deps := handlers.Dependencies{
		Logger:         logger,
		Auth:           auth.Gate{Tokens: tokens, Users: users},
		Users:          users,
		Sessions:       sessions,
		Videos:         repositories.NewPostgresVideoRepository(pool),
		Comments:       repositories.NewPostgresCommentRepository(pool),
		Likes:          repositories.NewPostgresLikeRepository(pool),
		Playlists:      repositories.NewPostgresPlaylistRepository(pool),
		Subscriptions:  repositories.NewPostgresSubscriptionRepository(pool),
		Tweets:         repositories.NewPostgresTweetRepository(pool),
		Dashboard:      repositories.NewPostgresDashboardRepository(pool),
		Media:          media.NewCoordinator(store, prober, janitor),
		Stager:         stager,
		AuthLimiter:    middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimiterTTL),
		CORSOrigin:     cfg.Server.CORSOrigin,
		CookieSecure:   cfg.Server.CookieSecure,
		TrustProxy:     cfg.Server.TrustProxy,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		Started:        time.Now(),
	}

	return deps, janitor.Shutdown, nil
}
