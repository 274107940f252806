package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/httpserver"
	"github.com/vidtube/backend/internal/logging"
)

// Run bootstraps the vidtube backend. args[0] selects serve, migrate or seed.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate", "seed":
		return runMaintenance(ctx, args[0], args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := cleanup(drainCtx); err != nil {
			logger.Warn("asset cleanup did not drain", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server, handlers.NewRouter(deps))
	logger.Info("starting http server", "addr", srv.Addr(), "storage", cfg.Storage.Driver)

	return httpserver.Run(ctx, srv, nil, logger)
}
