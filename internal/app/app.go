package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vidcurate/backend/internal/config"
	"github.com/vidcurate/backend/internal/db"
	"github.com/vidcurate/backend/internal/handlers"
	"github.com/vidcurate/backend/internal/httpserver"
	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/middleware"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/repositories"
	"github.com/vidcurate/backend/internal/videos"
)

const usage = "expected command: serve, migrate [up|status], grant-role <email> <role>, or seed <file>"

// Run bootstraps the VidCurate backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		command := db.MigrateUp
		if len(args) > 1 {
			command = args[1]
		}
		return db.Migrate(ctx, cfg.DatabaseURL, command)
	case "grant-role":
		return grantRole(ctx, cfg, args[1:], os.Stdout)
	case "seed":
		return seed(ctx, cfg, logger, args[1:], os.Stdout)
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildServices(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, svc.routes)
	srv := httpserver.New(cfg.AppPort, middleware.RequestLogger(logger)(mux), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return svc.sessions.Run(gctx, cfg.Session.SweepInterval) })
	if svc.bus != nil {
		g.Go(func() error { return svc.bus.Run(gctx) })
	}

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpserver.ShutdownTimeout)
	defer cancel()
	if err := svc.close(shutdownCtx); err != nil {
		logger.Error("shutdown services", "error", err)
	}

	logger.Info("server stopped")
	return runErr
}

// grantRole assigns a role to an existing account.
func grantRole(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: grant-role <email> <role>")
	}
	role := models.ParseRole(args[1])
	if role == models.RoleUnknown {
		return fmt.Errorf("unknown role %q", args[1])
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	profile, err := repositories.NewPostgresProfileRepository(pool).SetRole(ctx, args[0], role)
	if err != nil {
		return fmt.Errorf("grant %s to %s: %w", role, args[0], err)
	}

	fmt.Fprintf(out, "granted %s to %s (%s)\n", profile.Role, args[0], profile.UserID)
	return nil
}

// seed saves every video listed in a JSON file through the catalog, so seeded
// entries are validated and enriched like operator submissions.
func seed(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: seed <file>")
	}

	inputs, err := readSeedFile(args[0])
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildServices(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpserver.ShutdownTimeout)
		defer cancel()
		_ = svc.close(shutdownCtx)
	}()

	return seedCatalog(ctx, svc.catalog, inputs, out)
}

type catalogSaver interface {
	Save(ctx context.Context, input videos.VideoInput, existingID string) (videos.CatalogView, error)
}

func seedCatalog(ctx context.Context, catalog catalogSaver, inputs []videos.VideoInput, out io.Writer) error {
	for i, input := range inputs {
		if _, err := catalog.Save(ctx, input, ""); err != nil {
			return fmt.Errorf("seed entry %d (%s): %w", i, input.Title, err)
		}
		fmt.Fprintf(out, "seeded %s\n", input.Title)
	}
	return nil
}

func readSeedFile(path string) ([]videos.VideoInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var inputs []videos.VideoInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return inputs, nil
}
