package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/survivalskills/internal/api"
	"github.com/udisondev/survivalskills/internal/command"
	"github.com/udisondev/survivalskills/internal/config"
	"github.com/udisondev/survivalskills/internal/data"
	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/model"
)

const ConfigPath = "config/progression.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("SURVIVAL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("progression server starting", "log_level", cfg.LogLevel, "storage", cfg.Storage.Driver)

	costs := model.TierCosts(cfg.Progression.TierCosts)
	catalog, err := loadCatalog(cfg.CatalogPath, costs)
	if err != nil {
		return fmt.Errorf("loading skill catalog: %w", err)
	}
	slog.Info("skill catalog loaded", "skills", catalog.Len(), "path", cfg.CatalogPath)

	stores, closeStores, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStores()

	eng := engine.New(catalog, stores, engineOptions(cfg))
	cmds := command.NewDefault(eng, command.AccessFromConfig(cfg.Access))
	slog.Info("engine initialized", "commands", cmds.UserCommandCount()+cmds.AdminCommandCount())

	// The API installs its feed as the engine notifier, so build it before anything runs.
	var srv *api.Server
	if cfg.HTTP.Enabled {
		srv = api.New(eng, cmds, api.Config{
			AdminTokenHash: cfg.HTTP.AdminTokenHash,
			WriteTimeout:   cfg.HTTP.WriteTimeout,
			PingInterval:   cfg.HTTP.PingInterval,
		})
		if cfg.HTTP.AdminTokenHash == "" {
			slog.Warn("admin api disabled: http.admin_token_hash is empty")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := eng.Run(gctx); err != nil {
			return fmt.Errorf("engine housekeeping: %w", err)
		}
		return nil
	})

	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx, cfg.HTTP.Addr)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func loadCatalog(path string, costs model.TierCosts) (*data.Catalog, error) {
	if path == "" {
		return data.BuiltinCatalog(costs)
	}
	return data.LoadCatalog(path, costs)
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
